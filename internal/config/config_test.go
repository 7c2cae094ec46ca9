package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
	assert.Equal(t, 0, cfg.CountWindowDays)
	assert.Equal(t, 10*time.Second, cfg.LookupTimeout)
	assert.Equal(t, 3, cfg.PushRetries)
	assert.Equal(t, 24, cfg.RuleDefaults.PunishmentDurationHours)
	assert.Equal(t, 3, cfg.RuleDefaults.MaxViolationsForPermanentBan)
	assert.Equal(t, 168, cfg.RuleDefaults.WarningExpiryHours)
	assert.NotEmpty(t, cfg.RuleDefaults.NotificationMessage)
	assert.NotEmpty(t, cfg.RuleDefaults.WarningMessage)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ENV", "Production")
	t.Setenv("PORT", "9000")
	t.Setenv("SWEEP_INTERVAL_HOURS", "6")
	t.Setenv("VIOLATION_COUNT_WINDOW_DAYS", "90")
	t.Setenv("ALLOWED_ORIGINS", "https://peyvand.app, https://admin.peyvand.app")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 6*time.Hour, cfg.SweepInterval)
	assert.Equal(t, 90, cfg.CountWindowDays)
	assert.Equal(t, []string{"https://peyvand.app", "https://admin.peyvand.app"}, cfg.AllowedOrigins)
}

func TestAllowedOriginsFallsBackToFrontendURL(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("FRONTEND_URL", "https://peyvand.app")

	cfg := Load()
	assert.Equal(t, []string{"https://peyvand.app"}, cfg.AllowedOrigins)
}
