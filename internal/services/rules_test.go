package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peyvandapp/peyvand-backend/internal/config"
	"github.com/peyvandapp/peyvand-backend/internal/models"
)

func testDefaults() config.RuleDefaults {
	return config.RuleDefaults{
		PunishmentDurationHours:      24,
		MaxViolationsForPermanentBan: 3,
		WarningExpiryHours:           168,
		EscalationThreshold:          1,
		NotificationMessage:          "default punishment message",
		WarningMessage:               "default warning message",
	}
}

func TestApplyDefaultsFillsOmittedFields(t *testing.T) {
	store := NewRuleStore(testDefaults())
	now := time.Now()

	rule := store.ApplyDefaults(RuleSpec{
		Title:          "  هرزنامه  ",
		Description:    "قانون هرزنامه",
		ViolationType:  models.ViolationSpam,
		PunishmentType: models.PunishmentTemporary,
	}, now)

	assert.Equal(t, "هرزنامه", rule.Title)
	assert.Equal(t, 24, rule.PunishmentDuration)
	assert.Equal(t, 3, rule.MaxViolationsForPermanentBan)
	assert.Equal(t, 168, rule.WarningExpiryHours)
	assert.Equal(t, 1, rule.EscalationThreshold)
	assert.Equal(t, "default punishment message", rule.NotificationMessage)
	assert.Equal(t, "default warning message", rule.WarningMessage)
	assert.True(t, rule.IsActive)
	assert.True(t, rule.AutoSendNotification)
	assert.Equal(t, now, rule.CreatedAt)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	store := NewRuleStore(testDefaults())
	inactive := false
	noAuto := false

	rule := store.ApplyDefaults(RuleSpec{
		Title:                        "harassment",
		Description:                  "desc",
		ViolationType:                models.ViolationHarassment,
		PunishmentType:               models.PunishmentPermanent,
		PunishmentDuration:           72,
		MaxViolationsForPermanentBan: 5,
		IsActive:                     &inactive,
		AutoSendNotification:         &noAuto,
		NotificationMessage:          "custom message",
		WarningExpiryHours:           48,
	}, time.Now())

	assert.Equal(t, 72, rule.PunishmentDuration)
	assert.Equal(t, 5, rule.MaxViolationsForPermanentBan)
	assert.Equal(t, 48, rule.WarningExpiryHours)
	assert.Equal(t, "custom message", rule.NotificationMessage)
	assert.False(t, rule.IsActive)
	assert.False(t, rule.AutoSendNotification)
}

func TestValidateSpec(t *testing.T) {
	valid := RuleSpec{
		Title:          "t",
		Description:    "d",
		ViolationType:  models.ViolationSpam,
		PunishmentType: models.PunishmentTemporary,
	}
	require.NoError(t, ValidateSpec(valid))

	missingTitle := valid
	missingTitle.Title = "   "
	assert.ErrorIs(t, ValidateSpec(missingTitle), ErrValidation)

	missingDescription := valid
	missingDescription.Description = ""
	assert.ErrorIs(t, ValidateSpec(missingDescription), ErrValidation)

	badViolation := valid
	badViolation.ViolationType = "griefing"
	assert.ErrorIs(t, ValidateSpec(badViolation), ErrValidation)

	badPunishment := valid
	badPunishment.PunishmentType = "shadowban"
	assert.ErrorIs(t, ValidateSpec(badPunishment), ErrValidation)
}

func TestPatchChanges(t *testing.T) {
	assert.Empty(t, PatchChanges(RulePatch{}))

	title := "new title"
	active := true
	hours := 24
	changed := PatchChanges(RulePatch{
		Title:              &title,
		IsActive:           &active,
		WarningExpiryHours: &hours,
	})
	assert.ElementsMatch(t, []string{"title", "is_active", "warning_expiry_hours"}, changed)
}
