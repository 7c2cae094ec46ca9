package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RuleDefaults are the fallback values applied when a rule is created
// with fields omitted. They are injected into the rule store at
// construction; nothing reads them from ambient globals.
type RuleDefaults struct {
	PunishmentDurationHours      int
	MaxViolationsForPermanentBan int
	WarningExpiryHours           int
	EscalationThreshold          int
	NotificationMessage          string
	WarningMessage               string
}

const (
	defaultNotificationMessage = "شما به دلیل نقض قوانین مسدود شده‌اید."
	defaultWarningMessage      = "گزارشی بر علیه شما با موضوع {violationType} ثبت گردید و حالا اگر یک کاربر دیگر بر علیه شما چنین گزارشی ثبت کند شما مسدود خواهید شد پس اگر این گزارش درست است لطفا رفتار خود را برای گفتگوهای بعدی اصلاح نمایید تا گزارشی دریافت ننمایید"
)

type Config struct {
	MongoURI       string
	PostgresURI    string
	RedisURI       string
	Port           string
	AllowedOrigins []string
	Environment    string // ENV: production, development, etc.

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	// Enforcement pipeline knobs
	SweepInterval   time.Duration // cadence of the expiry sweeper
	CountWindowDays int           // violation-count window; 0 = lifetime
	LookupTimeout   time.Duration // bound on user/rule lookups
	PushTimeout     time.Duration // bound on push transport calls
	PushRetries     int

	RuleDefaults RuleDefaults
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{getEnv("FRONTEND_URL", "http://localhost:3000")}
	}

	return &Config{
		MongoURI:       getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/peyvand")),
		PostgresURI:    getEnv("POSTGRES_URI", "postgres://localhost:5432/peyvand?sslmode=disable"),
		RedisURI:       getEnv("REDIS_URI", "redis://localhost:6379/0"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: allowedOrigins,
		Environment:    env,

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),

		SweepInterval:   time.Duration(getEnvInt("SWEEP_INTERVAL_HOURS", 24)) * time.Hour,
		CountWindowDays: getEnvInt("VIOLATION_COUNT_WINDOW_DAYS", 0),
		LookupTimeout:   time.Duration(getEnvInt("LOOKUP_TIMEOUT_SECONDS", 10)) * time.Second,
		PushTimeout:     time.Duration(getEnvInt("PUSH_TIMEOUT_SECONDS", 5)) * time.Second,
		PushRetries:     getEnvInt("PUSH_RETRIES", 3),

		RuleDefaults: RuleDefaults{
			PunishmentDurationHours:      getEnvInt("RULE_DEFAULT_PUNISHMENT_HOURS", 24),
			MaxViolationsForPermanentBan: getEnvInt("RULE_DEFAULT_MAX_VIOLATIONS", 3),
			WarningExpiryHours:           getEnvInt("RULE_DEFAULT_WARNING_EXPIRY_HOURS", 168),
			EscalationThreshold:          getEnvInt("RULE_DEFAULT_ESCALATION_THRESHOLD", 1),
			NotificationMessage:          getEnv("RULE_DEFAULT_NOTIFICATION_MESSAGE", defaultNotificationMessage),
			WarningMessage:               getEnv("RULE_DEFAULT_WARNING_MESSAGE", defaultWarningMessage),
		},
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
