package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Timezone is the single zone all booking dates are interpreted in.
	Timezone string

	// Booking window and capacity
	SlotCap       int
	FutureDays    int
	RetentionDays int

	// Calendar API quotas
	RunCallLimit int
	DayCallLimit int

	// Global advisory lock
	LockWait time.Duration

	// Holiday source
	HolidayCalendarID string
	HolidayCacheTTL   time.Duration

	// Shared calendar holding summary and appointment events
	SharedCalendarID      string
	GoogleCredentialsJSON string

	// Categories as JSON array [{"id":"medical","name":"Medical Assistance"},...];
	// empty uses the built-in defaults.
	CategoriesJSON string

	// Choice publisher (the intake form's date selector)
	ChoicePublisherURL   string
	ChoicePublisherToken string

	// Alerting
	AlertsFromEmail  string
	AlertsToEmail    string
	AlertMinInterval time.Duration

	// Integrity pass throttle
	IntegrityMinInterval time.Duration

	AdminJWTSecret string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		Timezone: getEnv("BOOKING_TIMEZONE", "Asia/Manila"),

		SlotCap:       getEnvAsInt("SLOT_CAP", 20),
		FutureDays:    getEnvAsInt("FUTURE_DAYS", 60),
		RetentionDays: getEnvAsInt("RETENTION_DAYS", 30),

		RunCallLimit: getEnvAsInt("RUN_CALL_LIMIT", 80),
		DayCallLimit: getEnvAsInt("DAY_CALL_LIMIT", 450),

		LockWait: getEnvAsDuration("LOCK_WAIT", 30*time.Second),

		HolidayCalendarID: getEnv("HOLIDAY_CALENDAR_ID", "en.philippines#holiday@group.v.calendar.google.com"),
		HolidayCacheTTL:   getEnvAsDuration("HOLIDAY_CACHE_TTL", 12*time.Hour),

		SharedCalendarID:      getEnv("SHARED_CALENDAR_ID", "primary"),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),

		CategoriesJSON: getEnv("CATEGORIES_JSON", ""),

		ChoicePublisherURL:   getEnv("CHOICE_PUBLISHER_URL", ""),
		ChoicePublisherToken: getEnv("CHOICE_PUBLISHER_TOKEN", ""),

		AlertsFromEmail:  getEnv("ALERTS_FROM_EMAIL", ""),
		AlertsToEmail:    getEnv("ALERTS_TO_EMAIL", ""),
		AlertMinInterval: getEnvAsDuration("ALERT_MIN_INTERVAL", 24*time.Hour),

		IntegrityMinInterval: getEnvAsDuration("INTEGRITY_MIN_INTERVAL", time.Hour),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}
}

// Location resolves the configured timezone, falling back to UTC on error.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
