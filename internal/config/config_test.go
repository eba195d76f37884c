package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "Asia/Manila", cfg.Timezone)
	assert.Equal(t, 20, cfg.SlotCap)
	assert.Equal(t, 60, cfg.FutureDays)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, 80, cfg.RunCallLimit)
	assert.Equal(t, 450, cfg.DayCallLimit)
	assert.Equal(t, 30*time.Second, cfg.LockWait)
	assert.Equal(t, 12*time.Hour, cfg.HolidayCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.AlertMinInterval)
	assert.Equal(t, time.Hour, cfg.IntegrityMinInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SLOT_CAP", "35")
	t.Setenv("FUTURE_DAYS", "14")
	t.Setenv("LOCK_WAIT", "5s")
	t.Setenv("REDIS_TLS", "true")

	cfg := Load()

	assert.Equal(t, 35, cfg.SlotCap)
	assert.Equal(t, 14, cfg.FutureDays)
	assert.Equal(t, 5*time.Second, cfg.LockWait)
	assert.True(t, cfg.RedisTLS)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SLOT_CAP", "twenty")
	t.Setenv("LOCK_WAIT", "soon")

	cfg := Load()

	assert.Equal(t, 20, cfg.SlotCap)
	assert.Equal(t, 30*time.Second, cfg.LockWait)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.Location())
}
