package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfigIsValid verifies the shipped defaults pass validation
func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 300*time.Second, cfg.Locks.Lease)
}

// TestValidate tests rejection of broken configurations
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing redis host", func(c *Config) { c.Redis.Host = "" }},
		{"bad redis port", func(c *Config) { c.Redis.Port = 0 }},
		{"missing mongo uri", func(c *Config) { c.Mongo.URI = "" }},
		{"missing mongo database", func(c *Config) { c.Mongo.Database = "" }},
		{"zero lock lease", func(c *Config) { c.Locks.Lease = 0 }},
		{"zero retention", func(c *Config) { c.Retention.LikeCounterDays = 0 }},
		{"sub-minute interval", func(c *Config) { c.Jobs.LikesInterval = time.Second }},
		{"bad reset clock", func(c *Config) { c.Jobs.DailyResetAt = "25:99" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestParseClock tests wall-clock parsing
func TestParseClock(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"00:01", time.Minute, false},
		{"02:00", 2 * time.Hour, false},
		{"23:59", 23*time.Hour + 59*time.Minute, false},
		{"24:00", 0, true},
		{"7pm", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// TestLoadFromFile tests YAML loading layered over defaults
func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
redis:
  host: redis.internal
  port: 6380
mongo:
  database: analytics_test
locks:
  lease: 2m
jobs:
  likes_interval: 5m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr())
	assert.Equal(t, "analytics_test", cfg.Mongo.Database)
	assert.Equal(t, 2*time.Minute, cfg.Locks.Lease)
	assert.Equal(t, 5*time.Minute, cfg.Jobs.LikesInterval)
	// Untouched values keep their defaults.
	assert.Equal(t, 15*time.Minute, cfg.Jobs.CategoryStatsInterval)
	assert.Equal(t, 90, cfg.Retention.ActivityLogDays)
}

// TestLoadWithoutFile verifies defaults alone are enough
func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "buyer_analytics", cfg.Mongo.Database)
}

// TestEnvironmentOverrides verifies env vars beat the file
func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("REDIS_HOST", "env-redis")
	t.Setenv("REDIS_PORT", "7000")
	t.Setenv("MONGO_DATABASE", "env_db")
	t.Setenv("LOCK_LEASE_SECONDS", "120")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-redis:7000", cfg.Redis.Addr())
	assert.Equal(t, "env_db", cfg.Mongo.Database)
	assert.Equal(t, 2*time.Minute, cfg.Locks.Lease)
}
