package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents the analytics daemon configuration
type Config struct {
	Redis     RedisConfig     `mapstructure:"redis"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Locks     LockConfig      `mapstructure:"locks"`
	Retention RetentionConfig `mapstructure:"retention"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// RedisConfig represents the counter/lock store connection
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// Addr returns the host:port address for the Redis client
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MongoConfig represents the durable store connection
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// LockConfig represents distributed lock behavior
type LockConfig struct {
	Lease time.Duration `mapstructure:"lease"`
}

// RetentionConfig holds the TTL/purge windows, in days
type RetentionConfig struct {
	CategoryCounterDays    int `mapstructure:"category_counter_days"`
	ProductCounterDays     int `mapstructure:"product_counter_days"`
	LikeCounterDays        int `mapstructure:"like_counter_days"`
	InteractionCounterDays int `mapstructure:"interaction_counter_days"`
	ActivityLogDays        int `mapstructure:"activity_log_days"`
	MonthlyPerformanceDays int `mapstructure:"monthly_performance_days"`
}

// JobsConfig holds reconciler cadences. Interval jobs use durations;
// wall-clock jobs use "HH:MM" strings plus a weekday for the weekly reset.
type JobsConfig struct {
	CategoryStatsInterval       time.Duration `mapstructure:"category_stats_interval"`
	ProductActivityInterval     time.Duration `mapstructure:"product_activity_interval"`
	LikesInterval               time.Duration `mapstructure:"likes_interval"`
	CategoryInteractionInterval time.Duration `mapstructure:"category_interaction_interval"`
	PerformanceInterval         time.Duration `mapstructure:"performance_interval"`
	YearlyRollupInterval        time.Duration `mapstructure:"yearly_rollup_interval"`
	DailyResetAt                string        `mapstructure:"daily_reset_at"`
	WeeklyResetAt               string        `mapstructure:"weekly_reset_at"`
	WeeklyResetDay              time.Weekday  `mapstructure:"weekly_reset_day"`
	CleanupAt                   string        `mapstructure:"cleanup_at"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with production defaults
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         6379,
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "buyer_analytics",
			ConnectTimeout: 10 * time.Second,
			WriteTimeout:   30 * time.Second,
		},
		Locks: LockConfig{
			Lease: 300 * time.Second,
		},
		Retention: RetentionConfig{
			CategoryCounterDays:    90,
			ProductCounterDays:     90,
			LikeCounterDays:        30,
			InteractionCounterDays: 60,
			ActivityLogDays:        90,
			MonthlyPerformanceDays: 730,
		},
		Jobs: JobsConfig{
			CategoryStatsInterval:       15 * time.Minute,
			ProductActivityInterval:     30 * time.Minute,
			LikesInterval:               10 * time.Minute,
			CategoryInteractionInterval: 30 * time.Minute,
			PerformanceInterval:         time.Hour,
			YearlyRollupInterval:        6 * time.Hour,
			DailyResetAt:                "00:01",
			WeeklyResetAt:               "00:05",
			WeeklyResetDay:              time.Sunday,
			CleanupAt:                   "02:00",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Redis.Host == "" {
		return errors.New("redis.host is required")
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("redis.port must be between 1 and 65535, got %d", c.Redis.Port)
	}
	if c.Mongo.URI == "" {
		return errors.New("mongo.uri is required")
	}
	if c.Mongo.Database == "" {
		return errors.New("mongo.database is required")
	}
	if c.Locks.Lease <= 0 {
		return errors.New("locks.lease must be positive")
	}
	for name, days := range map[string]int{
		"retention.category_counter_days":    c.Retention.CategoryCounterDays,
		"retention.product_counter_days":     c.Retention.ProductCounterDays,
		"retention.like_counter_days":        c.Retention.LikeCounterDays,
		"retention.interaction_counter_days": c.Retention.InteractionCounterDays,
		"retention.activity_log_days":        c.Retention.ActivityLogDays,
	} {
		if days <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, days)
		}
	}
	for name, iv := range map[string]time.Duration{
		"jobs.category_stats_interval":       c.Jobs.CategoryStatsInterval,
		"jobs.product_activity_interval":     c.Jobs.ProductActivityInterval,
		"jobs.likes_interval":                c.Jobs.LikesInterval,
		"jobs.category_interaction_interval": c.Jobs.CategoryInteractionInterval,
		"jobs.performance_interval":          c.Jobs.PerformanceInterval,
		"jobs.yearly_rollup_interval":        c.Jobs.YearlyRollupInterval,
	} {
		if iv < time.Minute {
			return fmt.Errorf("%s must be at least one minute, got %s", name, iv)
		}
	}
	for name, at := range map[string]string{
		"jobs.daily_reset_at":  c.Jobs.DailyResetAt,
		"jobs.weekly_reset_at": c.Jobs.WeeklyResetAt,
		"jobs.cleanup_at":      c.Jobs.CleanupAt,
	} {
		if _, err := ParseClock(at); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// ParseClock parses an "HH:MM" wall-clock time string
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid wall-clock time %q (want HH:MM): %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
