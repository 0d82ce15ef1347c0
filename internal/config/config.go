package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/johnwards/insights/internal/domain"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Addr              string // INSIGHTS_ADDR, default ":8080"
	DBPath            string // INSIGHTS_DB, default "insights.db"
	AuthToken         string // INSIGHTS_AUTH_TOKEN, optional
	DefinitionsPath   string // INSIGHTS_DEFINITIONS, optional YAML file
	RedisAddr         string // INSIGHTS_REDIS_ADDR, optional host:port or redis:// URL
	RedisChannel      string // INSIGHTS_REDIS_CHANNEL, default "insights:reports"
	MaxStages         int    // INSIGHTS_MAX_STAGES, default 0 (unbounded)
	Timezone          string // INSIGHTS_TIMEZONE, default "UTC"
	Scheduler         bool   // INSIGHTS_SCHEDULER, default on
	DashboardFailure  domain.FailurePolicy
	ScheduleFailure   domain.FailurePolicy
	WidgetConcurrency int // INSIGHTS_WIDGET_CONCURRENCY, default 4
}

// Load reads configuration from environment variables with sensible defaults.
// It fails on values that cannot be parsed.
func Load() (Config, error) {
	cfg := Config{
		Addr:            envOr("INSIGHTS_ADDR", ":8080"),
		DBPath:          envOr("INSIGHTS_DB", "insights.db"),
		AuthToken:       os.Getenv("INSIGHTS_AUTH_TOKEN"),
		DefinitionsPath: os.Getenv("INSIGHTS_DEFINITIONS"),
		RedisAddr:       os.Getenv("INSIGHTS_REDIS_ADDR"),
		RedisChannel:    envOr("INSIGHTS_REDIS_CHANNEL", "insights:reports"),
		Timezone:        envOr("INSIGHTS_TIMEZONE", "UTC"),
	}

	var err error
	if cfg.MaxStages, err = intEnv("INSIGHTS_MAX_STAGES", 0); err != nil {
		return Config{}, err
	}
	if cfg.WidgetConcurrency, err = intEnv("INSIGHTS_WIDGET_CONCURRENCY", 4); err != nil {
		return Config{}, err
	}
	if cfg.Scheduler, err = boolEnv("INSIGHTS_SCHEDULER", true); err != nil {
		return Config{}, err
	}
	if cfg.DashboardFailure, err = domain.ParseFailurePolicy(os.Getenv("INSIGHTS_DASHBOARD_FAILURE"), domain.FailFast); err != nil {
		return Config{}, fmt.Errorf("INSIGHTS_DASHBOARD_FAILURE: %w", err)
	}
	if cfg.ScheduleFailure, err = domain.ParseFailurePolicy(os.Getenv("INSIGHTS_SCHEDULE_FAILURE"), domain.Isolate); err != nil {
		return Config{}, fmt.Errorf("INSIGHTS_SCHEDULE_FAILURE: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location returns the zone cron expressions are evaluated in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("INSIGHTS_TIMEZONE: load location %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: want a non-negative integer, got %q", key, v)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	switch os.Getenv(key) {
	case "":
		return fallback, nil
	case "1", "true", "on", "yes":
		return true, nil
	case "0", "false", "off", "no":
		return false, nil
	}
	return false, fmt.Errorf("%s: want on or off, got %q", key, os.Getenv(key))
}
