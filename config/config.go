// Package config loads relay server settings from environment variables.
//
// Every value has a working default so the server starts with no
// configuration at all. A .env file, if present, is loaded by main before
// Load is called.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for every tunable. The sweep/idle values and the spawn range are
// policy, not invariants; operators may change them freely.
const (
	DefaultPort          = 3000
	DefaultSpawnRange    = 50.0
	DefaultSweepInterval = 5 * time.Minute
	DefaultIdleThreshold = 30 * time.Minute
	DefaultLogFormat     = "console"
)

// Config holds the relay server's runtime settings.
type Config struct {
	Host string // bind address, empty means all interfaces
	Port int    // HTTP listen port

	SpawnRange float64 // spawn positions are uniform on [-SpawnRange, SpawnRange)

	SweepInterval time.Duration // how often the idle reaper runs
	IdleThreshold time.Duration // room staleness cutoff for the reaper

	LogFormat string // "console" or "json"
}

// Load builds a Config from the environment, falling back to defaults for
// anything unset. It returns an error only for values that are set but
// unparseable.
func Load() (Config, error) {
	cfg := Config{
		Host:          os.Getenv("HOST"),
		Port:          DefaultPort,
		SpawnRange:    DefaultSpawnRange,
		SweepInterval: DefaultSweepInterval,
		IdleThreshold: DefaultIdleThreshold,
		LogFormat:     getEnv("LOG_FORMAT", DefaultLogFormat),
	}

	var err error
	if cfg.Port, err = getEnvInt("PORT", DefaultPort); err != nil {
		return Config{}, err
	}
	if cfg.SpawnRange, err = getEnvFloat("SPAWN_RANGE", DefaultSpawnRange); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = getEnvDuration("SWEEP_INTERVAL", DefaultSweepInterval); err != nil {
		return Config{}, err
	}
	if cfg.IdleThreshold, err = getEnvDuration("IDLE_THRESHOLD", DefaultIdleThreshold); err != nil {
		return Config{}, err
	}

	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("LOG_FORMAT must be \"console\" or \"json\", got %q", cfg.LogFormat)
	}

	return cfg, nil
}

// Addr returns the host:port the HTTP server should listen on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like \"5m\": %w", key, err)
	}
	return d, nil
}
