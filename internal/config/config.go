// Package config holds the YAML configuration shared by the catering API
// and the conflict detection service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"catering/internal/util"
)

const (
	defaultDBPath          = "data/catering.db"
	defaultConflictListen  = ":8081"
	defaultConflictURL     = "http://127.0.0.1:8081"
	defaultConflictTimeout = 300 * time.Millisecond
	defaultConflictConns   = 4
	defaultAPIListen       = ":8080"
	defaultSweepCron       = "@every 15m"
	defaultMaxSeries       = 52
	defaultLogLevel        = "info"
)

// DatabaseConfig points at the sqlite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	// MaxOpenConns bounds the API process pool. Zero means one connection.
	MaxOpenConns int `yaml:"max_open_conns"`
}

// ConflictServiceConfig covers both sides of the conflict service: where
// conflictd listens and where the API reaches it.
type ConflictServiceConfig struct {
	Listen       string        `yaml:"listen"`
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

// APIConfig is the main application HTTP server.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// SchedulingConfig tunes assignment and generation.
type SchedulingConfig struct {
	// StrictOverlap re-checks overlaps inside the write transaction.
	StrictOverlap bool `yaml:"strict_overlap"`
	MaxSeries     int  `yaml:"max_series"`
}

// SweeperConfig controls the overdue sweep.
type SweeperConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// TemplatesConfig optionally names a TOML catalog imported on start.
type TemplatesConfig struct {
	Catalog string `yaml:"catalog"`
}

// Config is the top-level application configuration.
type Config struct {
	Database        DatabaseConfig        `yaml:"database"`
	ConflictService ConflictServiceConfig `yaml:"conflict_service"`
	API             APIConfig             `yaml:"api"`
	Scheduling      SchedulingConfig      `yaml:"scheduling"`
	Sweeper         SweeperConfig         `yaml:"sweeper"`
	Templates       TemplatesConfig       `yaml:"templates"`
	LogLevel        string                `yaml:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: defaultDBPath},
		ConflictService: ConflictServiceConfig{
			Listen:       defaultConflictListen,
			URL:          defaultConflictURL,
			Timeout:      defaultConflictTimeout,
			MaxOpenConns: defaultConflictConns,
		},
		API:        APIConfig{Listen: defaultAPIListen},
		Scheduling: SchedulingConfig{MaxSeries: defaultMaxSeries},
		Sweeper:    SweeperConfig{Enabled: true, Cron: defaultSweepCron},
		LogLevel:   defaultLogLevel,
	}
}

// Normalize fills zero values with defaults so partial files still work.
func (c *Config) Normalize() {
	if c.Database.Path == "" {
		c.Database.Path = defaultDBPath
	}
	if c.Database.MaxOpenConns < 0 {
		c.Database.MaxOpenConns = 0
	}
	if c.ConflictService.Listen == "" {
		c.ConflictService.Listen = defaultConflictListen
	}
	if c.ConflictService.URL == "" {
		c.ConflictService.URL = defaultConflictURL
	}
	if c.ConflictService.Timeout <= 0 {
		c.ConflictService.Timeout = defaultConflictTimeout
	}
	if c.ConflictService.MaxOpenConns <= 0 {
		c.ConflictService.MaxOpenConns = defaultConflictConns
	}
	if c.API.Listen == "" {
		c.API.Listen = defaultAPIListen
	}
	if c.Scheduling.MaxSeries <= 0 {
		c.Scheduling.MaxSeries = defaultMaxSeries
	}
	if c.Sweeper.Cron == "" {
		c.Sweeper.Cron = defaultSweepCron
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// ApplyEnv overrides file values with CATERING_* and CONFLICTD_* variables.
func (c *Config) ApplyEnv() {
	c.Database.Path = util.EnvOrDefault("CATERING_DB_PATH", c.Database.Path)
	c.API.Listen = util.EnvOrDefault("CATERING_ADDR", c.API.Listen)
	c.LogLevel = util.EnvOrDefault("CATERING_LOG_LEVEL", c.LogLevel)
	c.Scheduling.StrictOverlap = util.EnvBoolOrDefault("CATERING_STRICT_OVERLAP", c.Scheduling.StrictOverlap)
	c.ConflictService.Listen = util.EnvOrDefault("CONFLICTD_ADDR", c.ConflictService.Listen)
	c.ConflictService.URL = util.EnvOrDefault("CONFLICTD_URL", c.ConflictService.URL)
	c.ConflictService.Timeout = util.EnvDurationOrDefault("CONFLICTD_TIMEOUT", c.ConflictService.Timeout)
	c.ConflictService.MaxOpenConns = util.EnvIntOrDefault("CONFLICTD_MAX_CONNS", c.ConflictService.MaxOpenConns)
}

// Load reads path, applies environment overrides and normalizes the
// result. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.ApplyEnv()
	cfg.Normalize()
	return cfg, nil
}
