package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gkobilansky/funnel-goat/internal/stats"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

type Significance struct {
	MinSample int     `yaml:"min_sample"`
	WinnerZ   float64 `yaml:"winner_z"`
}

type Config struct {
	DBPath      string `yaml:"db_path"`
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`

	// DashboardToken fixes the dashboard access token. Empty generates a
	// fresh token on every start.
	DashboardToken string `yaml:"dashboard_token"`

	Significance Significance    `yaml:"significance"`
	DefaultGoal  store.EventType `yaml:"default_goal"`
	CacheTTL     time.Duration   `yaml:"cache_ttl"`
}

func Default() *Config {
	th := stats.DefaultThresholds()
	return &Config{
		DBPath:       "./funnel-goat.db",
		Port:         8080,
		Environment:  "development",
		Significance: Significance{MinSample: th.MinSample, WinnerZ: th.WinnerZ},
		DefaultGoal:  store.EventRegistration,
		CacheTTL:     5 * time.Second,
	}
}

// Load returns the defaults overlaid by the YAML file at path (skipped when
// path is empty) and then by FG_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FG_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("FG_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("FG_DASHBOARD_TOKEN"); v != "" {
		c.DashboardToken = v
	}
	if v := os.Getenv("FG_DEFAULT_GOAL"); v != "" {
		c.DefaultGoal = store.EventType(v)
	}
	if v := os.Getenv("FG_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FG_PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v := os.Getenv("FG_MIN_SAMPLE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FG_MIN_SAMPLE %q: %w", v, err)
		}
		c.Significance.MinSample = n
	}
	if v := os.Getenv("FG_WINNER_Z"); v != "" {
		z, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid FG_WINNER_Z %q: %w", v, err)
		}
		c.Significance.WinnerZ = z
	}
	if v := os.Getenv("FG_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FG_CACHE_TTL %q: %w", v, err)
		}
		c.CacheTTL = ttl
	}
	return nil
}

func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must be set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be within 1-65535, got %d", c.Port)
	}
	if c.Significance.MinSample < 0 {
		return fmt.Errorf("significance.min_sample must be >= 0, got %d", c.Significance.MinSample)
	}
	if c.Significance.WinnerZ <= 0 {
		return fmt.Errorf("significance.winner_z must be > 0, got %g", c.Significance.WinnerZ)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must be >= 0, got %s", c.CacheTTL)
	}
	if !c.DefaultGoal.Valid() || c.DefaultGoal == store.EventPageView || c.DefaultGoal == store.EventPageLeave {
		return fmt.Errorf("default_goal %q cannot be used as a conversion goal", c.DefaultGoal)
	}
	return nil
}

func (c *Config) Thresholds() stats.Thresholds {
	return stats.Thresholds{MinSample: c.Significance.MinSample, WinnerZ: c.Significance.WinnerZ}
}

// TokenFile is where the running server publishes its dashboard token,
// next to the database.
func (c *Config) TokenFile() string {
	return filepath.Join(filepath.Dir(c.DBPath), ".funnel-goat-token")
}
