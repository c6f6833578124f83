package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gkobilansky/funnel-goat/internal/analytics"
	"github.com/gkobilansky/funnel-goat/internal/config"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	dbPath     string
	configPath string
}

// loadConfig resolves the configuration and applies the global flags on top.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	return cfg, nil
}

// withStore opens the database, executes the function, and handles cleanup.
func (o *rootOptions) withStore(fn func(*store.SQLiteStore, *config.Config) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s, cfg)
}

// withAnalytics is withStore plus a read-side analytics service.
func (o *rootOptions) withAnalytics(fn func(*store.SQLiteStore, *analytics.Service) error) error {
	return o.withStore(func(s *store.SQLiteStore, cfg *config.Config) error {
		return fn(s, analytics.NewService(s, cfg.Thresholds(), cfg.DefaultGoal, zap.NewNop()))
	})
}

func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}

func formatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func formatOptionalMoney(minor *float64) string {
	if minor == nil {
		return "n/a"
	}
	return formatMoney(int64(*minor + 0.5))
}

func formatPercent(p float64) string {
	if p == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", p)
}
