package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the migration run configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Source    SourceConfig    `mapstructure:"source"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig holds target sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SourceConfig points at the legacy export artifact.
type SourceConfig struct {
	Path string `mapstructure:"path"`
}

// CatalogConfig points at the product mapping table; empty means the
// built-in table.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// PipelineConfig holds stage execution settings.
type PipelineConfig struct {
	Workers            int     `mapstructure:"workers"`
	CommissionStrategy string  `mapstructure:"commission_strategy"`
	DefaultRate        float64 `mapstructure:"default_rate"`
}

// ReconcileConfig tunes the drift comparison.
type ReconcileConfig struct {
	ExpectedRate float64 `mapstructure:"expected_rate"`
	Tolerance    int64   `mapstructure:"tolerance"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from file, env and flags. Env var overrides use
// prefix SEJOLI_MIGRATE_; flags (already parsed) take the highest priority.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()

	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "sejoli-migrator", "target.db"))
	v.SetDefault("source.path", "")
	v.SetDefault("catalog.path", "")
	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("pipeline.commission_strategy", "ledger")
	v.SetDefault("pipeline.default_rate", 30.0)
	v.SetDefault("reconcile.expected_rate", 30.0)
	v.SetDefault("reconcile.tolerance", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("SEJOLI_MIGRATE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "sejoli-migrator"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SEJOLI_MIGRATE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	if flags != nil {
		bindings := map[string]string{
			"database.path":                "db",
			"source.path":                  "source",
			"catalog.path":                 "catalog",
			"pipeline.workers":             "workers",
			"pipeline.commission_strategy": "strategy",
			"reconcile.expected_rate":      "expected-rate",
			"reconcile.tolerance":          "tolerance",
			"log.level":                    "log-level",
		}
		for key, name := range bindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind --%s: %w", name, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
