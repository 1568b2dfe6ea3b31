// Package config loads loadorder settings from defaults, an optional config
// file, LOADORDER_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. LOADORDER_LOG_LEVEL.
const EnvPrefix = "LOADORDER"

// Config is the complete loadorder configuration.
type Config struct {
	// Database is the SQLite file holding loadouts and sort orders.
	Database string `mapstructure:"database"`

	// Game selects the catalog game whose varieties are registered.
	Game string `mapstructure:"game"`

	// Catalog lists CUE catalog files. Empty means the builtin catalog.
	Catalog []string `mapstructure:"catalog"`

	// LockTimeout bounds the wait for the sort order lock.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Database:    "loadorder.db",
		Game:        "skyrimse",
		Catalog:     []string{},
		LockTimeout: 30 * time.Second,
		Log:         LogConfig{Level: "info", Format: "text"},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"db":           "database",
	"game":         "game",
	"catalog":      "catalog",
	"lock-timeout": "lock_timeout",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// Load resolves the configuration. An explicit path must exist; without
// one, loadorder.{yaml,json,toml} is looked up in the working directory
// and skipped when absent. flags may be nil; only flags named in flagKeys
// are bound.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("database", def.Database)
	v.SetDefault("game", def.Game)
	v.SetDefault("catalog", def.Catalog)
	v.SetDefault("lock_timeout", def.LockTimeout)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("loadorder")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Database == "":
		return fmt.Errorf("config: database is required")
	case c.Database == ":memory:":
		return fmt.Errorf("config: database must be a file path")
	case c.Game == "":
		return fmt.Errorf("config: game is required")
	case c.LockTimeout <= 0:
		return fmt.Errorf("config: lock_timeout must be positive, got %s", c.LockTimeout)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the slog logger described by l, writing to w.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	lvl, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
