// Package config loads connection settings from pebble.yaml and PEBBLE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/marshallshelly/pebble-entities/pkg/dialect"
)

// EnvPrefix prefixes every environment override, e.g. PEBBLE_DATABASE_URL.
const EnvPrefix = "PEBBLE"

// Config represents the connection configuration.
type Config struct {
	Name             string         `mapstructure:"name"`
	Driver           string         `mapstructure:"driver"`
	Database         DatabaseConfig `mapstructure:"database"`
	AutoSchemaCreate bool           `mapstructure:"auto_schema_create"`
	DropColumns      bool           `mapstructure:"drop_columns"`
	Log              LogConfig      `mapstructure:"log"`
}

// DatabaseConfig represents database settings. URL takes precedence over the
// discrete fields. Path is only used by sqlite.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	Schema   string `mapstructure:"schema"`
	Path     string `mapstructure:"path"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// LogConfig represents logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

var defaults = map[string]any{
	"name":               "default",
	"driver":             "postgres",
	"auto_schema_create": false,
	"drop_columns":       false,
	"database.url":       "",
	"database.host":      "localhost",
	"database.port":      0,
	"database.name":      "",
	"database.user":      "",
	"database.password":  "",
	"database.sslmode":   "prefer",
	"database.schema":    "public",
	"database.path":      "",
	"database.max_conns": 10,
	"database.min_conns": 2,
	"log.level":          "info",
	"log.development":    false,
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Name:   "default",
		Driver: "postgres",
		Database: DatabaseConfig{
			Host:     "localhost",
			SSLMode:  "prefer",
			Schema:   "public",
			MaxConns: 10,
			MinConns: 2,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the configuration. When path is empty, pebble.yaml (or .yml) is
// looked up in the working directory and a missing file is not an error.
// Environment variables override the file.
func Load(path string) (*Config, error) {
	return load(path, newViper())
}

// LoadFlags is Load with command line flags taking precedence over the
// environment and the file. bindings maps config keys such as "database.url"
// to flag names; only flags set by the user override other sources.
func LoadFlags(path string, flags *pflag.FlagSet, bindings map[string]string) (*Config, error) {
	v := newViper()
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			return nil, fmt.Errorf("unknown flag %q for config key %s", name, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return load(path, v)
}

func load(path string, v *viper.Viper) (*Config, error) {

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pebble")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the driver name and the fields it requires.
func (c *Config) Validate() error {
	d, err := dialect.Lookup(c.Driver)
	if err != nil {
		return err
	}

	switch d.Name() {
	case "sqlite":
		if c.Database.Path == "" && c.Database.URL == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		if c.Database.URL == "" && c.Database.Name == "" {
			return fmt.Errorf("database.url or database.name is required for %s", d.Name())
		}
	}

	if c.Database.MinConns > c.Database.MaxConns && c.Database.MaxConns > 0 {
		return fmt.Errorf("database.min_conns (%d) exceeds database.max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	return nil
}

// DriverName returns the canonical driver name, or the configured value when
// it is unknown.
func (c *Config) DriverName() string {
	if d, err := dialect.Lookup(c.Driver); err == nil {
		return d.Name()
	}
	return c.Driver
}

// NewLogger builds the logger described by the log section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Named(c.Name), nil
}
