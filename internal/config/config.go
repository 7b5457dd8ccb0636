// Package config provides configuration loading for the factsync CLI and daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/tmslabs/factsync/internal/errors"
)

// Config holds the application configuration.
type Config struct {
	// Source is the operational database facts are extracted from.
	Source EndpointConfig `mapstructure:"source"`

	// Target is the reporting database facts are merged into.
	Target EndpointConfig `mapstructure:"target"`

	// Sync configuration
	Sync SyncConfig `mapstructure:"sync"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Server configuration (for syncd)
	Server ServerConfig `mapstructure:"server"`
}

// EndpointConfig holds connection parameters for one database endpoint.
type EndpointConfig struct {
	// Driver selects the SQL dialect: postgres, duckdb, or sqlite.
	// The source endpoint must be postgres.
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Schema   string `mapstructure:"schema"`
	SSLMode  string `mapstructure:"sslmode"`

	// Path is the database file for duckdb/sqlite targets.
	Path string `mapstructure:"path"`
}

// SyncConfig holds sync engine configuration.
type SyncConfig struct {
	// Workers bounds how many sync jobs may run concurrently.
	Workers int `mapstructure:"workers"`

	// DefaultDateFrom is the "data starts here" extraction window start,
	// used when a submission omits date_from. YYYY-MM-DD.
	DefaultDateFrom string `mapstructure:"defaultDateFrom"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  string `mapstructure:"readTimeout"`
	WriteTimeout string `mapstructure:"writeTimeout"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Source: EndpointConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    5432,
			Schema:  "public",
			SSLMode: "disable",
		},
		Target: EndpointConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    5432,
			Schema:  "public",
			SSLMode: "disable",
		},
		Sync: SyncConfig{
			Workers:         2,
			DefaultDateFrom: "2024-12-01",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  "30s",
			WriteTimeout: "30s",
		},
	}
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".factsync"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("FACTSYNC")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that both endpoints are usable. Missing connection
// parameters are fatal at startup, before any job is accepted.
func (c *Config) Validate() error {
	if err := c.Source.Validate("source"); err != nil {
		return err
	}
	if c.Source.Driver != "postgres" {
		return errors.NewConfiguration("source.driver", "extraction requires a postgres source")
	}
	if err := c.Target.Validate("target"); err != nil {
		return err
	}
	if c.Sync.Workers < 1 {
		return errors.NewConfiguration("sync.workers", "must be at least 1")
	}
	return nil
}

// Validate checks the endpoint section is usable.
func (e *EndpointConfig) Validate(section string) error {
	switch e.Driver {
	case "postgres":
		if e.Host == "" {
			return errors.NewConfiguration(section+".host", "required for postgres")
		}
		if e.Name == "" {
			return errors.NewConfiguration(section+".name", "required for postgres")
		}
		if e.User == "" {
			return errors.NewConfiguration(section+".user", "required for postgres")
		}
	case "duckdb", "sqlite":
		// Path may be empty: both engines accept an in-memory database.
	case "":
		return errors.NewConfiguration(section+".driver", "required")
	default:
		return errors.NewConfiguration(section+".driver",
			fmt.Sprintf("unsupported driver %q (postgres, duckdb, sqlite)", e.Driver))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.driver", "postgres")
	v.SetDefault("source.host", "localhost")
	v.SetDefault("source.port", 5432)
	v.SetDefault("source.schema", "public")
	v.SetDefault("source.sslmode", "disable")
	v.SetDefault("target.driver", "postgres")
	v.SetDefault("target.host", "localhost")
	v.SetDefault("target.port", 5432)
	v.SetDefault("target.schema", "public")
	v.SetDefault("target.sslmode", "disable")
	v.SetDefault("sync.workers", 2)
	v.SetDefault("sync.defaultDateFrom", "2024-12-01")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
}
