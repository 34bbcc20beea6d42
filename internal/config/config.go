// Package config provides Viper-based hierarchical configuration and the
// shared logrus setup. The config file names the transaction sources; the
// core engines treat that list as an opaque lookup by name.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var (
	once sync.Once
	// Logger is the global logger instance shared across the application.
	Logger = logrus.New()
)

// SourceConfig describes one named transaction source.
type SourceConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Type string `mapstructure:"type" yaml:"type"` // "starling", "csv" or "camt"

	// CSV and CAMT sources read from a file or a directory of files.
	Path string `mapstructure:"path" yaml:"path"`

	// API sources take their bearer token from this environment variable.
	TokenEnv string `mapstructure:"token_env" yaml:"token_env"`
	// BaseURL overrides the provider endpoint, used by tests.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Column mapping for CSV sources.
	DateColumn        string `mapstructure:"date_column" yaml:"date_column"`
	DescriptionColumn string `mapstructure:"description_column" yaml:"description_column"`
	AmountColumn      string `mapstructure:"amount_column" yaml:"amount_column"`

	// ExpensesPositive negates amounts from exports that report spending
	// as positive numbers.
	ExpensesPositive bool `mapstructure:"expenses_positive" yaml:"expenses_positive"`
}

// Config represents the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Database struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"database" yaml:"database"`

	Currency struct {
		Symbol string `mapstructure:"symbol" yaml:"symbol"`
	} `mapstructure:"currency" yaml:"currency"`

	Sources []SourceConfig `mapstructure:"sources" yaml:"sources"`
}

// Load initializes Viper configuration with hierarchical loading:
// defaults, then config file, then TALLY_* environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.tally")
	v.AddConfigPath(".tally")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TALLY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file %s: %w", v.ConfigFileUsed(), err)
		}
		// No config file is fine; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.path", defaultDBPath())
	v.SetDefault("currency.symbol", "£")
}

// defaultDBPath follows the XDG data directory convention.
func defaultDBPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "tally.db"
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "tally", "tally.db")
}

func validate(cfg *Config) error {
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", cfg.Log.Format)
	}
	seen := make(map[string]bool, len(cfg.Sources))
	for _, s := range cfg.Sources {
		if s.Name == "" {
			return fmt.Errorf("source with empty name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name: %s", s.Name)
		}
		seen[s.Name] = true
		switch s.Type {
		case "starling":
			if s.TokenEnv == "" {
				return fmt.Errorf("source %s: token_env is required for starling sources", s.Name)
			}
		case "csv", "camt":
			if s.Path == "" {
				return fmt.Errorf("source %s: path is required for %s sources", s.Name, s.Type)
			}
		default:
			return fmt.Errorf("source %s: unknown type %q", s.Name, s.Type)
		}
	}
	return nil
}

// FindSource looks up a source by name.
func (c *Config) FindSource(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// LoadEnv loads environment variables from a .env file if one exists.
func LoadEnv() {
	once.Do(func() {
		envFile := ".env"
		if _, err := os.Stat(envFile); os.IsNotExist(err) {
			envFile = filepath.Join("..", ".env")
			if _, err := os.Stat(envFile); os.IsNotExist(err) {
				return
			}
		}
		if err := godotenv.Load(envFile); err != nil {
			Logger.Warnf("Error loading .env file: %v", err)
		}
	})
}

// ConfigureLogging sets up the global logger from the given config.
func ConfigureLogging(cfg *Config) *logrus.Logger {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		Logger.Warnf("Invalid log level '%s', using 'info'", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)

	if strings.ToLower(cfg.Log.Format) == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return Logger
}
