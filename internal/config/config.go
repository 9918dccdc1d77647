// Package config provides Viper-based configuration loading for the bot.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageConfig selects and locates the record store.
type StorageConfig struct {
	// Root is the directory holding one file per chat.
	Root string `mapstructure:"root"`
	// Backend is "file" or "postgres".
	Backend string `mapstructure:"backend"`
	// Format is the file encoding written by the file backend: "binary" or "text".
	Format string `mapstructure:"format"`
}

// DatabaseConfig holds PostgreSQL connection settings for the postgres backend.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	// Token is the bot token issued by BotFather.
	Token string `mapstructure:"token"`
	// PollTimeout is the long-polling timeout for getUpdates.
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// GameConfig holds the attempt rules.
type GameConfig struct {
	// CooldownPolicy is "rolling" (fixed window after each attempt) or
	// "calendar" (reset on ResetSchedule).
	CooldownPolicy string `mapstructure:"cooldown_policy"`
	// CooldownWindow is the rolling window length.
	CooldownWindow time.Duration `mapstructure:"cooldown_window"`
	// ResetSchedule is a five-field cron expression for the calendar policy.
	ResetSchedule string `mapstructure:"reset_schedule"`
	// Timezone is an IANA zone name or "Local" for the calendar policy.
	Timezone string `mapstructure:"timezone"`
	// TopSize is the number of leaderboard rows shown.
	TopSize int `mapstructure:"top_size"`
	// WeightsFile is an optional YAML weight table; empty uses the default.
	WeightsFile string `mapstructure:"weights_file"`
}

// Location resolves Timezone.
func (g GameConfig) Location() (*time.Location, error) {
	if g.Timezone == "" || g.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(g.Timezone)
}

// Config is the top-level application configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Game     GameConfig     `mapstructure:"game"`
}

// Validate checks all configuration invariants. The bot token is not
// checked here so that tools which never talk to Telegram can share the
// configuration.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateStorage(c.Storage); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Storage.Backend == "postgres" {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTelegram(c.Telegram); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	var errs []string
	validBackends := map[string]bool{"file": true, "postgres": true}
	if !validBackends[s.Backend] {
		errs = append(errs, fmt.Sprintf("storage.backend must be one of [file, postgres], got %q", s.Backend))
	}
	if s.Backend == "file" && s.Root == "" {
		errs = append(errs, "storage.root must not be empty")
	}
	validFormats := map[string]bool{"binary": true, "text": true}
	if !validFormats[s.Format] {
		errs = append(errs, fmt.Sprintf("storage.format must be one of [binary, text], got %q", s.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateTelegram(t TelegramConfig) error {
	if t.PollTimeout < 0 {
		return errors.New("telegram.poll_timeout must not be negative")
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	switch g.CooldownPolicy {
	case "rolling":
		if g.CooldownWindow <= 0 {
			errs = append(errs, fmt.Sprintf("game.cooldown_window must be positive, got %s", g.CooldownWindow))
		}
	case "calendar":
		if g.ResetSchedule == "" {
			errs = append(errs, "game.reset_schedule must not be empty")
		}
		if _, err := g.Location(); err != nil {
			errs = append(errs, fmt.Sprintf("game.timezone %q: %v", g.Timezone, err))
		}
	default:
		errs = append(errs, fmt.Sprintf("game.cooldown_policy must be one of [rolling, calendar], got %q", g.CooldownPolicy))
	}
	if g.TopSize < 1 {
		errs = append(errs, fmt.Sprintf("game.top_size must be >= 1, got %d", g.TopSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result. An empty path skips the file
// and uses defaults plus the environment.
//
// Precondition: path is empty or names a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// New returns a Viper instance with defaults and environment bindings set.
//
// Environment variables use the GROWBOT_ prefix (GROWBOT_STORAGE_ROOT, ...).
// STORAGE_PATH, TELOXIDE_TOKEN, and TELEGRAM_TOKEN are also honoured.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("GROWBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("storage.root", "GROWBOT_STORAGE_ROOT", "STORAGE_PATH")
	_ = v.BindEnv("telegram.token", "GROWBOT_TELEGRAM_TOKEN", "TELOXIDE_TOKEN", "TELEGRAM_TOKEN")
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.root", "./storage")
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.format", "binary")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "growbot")
	v.SetDefault("database.password", "growbot")
	v.SetDefault("database.name", "growbot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("telegram.poll_timeout", "60s")

	v.SetDefault("game.cooldown_policy", "rolling")
	v.SetDefault("game.cooldown_window", "24h")
	v.SetDefault("game.reset_schedule", "0 0 * * *")
	v.SetDefault("game.timezone", "Local")
	v.SetDefault("game.top_size", 10)
	v.SetDefault("game.weights_file", "")
}
