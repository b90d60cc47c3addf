// Package config loads server configuration from an optional config.toml,
// a .env file and BOOKS_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key: database.dsn is read
// from BOOKS_DATABASE_DSN.
const EnvPrefix = "BOOKS"

// Config holds all application configuration.
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	HTTP       HTTPConfig
	Log        LogConfig
	Accounting AccountingConfig
}

// AppConfig holds application-specific settings.
type AppConfig struct {
	Name string
	Env  string // development, production
	Port string
}

// DatabaseConfig selects and sizes the store.
type DatabaseConfig struct {
	Driver          string // sqlite, postgres, memory
	DSN             string // file path for sqlite, URL for postgres
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration // sqlite only
}

// AuthConfig holds JWT verification settings.
type AuthConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxBodySize      int64
	CORSAllowOrigins []string
	WriteRateLimit   float64 // writes per second per user, 0 disables
	WriteRateBurst   int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// AccountingConfig holds bookkeeping rules.
type AccountingConfig struct {
	FinancialYearStartMonth int           // 1-12, April by default
	IntegrityCheckInterval  time.Duration // 0 disables the background check
}

// Load reads configuration. Priority, highest first:
//  1. BOOKS_* environment variables (a .env file in the working dir is
//     loaded into the environment first, without overriding)
//  2. config.toml
//  3. built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/bookkeeping")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			BusyTimeout:     v.GetDuration("database.busy_timeout"),
		},
		Auth: AuthConfig{
			Secret:   v.GetString("auth.secret"),
			Issuer:   v.GetString("auth.issuer"),
			TokenTTL: v.GetDuration("auth.token_ttl"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			WriteRateLimit:   v.GetFloat64("http.write_rate_limit"),
			WriteRateBurst:   v.GetInt("http.write_rate_burst"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Accounting: AccountingConfig{
			FinancialYearStartMonth: v.GetInt("accounting.fy_start_month"),
			IntegrityCheckInterval:  v.GetDuration("accounting.integrity_check_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "bookkeeping"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "./books.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.BusyTimeout == 0 {
		cfg.Database.BusyTimeout = 5 * time.Second
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "bookkeeping"
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.WriteRateBurst == 0 {
		cfg.HTTP.WriteRateBurst = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.IsProduction() {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Accounting.FinancialYearStartMonth == 0 {
		cfg.Accounting.FinancialYearStartMonth = 4
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	case "memory":
		if c.IsProduction() {
			return errors.New("database.driver memory is not allowed in production")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres or memory, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" && c.Database.Driver != "memory" {
		return errors.New("database.dsn is required")
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	if c.IsProduction() && len(c.Auth.Secret) < 32 {
		return errors.New("auth.secret must be at least 32 characters in production")
	}
	if m := c.Accounting.FinancialYearStartMonth; m < 1 || m > 12 {
		return fmt.Errorf("accounting.fy_start_month must be 1-12, got %d", m)
	}
	if c.HTTP.WriteRateLimit < 0 {
		return errors.New("http.write_rate_limit must not be negative")
	}
	return nil
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.App.Port
}
