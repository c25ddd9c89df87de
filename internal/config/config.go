package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DateLayout is the layout of TODAY and of every date-only value in the API.
const DateLayout = "2006-01-02"

type Config struct {
	Port                string   `mapstructure:"PORT"`
	Env                 string   `mapstructure:"ENV"`
	DatabaseURL         string   `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultOrganisation string   `mapstructure:"DEFAULT_ORGANISATION"`
	CORSOrigins         []string `mapstructure:"CORS_ORIGINS"`
	LogLevel            string   `mapstructure:"LOG_LEVEL"`
	Today               string   `mapstructure:"TODAY"`
	MigrationsDir       string   `mapstructure:"MIGRATIONS_DIR"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DEFAULT_ORGANISATION", "CORS_ORIGINS", "LOG_LEVEL", "TODAY", "MIGRATIONS_DIR",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_ORGANISATION", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MIGRATIONS_DIR", "")

	// Unmarshal only sees keys viper knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks values that viper cannot type-check on its own.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level: %w", c.LogLevel, err)
	}
	if c.Today != "" {
		if _, err := time.Parse(DateLayout, c.Today); err != nil {
			return fmt.Errorf("TODAY must be formatted YYYY-MM-DD: %w", err)
		}
		if !c.IsDev() {
			return fmt.Errorf("TODAY may only be overridden when ENV=development")
		}
	}
	return nil
}

// Level returns the configured zerolog level, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Clock returns the function resolvers use for "today". A TODAY override pins
// it to a fixed date so demonstration data stays inside its session windows.
func (c *Config) Clock() func() time.Time {
	if c.Today != "" {
		if fixed, err := time.Parse(DateLayout, c.Today); err == nil {
			return func() time.Time { return fixed }
		}
	}
	return time.Now
}
