package config

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config carries every tunable the service reads at startup. Values come
// from the environment, optionally overlaid by a config file named in
// GRADARCHIVE_CONFIG.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Tokens   TokenConfig
	SMTP     SMTPConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Addr             string
	RateLimitPerSec  int
	RateLimitBurst   int
	MaxBodyBytes     int64
	ResetLinkBaseURL string
}

type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	ResetSecret   string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
	BcryptCost    int
}

type SMTPConfig struct {
	Addr     string
	Username string
	Password string
	From     string
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment with sane defaults. The
// three token secrets have no default: refusing to start beats signing with
// a well-known key.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	if path := os.Getenv("GRADARCHIVE_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HTTP_RATE_LIMIT_PER_SEC", 10)
	v.SetDefault("HTTP_RATE_LIMIT_BURST", 20)
	v.SetDefault("HTTP_MAX_BODY_BYTES", 1<<20)
	v.SetDefault("RESET_LINK_BASE_URL", "http://localhost:8080/reset-password")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 1)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "720h")
	v.SetDefault("RESET_TOKEN_TTL", "15m")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:             v.GetString("HTTP_ADDR"),
			RateLimitPerSec:  v.GetInt("HTTP_RATE_LIMIT_PER_SEC"),
			RateLimitBurst:   v.GetInt("HTTP_RATE_LIMIT_BURST"),
			MaxBodyBytes:     v.GetInt64("HTTP_MAX_BODY_BYTES"),
			ResetLinkBaseURL: v.GetString("RESET_LINK_BASE_URL"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("DATABASE_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Tokens: TokenConfig{
			AccessSecret:  v.GetString("ACCESS_TOKEN_SECRET"),
			RefreshSecret: v.GetString("REFRESH_TOKEN_SECRET"),
			ResetSecret:   v.GetString("RESET_TOKEN_SECRET"),
			AccessTTL:     v.GetDuration("ACCESS_TOKEN_TTL"),
			RefreshTTL:    v.GetDuration("REFRESH_TOKEN_TTL"),
			ResetTTL:      v.GetDuration("RESET_TOKEN_TTL"),
			BcryptCost:    v.GetInt("BCRYPT_COST"),
		},
		SMTP: SMTPConfig{
			Addr:     v.GetString("SMTP_ADDR"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	if cfg.Database.DSN == "" {
		return nil, errors.New("config: DATABASE_DSN is required")
	}
	if cfg.Tokens.AccessSecret == "" || cfg.Tokens.RefreshSecret == "" || cfg.Tokens.ResetSecret == "" {
		return nil, errors.New("config: ACCESS_TOKEN_SECRET, REFRESH_TOKEN_SECRET and RESET_TOKEN_SECRET are required")
	}
	return cfg, nil
}
