// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.
type Config struct {
	Env         string
	Port        string
	DatabaseURL string
	DBMaxConns  int32

	JWTSecret    string
	SessionTTL   time.Duration
	CookieSecure bool
	FrontendURL  string

	BcryptCost     int
	GoogleClientID string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	OTPTTL        time.Duration
	OTPLength     int

	AMQPURL      string
	AMQPExchange string

	ResolveMaxAttempts int
}

// Load reads .env from the working directory when present, then the process
// environment. DATABASE_URL and JWT_SECRET are required.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	var errs []error
	cfg := Config{
		Env:                envStr("APP_ENV", "dev"),
		Port:               envStr("APP_PORT", "8080"),
		DatabaseURL:        envStr("DATABASE_URL", ""),
		DBMaxConns:         int32(envInt("DB_MAX_CONNS", 10, &errs)),
		JWTSecret:          envStr("JWT_SECRET", ""),
		SessionTTL:         envDur("SESSION_TTL", 7*24*time.Hour, &errs),
		CookieSecure:       envBool("COOKIE_SECURE", false, &errs),
		FrontendURL:        envStr("FRONTEND_URL", "http://localhost:5173"),
		BcryptCost:         envInt("BCRYPT_COST", 10, &errs),
		GoogleClientID:     envStr("GOOGLE_CLIENT_ID", ""),
		RedisAddr:          envStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      envStr("REDIS_PASSWORD", ""),
		RedisDB:            envInt("REDIS_DB", 0, &errs),
		OTPTTL:             envDur("OTP_TTL", 5*time.Minute, &errs),
		OTPLength:          envInt("OTP_LENGTH", 6, &errs),
		AMQPURL:            envStr("AMQP_URL", ""),
		AMQPExchange:       envStr("AMQP_EXCHANGE", "colabatr.identity"),
		ResolveMaxAttempts: envInt("RESOLVE_MAX_ATTEMPTS", 3, &errs),
	}

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if cfg.ResolveMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("RESOLVE_MAX_ATTEMPTS must be positive, got %d", cfg.ResolveMaxAttempts))
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c Config) IsProduction() bool { return c.Env == "prod" || c.Env == "production" }

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func envDur(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func envBool(key string, def bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}
