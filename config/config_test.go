package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/colabatr")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Port != "8080" || cfg.SessionTTL != 7*24*time.Hour || cfg.ResolveMaxAttempts != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.BcryptCost != 10 || cfg.OTPLength != 6 || cfg.AMQPURL != "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.IsProduction() {
		t.Fatal("default env must not be production")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/colabatr")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SESSION_TTL", "12h")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("RESOLVE_MAX_ATTEMPTS", "5")
	t.Setenv("DB_MAX_CONNS", "25")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if !cfg.IsProduction() || cfg.SessionTTL != 12*time.Hour || !cfg.CookieSecure {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ResolveMaxAttempts != 5 || cfg.DBMaxConns != 25 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestFromEnv_Errors(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("OTP_TTL", "soon")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected error for missing required settings")
	}
	for _, want := range []string{"DATABASE_URL", "JWT_SECRET", "OTP_TTL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %v", want, err)
		}
	}
}
