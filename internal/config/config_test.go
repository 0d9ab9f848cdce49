package config

import (
	"strings"
	"testing"
	"time"
)

func baseConfig(env string) Config {
	return Config{
		App:   AppConfig{Env: env, Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "support"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := baseConfig("production")
	c.Auth = AuthConfig{JWTSecret: strings.Repeat("s", 32), JWTIssuer: "support", JWTAudience: "agents"}
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_SSLMODE") {
		t.Fatalf("expected DB_SSLMODE error, got %v", err)
	}
}

func TestValidate_ProductionRejectsShortSecretAndWildcardOrigin(t *testing.T) {
	c := baseConfig("production")
	c.DB.SSLMode = "require"
	c.Auth.JWTIssuer = "support"
	c.Auth.JWTAudience = "agents"
	c.HTTP.AllowedOrigins = []string{"*"}

	err := c.Validate()
	if err == nil {
		t.Fatalf("expected errors")
	}
	for _, want := range []string{"JWT_SECRET", "ALLOWED_ORIGINS"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %s in %v", want, err)
		}
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := baseConfig("local")
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.OTP.TTL != 5*time.Minute || c.OTP.MaxAttempts != 3 {
		t.Fatalf("unexpected otp defaults: %+v", c.OTP)
	}
	if c.OTP.RateLimit != 3 || c.OTP.RateWindow != time.Minute {
		t.Fatalf("unexpected rate defaults: %+v", c.OTP)
	}
	if c.Calls.DailyLimit != 10 || c.Calls.HistoryLimit != 50 {
		t.Fatalf("unexpected call defaults: %+v", c.Calls)
	}
	if c.Recording.Dir == "" || len(c.Recording.STUNURLs) == 0 {
		t.Fatalf("unexpected recording defaults: %+v", c.Recording)
	}
	if c.Telegram.Enabled() {
		t.Fatalf("telegram must be disabled without credentials")
	}
}

func TestValidate_AdminBootstrapNeedsBoth(t *testing.T) {
	c := baseConfig("dev")
	c.Bootstrap.AdminUser = "root"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for ADMIN_USER without ADMIN_PASS")
	}
}

func TestLoad_CollectsParseErrors(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "eighty")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("OTP_TTL", "five minutes")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected parse errors")
	}
	for _, want := range []string{"APP_PORT", "OTP_TTL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %s in %v", want, err)
		}
	}
}

func TestLoad_ReadsEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_NAME", "support")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CALL_DAILY_LIMIT", "25")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Calls.DailyLimit != 25 {
		t.Fatalf("daily limit=%d", c.Calls.DailyLimit)
	}
	if len(c.HTTP.AllowedOrigins) != 2 || c.HTTP.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins=%v", c.HTTP.AllowedOrigins)
	}
	if c.RedisAddr() != "cache:6379" || c.HTTPAddr() != ":9000" {
		t.Fatalf("addr helpers: %s %s", c.RedisAddr(), c.HTTPAddr())
	}
}
