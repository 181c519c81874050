package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Backend != BackendLocal {
		t.Errorf("Backend = %q", cfg.Backend)
	}
	if cfg.TokenTTL != 10*time.Hour {
		t.Errorf("TokenTTL = %v", cfg.TokenTTL)
	}
	if cfg.WatermarkText != "Confidential {viewer-email}" {
		t.Errorf("WatermarkText = %q", cfg.WatermarkText)
	}
	if cfg.Locale != "en" {
		t.Errorf("Locale = %q", cfg.Locale)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("WOPI_PORT", "9990")
	t.Setenv("WOPI_BACKEND", "s3")
	t.Setenv("WOPI_TOKEN_TTL", "30m")
	t.Setenv("S3_BUCKET", "documents")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9990 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.BaseURL != "http://localhost:9990" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Backend != BackendS3 {
		t.Errorf("Backend = %q", cfg.Backend)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Errorf("TokenTTL = %v", cfg.TokenTTL)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "WOPI_PORT", "not-a-number"},
		{"bad ttl", "WOPI_TOKEN_TTL", "10 hours"},
		{"bad backend", "WOPI_BACKEND", "ftp"},
		{"bad bool", "OIDC_ENABLED", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("LoadFromEnv() with %s=%q succeeded", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFromEnvOIDCRequirements(t *testing.T) {
	t.Setenv("OIDC_ENABLED", "true")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("OIDC enabled without issuer/client accepted")
	}

	t.Setenv("OIDC_ISSUER_URL", "https://idp.example.com")
	t.Setenv("OIDC_CLIENT_ID", "richdocs")
	t.Setenv("OIDC_REDIRECT_URL", "https://docs.example.com/auth/callback")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("OIDC enabled without cookie secret accepted")
	}

	t.Setenv("WOPI_LOGIN_COOKIE_SECRET", "s3cret")
	if _, err := LoadFromEnv(); err != nil {
		t.Errorf("fully configured OIDC rejected: %v", err)
	}
}
