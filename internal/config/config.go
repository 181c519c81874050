package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Backend names for the file store.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config holds all configuration for the collaboration host.
type Config struct {
	// Server settings
	Port    int
	BaseURL string // External URL embedded in file URLs and postMessage origins

	// File store
	Backend   string // "local" or "s3"
	LocalRoot string

	// S3-compatible storage settings
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3ForcePathStyle  bool // Required for most S3-compatible stores (MinIO, etc.)

	// Session tokens
	RedisAddr string        // empty = in-memory token store
	TokenTTL  time.Duration // access token lifetime

	// Editor integration
	CollaboraURL  string // editor server base URL for discovery; empty disables it
	WatermarkText string // template; {viewer-email} is substituted per session
	Locale        string

	// Browser login (session issuance API)
	OIDCEnabled       bool
	OIDCIssuerURL     string
	OIDCClientID      string
	OIDCClientSecret  string
	OIDCRedirectURL   string
	LoginCookieSecret string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	port := 8080
	if v := os.Getenv("WOPI_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid WOPI_PORT: %w", err)
		}
		port = p
	}

	tokenTTL := 10 * time.Hour
	if v := os.Getenv("WOPI_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid WOPI_TOKEN_TTL: %w", err)
		}
		tokenTTL = d
	}

	forcePathStyle := true
	if v := os.Getenv("S3_FORCE_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid S3_FORCE_PATH_STYLE: %w", err)
		}
		forcePathStyle = b
	}

	oidcEnabled := false
	if v := os.Getenv("OIDC_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid OIDC_ENABLED: %w", err)
		}
		oidcEnabled = b
	}

	cfg := &Config{
		Port:              port,
		BaseURL:           getEnvOrDefault("WOPI_BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
		Backend:           getEnvOrDefault("WOPI_BACKEND", BackendLocal),
		LocalRoot:         getEnvOrDefault("WOPI_LOCAL_ROOT", "./data"),
		S3Endpoint:        getEnvOrDefault("S3_ENDPOINT", "http://localhost:9000"),
		S3Region:          getEnvOrDefault("S3_REGION", "us-east-1"),
		S3Bucket:          getEnvOrDefault("S3_BUCKET", "wopi-documents"),
		S3AccessKeyID:     getEnvOrDefault("S3_ACCESS_KEY_ID", "minioadmin"),
		S3SecretAccessKey: getEnvOrDefault("S3_SECRET_ACCESS_KEY", "minioadmin"),
		S3ForcePathStyle:  forcePathStyle,
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		TokenTTL:          tokenTTL,
		CollaboraURL:      os.Getenv("COLLABORA_URL"),
		WatermarkText:     getEnvOrDefault("WOPI_WATERMARK_TEXT", "Confidential {viewer-email}"),
		Locale:            getEnvOrDefault("WOPI_LOCALE", "en"),
		OIDCEnabled:       oidcEnabled,
		OIDCIssuerURL:     os.Getenv("OIDC_ISSUER_URL"),
		OIDCClientID:      os.Getenv("OIDC_CLIENT_ID"),
		OIDCClientSecret:  os.Getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:   os.Getenv("OIDC_REDIRECT_URL"),
		LoginCookieSecret: os.Getenv("WOPI_LOGIN_COOKIE_SECRET"),
	}

	switch cfg.Backend {
	case BackendLocal, BackendS3:
	default:
		return nil, fmt.Errorf("invalid WOPI_BACKEND: %q", cfg.Backend)
	}

	if cfg.Backend == BackendS3 && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}

	if cfg.OIDCEnabled {
		if cfg.OIDCIssuerURL == "" || cfg.OIDCClientID == "" || cfg.OIDCRedirectURL == "" {
			return nil, fmt.Errorf("OIDC_ISSUER_URL, OIDC_CLIENT_ID and OIDC_REDIRECT_URL are required when OIDC_ENABLED is set")
		}
		if cfg.LoginCookieSecret == "" {
			return nil, fmt.Errorf("WOPI_LOGIN_COOKIE_SECRET is required when OIDC_ENABLED is set")
		}
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
