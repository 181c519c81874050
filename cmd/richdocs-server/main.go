package main

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/httpsgithu/richdocuments/internal/collabora"
	"github.com/httpsgithu/richdocuments/internal/config"
	"github.com/httpsgithu/richdocuments/internal/directory"
	"github.com/httpsgithu/richdocuments/internal/handlers"
	"github.com/httpsgithu/richdocuments/internal/i18n"
	"github.com/httpsgithu/richdocuments/internal/middleware"
	"github.com/httpsgithu/richdocuments/internal/session"
	"github.com/httpsgithu/richdocuments/internal/storage"
)

//go:embed locales/*.po
var localeFS embed.FS

func loadLocales(logger *slog.Logger) {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		logger.Error("failed to list embedded locales", "error", err)
		return
	}
	for _, e := range entries {
		raw, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			logger.Error("failed to read locale", "file", e.Name(), "error", err)
			continue
		}
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		i18n.LoadLocale(id, raw)
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	loadLocales(logger)

	ctx := context.Background()

	var gw storage.Gateway
	switch cfg.Backend {
	case config.BackendS3:
		gw, err = storage.NewS3Gateway(ctx, storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			ForcePathStyle:  cfg.S3ForcePathStyle,
		})
		if err != nil {
			logger.Error("failed to create S3 gateway", "error", err)
			os.Exit(1)
		}
		logger.Info("using S3 file store", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	default:
		gw = storage.NewLocal(cfg.LocalRoot)
		logger.Info("using local file store", "root", cfg.LocalRoot)
	}

	var store session.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		store = session.NewRedisStore(client, cfg.TokenTTL)
		logger.Info("using redis token store", "addr", cfg.RedisAddr)
	} else {
		store = session.NewMemStore(cfg.TokenTTL)
		logger.Warn("using in-memory token store; sessions will not survive restarts")
	}

	users := directory.NewStatic()

	h := &handlers.Handler{
		Store:         store,
		Gateway:       gw,
		Users:         users,
		Logger:        logger,
		BaseURL:       cfg.BaseURL,
		WatermarkText: cfg.WatermarkText,
		Locale:        cfg.Locale,
	}

	sh := &handlers.SessionHandler{
		Handler:  h,
		TokenTTL: cfg.TokenTTL,
	}
	if cfg.CollaboraURL != "" {
		sh.Discovery = collabora.NewClient(cfg.CollaboraURL)
		logger.Info("editor discovery enabled", "url", cfg.CollaboraURL)
	}

	mux := http.NewServeMux()

	// Session issuance: behind OIDC when configured, behind a rate limit
	// otherwise.
	createSession := http.HandlerFunc(sh.CreateSession)
	if cfg.OIDCEnabled {
		logins, err := middleware.NewLoginManager(cfg.LoginCookieSecret, 8*time.Hour, true)
		if err != nil {
			logger.Error("failed to create login manager", "error", err)
			os.Exit(1)
		}

		oidcMw, err := middleware.NewOIDCMiddleware(ctx, middleware.OIDCConfig{
			IssuerURL:    cfg.OIDCIssuerURL,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		}, logins, users, logger)
		if err != nil {
			logger.Error("failed to create OIDC middleware", "error", err)
			os.Exit(1)
		}

		mux.HandleFunc("GET /auth/callback", oidcMw.CallbackHandler)
		mux.HandleFunc("GET /auth/logout", oidcMw.LogoutHandler)
		mux.Handle("POST /api/sessions", oidcMw.Protect(createSession))

		logger.Info("OIDC authentication enabled", "issuer", cfg.OIDCIssuerURL, "client_id", cfg.OIDCClientID)
	} else {
		sessionRL := middleware.NewRateLimiter(10, 1*time.Minute)
		mux.Handle("POST /api/sessions", middleware.RateLimit(sessionRL)(createSession))
		logger.Warn("session issuance is unauthenticated; enable OIDC before deploying to production")
	}

	// Health check (no auth required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Protocol endpoints. CheckFileInfo answers an unresolvable token with
	// 404 while the other operations use 403; clients rely on the
	// difference, so each route gets its own auth middleware.
	authInfo := middleware.SessionAuth(store, http.StatusNotFound, logger)
	authFile := middleware.SessionAuth(store, http.StatusForbidden, logger)
	logMw := middleware.RequestLogger(logger)

	mux.Handle("GET /wopi/files/{file_id}", logMw(authInfo(http.HandlerFunc(h.CheckFileInfo))))
	mux.Handle("POST /wopi/files/{file_id}", logMw(authFile(http.HandlerFunc(h.FilesHandler))))
	mux.Handle("GET /wopi/files/{file_id}/contents", logMw(authFile(http.HandlerFunc(h.ContentsHandler))))
	mux.Handle("POST /wopi/files/{file_id}/contents", logMw(authFile(http.HandlerFunc(h.ContentsHandler))))

	addr := fmt.Sprintf(":%d", cfg.Port)
	var handler http.Handler = mux
	handler = middleware.CSRFProtect(handler)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting collaboration host", "addr", addr, "base_url", cfg.BaseURL, "backend", cfg.Backend)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
