package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/httpsgithu/richdocuments/internal/directory"
)

// loginContextKey is the context key for the logged-in browser user.
const loginContextKey contextKey = "oidc_login"

// LoginFrom returns the browser login injected by OIDCMiddleware.Protect.
func LoginFrom(ctx context.Context) *LoginData {
	data, _ := ctx.Value(loginContextKey).(*LoginData)
	return data
}

const oidcStateCookieName = "oidc_state"

// OIDCConfig holds OIDC provider configuration.
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OIDCMiddleware handles OIDC authentication for the browser-facing session
// issuance API. Logged-in identities are registered in the directory so the
// protocol handlers can resolve display names for them later.
type OIDCMiddleware struct {
	provider  *oidc.Provider
	verifier  *oidc.IDTokenVerifier
	oauth2Cfg oauth2.Config
	logins    *LoginManager
	users     *directory.Static
	logger    *slog.Logger
}

// NewOIDCMiddleware initialises the OIDC provider by performing discovery
// against the issuer URL.
func NewOIDCMiddleware(ctx context.Context, cfg OIDCConfig, logins *LoginManager, users *directory.Static, logger *slog.Logger) (*OIDCMiddleware, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	oauth2Cfg := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	return &OIDCMiddleware{
		provider:  provider,
		verifier:  verifier,
		oauth2Cfg: oauth2Cfg,
		logins:    logins,
		users:     users,
		logger:    logger,
	}, nil
}

// Protect returns middleware that requires a valid browser login. API
// requests without one receive a 401; other requests are redirected to the
// identity provider.
func (om *OIDCMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login, err := om.logins.GetLogin(r)
		if err == nil {
			ctx := context.WithValue(r.Context(), loginContextKey, login)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}

		// Browser request without a login: redirect to the IdP.
		state, err := randomState()
		if err != nil {
			om.logger.Error("failed to generate OIDC state", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     oidcStateCookieName,
			Value:    state,
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   300, // 5 minutes
		})

		http.Redirect(w, r, om.oauth2Cfg.AuthCodeURL(state), http.StatusFound)
	})
}

// CallbackHandler handles the OAuth2 authorization code callback.
func (om *OIDCMiddleware) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oidcStateCookieName)
	if err != nil {
		http.Error(w, "missing state cookie", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	oauth2Token, err := om.oauth2Cfg.Exchange(r.Context(), code)
	if err != nil {
		om.logger.Error("token exchange failed", "error", err)
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in response", http.StatusInternalServerError)
		return
	}

	idToken, err := om.verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		om.logger.Error("ID token verification failed", "error", err)
		http.Error(w, "invalid id_token", http.StatusInternalServerError)
		return
	}

	var claims struct {
		Sub               string `json:"sub"`
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		om.logger.Error("failed to parse claims", "error", err)
		http.Error(w, "failed to parse claims", http.StatusInternalServerError)
		return
	}

	displayName := claims.Name
	if displayName == "" {
		displayName = claims.PreferredUsername
	}

	login := &LoginData{
		UserID:      claims.Sub,
		Email:       claims.Email,
		DisplayName: displayName,
		ExpiresAt:   time.Now().Add(8 * time.Hour),
	}

	if err := om.logins.SetLogin(w, login); err != nil {
		om.logger.Error("failed to set login cookie", "error", err)
		http.Error(w, "failed to create login", http.StatusInternalServerError)
		return
	}

	// Make the identity resolvable by CheckFileInfo later.
	if om.users != nil {
		om.users.Add(directory.User{
			ID:          claims.Sub,
			DisplayName: displayName,
			Email:       claims.Email,
		})
	}

	om.logger.Info("OIDC login successful", "user_id", claims.Sub, "email", claims.Email)
	http.Redirect(w, r, "/", http.StatusFound)
}

// LogoutHandler clears the browser login cookie.
func (om *OIDCMiddleware) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	om.logins.ClearLogin(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
