package middleware

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const loginCookieName = "richdocs_login"

// LoginData holds the browser user's login information. It identifies who
// may request editing sessions; it is unrelated to the per-file access
// tokens the protocol itself uses.
type LoginData struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// LoginManager manages encrypted cookie-based browser logins using
// AES-256-GCM.
type LoginManager struct {
	gcm    cipher.AEAD
	maxAge time.Duration
	secure bool
}

// NewLoginManager creates a LoginManager that encrypts login data with a key
// derived from secret. maxAge controls login lifetime.
func NewLoginManager(secret string, maxAge time.Duration, secure bool) (*LoginManager, error) {
	if secret == "" {
		return nil, errors.New("login cookie secret must not be empty")
	}

	// Derive a 32-byte key from the secret using SHA-256.
	hash := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(hash[:])
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &LoginManager{
		gcm:    gcm,
		maxAge: maxAge,
		secure: secure,
	}, nil
}

// SetLogin encrypts data and stores it in a cookie on w.
func (lm *LoginManager) SetLogin(w http.ResponseWriter, data *LoginData) error {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal login: %w", err)
	}

	nonce := make([]byte, lm.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := lm.gcm.Seal(nonce, nonce, plaintext, nil)
	encoded := base64.URLEncoding.EncodeToString(ciphertext)

	http.SetCookie(w, &http.Cookie{
		Name:     loginCookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   lm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(lm.maxAge.Seconds()),
	})
	return nil
}

// GetLogin reads and decrypts the login cookie from the request.
func (lm *LoginManager) GetLogin(r *http.Request) (*LoginData, error) {
	cookie, err := r.Cookie(loginCookieName)
	if err != nil {
		return nil, fmt.Errorf("no login cookie: %w", err)
	}

	ciphertext, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("decode cookie: %w", err)
	}

	nonceSize := lm.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := lm.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt login: %w", err)
	}

	var data LoginData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("unmarshal login: %w", err)
	}

	if time.Now().After(data.ExpiresAt) {
		return nil, errors.New("login expired")
	}

	return &data, nil
}

// ClearLogin expires the login cookie.
func (lm *LoginManager) ClearLogin(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     loginCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   lm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
