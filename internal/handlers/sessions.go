package handlers

import (
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/httpsgithu/richdocuments/internal/collabora"
	"github.com/httpsgithu/richdocuments/internal/middleware"
	"github.com/httpsgithu/richdocuments/internal/session"
	"github.com/httpsgithu/richdocuments/internal/storage"
)

// SessionResponse is returned by the session issuance endpoint. WopiSrc plus
// the access token is everything an editing client needs to open the file.
type SessionResponse struct {
	AccessToken    string `json:"access_token"`
	AccessTokenTTL int64  `json:"access_token_ttl"` // expiry, ms since epoch
	WopiSrc        string `json:"wopi_src"`
	EditorURL      string `json:"editor_url,omitempty"`
}

// SessionHandler serves the browser-facing session issuance API. It wraps
// the protocol Handler and adds the editor-server discovery client, which
// the protocol operations themselves never need.
type SessionHandler struct {
	*Handler
	Discovery *collabora.Client
	TokenTTL  time.Duration
}

// CreateSession handles POST /api/sessions. It verifies the caller can open
// the file, mints an access token scoped to it, and returns the coordinates
// the editing client needs.
//
// The caller identity comes from the OIDC login when one is configured, and
// from the user_id parameter otherwise (development setups).
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	user := ""
	if login := middleware.LoginFrom(r.Context()); login != nil {
		user = login.UserID
	} else {
		user = r.URL.Query().Get("user_id")
	}
	fileID := r.URL.Query().Get("file_id")
	if user == "" || fileID == "" {
		http.Error(w, "user_id and file_id required", http.StatusBadRequest)
		return
	}

	f, err := h.Gateway.Open(r.Context(), fileID, user, user)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidFileID) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("session issuance open failed", "error", err, "file_id", fileID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Files in the caller's own tree get full permissions; anything merely
	// readable (shared trees) yields a view/print session.
	attrs := session.AttrCanView | session.AttrCanPrint
	if strings.HasPrefix(storage.FileIDToPath(fileID), storage.UserRoot(user)+"/") {
		attrs |= session.AttrCanUpdate | session.AttrCanExport
	}

	rec, err := h.Store.Mint(r.Context(), fileID, 0, attrs, h.BaseURL, user, user)
	if err != nil {
		h.Logger.Error("session minting failed", "error", err, "file_id", fileID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := SessionResponse{
		AccessToken:    rec.Token,
		AccessTokenTTL: time.Now().Add(h.TokenTTL).UnixMilli(),
		WopiSrc:        h.BaseURL + "/wopi/files/" + fileID,
	}

	if h.Discovery != nil {
		ext := path.Ext(f.Name())
		if editorURL, err := h.Discovery.EditorURL(r.Context(), ext); err == nil {
			resp.EditorURL = editorURL
		} else {
			// The session is still usable without an editor URL.
			h.Logger.Info("no editor URL for session", "error", err, "ext", ext)
		}
	}

	h.Logger.Info("session issued", "user", user, "file_id", fileID)
	writeJSON(w, http.StatusOK, &resp, h.Logger)
}
