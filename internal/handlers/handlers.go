// Package handlers implements the host side of the document editing
// protocol: capability discovery, content download, optimistic-concurrency
// upload, and save-as.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/httpsgithu/richdocuments/internal/directory"
	"github.com/httpsgithu/richdocuments/internal/i18n"
	"github.com/httpsgithu/richdocuments/internal/middleware"
	"github.com/httpsgithu/richdocuments/internal/session"
	"github.com/httpsgithu/richdocuments/internal/storage"
	"github.com/httpsgithu/richdocuments/internal/wopi"
)

// Handler holds dependencies for the protocol request handlers.
type Handler struct {
	Store   session.Store
	Gateway storage.Gateway
	Users   directory.Directory
	Logger  *slog.Logger

	// BaseURL is the external URL of this host, used to build the file URL
	// returned by save-as.
	BaseURL string

	// WatermarkText is the watermark template; the {viewer-email}
	// placeholder is substituted per session.
	WatermarkText string

	// Locale selects the translation for user-visible strings.
	Locale string
}

// CheckFileInfo handles GET /wopi/files/{file_id}.
func (h *Handler) CheckFileInfo(w http.ResponseWriter, r *http.Request) {
	rec := middleware.SessionFrom(r.Context())

	f, err := h.Gateway.Open(r.Context(), rec.FileID, rec.Owner, rec.Editor)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidFileID) {
			h.Logger.Info("file inaccessible for CheckFileInfo", "file_id", rec.FileID)
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("CheckFileInfo open failed", "error", err, "file_id", rec.FileID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// A handle alone does not prove read permission in every backend, so
	// probe an actual read before advertising the file.
	rc, err := f.Read(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.Logger.Info("read denied during CheckFileInfo probe", "file_id", rec.FileID)
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("CheckFileInfo read probe failed", "error", err, "file_id", rec.FileID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	rc.Close()

	t := i18n.Translator(h.Locale)

	userID := rec.Editor
	friendly := ""
	email := ""
	if rec.Anonymous() {
		friendly = t("Remote user")
	} else {
		if u, err := h.Users.Lookup(r.Context(), rec.Editor); err == nil {
			friendly = u.DisplayName
			email = u.Email
		} else {
			if !errors.Is(err, directory.ErrUnknownUser) {
				h.Logger.Error("directory lookup failed", "error", err, "user", rec.Editor)
			}
			friendly = rec.Editor
		}
	}

	attrs := rec.Attributes
	resp := wopi.CheckFileInfoResponse{
		BaseFileName:     f.Name(),
		Size:             f.Size(),
		Version:          strconv.FormatInt(rec.Version, 10),
		OwnerId:          rec.Owner,
		UserId:           userID,
		UserFriendlyName: friendly,

		UserCanWrite:            attrs.CanUpdate(),
		ReadOnly:                !attrs.CanUpdate(),
		UserCanNotWriteRelative: rec.Anonymous(),

		DisablePrint:    !attrs.CanPrint(),
		HidePrintOption: !attrs.CanPrint(),

		DisableExport:    !attrs.CanExport(),
		HideExportOption: !attrs.CanExport(),

		DisableCopy:    !attrs.CanExport(),
		HideSaveOption: !attrs.CanExport(),

		LastModifiedTime:  f.ModTime(),
		PostMessageOrigin: rec.ServerHost,

		SupportsLocks:   false,
		SupportsGetLock: false,
	}

	if attrs.HasWatermark() {
		viewer := email
		if viewer == "" {
			viewer = friendly
		}
		resp.WatermarkText = strings.ReplaceAll(h.WatermarkText, "{viewer-email}", viewer)
	}

	writeJSON(w, http.StatusOK, &resp, h.Logger)
}

// GetFile handles GET /wopi/files/{file_id}/contents.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	rec := middleware.SessionFrom(r.Context())

	f, err := h.Gateway.Open(r.Context(), rec.FileID, rec.Owner, rec.Editor)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidFileID) {
			h.Logger.Info("file inaccessible for GetFile", "file_id", rec.FileID)
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("GetFile open failed", "error", err, "file_id", rec.FileID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	body, err := f.Read(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("GetFile read failed", "error", err, "file_id", rec.FileID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size(), 10))
	if _, err := io.Copy(w, body); err != nil {
		// A disconnecting client mid-stream is normal, not a failure.
		if errors.Is(err, context.Canceled) {
			h.Logger.Info("client disconnected during GetFile", "file_id", rec.FileID)
		} else {
			h.Logger.Error("error streaming file", "error", err, "file_id", rec.FileID)
		}
	}
}

// PutFile handles POST /wopi/files/{file_id}/contents. Concurrency is
// optimistic: there is no lock, only a timestamp comparison at write time.
func (h *Handler) PutFile(w http.ResponseWriter, r *http.Request) {
	rec := middleware.SessionFrom(r.Context())

	if !rec.Attributes.CanUpdate() {
		h.Logger.Info("PutFile denied: session lacks update permission", "file_id", rec.FileID)
		http.Error(w, "write not permitted", http.StatusForbidden)
		return
	}

	f, err := h.Gateway.Open(r.Context(), rec.FileID, rec.Owner, rec.Editor)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidFileID) {
			h.Logger.Info("file inaccessible for PutFile", "file_id", rec.FileID)
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("PutFile open failed", "error", err, "file_id", rec.FileID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// The client sends the modification time it last saw. A mismatch means
	// the document changed externally since then; without the header no
	// conflict check is possible and the write proceeds unconditionally.
	// Timestamps compare as text at second granularity.
	if known := r.Header.Get(wopi.HeaderTimestamp); known != "" && known != f.ModTime() {
		h.Logger.Info("PutFile rejected: document changed externally",
			"file_id", rec.FileID, "client_mtime", known, "current_mtime", f.ModTime())
		writeJSON(w, http.StatusConflict, &wopi.ConflictResponse{LOOLStatusCode: wopi.StatusDocChanged}, h.Logger)
		return
	}

	newMod, err := f.Write(r.Context(), r.Body, r.ContentLength)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.Logger.Info("client disconnected during PutFile", "file_id", rec.FileID)
			return
		}
		h.Logger.Error("PutFile write failed", "error", err, "file_id", rec.FileID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, &wopi.PutFileResponse{
		Status:           "success",
		LastModifiedTime: newMod,
	}, h.Logger)
}

// PutRelativeFile handles the PUT_RELATIVE operation ("save a copy as").
func (h *Handler) PutRelativeFile(w http.ResponseWriter, r *http.Request) {
	rec := middleware.SessionFrom(r.Context())
	t := i18n.Translator(h.Locale)

	if !rec.Attributes.CanUpdate() {
		h.Logger.Info("PutRelativeFile denied: session lacks update permission", "file_id", rec.FileID)
		http.Error(w, "write not permitted", http.StatusForbidden)
		return
	}
	if rec.Anonymous() {
		// Remote sessions may never create new files.
		h.Logger.Info("PutRelativeFile denied: anonymous session", "file_id", rec.FileID)
		http.Error(w, "write not permitted", http.StatusForbidden)
		return
	}

	// The source file is opened only to learn its containing folder.
	src, err := h.Gateway.Open(r.Context(), rec.FileID, rec.Owner, rec.Editor)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidFileID) {
			h.Logger.Info("source inaccessible for PutRelativeFile", "file_id", rec.FileID)
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("PutRelativeFile open failed", "error", err, "file_id", rec.FileID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	suggested, err := wopi.DecodeSuggestedTarget(r.Header.Get(wopi.HeaderSuggestedTarget))
	if err != nil {
		h.Logger.Info("undecodable suggested target", "error", err, "file_id", rec.FileID)
		http.Error(w, t("Invalid filename"), http.StatusBadRequest)
		return
	}

	dest, err := wopi.ResolveTarget(suggested, src.Dir(), storage.UserRoot(rec.Editor))
	if err != nil {
		h.Logger.Info("empty save-as target", "suggested", suggested, "file_id", rec.FileID)
		http.Error(w, t("Cannot create the file"), http.StatusBadRequest)
		return
	}
	if err := wopi.ValidateName(dest); err != nil {
		h.Logger.Info("invalid save-as target", "target", dest, "file_id", rec.FileID)
		http.Error(w, t("Invalid filename"), http.StatusBadRequest)
		return
	}

	if err := h.Gateway.EnsureFolder(r.Context(), rec.Editor, path.Dir(dest)); err != nil {
		h.Logger.Error("PutRelativeFile mkdir failed", "error", err, "dir", path.Dir(dest))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	dest, err = wopi.Disambiguate(func(p string) (bool, error) {
		return h.Gateway.Exists(r.Context(), rec.Editor, p)
	}, dest)
	if err != nil {
		h.Logger.Error("PutRelativeFile collision check failed", "error", err, "target", dest)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	newFileID, err := h.Gateway.Create(r.Context(), rec.Editor, dest)
	if err != nil {
		h.Logger.Error("PutRelativeFile create failed", "error", err, "target", dest)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// A copy saved into the editor's own tree belongs to the editor;
	// one saved next to a shared source keeps the original owner.
	newOwner := rec.Owner
	if strings.HasPrefix(dest, storage.UserRoot(rec.Editor)+"/") {
		newOwner = rec.Editor
	}

	dst, err := h.Gateway.Open(r.Context(), newFileID, newOwner, rec.Editor)
	if err != nil {
		h.Logger.Error("created file not reopenable", "error", err, "file_id", newFileID)
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	if _, err := dst.Write(r.Context(), r.Body, r.ContentLength); err != nil {
		h.Logger.Error("PutRelativeFile write failed", "error", err, "file_id", newFileID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// The new session must keep the embedding frame's trust origin: reuse
	// the original session's server host, and only fall back to the
	// request's own origin when the original had none.
	serverHost := rec.ServerHost
	if serverHost == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		serverHost = scheme + "://" + r.Host
	}

	// Save-as mints a view/update/print session for the copy; export and
	// watermark attributes are deliberately not carried over.
	newRec, err := h.Store.Mint(r.Context(), newFileID, 0,
		session.AttrCanView|session.AttrCanUpdate|session.AttrCanPrint,
		serverHost, newOwner, rec.Editor)
	if err != nil {
		h.Logger.Error("minting session for new file failed", "error", err, "file_id", newFileID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, &wopi.PutRelativeResponse{
		Name: dst.Name(),
		Url:  h.FileURL(newFileID, newRec.Token),
	}, h.Logger)
}

// FileURL builds the absolute protocol URL for a file, embedding its access
// token.
func (h *Handler) FileURL(fileID, token string) string {
	return h.BaseURL + "/wopi/files/" + url.PathEscape(fileID) + "?access_token=" + url.QueryEscape(token)
}

// FilesHandler dispatches POST /wopi/files/{file_id} on the override
// selector. Only PUT_RELATIVE is implemented; every other selector, known
// or not, is answered 501. The distinction is kept in the logs.
func (h *Handler) FilesHandler(w http.ResponseWriter, r *http.Request) {
	selector := r.Header.Get(wopi.HeaderOverride)

	switch {
	case selector == "":
		h.PutFile(w, r)
	case selector == wopi.OverridePutRelative:
		h.PutRelativeFile(w, r)
	case wopi.KnownUnsupported(selector):
		h.Logger.Info("known-unsupported operation requested", "override", selector)
		http.Error(w, "operation not supported", http.StatusNotImplemented)
	default:
		h.Logger.Info("unrecognized operation requested", "override", selector)
		http.Error(w, "operation not supported", http.StatusNotImplemented)
	}
}

// ContentsHandler dispatches requests to /wopi/files/{file_id}/contents.
func (h *Handler) ContentsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetFile(w, r)
	case http.MethodPost:
		h.PutFile(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
