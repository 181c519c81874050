package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/httpsgithu/richdocuments/internal/session"
)

func createSession(t *testing.T, sh *SessionHandler, user, fileID string) (int, SessionResponse) {
	t.Helper()
	target := "/api/sessions?user_id=" + url.QueryEscape(user) + "&file_id=" + url.QueryEscape(fileID)
	req := httptest.NewRequest("POST", target, nil)
	w := httptest.NewRecorder()
	sh.CreateSession(w, req)

	var resp SessionResponse
	if w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
	}
	return w.Code, resp
}

func TestCreateSessionOwnFile(t *testing.T) {
	e := newTestEnv(t)
	sh := &SessionHandler{Handler: e.h, TokenTTL: time.Hour}

	code, resp := createSession(t, sh, "alice", "home|alice|draft.odt")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.AccessToken == "" {
		t.Fatal("no access token issued")
	}
	if resp.WopiSrc != "https://docs.example.com/wopi/files/home|alice|draft.odt" {
		t.Errorf("WopiSrc = %q", resp.WopiSrc)
	}
	if resp.AccessTokenTTL <= time.Now().UnixMilli() {
		t.Errorf("AccessTokenTTL = %d is not in the future", resp.AccessTokenTTL)
	}

	rec, err := e.store.Resolve(t.Context(), resp.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	want := session.AttrCanView | session.AttrCanPrint | session.AttrCanUpdate | session.AttrCanExport
	if rec.Attributes != want {
		t.Errorf("attributes = %b, want %b for a file in the caller's tree", rec.Attributes, want)
	}
	if rec.ServerHost != "https://docs.example.com" {
		t.Errorf("ServerHost = %q", rec.ServerHost)
	}
}

func TestCreateSessionSharedFile(t *testing.T) {
	e := newTestEnv(t)
	sh := &SessionHandler{Handler: e.h, TokenTTL: time.Hour}

	code, resp := createSession(t, sh, "alice", "shared|plan.ods")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	rec, err := e.store.Resolve(t.Context(), resp.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	want := session.AttrCanView | session.AttrCanPrint
	if rec.Attributes != want {
		t.Errorf("attributes = %b, want view/print for a shared file", rec.Attributes)
	}
}

func TestCreateSessionErrors(t *testing.T) {
	e := newTestEnv(t)
	sh := &SessionHandler{Handler: e.h, TokenTTL: time.Hour}

	tests := []struct {
		name   string
		user   string
		fileID string
		want   int
	}{
		{"missing user", "", "home|alice|draft.odt", http.StatusBadRequest},
		{"missing file", "alice", "", http.StatusBadRequest},
		{"missing target", "alice", "home|alice|gone.odt", http.StatusNotFound},
		{"foreign home tree", "alice", "home|bob|doc.odt", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := createSession(t, sh, tt.user, tt.fileID)
			if code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestIssuedSessionDrivesProtocol(t *testing.T) {
	e := newTestEnv(t)
	sh := &SessionHandler{Handler: e.h, TokenTTL: time.Hour}

	_, resp := createSession(t, sh, "alice", "home|alice|draft.odt")

	w := e.do("GET", "/wopi/files/home|alice|draft.odt?access_token="+resp.AccessToken, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("CheckFileInfo with issued token: status = %d", w.Code)
	}
	info := decodeInfo(t, w)
	if !info.UserCanWrite {
		t.Error("session over own file not writable")
	}
}
