// Package session implements the access-token store for editing sessions.
// A session record binds an opaque bearer token to one file, the identities
// involved, and the permission bits granted for the lifetime of the token.
package session

import (
	"context"
	"errors"
)

// Attribute flags carried by a session. Flags are independent booleans
// combined with bitwise OR.
const (
	AttrCanView Attributes = 1 << iota
	AttrCanUpdate
	AttrCanPrint
	AttrCanExport
	AttrHasWatermark
)

// Attributes is the permission bitmask of an editing session.
type Attributes uint32

// CanView reports whether the session may view the document.
func (a Attributes) CanView() bool { return a&AttrCanView != 0 }

// CanUpdate reports whether the session may modify the document. Every
// mutating operation is gated on this flag.
func (a Attributes) CanUpdate() bool { return a&AttrCanUpdate != 0 }

// CanPrint reports whether the session may print the document.
func (a Attributes) CanPrint() bool { return a&AttrCanPrint != 0 }

// CanExport reports whether the session may export the document. The same
// flag also drives the save-to-storage and in-document copy affordances.
func (a Attributes) CanExport() bool { return a&AttrCanExport != 0 }

// HasWatermark reports whether a per-session watermark must be rendered.
func (a Attributes) HasWatermark() bool { return a&AttrHasWatermark != 0 }

// Record is the server-side state an access token resolves to. Records are
// immutable: a save-as mints a brand-new record instead of rewriting one.
type Record struct {
	Token      string     `json:"token"`
	FileID     string     `json:"file_id"`
	Version    int64      `json:"version"` // 0 = latest
	Owner      string     `json:"owner"`
	Editor     string     `json:"editor,omitempty"` // empty = remote/anonymous
	Attributes Attributes `json:"attributes"`
	ServerHost string     `json:"server_host,omitempty"`
}

// Anonymous reports whether the session has no acting editor identity
// (federated/remote access).
func (r *Record) Anonymous() bool { return r.Editor == "" }

// ErrNotFound is returned by Resolve for unknown and expired tokens alike;
// callers must not be able to tell the two apart.
var ErrNotFound = errors.New("session: token not found")

// Store resolves and mints session records.
type Store interface {
	// Resolve looks up the record for token. It is a pure lookup with no
	// side effects; unknown and expired tokens both yield ErrNotFound.
	Resolve(ctx context.Context, token string) (*Record, error)

	// Mint creates and persists a new session record with a fresh opaque
	// token and returns it.
	Mint(ctx context.Context, fileID string, version int64, attrs Attributes, serverHost, owner, editor string) (*Record, error)
}
