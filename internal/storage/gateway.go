// Package storage provides access to the backing file store. Handlers never
// touch a backend directly; they go through the Gateway using the identities
// of the current session, and a successful Open is itself the proof of read
// access.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// TimeLayout is the protocol timestamp format. All modification-time
// comparisons happen at this second granularity, as textual equality.
const TimeLayout = "2006-01-02T15:04:05Z"

// Timestamp formats t as a protocol timestamp.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ErrNotFound is returned when a file does not exist or the given identities
// cannot access it. The two cases are deliberately not distinguished.
var ErrNotFound = errors.New("storage: file not found")

// ErrInvalidFileID is returned for file IDs that are empty, absolute, or
// contain traversal segments.
var ErrInvalidFileID = errors.New("storage: invalid file id")

// Handle is a capability to stat, read and overwrite a single file. It is
// valid for one request only and must not be cached across requests.
type Handle interface {
	// Name is the base name of the file.
	Name() string
	// Size is the current byte size.
	Size() int64
	// ModTime is the last modification time as a protocol timestamp.
	ModTime() string
	// Dir is the containing folder of the file, as a storage path.
	Dir() string
	// Read opens the content for streaming. The caller closes the reader.
	Read(ctx context.Context) (io.ReadCloser, error)
	// Write replaces the content from r and returns the new modification
	// time as a protocol timestamp.
	Write(ctx context.Context, r io.Reader, size int64) (string, error)
}

// Gateway yields file handles for session identities and supports the
// destination-side operations of save-as.
type Gateway interface {
	// Open returns a handle for fileID, or ErrNotFound when the file does
	// not exist or neither owner nor editor may access it.
	Open(ctx context.Context, fileID, owner, editor string) (Handle, error)

	// EnsureFolder creates dir (and missing parents) if needed.
	EnsureFolder(ctx context.Context, editor, dir string) error

	// Exists reports whether a file already occupies path.
	Exists(ctx context.Context, editor, path string) (bool, error)

	// Create creates an empty file at path and returns its file ID.
	Create(ctx context.Context, editor, path string) (string, error)
}

// UserRoot returns the personal root folder of a user within the store.
func UserRoot(user string) string {
	return "home/" + user
}

// File IDs are storage paths with pipes as separators so they stay URL-safe.

// FileIDToPath converts a file ID to a storage path.
func FileIDToPath(fileID string) string {
	return strings.ReplaceAll(fileID, "|", "/")
}

// PathToFileID converts a storage path to a file ID.
func PathToFileID(path string) string {
	return strings.ReplaceAll(strings.Trim(path, "/"), "/", "|")
}

// ValidateFileID rejects file IDs that could escape the store's keyspace.
func ValidateFileID(fileID string) error {
	if fileID == "" {
		return ErrInvalidFileID
	}
	path := FileIDToPath(fileID)
	if strings.HasPrefix(path, "/") {
		return ErrInvalidFileID
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." || seg == "" {
			return ErrInvalidFileID
		}
	}
	return nil
}
