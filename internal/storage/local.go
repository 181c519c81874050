package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// Local is a Gateway over an afero filesystem. Production uses an OsFs
// rooted at a base path; tests use a MemMapFs.
type Local struct {
	fs afero.Fs
}

// NewLocal creates a Local gateway rooted at root on the OS filesystem.
func NewLocal(root string) *Local {
	return &Local{fs: afero.NewBasePathFs(afero.NewOsFs(), root)}
}

// NewLocalWithFs creates a Local gateway over an arbitrary afero filesystem.
func NewLocalWithFs(fs afero.Fs) *Local {
	return &Local{fs: fs}
}

// accessible reports whether p may be accessed by the given identities.
// Files live either in a user's personal root or under the shared tree.
func accessible(p, owner, editor string) bool {
	if strings.HasPrefix(p, "shared/") {
		return true
	}
	if owner != "" && strings.HasPrefix(p, UserRoot(owner)+"/") {
		return true
	}
	if editor != "" && strings.HasPrefix(p, UserRoot(editor)+"/") {
		return true
	}
	return false
}

// Open implements Gateway.
func (l *Local) Open(ctx context.Context, fileID, owner, editor string) (Handle, error) {
	if err := ValidateFileID(fileID); err != nil {
		return nil, err
	}
	p := FileIDToPath(fileID)
	if !accessible(p, owner, editor) {
		return nil, ErrNotFound
	}
	fi, err := l.fs.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %q: %w", p, err)
	}
	if fi.IsDir() {
		return nil, ErrNotFound
	}
	return &localHandle{
		fs:      l.fs,
		path:    p,
		size:    fi.Size(),
		modTime: Timestamp(fi.ModTime()),
	}, nil
}

// EnsureFolder implements Gateway.
func (l *Local) EnsureFolder(ctx context.Context, editor, dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", dir, err)
	}
	return nil
}

// Exists implements Gateway.
func (l *Local) Exists(ctx context.Context, editor, p string) (bool, error) {
	ok, err := afero.Exists(l.fs, p)
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", p, err)
	}
	return ok, nil
}

// Create implements Gateway.
func (l *Local) Create(ctx context.Context, editor, p string) (string, error) {
	f, err := l.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %q: %w", p, err)
	}
	return PathToFileID(p), nil
}

type localHandle struct {
	fs      afero.Fs
	path    string
	size    int64
	modTime string
}

func (h *localHandle) Name() string    { return path.Base(h.path) }
func (h *localHandle) Size() int64     { return h.size }
func (h *localHandle) ModTime() string { return h.modTime }
func (h *localHandle) Dir() string     { return path.Dir(h.path) }

func (h *localHandle) Read(ctx context.Context) (io.ReadCloser, error) {
	f, err := h.fs.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %q: %w", h.path, err)
	}
	return f, nil
}

func (h *localHandle) Write(ctx context.Context, r io.Reader, size int64) (string, error) {
	f, err := h.fs.OpenFile(h.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %q for write: %w", h.path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write %q: %w", h.path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %q: %w", h.path, err)
	}
	fi, err := h.fs.Stat(h.path)
	if err != nil {
		return "", fmt.Errorf("stat %q after write: %w", h.path, err)
	}
	h.size = fi.Size()
	h.modTime = Timestamp(fi.ModTime())
	return h.modTime, nil
}
