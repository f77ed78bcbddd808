package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FS implements Provider backed by a local directory.
type FS struct {
	root   string // absolute path to the media directory
	prefix string // URL path the HTTP layer serves the directory under
}

// NewFS creates an FS provider rooted at dir, creating it if needed.
// Locators are prefix + "/" + name.
func NewFS(dir, prefix string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("media: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("media: mkdir root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("media: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("media: root is not a directory: %s", abs)
	}
	return &FS{root: abs, prefix: strings.TrimRight(prefix, "/")}, nil
}

// Root returns the absolute media directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves name against the root and rejects anything that
// escapes it or names a subdirectory.
func (f *FS) safePath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("media: invalid object name: %q", name)
	}
	abs := filepath.Join(f.root, filepath.Clean(name))
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("media: path escapes media root: %s", name)
	}
	return abs, nil
}

// Put atomically writes the object: tmp file → fsync → rename.
func (f *FS) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(f.root, ".upload-tmp-*")
	if err != nil {
		return "", fmt.Errorf("media: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("media: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("media: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("media: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return "", fmt.Errorf("media: rename: %w", err)
	}
	success = true
	return f.prefix + "/" + url.PathEscape(name), nil
}

// Open returns the stored object for reading.
func (f *FS) Open(name string) (*os.File, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("media: open %s: %w", name, err)
	}
	return fh, nil
}

// Delete removes the object.
func (f *FS) Delete(_ context.Context, name string) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("media: delete %s: %w", name, err)
	}
	return nil
}
