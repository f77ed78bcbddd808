package credentials

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/bharathvani/internal/apperr"
)

var fileHeader = []string{"username", "password_hash"}

// File keeps credentials in a two-column CSV file. New records are appended;
// existing lines are never rewritten.
type File struct {
	path string
	h    *hasher
	mu   sync.Mutex
}

// NewFile opens the CSV at path, creating it with a header row if missing.
func NewFile(path string, opts ...Option) (*File, error) {
	h, err := newHasher(opts)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("credentials: mkdir: %w", err)
	}
	f := &File{path: path, h: h}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := f.append(fileHeader); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("credentials: stat: %w", err)
	case info.Size() == 0:
		if err := f.append(fileHeader); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Register appends a hashed credential.
func (f *File) Register(_ context.Context, username, secret string) error {
	username, err := normalize(username, secret)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.lookup(username)
	if err != nil {
		return err
	}
	if existing != "" {
		return apperr.ErrAlreadyExists
	}
	hash, err := f.h.hash(secret)
	if err != nil {
		return err
	}
	return f.append([]string{username, hash})
}

// Authenticate checks secret against the stored hash for username.
func (f *File) Authenticate(_ context.Context, username, secret string) (bool, error) {
	username = strings.TrimSpace(username)
	f.mu.Lock()
	hash, err := f.lookup(username)
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.h.verify(hash, secret), nil
}

// lookup returns the stored hash for username, or "" when absent.
func (f *File) lookup(username string) (string, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: open: %w", err)
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("credentials: read: %w", err)
		}
		if len(rec) < 2 || (rec[0] == fileHeader[0] && rec[1] == fileHeader[1]) {
			continue
		}
		if rec[0] == username {
			return rec[1], nil
		}
	}
}

func (f *File) append(rec []string) error {
	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("credentials: open: %w", err)
	}
	w := csv.NewWriter(fh)
	if err := w.Write(rec); err != nil {
		_ = fh.Close()
		return fmt.Errorf("credentials: write: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = fh.Close()
		return fmt.Errorf("credentials: write: %w", err)
	}
	if err := fh.Sync(); err != nil {
		_ = fh.Close()
		return fmt.Errorf("credentials: fsync: %w", err)
	}
	return fh.Close()
}
