// Package media stores attachment bytes. Backends: the local file system,
// any S3-compatible service through the AWS SDK, and MinIO.
package media

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Provider persists and removes attachment objects.
type Provider interface {
	// Put stores size bytes from r under name and returns the locator
	// clients use to retrieve them.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	// Delete removes the object stored under name.
	Delete(ctx context.Context, name string) error
}

// Naming selects how storage names are derived from uploads.
type Naming string

const (
	NamingOriginal Naming = "original"
	NamingRandom   Naming = "random"
)

const maxNameLen = 120

// StorageName combines the owning entry id with either the sanitized
// original filename or a random token. The random form is also used when
// nothing usable remains of the filename.
func StorageName(entryID, filename string, naming Naming) string {
	clean := SanitizeFilename(filename)
	if naming == NamingRandom || clean == "" {
		ext := strings.ToLower(replaceUnsafe(filepath.Ext(filename)))
		return entryID + "_" + uuid.NewString() + ext
	}
	return entryID + "_" + clean
}

// UniqueStorageName is StorageName with a numeric suffix added before the
// extension until the result is not in taken. The chosen name is added to
// taken.
func UniqueStorageName(entryID, filename string, naming Naming, taken map[string]bool) string {
	name := StorageName(entryID, filename, naming)
	if taken[name] {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for i := 2; ; i++ {
			cand := fmt.Sprintf("%s-%d%s", stem, i, ext)
			if !taken[cand] {
				name = cand
				break
			}
		}
	}
	taken[name] = true
	return name
}

// SanitizeFilename keeps the base name and replaces every byte outside
// [A-Za-z0-9._-] with an underscore. It returns "" when the name has no
// usable stem.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	ext := filepath.Ext(name)
	stem := strings.Trim(replaceUnsafe(strings.TrimSuffix(name, ext)), "._-")
	if stem == "" {
		return ""
	}
	out := stem + strings.ToLower(replaceUnsafe(ext))
	if len(out) > maxNameLen {
		out = out[len(out)-maxNameLen:]
	}
	return out
}

func replaceUnsafe(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// publicURL joins base and name, or returns "" when base is unset.
func publicURL(base, name string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + name
}
