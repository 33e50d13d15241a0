package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// FileStore durably stores an uploaded binary under a stable reference key.
type FileStore interface {
	Save(ctx context.Context, key string, reader io.Reader) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// BuildKey composes the storage reference for an upload:
// <folder>/<unit>/<year>/<month>/<unixnano>_<sanitized-name>.
// The nanosecond timestamp plus the sanitized original name makes collisions
// impossible without any coordination between uploaders.
func BuildKey(folder, unitID, originalName string, now time.Time) string {
	return path.Join(
		folder,
		unitID,
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", int(now.Month())),
		fmt.Sprintf("%d_%s", now.UnixNano(), SanitizeFileName(originalName)),
	)
}

// SanitizeFileName lowercases the name and replaces anything outside
// [a-z0-9._-] with an underscore, so keys stay portable across backends.
func SanitizeFileName(name string) string {
	name = strings.ToLower(path.Base(name))
	if name == "." || name == ".." || name == "/" {
		return "documento"
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "documento"
	}
	return b.String()
}

// validateKey rejects storage keys containing path traversal segments.
func validateKey(key string) error {
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return fmt.Errorf("path traversal detected in storage key")
		}
	}
	return nil
}
