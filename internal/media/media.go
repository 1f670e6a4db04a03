// Package media stores uploaded photos behind a backend-agnostic contract.
// Blobs are addressed by opaque handles of the form "{session_key}/{name}";
// resolving a handle to bytes always goes through a Storage implementation
// and never through caller-side path construction.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for missing blobs, invalid handles and any
// caller-supplied path that would escape the storage or cache root. The
// three cases are deliberately indistinguishable.
var ErrNotFound = errors.New("media not found")

// Session correlates an uploaded-photo batch to a backend-specific write
// location. Dir is empty for object-storage backends.
type Session struct {
	Key string
	Dir string
}

// Storage is the backend-independent blob storage contract.
type Storage interface {
	// CreateSession issues a fresh, globally unique session key.
	CreateSession(userID int64) (Session, error)
	// GetSession re-derives a session from a previously issued key. Keys
	// that would resolve outside the storage root are rejected.
	GetSession(sessionKey string) (Session, error)
	// AllocatePath returns a writable local path for staging one file.
	// The filename is reduced to its base name before joining.
	AllocatePath(session Session, filename string) (string, error)
	// FinalizeUpload commits a staged file into the backend and returns
	// its stable handle.
	FinalizeUpload(ctx context.Context, session Session, path string) (string, error)
	// ListHandles enumerates finalized handles for a session, sorted.
	ListHandles(ctx context.Context, sessionKey string) ([]string, error)
	// CachePhoto guarantees the blob exists at a local path, downloading
	// on first access for remote backends.
	CachePhoto(ctx context.Context, handle string) (string, error)
}

// CacheAll is the best-effort batch form of CachePhoto: blank, duplicate
// and traversal-looking handles are skipped with a warning instead of
// aborting the batch.
func CacheAll(ctx context.Context, storage Storage, handles []string) []string {
	cached := make([]string, 0, len(handles))
	seen := make(map[string]struct{}, len(handles))
	for _, handle := range handles {
		normalized := strings.TrimSpace(handle)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		if hasParentSegment(normalized) {
			slog.Warn("skipping suspicious photo handle", "handle", normalized)
			continue
		}
		seen[normalized] = struct{}{}
		path, err := storage.CachePhoto(ctx, normalized)
		if err != nil {
			slog.Warn("photo handle could not be cached", "handle", normalized, "error", err)
			continue
		}
		if _, err := os.Stat(path); err == nil {
			cached = append(cached, path)
		}
	}
	return cached
}

// resolveWithin joins rel to base and verifies the result is still a
// descendant of base. Absolute and escaping inputs yield ErrNotFound.
func resolveWithin(base, rel string) (string, error) {
	rel = filepath.FromSlash(rel)
	if rel == "" || filepath.IsAbs(rel) || !filepath.IsLocal(rel) {
		return "", ErrNotFound
	}
	target := filepath.Join(base, rel)
	if !within(base, target) {
		return "", ErrNotFound
	}
	return target, nil
}

func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hasParentSegment(handle string) bool {
	for _, part := range strings.Split(filepath.ToSlash(handle), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// generateSessionKey builds "{user_id}_{timestamp}_{random}" keys that are
// unique across backends and safe to use as a single path segment.
func generateSessionKey(userID int64) string {
	timestamp := time.Now().UTC().Format("20060102150405")
	suffix := fmt.Sprintf("%x", uuid.New())[:6]
	return fmt.Sprintf("%d_%s_%s", userID, timestamp, suffix)
}

func sanitizeFilename(filename string) (string, error) {
	name := filepath.Base(filepath.FromSlash(filename))
	if name == "" || name == "." || name == string(filepath.Separator) || name == ".." {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return name, nil
}
