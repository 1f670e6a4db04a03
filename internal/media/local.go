package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Local stores blobs directly under a root directory on the local
// filesystem. Finalizing is a pure local operation with no retry
// semantics.
type Local struct {
	root string
}

// NewLocal creates a local storage rooted at the given directory, creating
// it if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) CreateSession(userID int64) (Session, error) {
	key := generateSessionKey(userID)
	dir, err := resolveWithin(l.root, key)
	if err != nil {
		return Session{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Session{}, fmt.Errorf("create session directory: %w", err)
	}
	slog.Debug("created local media session", "key", key, "dir", dir)
	return Session{Key: key, Dir: dir}, nil
}

func (l *Local) GetSession(sessionKey string) (Session, error) {
	dir, err := resolveWithin(l.root, sessionKey)
	if err != nil {
		slog.Warn("rejected session key resolving outside storage root", "key", sessionKey)
		return Session{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Session{}, fmt.Errorf("create session directory: %w", err)
	}
	return Session{Key: sessionKey, Dir: dir}, nil
}

func (l *Local) AllocatePath(session Session, filename string) (string, error) {
	dir, err := l.sessionDir(session)
	if err != nil {
		return "", err
	}
	name, err := sanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// FinalizeUpload verifies the staged file and returns its handle. A file
// staged outside the session directory is moved into it first.
func (l *Local) FinalizeUpload(_ context.Context, session Session, path string) (string, error) {
	dir, err := l.sessionDir(session)
	if err != nil {
		return "", err
	}
	source, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve staged file: %w", err)
	}
	if _, err := os.Stat(source); err != nil {
		return "", fmt.Errorf("staged file missing: %w", err)
	}
	if !within(dir, source) {
		target := filepath.Join(dir, filepath.Base(source))
		if err := os.Rename(source, target); err != nil {
			return "", fmt.Errorf("move staged file into session: %w", err)
		}
		source = target
	}
	handle := session.Key + "/" + filepath.Base(source)
	slog.Debug("stored local media handle", "handle", handle)
	return handle, nil
}

func (l *Local) ListHandles(_ context.Context, sessionKey string) ([]string, error) {
	dir, err := resolveWithin(l.root, sessionKey)
	if err != nil {
		slog.Warn("skipping photo listing for invalid session key", "key", sessionKey)
		return []string{}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list session directory: %w", err)
	}
	handles := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			handles = append(handles, sessionKey+"/"+entry.Name())
		}
	}
	return handles, nil
}

// CachePhoto resolves a handle to its on-disk path. Absolute paths are
// accepted only when they already point inside the storage root; records
// written by older versions stored staged paths verbatim.
func (l *Local) CachePhoto(_ context.Context, handle string) (string, error) {
	if filepath.IsAbs(handle) {
		resolved := filepath.Clean(handle)
		if !within(l.root, resolved) {
			return "", ErrNotFound
		}
		if _, err := os.Stat(resolved); err != nil {
			return "", ErrNotFound
		}
		return resolved, nil
	}
	path, err := resolveWithin(l.root, handle)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

func (l *Local) sessionDir(session Session) (string, error) {
	if session.Dir != "" {
		dir := filepath.Clean(session.Dir)
		if !within(l.root, dir) {
			return "", fmt.Errorf("session directory escapes storage root")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create session directory: %w", err)
		}
		return dir, nil
	}
	dir, err := resolveWithin(l.root, session.Key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session directory: %w", err)
	}
	return dir, nil
}
