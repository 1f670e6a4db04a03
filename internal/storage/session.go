package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/m-orlov/secondhand-bot/internal/kv"
)

// Well-known session field names. Anything else is stored and returned as
// an opaque string.
const (
	FieldSessionKey      = "session_key"
	FieldSessionDir      = "session_dir"
	FieldPhotos          = "photos"
	FieldPromptMessageID = "_photo_prompt_message_id"
	FieldState           = "state"
	FieldPosition        = "position"
	FieldCondition       = "condition"
	FieldSize            = "size"
	FieldMaterial        = "material"
	FieldDescription     = "description"
	FieldPrice           = "price"
	FieldContacts        = "contacts"
)

// Fields holds decoded session values keyed by hash field name. Values are
// string for plain attributes, []string for the photos list and int64 for
// nullable integers; a nil value means the field is explicitly unset.
type Fields map[string]any

// String returns the named field as a string, or "" when absent or not a
// plain string.
func (f Fields) String(name string) string {
	s, _ := f[name].(string)
	return s
}

// Photos returns the staged photo list, never nil.
func (f Fields) Photos() []string {
	if photos, ok := f[FieldPhotos].([]string); ok {
		return photos
	}
	return []string{}
}

// Int returns the named nullable-integer field and whether it is set.
func (f Fields) Int(name string) (int64, bool) {
	v, ok := f[name].(int64)
	return v, ok
}

// SessionStore manages the single in-progress submission form per user.
// One user has exactly one active conversation, so every session hash has
// a single writer and no locking is needed.
type SessionStore struct {
	store  kv.Store
	prefix string
}

// NewSessionStore creates a SessionStore over the given backend and key
// prefix.
func NewSessionStore(store kv.Store, prefix string) *SessionStore {
	return &SessionStore{store: store, prefix: prefix}
}

// Init discards any previous session for the user and writes a fresh one.
func (s *SessionStore) Init(ctx context.Context, userID int64, fields Fields) error {
	key := sessionKey(s.prefix, userID)
	if err := s.store.Del(ctx, key); err != nil {
		return fmt.Errorf("init session: %w", err)
	}
	if err := s.store.HSet(ctx, key, serializeSession(fields)); err != nil {
		return fmt.Errorf("init session: %w", err)
	}
	slog.Debug("initialized session", "key", key, "user_id", userID, "fields", fieldNames(fields))
	return nil
}

// Set performs a partial update of the user's session. Empty input is a
// no-op.
func (s *SessionStore) Set(ctx context.Context, userID int64, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	key := sessionKey(s.prefix, userID)
	if err := s.store.HSet(ctx, key, serializeSession(fields)); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	slog.Debug("updated session", "key", key, "user_id", userID, "fields", fieldNames(fields))
	return nil
}

// AppendPhoto adds a staged photo path to the session's photo list and
// returns the new list. Read-modify-write is safe under the single-writer
// assumption.
func (s *SessionStore) AppendPhoto(ctx context.Context, userID int64, path string) ([]string, error) {
	session, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	var photos []string
	if session != nil {
		photos = session.Photos()
	}
	photos = append(photos, path)
	if err := s.Set(ctx, userID, Fields{FieldPhotos: photos}); err != nil {
		return nil, err
	}
	slog.Debug("appended photo", "user_id", userID, "path", path, "total", len(photos))
	return photos, nil
}

// Get loads the user's session. A missing session yields nil; an existing
// one always carries a non-nil photos list.
func (s *SessionStore) Get(ctx context.Context, userID int64) (Fields, error) {
	key := sessionKey(s.prefix, userID)
	raw, err := s.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	session := deserializeSession(raw)
	if _, ok := session[FieldPhotos]; !ok {
		session[FieldPhotos] = []string{}
	}
	return session, nil
}

// Clear deletes the user's session.
func (s *SessionStore) Clear(ctx context.Context, userID int64) error {
	if err := s.store.Del(ctx, sessionKey(s.prefix, userID)); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	slog.Debug("cleared session", "user_id", userID)
	return nil
}

func serializeSession(fields Fields) map[string]string {
	serialized := make(map[string]string, len(fields))
	for field, value := range fields {
		switch field {
		case FieldPhotos:
			photos, _ := value.([]string)
			if photos == nil {
				photos = []string{}
			}
			encoded, _ := json.Marshal(photos)
			serialized[field] = string(encoded)
		case FieldPromptMessageID:
			if id, ok := value.(int64); ok {
				serialized[field] = strconv.FormatInt(id, 10)
			} else {
				serialized[field] = ""
			}
		default:
			switch v := value.(type) {
			case nil:
				serialized[field] = ""
			case string:
				serialized[field] = v
			default:
				serialized[field] = fmt.Sprint(v)
			}
		}
	}
	return serialized
}

func deserializeSession(raw map[string]string) Fields {
	session := make(Fields, len(raw))
	for field, value := range raw {
		switch field {
		case FieldPhotos:
			photos := []string{}
			if value != "" {
				if err := json.Unmarshal([]byte(value), &photos); err != nil {
					slog.Warn("malformed photos field in session", "error", err)
				}
			}
			session[field] = photos
		case FieldPromptMessageID:
			if value == "" {
				session[field] = nil
			} else if id, err := strconv.ParseInt(value, 10, 64); err == nil {
				session[field] = id
			} else {
				session[field] = nil
			}
		case FieldSessionDir:
			if value == "" {
				session[field] = nil
			} else {
				session[field] = value
			}
		default:
			session[field] = value
		}
	}
	return session
}

func fieldNames(fields Fields) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
