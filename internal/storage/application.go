package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/m-orlov/secondhand-bot/internal/kv"
)

// Application record field names.
const (
	RecordSessionKey  = "session_key"
	RecordUserID      = "user_id"
	RecordUsername    = "username"
	RecordFirstName   = "first_name"
	RecordLastName    = "last_name"
	RecordPhotos      = "photos"
	RecordCreatedAt   = "created_at"
	RecordRevokedAt   = "revoked_at"
	RecordRevokedBy   = "revoked_by"
	RecordReviewedAt  = "reviewed_at"
	RecordReviewedBy  = "reviewed_by"
	RecordPosition    = "position"
	RecordCondition   = "condition"
	RecordSize        = "size"
	RecordMaterial    = "material"
	RecordDescription = "description"
	RecordPrice       = "price"
	RecordContacts    = "contacts"
)

// Application is one durable listing, a flat hash of string fields.
type Application map[string]string

// SessionKey returns the record's stable identity.
func (a Application) SessionKey() string { return a[RecordSessionKey] }

// OwnerID parses the owning user id, returning false for malformed data.
func (a Application) OwnerID() (int64, bool) {
	id, err := strconv.ParseInt(a[RecordUserID], 10, 64)
	return id, err == nil
}

// PhotoHandles splits the comma-joined photo handle list.
func (a Application) PhotoHandles() []string {
	raw := a[RecordPhotos]
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	handles := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			handles = append(handles, part)
		}
	}
	return handles
}

// Revoked reports whether the listing has been withdrawn by its owner.
func (a Application) Revoked() bool { return a[RecordRevokedAt] != "" }

// Reviewed reports whether an administrator has marked the listing seen.
func (a Application) Reviewed() bool { return a[RecordReviewedAt] != "" }

// RecordStore is the durable document layer for application records. Every
// record lives in one hash keyed by its session key and is indexed by the
// global applications set.
type RecordStore struct {
	store  kv.Store
	prefix string
	now    func() time.Time
}

// NewRecordStore creates a RecordStore over the given backend and key
// prefix.
func NewRecordStore(store kv.Store, prefix string) *RecordStore {
	return &RecordStore{store: store, prefix: prefix, now: time.Now}
}

// Create persists a new application record and registers it in the global
// index. The owner field is immutable from this point on.
func (r *RecordStore) Create(ctx context.Context, app Application) error {
	key := applicationKey(r.prefix, app.SessionKey())
	if err := r.store.HSet(ctx, key, app); err != nil {
		return fmt.Errorf("persist application: %w", err)
	}
	if _, err := r.store.SAdd(ctx, r.prefix+":"+applicationsSetSuffix, key); err != nil {
		return fmt.Errorf("index application: %w", err)
	}
	slog.Info("persisted application", "key", key, "user_id", app[RecordUserID])
	return nil
}

// FetchAll enumerates every application record, newest first. Index members
// whose hash is missing are tolerated and dropped. Returns ErrUnavailable
// when the index itself cannot be read; an empty slice means a confirmed
// empty store.
func (r *RecordStore) FetchAll(ctx context.Context) ([]Application, error) {
	keys, err := r.store.SMembers(ctx, r.prefix+":"+applicationsSetSuffix)
	if err != nil {
		slog.Error("failed to load application index", "error", err)
		return nil, ErrUnavailable
	}
	sort.Strings(keys)
	records := make([]Application, 0, len(keys))
	for _, key := range keys {
		record := r.load(ctx, key)
		if len(record) > 0 {
			records = append(records, record)
		}
	}
	// Lexicographic order on ISO-8601 timestamps is chronological.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i][RecordCreatedAt] > records[j][RecordCreatedAt]
	})
	return records, nil
}

// FetchForOwner returns the given user's applications, newest first.
func (r *RecordStore) FetchForOwner(ctx context.Context, userID int64) ([]Application, error) {
	records, err := r.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	owner := strconv.FormatInt(userID, 10)
	owned := make([]Application, 0, len(records))
	for _, record := range records {
		if record[RecordUserID] == owner {
			owned = append(owned, record)
		}
	}
	return owned, nil
}

// Load fetches a single application by session key, or nil when absent.
func (r *RecordStore) Load(ctx context.Context, sessionKey string) Application {
	record := r.load(ctx, applicationKey(r.prefix, sessionKey))
	if len(record) == 0 {
		return nil
	}
	return record
}

// UpdateOwned merges fields into the record identified by sessionKey,
// provided it exists and actingUserID matches the stored owner. List and
// slice values are comma-joined; nil becomes the empty string. This is the
// single ownership gate for all user-initiated edits.
func (r *RecordStore) UpdateOwned(ctx context.Context, sessionKey string, actingUserID int64, fields map[string]any) bool {
	if len(fields) == 0 {
		return true
	}
	key := applicationKey(r.prefix, sessionKey)
	record := r.load(ctx, key)
	if len(record) == 0 {
		slog.Warn("application not found for update", "key", key)
		return false
	}
	owner := record[RecordUserID]
	if owner != strconv.FormatInt(actingUserID, 10) {
		slog.Warn("update rejected: not the owner",
			"key", key, "acting_user", actingUserID, "owner", owner)
		return false
	}
	serialized := make(map[string]string, len(fields))
	for field, value := range fields {
		switch v := value.(type) {
		case nil:
			serialized[field] = ""
		case string:
			serialized[field] = v
		case []string:
			serialized[field] = strings.Join(v, ",")
		default:
			serialized[field] = fmt.Sprint(v)
		}
	}
	if err := r.store.HSet(ctx, key, serialized); err != nil {
		slog.Error("failed to update application", "key", key, "error", err)
		return false
	}
	slog.Info("application updated", "key", key, "user_id", actingUserID)
	return true
}

// Revoke withdraws a listing. It applies the same ownership gate as
// UpdateOwned plus an idempotency gate: a record that already carries
// revoked_at is rejected, never overwritten. revoked_at and revoked_by are
// written in a single hash write.
func (r *RecordStore) Revoke(ctx context.Context, sessionKey string, actingUserID int64) bool {
	key := applicationKey(r.prefix, sessionKey)
	record := r.load(ctx, key)
	if len(record) == 0 {
		slog.Warn("application not found for revocation", "key", key)
		return false
	}
	owner := record[RecordUserID]
	if owner != strconv.FormatInt(actingUserID, 10) {
		slog.Warn("revocation rejected: not the owner",
			"key", key, "acting_user", actingUserID, "owner", owner)
		return false
	}
	if record[RecordRevokedAt] != "" {
		slog.Info("application already revoked", "key", key)
		return false
	}
	fields := map[string]string{
		RecordRevokedAt: r.timestamp(),
		RecordRevokedBy: strconv.FormatInt(actingUserID, 10),
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		slog.Error("failed to revoke application", "key", key, "error", err)
		return false
	}
	slog.Info("application revoked", "key", key, "user_id", actingUserID)
	return true
}

// MarkReviewed flags a record as seen by an administrator. Authorization is
// the caller's concern; there is no ownership gate. reviewed_at and
// reviewed_by are set together in one write, and the written timestamp is
// returned so callers can update local state without a re-read.
func (r *RecordStore) MarkReviewed(ctx context.Context, sessionKey string, adminID int64) (string, bool) {
	key := applicationKey(r.prefix, sessionKey)
	record := r.load(ctx, key)
	if len(record) == 0 {
		slog.Warn("application not found for review", "key", key)
		return "", false
	}
	timestamp := r.timestamp()
	fields := map[string]string{
		RecordReviewedAt: timestamp,
		RecordReviewedBy: strconv.FormatInt(adminID, 10),
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		slog.Error("failed to mark application reviewed", "key", key, "error", err)
		return "", false
	}
	slog.Info("application marked reviewed", "key", key, "admin_id", adminID)
	return timestamp, true
}

// ClearReview removes the reviewed_at/reviewed_by pair. The two fields are
// a unit: both are deleted, or nothing is attempted when the record is
// absent.
func (r *RecordStore) ClearReview(ctx context.Context, sessionKey string) bool {
	key := applicationKey(r.prefix, sessionKey)
	record := r.load(ctx, key)
	if len(record) == 0 {
		slog.Warn("application not found while clearing review", "key", key)
		return false
	}
	if _, err := r.store.HDel(ctx, key, RecordReviewedAt, RecordReviewedBy); err != nil {
		slog.Error("failed to clear review flag", "key", key, "error", err)
		return false
	}
	slog.Info("cleared review flag", "key", key)
	return true
}

func (r *RecordStore) load(ctx context.Context, key string) Application {
	raw, err := r.store.HGetAll(ctx, key)
	if err != nil {
		slog.Error("failed to load application", "key", key, "error", err)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	return Application(raw)
}

func (r *RecordStore) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}
