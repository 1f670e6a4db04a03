package storage

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/m-orlov/secondhand-bot/internal/config"
	"github.com/m-orlov/secondhand-bot/internal/kv"
)

// Broadcast audience selectors.
const (
	AudienceAll    = "all"
	AudienceRecent = "recent"
)

// Roster tracks administrators and active users. Super admins come from
// static configuration and are immutable at runtime; regular admins live in
// a mutable set in the store.
type Roster struct {
	store       kv.Store
	prefix      string
	superAdmins map[int64]struct{}
	records     *RecordStore
	now         func() time.Time
}

// NewRoster creates a Roster over the given backend. superAdminIDs is the
// statically configured super-admin list; records is used for recency-based
// audience resolution.
func NewRoster(store kv.Store, prefix string, superAdminIDs []int64, records *RecordStore) *Roster {
	supers := make(map[int64]struct{}, len(superAdminIDs))
	for _, id := range superAdminIDs {
		supers[id] = struct{}{}
	}
	return &Roster{store: store, prefix: prefix, superAdmins: supers, records: records, now: time.Now}
}

// IsSuperAdmin reports whether the user is in the configured super-admin
// list.
func (r *Roster) IsSuperAdmin(userID int64) bool {
	_, ok := r.superAdmins[userID]
	return ok
}

// IsAdmin reports whether the user is a super admin or a member of the
// mutable admin set.
func (r *Roster) IsAdmin(ctx context.Context, userID int64) bool {
	if r.IsSuperAdmin(userID) {
		return true
	}
	_, ok := r.Admins(ctx)[userID]
	return ok
}

// Admins returns the mutable admin set. Store faults yield an empty set
// with a logged fault.
func (r *Roster) Admins(ctx context.Context) map[int64]struct{} {
	return r.memberIDs(ctx, r.prefix+":"+adminsSetSuffix)
}

// AddAdmin grants admin rights and reports whether membership actually
// changed.
func (r *Roster) AddAdmin(ctx context.Context, userID int64) bool {
	added, err := r.store.SAdd(ctx, r.prefix+":"+adminsSetSuffix, strconv.FormatInt(userID, 10))
	if err != nil {
		slog.Error("failed to add admin", "user_id", userID, "error", err)
		return false
	}
	return added
}

// RemoveAdmin revokes admin rights and reports whether membership actually
// changed.
func (r *Roster) RemoveAdmin(ctx context.Context, userID int64) bool {
	removed, err := r.store.SRem(ctx, r.prefix+":"+adminsSetSuffix, strconv.FormatInt(userID, 10))
	if err != nil {
		slog.Error("failed to remove admin", "user_id", userID, "error", err)
		return false
	}
	return removed
}

// RecordActiveUser remembers that the user has interacted with the bot so
// broadcasts to "all" can reach them.
func (r *Roster) RecordActiveUser(ctx context.Context, userID int64) {
	if _, err := r.store.SAdd(ctx, r.prefix+":"+usersSetSuffix, strconv.FormatInt(userID, 10)); err != nil {
		slog.Error("failed to track active user", "user_id", userID, "error", err)
	}
}

// ActiveUsers returns every user that has ever interacted with the bot.
func (r *Roster) ActiveUsers(ctx context.Context) map[int64]struct{} {
	return r.memberIDs(ctx, r.prefix+":"+usersSetSuffix)
}

// ResolveAudience computes the recipient set for a broadcast selector:
// "all" is the active-user set, "recent" is every owner with a submission
// inside the trailing recency window. Unparsable timestamps and owner ids
// are skipped rather than failing the resolution.
func (r *Roster) ResolveAudience(ctx context.Context, audience string) map[int64]struct{} {
	switch audience {
	case AudienceAll:
		return r.ActiveUsers(ctx)
	case AudienceRecent:
		recipients := make(map[int64]struct{})
		records, err := r.records.FetchAll(ctx)
		if err != nil || len(records) == 0 {
			return recipients
		}
		cutoff := r.now().UTC().Add(-config.RecentAudienceWindow)
		for _, record := range records {
			created, ok := ParseTimestamp(record[RecordCreatedAt])
			if !ok || created.Before(cutoff) {
				continue
			}
			owner, ok := record.OwnerID()
			if !ok {
				continue
			}
			recipients[owner] = struct{}{}
		}
		return recipients
	}
	return map[int64]struct{}{}
}

func (r *Roster) memberIDs(ctx context.Context, key string) map[int64]struct{} {
	raw, err := r.store.SMembers(ctx, key)
	if err != nil {
		slog.Error("failed to read member set", "key", key, "error", err)
		return map[int64]struct{}{}
	}
	ids := make(map[int64]struct{}, len(raw))
	for _, member := range raw {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			slog.Warn("skipping malformed member id", "key", key, "member", member)
			continue
		}
		ids[id] = struct{}{}
	}
	return ids
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp accepts ISO-8601 timestamps with or without a zone;
// naive timestamps are normalized to UTC.
func ParseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
