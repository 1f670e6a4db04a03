// Package kv provides the hash/set storage capability the bot persists
// through: a networked Redis-compatible client and an in-process fallback
// with identical observable semantics.
package kv

import "context"

// Store is the minimal hash-field and unordered-set surface used by the
// data layer. All values are native strings; callers own any further
// encoding. Absent keys read as empty maps/sets, never as errors.
type Store interface {
	// HSet writes the given fields into the hash at key, creating it if
	// needed and leaving untouched fields intact.
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HGetAll returns all fields of the hash at key, or an empty map when
	// the key does not exist.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HDel removes the named fields and reports how many existed.
	HDel(ctx context.Context, key string, fields ...string) (int64, error)
	// SAdd adds member to the set at key and reports whether it was new.
	SAdd(ctx context.Context, key, member string) (bool, error)
	// SRem removes member from the set at key and reports whether it was
	// present.
	SRem(ctx context.Context, key, member string) (bool, error)
	// SMembers returns the members of the set at key, or an empty slice.
	SMembers(ctx context.Context, key string) ([]string, error)
	// Del removes whole keys of either kind.
	Del(ctx context.Context, keys ...string) error
	// Ping probes the backend.
	Ping(ctx context.Context) error
}
