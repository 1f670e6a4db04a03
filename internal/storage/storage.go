// Package storage implements the durable data layer of the bot: ephemeral
// form sessions, application records, broadcast records and the admin/user
// rosters, all persisted as hashes and sets under a configurable key prefix.
package storage

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned when the underlying key-value store could not
// be reached. Callers must treat it as distinct from a confirmed-empty
// result.
var ErrUnavailable = errors.New("storage unavailable")

const (
	applicationsSetSuffix = "applications"
	adminsSetSuffix       = "admins"
	usersSetSuffix        = "users"
	broadcastsSetSuffix   = "broadcasts"
	broadcastKeyPrefix    = "broadcast"
)

func sessionKey(prefix string, userID int64) string {
	return fmt.Sprintf("%s:session:%d", prefix, userID)
}

func applicationKey(prefix, sessionKey string) string {
	return fmt.Sprintf("%s:%s", prefix, sessionKey)
}

func broadcastKey(prefix, id string) string {
	return fmt.Sprintf("%s:%s:%s", prefix, broadcastKeyPrefix, id)
}
