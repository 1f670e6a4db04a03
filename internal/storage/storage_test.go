package storage

import (
	"context"
	"errors"
)

// unavailableStore simulates a backend that cannot be reached.
type unavailableStore struct{}

var errDown = errors.New("connection refused")

func (unavailableStore) HSet(context.Context, string, map[string]string) error { return errDown }
func (unavailableStore) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, errDown
}
func (unavailableStore) HDel(context.Context, string, ...string) (int64, error) { return 0, errDown }
func (unavailableStore) SAdd(context.Context, string, string) (bool, error)     { return false, errDown }
func (unavailableStore) SRem(context.Context, string, string) (bool, error)     { return false, errDown }
func (unavailableStore) SMembers(context.Context, string) ([]string, error)     { return nil, errDown }
func (unavailableStore) Del(context.Context, ...string) error                   { return errDown }
func (unavailableStore) Ping(context.Context) error                             { return errDown }
