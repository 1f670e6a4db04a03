package kv

import (
	"context"
	"sync"
)

// Memory is the in-process fallback store. It reproduces the observable
// semantics of the networked backend: absent keys read as empty maps/sets,
// set add/remove are idempotent, and deleting an emptied hash removes the
// key. The mutex covers the dispatcher goroutine running next to handlers.
type Memory struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		hashes: make(map[string]map[string]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (m *Memory) HSet(_ context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.hashes[key]
	if !ok {
		target = make(map[string]string, len(fields))
		m.hashes[key] = target
	}
	for field, value := range fields {
		target[field] = value
	}
	return nil
}

func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.hashes[key]))
	for field, value := range m.hashes[key] {
		out[field] = value
	}
	return out, nil
}

func (m *Memory) HDel(_ context.Context, key string, fields ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.hashes[key]
	if !ok {
		return 0, nil
	}
	var removed int64
	for _, field := range fields {
		if _, ok := target[field]; ok {
			delete(target, field)
			removed++
		}
	}
	if len(target) == 0 {
		delete(m.hashes, key)
	}
	return removed, nil
}

func (m *Memory) SAdd(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.sets[key]
	if !ok {
		target = make(map[string]struct{})
		m.sets[key] = target
	}
	if _, exists := target[member]; exists {
		return false, nil
	}
	target[member] = struct{}{}
	return true, nil
}

func (m *Memory) SRem(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.sets[key]
	if !ok {
		return false, nil
	}
	if _, exists := target[member]; !exists {
		return false, nil
	}
	delete(target, member)
	return true, nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.hashes, key)
		delete(m.sets, key)
	}
	return nil
}

func (m *Memory) Ping(_ context.Context) error {
	return nil
}
