// Package session keeps caller-owned resolver state between round-trips.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Ramsey-B/fern/pkg/redis"
)

var ErrNotFound = errors.New("session not found")

type Store[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	Save(ctx context.Context, id string, value *T) error
	Delete(ctx context.Context, id string) error
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is a process-local Store. Values are held as JSON, the same encoding
// the Redis store uses, so callers never share slices with a stored session.
type Memory[T any] struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory[T any](ttl time.Duration) *Memory[T] {
	return &Memory[T]{entries: map[string]entry{}, ttl: ttl, now: time.Now}
}

func (m *Memory[T]) Get(_ context.Context, id string) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.ttl > 0 && m.now().After(e.expiresAt) {
		delete(m.entries, id)
		return nil, ErrNotFound
	}
	var v T
	if err := json.Unmarshal(e.data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (m *Memory[T]) Save(_ context.Context, id string, value *T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[id] = entry{data: data, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)
	return nil
}

// Redis stores sessions as JSON documents expiring after ttl.
type Redis[T any] struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedis[T any](client *redis.Client, keyPrefix string, ttl time.Duration) *Redis[T] {
	return &Redis[T]{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *Redis[T]) Get(ctx context.Context, id string) (*T, error) {
	var v T
	if err := r.client.GetJSON(ctx, r.keyPrefix+id, &v); err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *Redis[T]) Save(ctx context.Context, id string, value *T) error {
	return r.client.SetJSON(ctx, r.keyPrefix+id, value, r.ttl)
}

func (r *Redis[T]) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.keyPrefix+id)
}
