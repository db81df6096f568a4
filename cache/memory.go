package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process backend. Expired entries are lazily dropped on
// read and swept by a background janitor once a minute.
type Memory struct {
	entries sync.Map
	config  Config
	cancel  context.CancelFunc
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemory creates an in-process cache with the given configuration.
func NewMemory(config Config) *Memory {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Memory{
		config: config,
		cancel: cancel,
	}
	go m.sweep(ctx)
	return m
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, ok := m.entries.Load(m.config.Prefix + key)
	if !ok {
		return nil, Miss{Key: key}
	}
	entry := value.(memoryEntry)
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		m.entries.Delete(m.config.Prefix + key)
		return nil, Miss{Key: key}
	}
	return entry.value, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expires = time.Now().Add(ttl)
	}
	m.entries.Store(m.config.Prefix+key, entry)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.entries.Delete(m.config.Prefix + key)
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.entries.Range(func(key, value interface{}) bool {
		m.entries.Delete(key)
		return true
	})
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	if IsMiss(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close stops the janitor.
func (m *Memory) Close() error {
	m.cancel()
	return nil
}

func (m *Memory) sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			m.entries.Range(func(key, value interface{}) bool {
				entry := value.(memoryEntry)
				if !entry.expires.IsZero() && now.After(entry.expires) {
					m.entries.Delete(key)
				}
				return true
			})
		}
	}
}
