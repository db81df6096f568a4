// Package cache provides the read-through cache used by the collection
// listing endpoints. Two backends exist, an in-memory map for single-node
// deployments and tests, and redis for anything that runs more than one
// replica.
package cache

import (
	"context"
	"time"
)

// Cache is the interface both backends implement. A zero ttl on Set means
// the backend's default ttl.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Config holds the settings shared by all backends.
type Config struct {
	// DefaultTTL applies when Set is called with a zero ttl.
	DefaultTTL time.Duration
	// Prefix is prepended to every key, so multiple services can share
	// one redis instance.
	Prefix string
}

// DefaultConfig returns the standard configuration: one hour ttl with the
// "docbase:" key prefix.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: time.Hour,
		Prefix:     "docbase:",
	}
}

// Miss is returned by Get when the key is absent or expired.
type Miss struct {
	Key string
}

func (e Miss) Error() string {
	return "cache miss: " + e.Key
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	_, ok := err.(Miss)
	return ok
}
