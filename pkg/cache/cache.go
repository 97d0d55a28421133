// Package cache provides the key-value caches used by mxembed.
//
// The only cached artifact is the viewer library script downloaded by
// "mxembed vendor": it is fetched once and reused across builds until its
// TTL expires. Rewriting pages never touches a cache.
//
// Two implementations are provided:
//   - [FileCache]: entries stored as JSON files under a directory (CLI use)
//   - [NullCache]: a no-op cache for --no-cache and tests
package cache

import (
	"context"
	"time"
)

// TTLViewer is how long a downloaded viewer script is reused.
const TTLViewer = 7 * 24 * time.Hour

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get returns the value for key and whether it was found.
	// Expired and corrupt entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
