// Package cache stores rendered artifacts keyed by snapshot content.
//
// # Backends
//
//   - [NullCache]: stores nothing, for --no-cache and tests
//   - [FileCache]: one JSON file per entry under a directory, for the CLI
//   - [RedisCache]: shared cache for servers running several instances
//
// # Keys
//
// A [Keyer] builds keys from the hash of a snapshot's JSON (see [Hash]) and
// the render options, so a snapshot uploaded twice renders once.
// [ScopedKeyer] prefixes every key, for sharing one Redis between
// deployments.
//
//	c, _ := cache.NewFileCache(dir)
//	c = cache.Instrument(c)
//	key := cache.NewDefaultKeyer().ArtifactKey(cache.Hash(data), cache.ArtifactKeyOpts{Format: "svg"})
//	if svg, hit, _ := c.Get(ctx, key); hit {
//	    return svg
//	}
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/nikhilxb/xnode-db/pkg/observability"
)

// Cache is a byte-oriented key-value store with expiry.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is a miss
	// (hit false, err nil), not an error.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// Default entry lifetimes.
const (
	// TTLArtifact is the lifetime of rendered diagrams.
	TTLArtifact = 7 * 24 * time.Hour

	// TTLSnapshot is the lifetime of snapshots cached by the server.
	TTLSnapshot = 24 * time.Hour
)

// Instrument wraps c so that every lookup and write is reported to the
// registered [observability.CacheHooks]. Keys are reported by their prefix
// ("artifact", "snapshot").
func Instrument(c Cache) Cache {
	if c == nil {
		c = NewNullCache()
	}
	return &instrumented{Cache: c}
}

type instrumented struct {
	Cache
}

func (c *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, hit, err := c.Cache.Get(ctx, key)
	if err == nil {
		if hit {
			observability.Cache().OnCacheHit(ctx, keyType(key))
		} else {
			observability.Cache().OnCacheMiss(ctx, keyType(key))
		}
	}
	return data, hit, err
}

func (c *instrumented) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	err := c.Cache.Set(ctx, key, data, ttl)
	if err == nil {
		observability.Cache().OnCacheSet(ctx, keyType(key), len(data))
	}
	return err
}

// keyType returns the segment of key that names its kind, skipping scope
// prefixes: "user:1:artifact:abc" has type "artifact".
func keyType(key string) string {
	parts := strings.Split(key, ":")
	for i := len(parts) - 2; i >= 0; i-- {
		switch parts[i] {
		case keyArtifact, keySnapshot:
			return parts[i]
		}
	}
	return "other"
}
