// Package cache stores raw dataset payloads between runs.
//
// The geodata loader caches the body of every GeoJSON source it fetches
// over HTTP so repeated startups do not hit the network. Three backends implement
// [Cache]:
//
//   - [FileCache]: one JSON file per entry under a directory, for the CLI
//   - [RedisCache]: a shared Redis instance, for multi-instance servers
//   - [NullCache]: stores nothing, for tests and --no-cache
//
// Keys come from a [Keyer] so every caller builds them the same way.
// Backends report hits, misses and writes through the cache hooks in
// pkg/observability.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the data for key and whether it was present.
	// Expired entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A non-positive ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by backends that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}
