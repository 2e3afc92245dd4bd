// Package cache provides pluggable byte-oriented caching for pkggather.
//
// Two kinds of data are cached:
//   - HTTP feed responses, keyed by [Keyer.HTTPKey]
//   - gathered candidate sets, keyed by [Keyer.GatherKey]
//
// # Backends
//
//   - [FileCache]: one JSON envelope per entry under a directory (CLI default)
//   - [MemoryCache]: an expiring LRU held in process
//   - [RedisCache]: a shared Redis instance for the HTTP API
//   - [MongoCache]: a MongoDB collection with a TTL index
//   - [NullCache]: caching disabled
//
// All backends are safe for concurrent use.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys with an optional TTL.
type Cache interface {
	// Get returns the value for key. The bool reports a hit; a miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means the entry does not expire.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer derives cache keys. Implementations must be deterministic.
type Keyer interface {
	// HTTPKey generates a key for a cached feed response.
	HTTPKey(namespace, key string) string

	// GatherKey generates a key for a gathered candidate set.
	GatherKey(opts GatherKeyOpts) string
}

// GatherKeyOpts is the canonical description of a gather request. Every
// field that can change the gathered set must be part of it.
type GatherKeyOpts struct {
	Framework       string   `json:"framework"`
	PrimarySources  []string `json:"primary_sources"`
	AllSources      []string `json:"all_sources"`
	PackagesFolder  string   `json:"packages_folder,omitempty"`
	Targets         []string `json:"targets"`
	TargetIDs       []string `json:"target_ids,omitempty"`
	Installed       []string `json:"installed,omitempty"`
	AllowDowngrades bool     `json:"allow_downgrades"`
	IsUpdateAll     bool     `json:"is_update_all"`
}

// DefaultKeyer generates keys of the form "<kind>:<detail>".
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey implements [Keyer].
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// GatherKey implements [Keyer].
func (DefaultKeyer) GatherKey(opts GatherKeyOpts) string {
	return hashKey("gather", opts)
}
