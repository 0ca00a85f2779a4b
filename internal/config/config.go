// Package config loads the ambient tuning knobs for the rule store: its
// backing file and open mode, reader pool size, and lookup-cache TTL, via
// a single tagged struct rather than a bespoke flag parser. The bulk-load
// pragmas are fixed in the store and are not configurable here.
package config

import (
	"time"

	"github.com/caarlos0/env/v7"
)

// Store holds the knobs the rule store leaves to the caller: where the
// backing SQLite file lives, whether to start fresh, and how long a
// lookup-cache entry survives before expiry.
type Store struct {
	// Path is a filesystem path, or ":memory:" for an in-memory database.
	// The store opens ":memory:" as a shared-cache in-memory database, so
	// every connection in its pool sees the same data.
	Path string `env:"ABP_STORE_PATH" envDefault:":memory:"`

	// Overwrite removes any existing file at Path before opening.
	Overwrite bool `env:"ABP_STORE_OVERWRITE" envDefault:"false"`

	// UseMemory forces a shared-cache in-memory database even when Path
	// names a file, useful for benchmarking without disk I/O.
	UseMemory bool `env:"ABP_STORE_USE_MEMORY" envDefault:"false"`

	// CacheTTL is the lookup cache's per-entry expiry.
	CacheTTL time.Duration `env:"ABP_STORE_CACHE_TTL" envDefault:"10m"`

	// MaxOpenConns bounds the reader connection pool so concurrent
	// lookups don't serialise behind a single handle.
	MaxOpenConns int `env:"ABP_STORE_MAX_OPEN_CONNS" envDefault:"10"`
}

// LoadStore reads Store configuration from the environment, applying the
// defaults above when a variable is unset.
func LoadStore() (Store, error) {
	cfg := Store{}
	if err := env.Parse(&cfg); err != nil {
		return Store{}, err
	}
	return cfg, nil
}
