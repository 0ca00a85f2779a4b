package store

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/abpcore/filterengine"
)

// lookupCache memoises GetFiltersForDomain results, keyed by (domain,
// want_whitelist). It is a thin typed wrapper over patrickmn/go-cache,
// one TTL cache per Store with absolute per-entry expiry, checked lazily:
// Get reports an expired entry as absent.
type lookupCache struct {
	c *gocache.Cache
}

func newLookupCache(ttl time.Duration) *lookupCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	// No background cleanup interval: expired entries are never swept on
	// a timer; Get treats them as absent until a Set or reset replaces them.
	return &lookupCache{c: gocache.New(ttl, gocache.NoExpiration)}
}

func cacheKey(domain string, wantWhitelist bool) string {
	return fmt.Sprintf("%s\x00%t", domain, wantWhitelist)
}

func (l *lookupCache) get(domain string, wantWhitelist bool) ([]*filterengine.UrlFilter, bool) {
	v, ok := l.c.Get(cacheKey(domain, wantWhitelist))
	if !ok {
		return nil, false
	}
	filters, ok := v.([]*filterengine.UrlFilter)
	return filters, ok
}

func (l *lookupCache) set(domain string, wantWhitelist bool, filters []*filterengine.UrlFilter) {
	l.c.Set(cacheKey(domain, wantWhitelist), filters, gocache.DefaultExpiration)
}

// reset drops every cached entry. Called on every ingest, since a bulk
// load can add or remove rows for any domain already cached.
func (l *lookupCache) reset() {
	l.c.Flush()
}
