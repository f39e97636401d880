// Package adapters holds thin clients for the external services the
// assistant talks to: mail, source control, calendar and file storage.
// Every adapter returns plain []map[string]any records and wraps failures
// in *APIError so the dispatcher can label them uniformly.
package adapters

import (
	"fmt"
	"time"
)

// APIError marks a failure in a named external service.
type APIError struct {
	Service string
	Err     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func apiError(service string, format string, args ...any) error {
	return &APIError{Service: service, Err: fmt.Errorf(format, args...)}
}

const defaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	value   any
	expires time.Time
}

// cache is a small TTL cache. Adapters are accessed from a single
// goroutine at a time, so there is no locking.
type cache struct {
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newCache(ttl time.Duration) *cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &cache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *cache) get(key string) (any, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *cache) put(key string, value any) {
	c.entries[key] = cacheEntry{value: value, expires: time.Now().Add(c.ttl)}
}
