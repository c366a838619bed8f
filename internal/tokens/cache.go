// Package tokens keeps the API keys accepted by the service in memory.
package tokens

import (
	"errors"
	"sync"
)

var (
	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrTokenStoreNotReady signals that the token store has not been loaded yet.
	// This can happen during startup when the DB isn't ready.
	ErrTokenStoreNotReady = errors.New("token store not ready")
	// ErrScopeDenied signals a known key that may not use the requested API.
	ErrScopeDenied = errors.New("api key not allowed for this scope")
)

// ScopePDF grants access to the PDF generation routes.
const ScopePDF = "pdf"

// Scope is the set of APIs a token may call.
type Scope map[string]bool

// Allows reports whether s grants name. An empty scope grants everything.
func (s Scope) Allows(name string) bool {
	if len(s) == 0 {
		return true
	}
	return s[name] || s["*"]
}

// Entry is a token's configuration.
type Entry struct {
	// RateLimit is the number of requests per limiter interval; 0 disables the token limiter.
	RateLimit int
	Scope     Scope
}

// Cache is a concurrency-safe token table. The zero value is not ready.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps the whole table.
func (c *Cache) Replace(m map[string]Entry) {
	entries := make(map[string]Entry, len(m))
	for k, v := range m {
		entries[k] = v
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Ready returns true if the cache has been loaded at least once.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries != nil
}

// Authorize checks that token is known and allowed to use scope.
func (c *Cache) Authorize(token, scope string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entries == nil {
		return ErrTokenStoreNotReady
	}
	e, ok := c.entries[token]
	if !ok {
		return ErrInvalidAPIKey
	}
	if !e.Scope.Allows(scope) {
		return ErrScopeDenied
	}
	return nil
}

// RateLimit returns the configured limit for token, or 0 if the token is unknown.
func (c *Cache) RateLimit(token string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[token].RateLimit
}

// Len returns the number of loaded tokens.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
