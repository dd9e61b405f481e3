// Package cache holds fetched page content for the HTTP backend so that
// repeated visits to the same listing page within one run skip the network.
package cache

import (
	"sync"
	"time"

	"github.com/law-makers/eventcrawl/pkg/models"
)

// Cache is the page cache contract used by the HTTP fetch backend
type Cache interface {
	// Get retrieves cached page content by URL
	Get(url string) (*models.PageContent, bool)

	// Set stores page content with the given TTL
	Set(url string, page *models.PageContent, ttl time.Duration)

	// Clear removes all cached entries
	Clear()
}

type entry struct {
	page      *models.PageContent
	expiresAt time.Time
}

// MemoryCache is a TTL-based in-memory page cache. Scrape runs touch a
// bounded set of URLs, so expired entries are reaped lazily on access.
type MemoryCache struct {
	store map[string]entry
	mu    sync.RWMutex
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{store: make(map[string]entry)}
}

// Get retrieves cached page content, dropping it if expired
func (c *MemoryCache) Get(url string) (*models.PageContent, bool) {
	c.mu.RLock()
	e, ok := c.store[url]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.store, url)
		c.mu.Unlock()
		return nil, false
	}
	return e.page, true
}

// Set stores page content under the URL with the given TTL
func (c *MemoryCache) Set(url string, page *models.PageContent, ttl time.Duration) {
	if ttl <= 0 || page == nil {
		return
	}
	c.mu.Lock()
	c.store[url] = entry{page: page, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Clear removes all cached entries
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.store = make(map[string]entry)
	c.mu.Unlock()
}
