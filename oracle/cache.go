package oracle

import (
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"

	"formautofill/models"
)

type cacheEntry struct {
	classification models.Classification
	expiresAt      time.Time
}

// ClassificationCache holds classifications keyed by a hash of the
// container's context and field summary. Expired entries are dropped on read.
type ClassificationCache struct {
	mu    sync.RWMutex
	items map[string]*cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewClassificationCache returns a cache whose entries live for ttl.
func NewClassificationCache(ttl time.Duration) *ClassificationCache {
	return &ClassificationCache{
		items: make(map[string]*cacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Key hashes the inputs that determine a classification.
func (c *ClassificationCache) Key(parts ...string) string {
	h := md5.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *ClassificationCache) Get(key string) (models.Classification, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return models.Classification{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return models.Classification{}, false
	}
	return entry.classification, true
}

func (c *ClassificationCache) Set(key string, cl models.Classification) {
	c.mu.Lock()
	c.items[key] = &cacheEntry{classification: cl, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Prune removes every expired entry and returns how many were dropped.
func (c *ClassificationCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

func (c *ClassificationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
