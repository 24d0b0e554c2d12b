package application

import (
	"sync"
	"time"
)

// sentCache remembers recently emitted delivery tags so re-entrant or
// overlapping scan invocations cannot double-send the same reminder.
type sentCache struct {
	mu         sync.Mutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]time.Time
}

func newSentCache(ttl time.Duration, maxEntries int, now func() time.Time) *sentCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	if now == nil {
		now = time.Now
	}
	return &sentCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]time.Time),
	}
}

// MarkSent records the tag and reports whether this caller is the first to
// send it within the TTL.
func (c *sentCache) MarkSent(tag string) bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	reference := c.now()
	if expiry, ok := c.entries[tag]; ok && reference.Before(expiry) {
		return false
	}

	c.cleanupLocked(reference)
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[tag] = reference.Add(c.ttl)
	return true
}

func (c *sentCache) cleanupLocked(reference time.Time) {
	for tag, expiry := range c.entries {
		if !reference.Before(expiry) {
			delete(c.entries, tag)
		}
	}
}

func (c *sentCache) evictOneLocked() {
	var oldestTag string
	var oldestExpiry time.Time
	for tag, expiry := range c.entries {
		if oldestTag == "" || expiry.Before(oldestExpiry) {
			oldestTag = tag
			oldestExpiry = expiry
		}
	}
	if oldestTag != "" {
		delete(c.entries, oldestTag)
	}
}
