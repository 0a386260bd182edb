package api

import (
	"sync"

	"github.com/signalscope/signalscope/pkg/scoring"
)

// RecordCache is a thread-safe LRU cache of live score records keyed by
// entity ID.
type RecordCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*scoring.CompositeScoreRecord
	order   []string // oldest first
}

// NewRecordCache creates a cache with the given maximum number of entries.
// If maxSize <= 0, it defaults to 1024.
func NewRecordCache(maxSize int) *RecordCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &RecordCache{
		maxSize: maxSize,
		entries: make(map[string]*scoring.CompositeScoreRecord),
	}
}

// Get returns the cached live record for entityID, or nil.
func (c *RecordCache) Get(entityID string) *scoring.CompositeScoreRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.entries[entityID]
	if !ok {
		return nil
	}
	c.moveToEnd(entityID)
	return rec
}

// Put caches rec as the live record for its entity, evicting the least
// recently used entry if full.
func (c *RecordCache) Put(rec *scoring.CompositeScoreRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := rec.EntityID
	if _, ok := c.entries[id]; ok {
		c.entries[id] = rec
		c.moveToEnd(id)
		return
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[id] = rec
	c.order = append(c.order, id)
}

// Invalidate drops the cached record for each entity.
func (c *RecordCache) Invalidate(entityIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range entityIDs {
		if _, ok := c.entries[id]; !ok {
			continue
		}
		delete(c.entries, id)
		for i, k := range c.order {
			if k == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// Evict drops the cached record for rec's entity once a newer live record
// has been saved. It has the shape ingestion.WithOnScored expects.
func (c *RecordCache) Evict(rec *scoring.CompositeScoreRecord) {
	c.Invalidate(rec.EntityID)
}

// Len reports the number of cached records.
func (c *RecordCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *RecordCache) moveToEnd(id string) {
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, id)
			return
		}
	}
}
