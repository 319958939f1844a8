package judge

import "sync"

const maxCacheEntries = 32

// assessmentCache is a small thread-safe FIFO cache of engine assessments,
// keyed by the sample digest. It keeps repeated submissions of the same
// sample from hitting the engine again within a process lifetime.
type assessmentCache struct {
	mu      sync.RWMutex
	entries map[string]*Assessment
	order   []string
}

func newAssessmentCache() *assessmentCache {
	return &assessmentCache{
		entries: make(map[string]*Assessment),
	}
}

func (c *assessmentCache) Get(key string) (*Assessment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.entries[key]
	return a, ok
}

// Put stores an assessment, evicting the oldest entry at capacity.
func (c *assessmentCache) Put(key string, a *Assessment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = a
		return
	}

	if len(c.entries) >= maxCacheEntries && len(c.order) > 0 {
		oldest := c.order[0]
		delete(c.entries, oldest)
		c.order = c.order[1:]
	}

	c.entries[key] = a
	c.order = append(c.order, key)
}
