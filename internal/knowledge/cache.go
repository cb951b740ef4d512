package knowledge

import (
	"sync"

	"github.com/hongianguyen/IndochinaPro/internal/model"
)

// Cache holds the loaded aggregate for one hub. It is an explicit object
// rather than package state so tests can run isolated hubs side by side.
type Cache struct {
	mu    sync.RWMutex
	value *model.StructuredKnowledge
}

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) get() (*model.StructuredKnowledge, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == nil {
		return nil, false
	}
	return c.value, true
}

func (c *Cache) set(value *model.StructuredKnowledge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
}

// Invalidate drops the cached aggregate; the next load re-fetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
}
