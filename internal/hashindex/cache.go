package hashindex

import "github.com/hupe1980/voxfuse/model"

// Cache remembers the last resident block returned by FindCached.
// It is owned by a single worker and only valid while the table is not
// mutated; call Reset between phases.
type Cache struct {
	pos   model.BlockCoord
	ptr   int32
	valid bool
}

// Reset invalidates the cache.
func (c *Cache) Reset() {
	c.valid = false
}
