// Package rowcache implements RowCache: a bounded, access-ordered map from
// row-id to decoded schema.Row. It is owned by a single HashTable instance
// and is not safe for concurrent use.
package rowcache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/flintdb/flintdb/internal/schema"
)

// RowCache is the eldest-on-overflow row cache. A size of 0 or 1 is a
// documented no-op cache: every Get misses and every Put/Invalidate is
// ignored.
type RowCache struct {
	lru *lru.Cache[int64, schema.Row]
}

// New builds a RowCache of the given capacity.
func New(size int) *RowCache {
	if size <= 1 {
		return &RowCache{}
	}

	c, err := lru.New[int64, schema.Row](size)
	if err != nil {
		// size > 1 here, so lru.New only fails on a negative/zero size,
		// which is already excluded above.
		return &RowCache{}
	}

	return &RowCache{lru: c}
}

// Get returns the cached row for id, if present.
func (c *RowCache) Get(id int64) (schema.Row, bool) {
	if c.lru == nil {
		return schema.Row{}, false
	}

	return c.lru.Get(id)
}

// Put stores row under id, evicting the eldest entry if at capacity.
func (c *RowCache) Put(id int64, row schema.Row) {
	if c.lru == nil {
		return
	}

	c.lru.Add(id, row)
}

// Invalidate removes id's cached entry, if any.
func (c *RowCache) Invalidate(id int64) {
	if c.lru == nil {
		return
	}

	c.lru.Remove(id)
}

// Len reports the number of cached entries.
func (c *RowCache) Len() int {
	if c.lru == nil {
		return 0
	}

	return c.lru.Len()
}
