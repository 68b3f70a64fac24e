package tiles

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cache is the in-memory tile cache: TTL-bounded LRU storage with a
// single-flight guard so N concurrent requests for the same uncached
// tile trigger exactly one encode. Failed encodes are never stored.
type Cache struct {
	lru   *expirable.LRU[string, []byte]
	group singleflight.Group
}

// NewCache creates a tile cache holding up to size entries, each
// expiring after ttl.
func NewCache(size int, ttl time.Duration) *Cache {
	return &Cache{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

type flightResult struct {
	data []byte
	hit  bool
}

// GetOrEncode returns the cached payload for key, or runs encode once
// (per key, across concurrent callers) and caches its result. The
// second return is true only when the payload came out of the LRU,
// never for callers that merely shared an encoding flight.
func (c *Cache) GetOrEncode(key string, encode func() ([]byte, error)) ([]byte, bool, error) {
	if data, ok := c.lru.Get(key); ok {
		return data, true, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another flight may have populated the cache while this caller
		// waited on the singleflight lock.
		if data, ok := c.lru.Get(key); ok {
			return flightResult{data: data, hit: true}, nil
		}
		data, err := encode()
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, data)
		return flightResult{data: data}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(flightResult)
	return res.data, res.hit, nil
}

// InvalidateAll drops every cached tile. Called when a reprocessing
// batch completes.
func (c *Cache) InvalidateAll() {
	c.lru.Purge()
}

// Len returns the number of live cache entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
