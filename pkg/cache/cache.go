// Package cache keeps serialized responses keyed by endpoint and request.
// Entries are only valid for one data version; the whole cache is purged
// when a new snapshot is published.
package cache

import (
	"encoding/json"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nasasaki/LAPIS/logger"
	"go.uber.org/zap"
)

type ResultCache struct {
	entries *lru.Cache[string, []byte]
	version atomic.Int64
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns nil for size <= 0; a nil *ResultCache is a valid, disabled cache.
func New(size int) (*ResultCache, error) {
	if size <= 0 {
		return nil, nil
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &ResultCache{entries: entries}, nil
}

// Key builds the cache key of a request. req is marshalled as JSON, so
// struct field order makes it canonical.
func Key(endpoint string, req any) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return endpoint + "\x00" + string(b), nil
}

func (c *ResultCache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

func (c *ResultCache) Put(key string, body []byte) {
	if c == nil {
		return
	}
	c.entries.Add(key, body)
}

// Invalidate drops everything if version differs from the one the cache
// was filled for. Meant to be hooked on snapshot publication.
func (c *ResultCache) Invalidate(version int64) {
	if c == nil {
		return
	}
	if old := c.version.Swap(version); old != version {
		n := c.entries.Len()
		c.entries.Purge()
		logger.Info("Result cache purged",
			zap.Int64("from_version", old),
			zap.Int64("to_version", version),
			zap.Int("entries", n),
		)
	}
}

type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

func (c *ResultCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{Entries: c.entries.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}
