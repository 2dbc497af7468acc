package etl

import (
	"crypto/md5"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"

	"github.com/oarkflow/hl7analyzer/pkg/parsers"
)

// parsed is the cached outcome of tokenizing one decoded message.
type parsed struct {
	segments []parsers.Segment
	details  parsers.Details
}

// ParseCache memoizes tokenization and rule extraction keyed by message text
// and variant. Cached values are shared and must not be modified.
type ParseCache struct {
	cache  *ristretto.Cache
	hits   int64
	misses int64
}

// NewParseCache creates a cache holding up to maxEntries parsed messages.
func NewParseCache(maxEntries int) (*ParseCache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("parse cache: size must be positive, got %d", maxEntries)
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        int64(maxEntries * 10),
		MaxCost:            int64(maxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("parse cache: %w", err)
	}
	return &ParseCache{cache: cache}, nil
}

func cacheKey(text string, v parsers.Variant) string {
	return fmt.Sprintf("%d:%x", v, md5.Sum([]byte(text)))
}

func (c *ParseCache) get(text string, v parsers.Variant) (parsed, bool) {
	if value, found := c.cache.Get(cacheKey(text, v)); found {
		if p, ok := value.(parsed); ok {
			atomic.AddInt64(&c.hits, 1)
			return p, true
		}
	}
	atomic.AddInt64(&c.misses, 1)
	return parsed{}, false
}

func (c *ParseCache) set(text string, v parsers.Variant, p parsed) {
	c.cache.Set(cacheKey(text, v), p, 1)
}

// Wait blocks until pending writes are visible to readers.
func (c *ParseCache) Wait() {
	c.cache.Wait()
}

// Stats returns the hit and miss counts.
func (c *ParseCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Close releases the cache goroutines.
func (c *ParseCache) Close() {
	c.cache.Close()
}

// parse tokenizes text and applies the rules of v, consulting c when set.
func (c *ParseCache) parse(text string, v parsers.Variant) parsed {
	if c != nil {
		if p, ok := c.get(text, v); ok {
			return p
		}
	}
	p := parsed{
		segments: parsers.Tokenize(text),
		details:  parsers.ParseDetails(text, v),
	}
	if c != nil {
		c.set(text, v, p)
	}
	return p
}
