package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JustJay7/ojv-scraper/internal/scraper"
	"github.com/patrickmn/go-cache"
)

// Cache holds recent search results keyed by competency and role.
type Cache interface {
	Get(key string) ([]scraper.CaseSummary, bool)
	Set(key string, value []scraper.CaseSummary)
	Delete(key string)
	Clear()
	Stats() CacheStats
}

type CacheStats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Size       int       `json:"size"`
	LastAccess time.Time `json:"last_access"`
}

type LRUCache struct {
	cache   *cache.Cache
	mu      sync.RWMutex
	stats   CacheStats
	maxSize int
}

func NewCache(maxSize int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		cache:   cache.New(ttl, ttl*2),
		maxSize: maxSize,
	}
}

func (c *LRUCache) Get(key string) ([]scraper.CaseSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.LastAccess = time.Now()

	if data, found := c.cache.Get(key); found {
		if results, ok := data.([]scraper.CaseSummary); ok {
			c.stats.Hits++
			return append([]scraper.CaseSummary(nil), results...), true
		}
	}

	c.stats.Misses++
	return nil, false
}

// Set stores a copy of value. Empty results are not cached so a transient
// portal failure is retried on the next request.
func (c *LRUCache) Set(key string, value []scraper.CaseSummary) {
	if len(value) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache.Get(key); !exists && c.cache.ItemCount() >= c.maxSize {
		c.removeOldest()
	}

	c.cache.Set(key, append([]scraper.CaseSummary(nil), value...), cache.DefaultExpiration)
}

func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Delete(key)
}

func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Flush()
	c.stats = CacheStats{}
}

func (c *LRUCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.Size = c.cache.ItemCount()
	return stats
}

// removeOldest evicts the entry closest to expiry, which is the one written
// first since every entry shares the same TTL.
func (c *LRUCache) removeOldest() {
	var (
		oldestKey string
		oldest    int64
	)
	for key, item := range c.cache.Items() {
		if oldestKey == "" || item.Expiration < oldest {
			oldestKey = key
			oldest = item.Expiration
		}
	}

	if oldestKey != "" {
		c.cache.Delete(oldestKey)
	}
}

func GenerateCacheKey(c scraper.Competency, role string) string {
	return fmt.Sprintf("search:%s:%s", c, strings.TrimSpace(role))
}
