package cache

import (
	"sync"
	"time"

	"github.com/briefwire/briefwire/internal/models"
)

// Cache holds the latest article snapshot plus a record of which articles
// already went out in digests, so repeated refreshes never resend a story
// within the retention window.
type Cache struct {
	mu            sync.RWMutex
	articles      []models.Article
	updatedAt     time.Time
	pushed        map[string]time.Time
	retention     time.Duration
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
}

func New(retention time.Duration) *Cache {
	c := &Cache{
		pushed:    make(map[string]time.Time),
		retention: retention,
		stopChan:  make(chan struct{}),
	}

	c.cleanupTicker = time.NewTicker(1 * time.Hour)
	go c.cleanup()

	return c
}

// ReplaceAll swaps in a freshly built snapshot.
func (c *Cache) ReplaceAll(articles []models.Article) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.articles = make([]models.Article, len(articles))
	copy(c.articles, articles)
	c.updatedAt = time.Now()
}

// Articles returns a copy of the current snapshot.
func (c *Cache) Articles() []models.Article {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Article, len(c.articles))
	copy(out, c.articles)
	return out
}

func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.articles)
}

func (c *Cache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

func (c *Cache) MarkPushed(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushed[key] = time.Now()
}

func (c *Cache) WasPushed(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.pushed[key]
	return exists
}

func (c *Cache) cleanup() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.performCleanup()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Cache) performCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.retention)
	for key, pushedAt := range c.pushed {
		if pushedAt.Before(cutoff) {
			delete(c.pushed, key)
		}
	}
}

func (c *Cache) Close() {
	c.cleanupTicker.Stop()
	close(c.stopChan)
}

func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"articles":   len(c.articles),
		"pushed":     len(c.pushed),
		"retention":  c.retention.String(),
		"updated_at": c.updatedAt,
	}
}
