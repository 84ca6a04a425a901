package cache

import (
	"sync"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// ReceptionistCache provides a thread-safe slug-keyed cache of active
// receptionist records for the public lookup path. Entries expire after a
// short TTL; provisioning invalidates affected slugs eagerly so stale entries
// are a bounded visitor-facing artifact, never an admin-facing one.
type ReceptionistCache struct {
	entries map[string]*cacheEntry
	ttl     time.Duration
	mutex   sync.RWMutex
	clock   func() time.Time
}

type cacheEntry struct {
	receptionist *domain.Receptionist
	expiresAt    time.Time
}

// NewReceptionistCache creates a cache with the given entry TTL.
func NewReceptionistCache(ttl time.Duration) *ReceptionistCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ReceptionistCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		clock:   time.Now,
	}
}

// Get returns a copy of the cached record for slug, if present and fresh.
func (c *ReceptionistCache) Get(slug string) (*domain.Receptionist, bool) {
	c.mutex.RLock()
	entry, ok := c.entries[slug]
	c.mutex.RUnlock()

	if !ok || c.clock().After(entry.expiresAt) {
		return nil, false
	}

	return c.copyReceptionist(entry.receptionist), true
}

// Put stores a copy of the record under its slug.
func (c *ReceptionistCache) Put(receptionist *domain.Receptionist) {
	if receptionist == nil {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[receptionist.Slug] = &cacheEntry{
		receptionist: c.copyReceptionist(receptionist),
		expiresAt:    c.clock().Add(c.ttl),
	}
}

// Invalidate removes the entry for slug.
func (c *ReceptionistCache) Invalidate(slug string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.entries[slug]; ok {
		delete(c.entries, slug)
		logger.Base().Debug("invalidated cached receptionist", zap.String("slug", slug))
	}
}

// Len returns the number of stored entries, fresh or expired.
func (c *ReceptionistCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// copyReceptionist deep-copies a record so callers can never mutate cache
// state through a returned pointer.
func (c *ReceptionistCache) copyReceptionist(receptionist *domain.Receptionist) *domain.Receptionist {
	copied := &domain.Receptionist{}
	if err := copier.CopyWithOption(copied, receptionist, copier.Option{DeepCopy: true}); err != nil {
		logger.Base().Warn("failed to copy receptionist, returning original", zap.Error(err))
		return receptionist
	}
	return copied
}
