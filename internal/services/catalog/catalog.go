package catalog

import (
	"time"

	"github.com/or-gateway-go/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Service defines model catalog cache operations
type Service interface {
	GetSnapshot() (*models.CatalogSnapshot, bool)
	SetSnapshot(entries []models.ModelRecord) *models.CatalogSnapshot
	Lookup(modelID string) (*models.ModelRecord, bool)
	Validate(modelID string) bool
	Invalidate()
}

// snapshotKey is the single well-known key: the catalog is cached
// wholesale, never per model.
const snapshotKey = "catalog"

// Cache implements a time-expiring single-snapshot catalog cache
type Cache struct {
	cache  *cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCache creates a new catalog cache
func NewCache(ttl time.Duration, logger *logrus.Logger) Service {
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Cache{
		cache:  cache.New(ttl, ttl*2),
		ttl:    ttl,
		logger: logger,
	}
}

// GetSnapshot returns the current snapshot only while it is within TTL
func (c *Cache) GetSnapshot() (*models.CatalogSnapshot, bool) {
	val, found := c.cache.Get(snapshotKey)
	if !found {
		return nil, false
	}

	snapshot := val.(*models.CatalogSnapshot)
	if time.Since(snapshot.FetchedAt) > c.ttl {
		// go-cache expiry is lazy enough that a stale entry can still be
		// visible; an expired snapshot must behave as absent
		c.cache.Delete(snapshotKey)
		return nil, false
	}

	return snapshot, true
}

// SetSnapshot replaces the snapshot wholesale with the given entries
func (c *Cache) SetSnapshot(entries []models.ModelRecord) *models.CatalogSnapshot {
	snapshot := &models.CatalogSnapshot{
		Entries:   entries,
		FetchedAt: time.Now(),
	}

	c.cache.Set(snapshotKey, snapshot, c.ttl)
	c.logger.WithField("models", len(entries)).Debug("Catalog snapshot replaced")

	return snapshot
}

// Lookup scans the valid snapshot for a model by id
func (c *Cache) Lookup(modelID string) (*models.ModelRecord, bool) {
	snapshot, ok := c.GetSnapshot()
	if !ok {
		return nil, false
	}

	for i := range snapshot.Entries {
		if snapshot.Entries[i].ID == modelID {
			return &snapshot.Entries[i], true
		}
	}

	return nil, false
}

// Validate reports whether a model id exists in the valid snapshot
func (c *Cache) Validate(modelID string) bool {
	_, ok := c.Lookup(modelID)
	return ok
}

// Invalidate forces the next GetSnapshot to report absent
func (c *Cache) Invalidate() {
	c.cache.Delete(snapshotKey)
	c.logger.Info("Catalog snapshot invalidated")
}
