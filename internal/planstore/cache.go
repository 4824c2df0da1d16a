package planstore

import (
	"sync"
	"time"

	"github.com/fieldline/assistant/internal/domain"
)

// Cache holds pending plans in memory for fast lookup between the proposal
// turn and the approval turn. The durable store remains authoritative,
// except for entries flagged cache-only: those never reached the durable
// tier, so the cache claim is their only claim.
type cacheEntry struct {
	rec       *domain.PendingPlanRecord
	cacheOnly bool
}

type Cache struct {
	mu   sync.Mutex
	byID map[string]cacheEntry
}

func NewCache() *Cache {
	return &Cache{byID: make(map[string]cacheEntry)}
}

func (c *Cache) Put(rec *domain.PendingPlanRecord, cacheOnly bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[rec.Plan.PlanID] = cacheEntry{rec: rec, cacheOnly: cacheOnly}
}

// Get returns the cached record and whether it exists only in the cache.
func (c *Cache) Get(planID string) (*domain.PendingPlanRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[planID]
	if !ok {
		return nil, false
	}
	return e.rec, e.cacheOnly
}

// MostRecent returns the newest pending plan owned by the user, or nil.
func (c *Cache) MostRecent(ownerUserID string) *domain.PendingPlanRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *domain.PendingPlanRecord
	for _, e := range c.byID {
		if e.rec.OwnerUserID != ownerUserID {
			continue
		}
		if best == nil || e.rec.CreatedAt.After(best.CreatedAt) ||
			(e.rec.CreatedAt.Equal(best.CreatedAt) && e.rec.Plan.PlanID > best.Plan.PlanID) {
			best = e.rec
		}
	}
	return best
}

// Remove deletes the plan and reports whether this call removed it. At most
// one caller observes true for a given plan id, and only the plan's owner
// can remove it.
func (c *Cache) Remove(planID, ownerUserID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[planID]
	if !ok || e.rec.OwnerUserID != ownerUserID {
		return false
	}
	delete(c.byID, planID)
	return true
}

// RemoveExpired drops plans created before the cutoff and returns how many
// were dropped.
func (c *Cache) RemoveExpired(olderThan time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, e := range c.byID {
		if e.rec.CreatedAt.Before(olderThan) {
			delete(c.byID, id)
			removed++
		}
	}
	return removed
}
