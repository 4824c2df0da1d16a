package planstore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldline/assistant/internal/domain"
	store "github.com/fieldline/assistant/internal/repository"
)

// Store is the two-tier pending plan store. Writes land in the cache and
// the durable store; reads prefer the cache and fall back to the database
// so pending plans survive a process restart.
type Store struct {
	cache *Cache
	db    store.Store
	ttl   time.Duration
	log   *zap.SugaredLogger
}

func New(db store.Store, ttl time.Duration, log *zap.SugaredLogger) *Store {
	return &Store{
		cache: NewCache(),
		db:    db,
		ttl:   ttl,
		log:   log,
	}
}

// StorePending records a proposed plan awaiting a decision. A durable write
// failure is logged but does not fail the turn; the cached copy keeps the
// approval flow working for the life of the process, flagged cache-only so
// Resolve knows the cache claim is the only claim for it.
func (s *Store) StorePending(ctx context.Context, rec *domain.PendingPlanRecord) {
	cacheOnly := false
	if err := s.db.CreatePendingPlan(ctx, rec); err != nil {
		cacheOnly = true
		s.log.Warnw("persist pending plan failed, cache only",
			"plan_id", rec.Plan.PlanID, "error", err)
	}
	s.cache.Put(rec, cacheOnly)
}

// GetPending looks a pending plan up by id.
func (s *Store) GetPending(ctx context.Context, planID string) (*domain.PendingPlanRecord, error) {
	if rec, _ := s.cache.Get(planID); rec != nil {
		return rec, nil
	}
	rec, err := s.db.GetPendingPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("get pending plan: %w", err)
	}
	if rec != nil {
		s.cache.Put(rec, false)
	}
	return rec, nil
}

// MostRecentPending returns the newest pending plan for the user, or nil.
func (s *Store) MostRecentPending(ctx context.Context, ownerUserID string) (*domain.PendingPlanRecord, error) {
	cached := s.cache.MostRecent(ownerUserID)
	fromDB, err := s.db.GetMostRecentPendingPlan(ctx, ownerUserID)
	if err != nil {
		if cached != nil {
			return cached, nil
		}
		return nil, fmt.Errorf("get most recent pending plan: %w", err)
	}
	if fromDB == nil {
		return cached, nil
	}
	if cached == nil || fromDB.CreatedAt.After(cached.CreatedAt) {
		s.cache.Put(fromDB, false)
		return fromDB, nil
	}
	return cached, nil
}

// Resolve atomically claims a pending plan for a decision and removes it
// from both tiers. Exactly one caller wins for a given plan id; everyone
// else gets ErrPlanNotFound. Only the plan's owner may claim it, and a
// foreign id leaves the plan pending for its owner.
func (s *Store) Resolve(ctx context.Context, planID, ownerUserID string) (*domain.PendingPlanRecord, error) {
	rec, cacheOnly := s.cache.Get(planID)
	if rec == nil {
		var err error
		rec, err = s.db.GetPendingPlan(ctx, planID)
		if err != nil {
			// With the durable tier down, a plan absent from the cache is
			// unresolvable either way.
			s.log.Warnw("durable plan lookup failed", "plan_id", planID, "error", err)
			return nil, domain.ErrPlanNotFound
		}
	}
	if rec == nil || rec.OwnerUserID != ownerUserID {
		return nil, domain.ErrPlanNotFound
	}

	if cacheOnly {
		// The durable tier never saw this plan, so the cache removal is the
		// claim.
		if !s.cache.Remove(planID, ownerUserID) {
			return nil, domain.ErrPlanNotFound
		}
		return rec, nil
	}

	// The durable delete is the claim: RowsAffected decides the winner. The
	// losing caller must not fall back to the cache copy, or two approvals
	// racing on one plan would both execute it.
	claimed, err := s.db.DeletePendingPlan(ctx, planID, ownerUserID)
	if err != nil {
		// Durable tier unavailable: fall back to cache exclusivity.
		s.log.Warnw("durable plan claim failed, using cache claim",
			"plan_id", planID, "error", err)
		if !s.cache.Remove(planID, ownerUserID) {
			return nil, domain.ErrPlanNotFound
		}
		return rec, nil
	}
	if !claimed {
		return nil, domain.ErrPlanNotFound
	}
	s.cache.Remove(planID, ownerUserID)
	return rec, nil
}

// Cleanup drops pending plans older than the TTL from both tiers.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.ttl)
	s.cache.RemoveExpired(cutoff)
	removed, err := s.db.DeleteExpiredPendingPlans(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired pending plans: %w", err)
	}
	return removed, nil
}

// TTL reports the configured pending plan lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}
