package stats

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobtracker-backend/internal/applications"
	"jobtracker-backend/internal/shared/cache"
	"jobtracker-backend/internal/shared/metrics"
	"jobtracker-backend/internal/shared/telemetry"
)

// DefaultTTL bounds how stale a cached overview can be.
const DefaultTTL = 60 * time.Second

// Counter tallies an owner's applications by status.
type Counter interface {
	CountByStatus(ctx context.Context, ownerID string) (applications.StatusCounts, error)
}

// Overview is the per-owner summary of applications.
type Overview struct {
	Total           int            `json:"total"`
	StatusBreakdown map[string]int `json:"statusBreakdown"`
}

// Service computes overviews, caching them per owner.
type Service struct {
	Counts Counter
	Cache  cache.JSONCache
	TTL    time.Duration
}

func cacheKey(ownerID string) string {
	return "stats:overview:" + ownerID
}

// generationKey holds a token replaced on every invalidation. A computation
// only caches its result when the token is unchanged since it began counting.
func generationKey(ownerID string) string {
	return "stats:generation:" + ownerID
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultTTL
	}
	return s.TTL
}

func (s *Service) generation(ctx context.Context, ownerID string) string {
	var gen string
	if _, err := s.Cache.GetJSON(ctx, generationKey(ownerID), &gen); err != nil {
		telemetry.Warn("stats.cache_read_failed", map[string]any{"owner_id": ownerID, "error": err.Error()})
	}
	return gen
}

// Overview returns total and per-status counts for the owner. Every known
// status appears in the breakdown, zero when unused.
func (s *Service) Overview(ctx context.Context, ownerID string) (Overview, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Overview{}, applications.ErrInvalidInput
	}
	if s.Cache != nil {
		var cached Overview
		ok, err := s.Cache.GetJSON(ctx, cacheKey(ownerID), &cached)
		if err != nil {
			telemetry.Warn("stats.cache_read_failed", map[string]any{"owner_id": ownerID, "error": err.Error()})
		}
		if ok {
			metrics.IncStatsCacheHit()
			return cached, nil
		}
	}
	metrics.IncStatsCacheMiss()
	return s.compute(ctx, ownerID)
}

// Refresh recomputes the owner's overview and stores it in the cache.
func (s *Service) Refresh(ctx context.Context, ownerID string) (Overview, error) {
	return s.compute(ctx, ownerID)
}

// Invalidate drops the owner's cached overview. Failures are logged; the TTL
// bounds staleness.
func (s *Service) Invalidate(ctx context.Context, ownerID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.SetJSON(ctx, generationKey(ownerID), uuid.NewString(), s.ttl()); err != nil {
		telemetry.Warn("stats.cache_invalidate_failed", map[string]any{"owner_id": ownerID, "error": err.Error()})
	}
	if err := s.Cache.Del(ctx, cacheKey(ownerID)); err != nil {
		telemetry.Warn("stats.cache_invalidate_failed", map[string]any{"owner_id": ownerID, "error": err.Error()})
	}
}

func (s *Service) compute(ctx context.Context, ownerID string) (Overview, error) {
	var gen string
	if s.Cache != nil {
		gen = s.generation(ctx, ownerID)
	}
	counts, err := s.Counts.CountByStatus(ctx, ownerID)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{
		Total:           counts.Total,
		StatusBreakdown: make(map[string]int, len(applications.Statuses)),
	}
	for _, st := range applications.Statuses {
		out.StatusBreakdown[string(st)] = counts.ByStatus[st]
	}

	if s.Cache != nil {
		if s.generation(ctx, ownerID) != gen {
			return out, nil
		}
		if err := s.Cache.SetJSON(ctx, cacheKey(ownerID), out, s.ttl()); err != nil {
			telemetry.Warn("stats.cache_write_failed", map[string]any{"owner_id": ownerID, "error": err.Error()})
		}
	}
	return out, nil
}
