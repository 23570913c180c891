package service

import (
	"context"
	"log"

	"funnel-analytics-service/internal/cache"
	"funnel-analytics-service/internal/config"
	"funnel-analytics-service/internal/model"
	"funnel-analytics-service/internal/repository"
)

const eventTypesCacheKey = "event_types"

// MetadataService serves discovered event-type metadata from a TTL cache,
// refreshing from the store on miss. Slightly stale values are fine; this
// feeds the ad-hoc funnel builder, not the funnel math.
type MetadataService interface {
	DiscoverEventTypes(ctx context.Context) ([]model.EventTypeInfo, error)
}

type metadataService struct {
	repo  repository.FunnelRepository
	cache *cache.MetadataCache
	cfg   *config.Config
}

// NewMetadataService constructs a metadataService.
func NewMetadataService(repo repository.FunnelRepository, metaCache *cache.MetadataCache, cfg *config.Config) MetadataService {
	return &metadataService{repo: repo, cache: metaCache, cfg: cfg}
}

func (s *metadataService) DiscoverEventTypes(ctx context.Context) ([]model.EventTypeInfo, error) {
	if cached, ok := s.cache.Get(eventTypesCacheKey); ok {
		return cached, nil
	}

	qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	types, err := s.repo.ListEventTypes(qctx, s.cfg.MetadataSampleDays)
	if err != nil {
		// Serve the expired value if one exists rather than failing the
		// builder UI.
		if stale, ok := s.cache.GetStale(eventTypesCacheKey); ok {
			return stale, nil
		}
		return nil, &StoreError{Op: "event type discovery", Err: err}
	}

	s.cache.Set(eventTypesCacheKey, types)
	return types, nil
}

// RefreshEventTypes forces a cache refresh. Called by the background
// worker.
func RefreshEventTypes(ctx context.Context, repo repository.FunnelRepository, metaCache *cache.MetadataCache, cfg *config.Config) {
	qctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()

	types, err := repo.ListEventTypes(qctx, cfg.MetadataSampleDays)
	if err != nil {
		log.Printf("[WARN] metadata refresh failed, keeping cached value: %v", err)
		return
	}
	metaCache.Set(eventTypesCacheKey, types)
}
