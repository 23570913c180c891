package service

import (
	"context"
	"log"
	"sync"
	"time"

	"funnel-analytics-service/internal/cache"
	"funnel-analytics-service/internal/config"
	"funnel-analytics-service/internal/repository"
)

// MetadataWorker keeps the event-type metadata cache warm in the
// background so requests rarely pay the discovery query.
type MetadataWorker interface {
	Shutdown()
}

type metadataWorker struct {
	repo     repository.FunnelRepository
	cache    *cache.MetadataCache
	cfg      *config.Config
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewMetadataWorker starts the refresh loop immediately.
func NewMetadataWorker(repo repository.FunnelRepository, metaCache *cache.MetadataCache, cfg *config.Config) MetadataWorker {
	w := &metadataWorker{
		repo:     repo,
		cache:    metaCache,
		cfg:      cfg,
		interval: cfg.MetadataRefresh,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.startLoop()
	return w
}

// Shutdown stops the loop and waits for an in-flight refresh to finish.
func (w *metadataWorker) Shutdown() {
	close(w.done)
	w.wg.Wait()
	log.Println("metadata worker stopped")
}

func (w *metadataWorker) startLoop() {
	defer w.wg.Done()

	// Refreshes run under a context cancelled on shutdown, so Shutdown
	// never waits out an in-flight discovery query.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-w.done
		cancel()
	}()

	// Warm the cache before the first tick.
	RefreshEventTypes(ctx, w.repo, w.cache, w.cfg)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			RefreshEventTypes(ctx, w.repo, w.cache, w.cfg)
		}
	}
}
