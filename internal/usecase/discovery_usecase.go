package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
	"github.com/newsfeed/crawler-service/pkg/metrics"
	"github.com/newsfeed/crawler-service/pkg/utils"
	"go.uber.org/zap"
)

// URLSource lists the article URLs currently published by one site.
type URLSource interface {
	Name() string
	Discover(ctx context.Context) ([]string, error)
}

// DiscoveryAggregator runs every source's discovery and merges the results.
type DiscoveryAggregator struct {
	sources []URLSource
	logger  *zap.Logger
}

// NewDiscoveryAggregator creates an aggregator over sources.
func NewDiscoveryAggregator(sources []URLSource, logger *zap.Logger) *DiscoveryAggregator {
	return &DiscoveryAggregator{sources: sources, logger: logger.Named("aggregator")}
}

// DiscoverAll queries all sources concurrently. A failing source is logged and skipped.
// The result holds each URL once; within a source, page order is kept.
func (a *DiscoveryAggregator) DiscoverAll(ctx context.Context) []string {
	results := make([][]string, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src URLSource) {
			defer wg.Done()

			urls, err := src.Discover(ctx)
			if err != nil {
				a.logger.Error("source discovery failed", zap.String("source", src.Name()), zap.Error(err))
				return
			}
			results[i] = urls
		}(i, src)
	}
	wg.Wait()

	var merged []string
	for _, urls := range results {
		merged = append(merged, urls...)
	}
	return utils.Dedupe(merged)
}

// CycleResult summarizes one discovery cycle.
type CycleResult struct {
	Discovered int
	New        int
	Enqueued   int
}

// DiscoveryUseCase turns discovered URLs into crawl jobs, once per dedup window.
type DiscoveryUseCase struct {
	aggregator *DiscoveryAggregator
	dedup      repository.DedupRepository
	queue      repository.QueueRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewDiscoveryUseCase creates the discovery use case.
func NewDiscoveryUseCase(
	aggregator *DiscoveryAggregator,
	dedup repository.DedupRepository,
	queue repository.QueueRepository,
	logger *zap.Logger,
) *DiscoveryUseCase {
	return &DiscoveryUseCase{
		aggregator: aggregator,
		dedup:      dedup,
		queue:      queue,
		logger:     logger.Named("discovery"),
		now:        time.Now,
	}
}

// RunCycle discovers, filters out known URLs, enqueues the rest and only then marks them.
func (uc *DiscoveryUseCase) RunCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	var result CycleResult

	urls := uc.aggregator.DiscoverAll(ctx)
	result.Discovered = len(urls)
	metrics.URLsDiscovered.WithLabelValues("discovered").Add(float64(len(urls)))

	fresh, err := uc.dedup.FilterNew(ctx, urls)
	if err != nil {
		metrics.DiscoveryCycles.WithLabelValues("failure").Inc()
		return result, fmt.Errorf("filter discovered urls: %w", err)
	}
	result.New = len(fresh)
	metrics.URLsDiscovered.WithLabelValues("new").Add(float64(len(fresh)))

	if len(fresh) > 0 {
		discoveredAt := uc.now()
		jobs := make([]entity.CrawlJob, len(fresh))
		for i, url := range fresh {
			jobs[i] = entity.NewCrawlJob(url, discoveredAt)
		}

		if err := uc.queue.Enqueue(ctx, jobs); err != nil {
			metrics.DiscoveryCycles.WithLabelValues("failure").Inc()
			return result, fmt.Errorf("enqueue jobs: %w", err)
		}
		result.Enqueued = len(jobs)

		if err := uc.dedup.MarkCrawled(ctx, fresh); err != nil {
			// jobs are queued; an unmarked URL may be admitted again next cycle
			uc.logger.Error("failed to mark enqueued urls", zap.Int("count", len(fresh)), zap.Error(err))
		}
	}

	metrics.DiscoveryCycles.WithLabelValues("success").Inc()
	uc.logger.Info("discovery cycle finished",
		zap.Int("discovered", result.Discovered),
		zap.Int("new", result.New),
		zap.Int("enqueued", result.Enqueued),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}
