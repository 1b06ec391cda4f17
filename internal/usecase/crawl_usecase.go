package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/extractor"
	"github.com/newsfeed/crawler-service/internal/repository"
	"github.com/newsfeed/crawler-service/pkg/metrics"
	"go.uber.org/zap"
)

// ErrAlreadyPublished is returned when the job's article was stored and published earlier.
var ErrAlreadyPublished = errors.New("article already published")

// Outcome tells the worker pool what to do with a failed job.
type Outcome int

const (
	// Retryable failures are redelivered until the attempt budget runs out.
	Retryable Outcome = iota
	// Permanent failures go straight to the dead-letter store.
	Permanent
	// Dropped failures produced no article and are acknowledged without retry.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Retryable:
		return "retryable"
	case Permanent:
		return "permanent"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Classify maps a processing error to an Outcome.
func Classify(err error) Outcome {
	switch {
	case errors.Is(err, entity.ErrUnsupportedSource):
		return Permanent
	case errors.Is(err, ErrAlreadyPublished),
		errors.Is(err, entity.ErrDuplicateArticle),
		errors.Is(err, entity.ErrOracleOutput):
		return Dropped
	default:
		return Retryable
	}
}

// CrawlUseCase processes one crawl job: extract, persist, publish.
type CrawlUseCase struct {
	registry  *extractor.Registry
	articles  repository.ArticleRepository
	publisher repository.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewCrawlUseCase creates the crawl use case.
func NewCrawlUseCase(
	registry *extractor.Registry,
	articles repository.ArticleRepository,
	publisher repository.EventPublisher,
	logger *zap.Logger,
) *CrawlUseCase {
	return &CrawlUseCase{
		registry:  registry,
		articles:  articles,
		publisher: publisher,
		logger:    logger.Named("crawl"),
		now:       time.Now,
	}
}

// Process runs the pipeline for job. A stored but unpublished article is published
// without extracting it again.
func (uc *CrawlUseCase) Process(ctx context.Context, job *entity.CrawlJob) error {
	source, err := uc.registry.Match(job.URL)
	if err != nil {
		return err
	}

	existing, err := uc.articles.FindByURL(ctx, job.URL)
	switch {
	case err == nil:
		return uc.resume(ctx, existing)
	case !errors.Is(err, entity.ErrArticleNotFound):
		return fmt.Errorf("look up article: %w", err)
	}

	article, err := source.Extract(ctx, job.URL)
	if err != nil {
		return err
	}

	saved, err := uc.articles.Save(ctx, article)
	if errors.Is(err, entity.ErrDuplicateArticle) {
		// another delivery of the same URL stored it first
		existing, findErr := uc.articles.FindByURL(ctx, job.URL)
		if findErr != nil {
			return err
		}
		return uc.resume(ctx, existing)
	}
	if err != nil {
		return fmt.Errorf("save article: %w", err)
	}

	uc.logger.Info("article stored", zap.String("url", saved.URL), zap.String("id", saved.ID))
	return uc.publish(ctx, saved)
}

func (uc *CrawlUseCase) resume(ctx context.Context, article *entity.Article) error {
	if article.PublishedAt != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyPublished, article.URL)
	}
	uc.logger.Info("publishing previously stored article", zap.String("url", article.URL))
	return uc.publish(ctx, article)
}

func (uc *CrawlUseCase) publish(ctx context.Context, article *entity.Article) error {
	if err := uc.publisher.Publish(ctx, article); err != nil {
		return fmt.Errorf("publish article: %w", err)
	}
	metrics.ArticlesPublished.Inc()

	if err := uc.articles.MarkPublished(ctx, article.URL, uc.now()); err != nil {
		// a later delivery republishes, downstream tolerates duplicates
		uc.logger.Warn("failed to record publication", zap.String("url", article.URL), zap.Error(err))
	}
	return nil
}
