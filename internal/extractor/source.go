package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
	"github.com/newsfeed/crawler-service/pkg/metrics"
	"go.uber.org/zap"
)

const (
	modeDiscovery = "discovery"
	modeContent   = "content"

	defaultPageTimeout   = 30 * time.Second
	defaultAnchorTimeout = 10 * time.Second
)

// Source describes one news site: where its listing lives and how its pages are laid out.
type Source struct {
	Name string
	// Domain matches article URLs of this source, subdomains included.
	Domain string

	ListURL       string
	BaseURL       string
	ListAnchor    string
	LinkSelector  string
	ListAnchorTTL time.Duration

	Content          ContentSelectors
	ContentAnchorTTL time.Duration
}

// Options tune a SourceExtractor.
type Options struct {
	PageTimeout time.Duration
	// ReadabilityRescue enables readability extraction of article pages when no AI
	// extractor is configured.
	ReadabilityRescue bool
}

// SourceExtractor runs discovery and content extraction for a single source: structural
// parsing first, then the fallback on the markup the browser captured.
type SourceExtractor struct {
	source  Source
	browser repository.Browser
	ai      *AIExtractor
	opts    Options
	logger  *zap.Logger
}

// NewSourceExtractor wires a source definition to its collaborators. ai may be nil.
func NewSourceExtractor(source Source, browser repository.Browser, ai *AIExtractor, opts Options, logger *zap.Logger) *SourceExtractor {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = defaultPageTimeout
	}
	return &SourceExtractor{
		source:  source,
		browser: browser,
		ai:      ai,
		opts:    opts,
		logger:  logger.Named("source").With(zap.String("source", source.Name)),
	}
}

// Name returns the source name.
func (e *SourceExtractor) Name() string {
	return e.source.Name
}

// Domain returns the domain pattern this extractor serves.
func (e *SourceExtractor) Domain() string {
	return e.source.Domain
}

// strategy is one step of an extraction chain.
type strategy[T any] struct {
	stage entity.Stage
	run   func(ctx context.Context, page *entity.Page) (T, error)
}

// Discover returns the article URLs currently listed by the source.
func (e *SourceExtractor) Discover(ctx context.Context) ([]string, error) {
	base, err := url.Parse(e.source.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("source %s base url: %w", e.source.Name, err)
	}

	e.logger.Info("discovering urls", zap.String("list_url", e.source.ListURL))
	page, loadErr := e.browser.Load(ctx, e.source.ListURL, repository.LoadOptions{
		Anchor:        e.source.ListAnchor,
		PageTimeout:   e.opts.PageTimeout,
		AnchorTimeout: anchorTimeout(e.source.ListAnchorTTL),
	})

	chain := []strategy[[]string]{{
		stage: entity.StageStructural,
		run: func(_ context.Context, page *entity.Page) ([]string, error) {
			if !page.AnchorFound {
				return nil, anchorMissing(loadErr)
			}
			return ParseLinks(page.HTML, base, e.source.LinkSelector)
		},
	}}
	if e.ai != nil {
		chain = append(chain, strategy[[]string]{
			stage: entity.StageAI,
			run: func(ctx context.Context, page *entity.Page) ([]string, error) {
				return e.ai.ExtractURLs(ctx, page.HTML, e.source.Name)
			},
		})
	}

	urls, err := runChain(ctx, e, modeDiscovery, e.source.ListURL, page, loadErr, chain)
	if err != nil {
		return nil, err
	}
	e.logger.Info("discovered urls", zap.Int("count", len(urls)))
	return urls, nil
}

// Extract returns the article published at pageURL.
func (e *SourceExtractor) Extract(ctx context.Context, pageURL string) (*entity.Article, error) {
	start := time.Now()
	defer func() {
		metrics.CrawlDuration.WithLabelValues(e.source.Name).Observe(time.Since(start).Seconds())
	}()

	e.logger.Info("extracting article", zap.String("url", pageURL))
	page, loadErr := e.browser.Load(ctx, pageURL, repository.LoadOptions{
		Anchor:        e.source.Content.Anchor,
		PageTimeout:   e.opts.PageTimeout,
		AnchorTimeout: anchorTimeout(e.source.ContentAnchorTTL),
	})

	chain := []strategy[*entity.Article]{{
		stage: entity.StageStructural,
		run: func(_ context.Context, page *entity.Page) (*entity.Article, error) {
			if !page.AnchorFound {
				return nil, anchorMissing(loadErr)
			}
			return ParseArticle(page.HTML, pageURL, e.source.Content)
		},
	}}
	switch {
	case e.ai != nil:
		chain = append(chain, strategy[*entity.Article]{
			stage: entity.StageAI,
			run: func(ctx context.Context, page *entity.Page) (*entity.Article, error) {
				return e.ai.ExtractArticle(ctx, page.HTML, pageURL, e.source.Name)
			},
		})
	case e.opts.ReadabilityRescue:
		chain = append(chain, strategy[*entity.Article]{
			stage: entity.StageReadability,
			run: func(_ context.Context, page *entity.Page) (*entity.Article, error) {
				return ReadabilityArticle(page.HTML, pageURL)
			},
		})
	}

	article, err := runChain(ctx, e, modeContent, pageURL, page, loadErr, chain)
	if err != nil {
		return nil, err
	}
	e.logger.Info("extracted article", zap.String("url", pageURL), zap.String("header", article.Header))
	return article, nil
}

// runChain tries each strategy in order on the captured page; the first success wins.
// Without markup no strategy can run and the fetch failure is terminal.
func runChain[T any](
	ctx context.Context, e *SourceExtractor, mode, target string, page *entity.Page, loadErr error, chain []strategy[T],
) (T, error) {
	var zero T

	if !page.HasMarkup() {
		cause := loadErr
		if cause == nil {
			cause = entity.ErrNoMarkup
		}
		metrics.Extractions.WithLabelValues(e.source.Name, mode, string(entity.StageFetch), "failure").Inc()
		e.logger.Warn("page failed before markup was captured", zap.String("target", target), zap.Error(cause))
		return zero, &entity.ExtractionError{Source: e.source.Name, URL: target, Stage: entity.StageFetch, Err: cause}
	}

	var (
		lastStage = entity.StageFetch
		lastErr   error
	)
	for _, s := range chain {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		out, err := s.run(ctx, page)
		if err == nil {
			metrics.Extractions.WithLabelValues(e.source.Name, mode, string(s.stage), "success").Inc()
			return out, nil
		}
		metrics.Extractions.WithLabelValues(e.source.Name, mode, string(s.stage), "failure").Inc()
		e.logger.Warn("extraction strategy failed",
			zap.String("target", target),
			zap.String("stage", string(s.stage)),
			zap.Error(err),
		)
		lastStage, lastErr = s.stage, err
	}

	if lastErr == nil {
		lastErr = errors.New("no extraction strategy configured")
	}
	return zero, &entity.ExtractionError{Source: e.source.Name, URL: target, Stage: lastStage, Err: lastErr}
}

func anchorMissing(loadErr error) error {
	if loadErr != nil {
		return fmt.Errorf("%w: anchor not found: %w", entity.ErrStructureMismatch, loadErr)
	}
	return fmt.Errorf("%w: anchor not found", entity.ErrStructureMismatch)
}

func anchorTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultAnchorTimeout
	}
	return d
}
