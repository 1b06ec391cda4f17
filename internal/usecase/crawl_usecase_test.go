package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/extractor"
	"github.com/newsfeed/crawler-service/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	jobURL = "https://www.coindesk.com/markets/2025/01/01/btc"

	coindeskArticle = `<html><body>
  <h1 class="font-headline-lg">Bitcoin Hits New High</h1>
  <div data-module-name="article-body"><div class="document-body"><p>Body text.</p></div></div>
</body></html>`
)

type crawlFixture struct {
	browser   *fakeBrowser
	oracle    *fakeOracle
	articles  *fakeArticles
	publisher *fakePublisher
	uc        *usecase.CrawlUseCase
}

func newCrawlFixture(html string, anchorFound bool) *crawlFixture {
	f := &crawlFixture{
		browser:   &fakeBrowser{html: html, anchorFound: anchorFound},
		oracle:    &fakeOracle{},
		articles:  newFakeArticles(),
		publisher: &fakePublisher{},
	}
	ai := extractor.NewAIExtractor(f.oracle, 0, zap.NewNop())
	registry := extractor.NewRegistry(
		extractor.NewSourceExtractor(extractor.CoinDesk, f.browser, ai, extractor.Options{}, zap.NewNop()),
		extractor.NewSourceExtractor(extractor.Cointelegraph, f.browser, ai, extractor.Options{}, zap.NewNop()),
	)
	f.uc = usecase.NewCrawlUseCase(registry, f.articles, f.publisher, zap.NewNop())
	return f
}

func newJob(url string) *entity.CrawlJob {
	job := entity.NewCrawlJob(url, time.Now())
	return &job
}

func TestCrawlUseCase_ProcessStructural(t *testing.T) {
	t.Parallel()

	f := newCrawlFixture(coindeskArticle, true)

	require.NoError(t, f.uc.Process(context.Background(), newJob(jobURL)))

	stored, err := f.articles.FindByURL(context.Background(), jobURL)
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin Hits New High", stored.Header)
	assert.NotNil(t, stored.PublishedAt)
	assert.Equal(t, []string{jobURL}, f.publisher.published)
	assert.Equal(t, 0, f.oracle.calls)
}

func TestCrawlUseCase_AIFallbackKeepsJobURL(t *testing.T) {
	t.Parallel()

	f := newCrawlFixture(`<html><body><div>redesigned</div></body></html>`, true)
	f.oracle.response = `{"header":"H","subheader":"","thumbnail":"","content":"C"}`

	require.NoError(t, f.uc.Process(context.Background(), newJob(jobURL)))

	stored, err := f.articles.FindByURL(context.Background(), jobURL)
	require.NoError(t, err)
	assert.Equal(t, "H", stored.Header)
	assert.Equal(t, "C", stored.Content)
	assert.Equal(t, jobURL, stored.URL)
	assert.Equal(t, 1, f.oracle.calls)
}

func TestCrawlUseCase_UnsupportedSourceIsPermanent(t *testing.T) {
	t.Parallel()

	f := newCrawlFixture(coindeskArticle, true)

	err := f.uc.Process(context.Background(), newJob("https://unknown.example/a"))
	require.ErrorIs(t, err, entity.ErrUnsupportedSource)
	assert.Equal(t, usecase.Permanent, usecase.Classify(err))
	assert.Equal(t, 0, f.browser.loads)
}

func TestCrawlUseCase_PublishFailureIsRetryableAndRepaired(t *testing.T) {
	t.Parallel()

	f := newCrawlFixture(coindeskArticle, true)
	f.publisher.err = errors.New("broker unreachable")

	err := f.uc.Process(context.Background(), newJob(jobURL))
	require.Error(t, err)
	assert.Equal(t, usecase.Retryable, usecase.Classify(err))

	stored, err := f.articles.FindByURL(context.Background(), jobURL)
	require.NoError(t, err)
	assert.Nil(t, stored.PublishedAt)

	// the retry publishes the stored article without extracting again
	f.publisher.err = nil
	require.NoError(t, f.uc.Process(context.Background(), newJob(jobURL)))
	assert.Equal(t, []string{jobURL}, f.publisher.published)
	assert.Equal(t, 1, f.browser.loads)
}

func TestCrawlUseCase_AlreadyPublishedIsDropped(t *testing.T) {
	t.Parallel()

	f := newCrawlFixture(coindeskArticle, true)
	require.NoError(t, f.uc.Process(context.Background(), newJob(jobURL)))

	err := f.uc.Process(context.Background(), newJob(jobURL))
	require.ErrorIs(t, err, usecase.ErrAlreadyPublished)
	assert.Equal(t, usecase.Dropped, usecase.Classify(err))
	assert.Len(t, f.publisher.published, 1)
}

func TestCrawlUseCase_OracleGarbageIsDropped(t *testing.T) {
	t.Parallel()

	f := newCrawlFixture(`<html><body><div>redesigned</div></body></html>`, true)
	f.oracle.response = "Sorry, I cannot help with that."

	err := f.uc.Process(context.Background(), newJob(jobURL))
	require.ErrorIs(t, err, entity.ErrOracleOutput)
	assert.Equal(t, usecase.Dropped, usecase.Classify(err))
	assert.Equal(t, 1, f.oracle.calls)
}

func TestCrawlUseCase_FetchFailureIsRetryable(t *testing.T) {
	t.Parallel()

	f := newCrawlFixture("", false)
	f.browser.err = context.DeadlineExceeded

	err := f.uc.Process(context.Background(), newJob(jobURL))
	var extErr *entity.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, entity.StageFetch, extErr.Stage)
	assert.Equal(t, usecase.Retryable, usecase.Classify(err))
}

func TestCrawlUseCase_StoreUnavailableIsRetryable(t *testing.T) {
	t.Parallel()

	f := newCrawlFixture(coindeskArticle, true)
	f.articles.findErr = errors.New("connection refused")

	err := f.uc.Process(context.Background(), newJob(jobURL))
	require.Error(t, err)
	assert.Equal(t, usecase.Retryable, usecase.Classify(err))
	assert.Empty(t, f.publisher.published)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want usecase.Outcome
	}{
		{fmt.Errorf("x: %w", entity.ErrUnsupportedSource), usecase.Permanent},
		{fmt.Errorf("x: %w", entity.ErrDuplicateArticle), usecase.Dropped},
		{&entity.ExtractionError{Stage: entity.StageAI, Err: entity.ErrOracleOutput}, usecase.Dropped},
		{&entity.ExtractionError{Stage: entity.StageStructural, Err: entity.ErrStructureMismatch}, usecase.Retryable},
		{context.DeadlineExceeded, usecase.Retryable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, usecase.Classify(tt.err), tt.err.Error())
	}
}
