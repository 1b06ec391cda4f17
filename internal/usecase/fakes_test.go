package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
)

type fakeSource struct {
	name string
	urls []string
	err  error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Discover(context.Context) ([]string, error) {
	return f.urls, f.err
}

type fakeDedup struct {
	mu     sync.Mutex
	marked map[string]bool
	err    error
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{marked: map[string]bool{}}
}

func (f *fakeDedup) FilterNew(_ context.Context, urls []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var fresh []string
	for _, u := range urls {
		if !f.marked[u] {
			fresh = append(fresh, u)
		}
	}
	return fresh, nil
}

func (f *fakeDedup) MarkCrawled(_ context.Context, urls []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range urls {
		f.marked[u] = true
	}
	return nil
}

type fakeQueue struct {
	mu         sync.Mutex
	jobs       []entity.CrawlJob
	enqueueErr error
}

func (f *fakeQueue) Enqueue(_ context.Context, jobs []entity.CrawlJob) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, jobs...)
	return nil
}

func (f *fakeQueue) Dequeue(ctx context.Context, _ string) (*entity.CrawlJob, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeQueue) Ack(context.Context, *entity.CrawlJob) error { return nil }

func (f *fakeQueue) Retry(context.Context, *entity.CrawlJob, time.Duration) error { return nil }

func (f *fakeQueue) PromoteDue(context.Context) (int, error) { return 0, nil }

func (f *fakeQueue) Depth(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.jobs)), nil
}

func (f *fakeQueue) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.jobs))
	for i, j := range f.jobs {
		out[i] = j.URL
	}
	return out
}

// fakeArticles is an in-memory article store with a unique URL constraint.
type fakeArticles struct {
	mu      sync.Mutex
	byURL   map[string]*entity.Article
	seq     int
	saveErr error
	findErr error
}

func newFakeArticles() *fakeArticles {
	return &fakeArticles{byURL: map[string]*entity.Article{}}
}

func (f *fakeArticles) Save(_ context.Context, a *entity.Article) (*entity.Article, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byURL[a.URL]; ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrDuplicateArticle, a.URL)
	}
	f.seq++
	saved := *a
	saved.ID = fmt.Sprintf("%024x", f.seq)
	saved.CreatedAt = time.Unix(int64(f.seq), 0)
	saved.UpdatedAt = saved.CreatedAt
	f.byURL[a.URL] = &saved
	out := saved
	return &out, nil
}

func (f *fakeArticles) FindByURL(_ context.Context, url string) (*entity.Article, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byURL[url]
	if !ok {
		return nil, entity.ErrArticleNotFound
	}
	out := *a
	return &out, nil
}

func (f *fakeArticles) MarkPublished(_ context.Context, url string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byURL[url]
	if !ok {
		return entity.ErrArticleNotFound
	}
	a.PublishedAt = &at
	return nil
}

func (f *fakeArticles) FindPage(_ context.Context, page, limit int) (*entity.ArticlePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]entity.Article, 0, len(f.byURL))
	for _, a := range f.byURL {
		all = append(all, *a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := min((page-1)*limit, len(all))
	end := min(start+limit, len(all))
	return &entity.ArticlePage{Articles: all[start:end], Total: int64(len(all))}, nil
}

func (f *fakeArticles) FindByID(_ context.Context, id string) (*entity.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byURL {
		if a.ID == id {
			out := *a
			return &out, nil
		}
	}
	return nil, entity.ErrArticleNotFound
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, a *entity.Article) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, a.URL)
	return nil
}

type fakeBrowser struct {
	html        string
	anchorFound bool
	err         error
	loads       int
}

func (f *fakeBrowser) Load(_ context.Context, url string, _ repository.LoadOptions) (*entity.Page, error) {
	f.loads++
	return &entity.Page{URL: url, HTML: f.html, AnchorFound: f.anchorFound}, f.err
}

type fakeOracle struct {
	response string
	calls    int
}

func (f *fakeOracle) Generate(context.Context, string, string) (string, error) {
	f.calls++
	if f.response == "" {
		return "", errors.New("oracle offline")
	}
	return f.response, nil
}

type fakeCache struct {
	pages    map[string]*entity.ArticlePage
	articles map[string]*entity.Article
}

func newFakeCache() *fakeCache {
	return &fakeCache{pages: map[string]*entity.ArticlePage{}, articles: map[string]*entity.Article{}}
}

func (f *fakeCache) GetPage(_ context.Context, page, limit int) (*entity.ArticlePage, bool) {
	p, ok := f.pages[fmt.Sprint(page, limit)]
	return p, ok
}

func (f *fakeCache) SetPage(_ context.Context, page, limit int, result *entity.ArticlePage) {
	f.pages[fmt.Sprint(page, limit)] = result
}

func (f *fakeCache) GetArticle(_ context.Context, id string) (*entity.Article, bool) {
	a, ok := f.articles[id]
	return a, ok
}

func (f *fakeCache) SetArticle(_ context.Context, a *entity.Article) {
	f.articles[a.ID] = a
}
