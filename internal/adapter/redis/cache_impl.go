package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ArticleCacheImpl caches read API results as JSON with fixed TTLs.
// Failures are logged and reported as misses.
type ArticleCacheImpl struct {
	client     *redis.Client
	listTTL    time.Duration
	articleTTL time.Duration
	logger     *zap.Logger
}

var _ repository.ArticleCache = (*ArticleCacheImpl)(nil)

// NewArticleCache creates the cache.
func NewArticleCache(client *redis.Client, listTTL, articleTTL time.Duration, logger *zap.Logger) *ArticleCacheImpl {
	return &ArticleCacheImpl{
		client:     client,
		listTTL:    listTTL,
		articleTTL: articleTTL,
		logger:     logger.Named("article_cache"),
	}
}

func pageKey(page, limit int) string {
	return fmt.Sprintf("news:list:%d:%d", page, limit)
}

func articleKey(id string) string {
	return "news:article:" + id
}

func (c *ArticleCacheImpl) GetPage(ctx context.Context, page, limit int) (*entity.ArticlePage, bool) {
	var result entity.ArticlePage
	if !c.get(ctx, pageKey(page, limit), &result) {
		return nil, false
	}
	return &result, true
}

func (c *ArticleCacheImpl) SetPage(ctx context.Context, page, limit int, result *entity.ArticlePage) {
	c.set(ctx, pageKey(page, limit), result, c.listTTL)
}

func (c *ArticleCacheImpl) GetArticle(ctx context.Context, id string) (*entity.Article, bool) {
	var article entity.Article
	if !c.get(ctx, articleKey(id), &article) {
		return nil, false
	}
	return &article, true
}

func (c *ArticleCacheImpl) SetArticle(ctx context.Context, article *entity.Article) {
	c.set(ctx, articleKey(article.ID), article, c.articleTTL)
}

func (c *ArticleCacheImpl) get(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("cache entry unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *ArticleCacheImpl) set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
