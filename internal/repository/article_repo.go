package repository

import (
	"context"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
)

// ArticleRepository defines the interface for storing and retrieving extracted articles.
type ArticleRepository interface {
	// Save inserts a new article. It returns entity.ErrDuplicateArticle if the URL exists.
	Save(ctx context.Context, article *entity.Article) (*entity.Article, error)
	// FindByURL returns entity.ErrArticleNotFound if no article has the URL.
	FindByURL(ctx context.Context, url string) (*entity.Article, error)
	// MarkPublished records that the article was delivered downstream.
	MarkPublished(ctx context.Context, url string, at time.Time) error
	// FindPage returns articles ordered by creation time, newest first.
	FindPage(ctx context.Context, page, limit int) (*entity.ArticlePage, error)
	// FindByID returns entity.ErrArticleNotFound if no article has the id.
	FindByID(ctx context.Context, id string) (*entity.Article, error)
}

// ArticleCache is a time-based read-through cache in front of ArticleRepository reads.
type ArticleCache interface {
	GetPage(ctx context.Context, page, limit int) (*entity.ArticlePage, bool)
	SetPage(ctx context.Context, page, limit int, result *entity.ArticlePage)
	GetArticle(ctx context.Context, id string) (*entity.Article, bool)
	SetArticle(ctx context.Context, article *entity.Article)
}
