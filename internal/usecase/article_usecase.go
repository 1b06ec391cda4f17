package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxPageLimit = 100
)

var (
	// ErrInvalidPagination is returned for page < 1 or a limit outside 1..MaxPageLimit.
	ErrInvalidPagination = errors.New("page must be >= 1 and limit between 1 and 100")
	// ErrInvalidArticleID is returned when an id is not 24 hex characters.
	ErrInvalidArticleID = errors.New("invalid article id")
)

// ArticleList is one page of the article listing.
type ArticleList struct {
	Data       []entity.Article `json:"data"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"totalPages"`
}

// ArticleUseCase serves read queries through the cache.
type ArticleUseCase struct {
	articles repository.ArticleRepository
	cache    repository.ArticleCache
}

// NewArticleUseCase creates the query use case. cache may be nil.
func NewArticleUseCase(articles repository.ArticleRepository, cache repository.ArticleCache) *ArticleUseCase {
	return &ArticleUseCase{articles: articles, cache: cache}
}

// List returns articles newest first.
func (uc *ArticleUseCase) List(ctx context.Context, page, limit int) (*ArticleList, error) {
	if page < 1 || limit < 1 || limit > MaxPageLimit {
		return nil, ErrInvalidPagination
	}

	var result *entity.ArticlePage
	if uc.cache != nil {
		if cached, ok := uc.cache.GetPage(ctx, page, limit); ok {
			result = cached
		}
	}
	if result == nil {
		fetched, err := uc.articles.FindPage(ctx, page, limit)
		if err != nil {
			return nil, fmt.Errorf("find articles: %w", err)
		}
		result = fetched
		if uc.cache != nil {
			uc.cache.SetPage(ctx, page, limit, result)
		}
	}

	data := result.Articles
	if data == nil {
		data = []entity.Article{}
	}
	return &ArticleList{
		Data:       data,
		Total:      result.Total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(result.Total, limit),
	}, nil
}

func totalPages(total int64, limit int) int {
	return int((total + int64(limit) - 1) / int64(limit))
}

// Get returns the article with id.
func (uc *ArticleUseCase) Get(ctx context.Context, id string) (*entity.Article, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, ErrInvalidArticleID
	}

	if uc.cache != nil {
		if cached, ok := uc.cache.GetArticle(ctx, id); ok {
			return cached, nil
		}
	}

	article, err := uc.articles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if uc.cache != nil {
		uc.cache.SetArticle(ctx, article)
	}
	return article, nil
}
