package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const articleColumns = `id, header, subheader, thumbnail, content, url, published_at, created_at, updated_at`

// ArticleRepoImpl stores articles in the articles table.
type ArticleRepoImpl struct {
	db *pgxpool.Pool
}

var _ repository.ArticleRepository = (*ArticleRepoImpl)(nil)

// NewArticleRepo creates a new instance of ArticleRepoImpl.
func NewArticleRepo(db *pgxpool.Pool) *ArticleRepoImpl {
	return &ArticleRepoImpl{db: db}
}

// Save inserts the article under a fresh id. A second article with the same URL is
// rejected with entity.ErrDuplicateArticle.
func (r *ArticleRepoImpl) Save(ctx context.Context, article *entity.Article) (*entity.Article, error) {
	saved := *article
	saved.ID = primitive.NewObjectID().Hex()

	query := `
		INSERT INTO articles (id, header, subheader, thumbnail, content, url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		saved.ID,
		saved.Header,
		saved.Subheader,
		saved.Thumbnail,
		saved.Content,
		saved.URL,
	).Scan(&saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, classifyWriteError(err, saved.URL)
	}
	return &saved, nil
}

func classifyWriteError(err error, url string) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", entity.ErrDuplicateArticle, url)
	}
	return fmt.Errorf("insert article %s: %w", url, err)
}

// FindByURL returns the article stored for url.
func (r *ArticleRepoImpl) FindByURL(ctx context.Context, url string) (*entity.Article, error) {
	row := r.db.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE url = $1;`, url)
	return scanArticle(row)
}

// FindByID returns the article with the given id.
func (r *ArticleRepoImpl) FindByID(ctx context.Context, id string) (*entity.Article, error) {
	row := r.db.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1;`, id)
	return scanArticle(row)
}

// MarkPublished records the time the article was delivered downstream.
func (r *ArticleRepoImpl) MarkPublished(ctx context.Context, url string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE articles SET published_at = $2, updated_at = NOW() WHERE url = $1;`, url, at)
	if err != nil {
		return fmt.Errorf("mark %s published: %w", url, err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrArticleNotFound
	}
	return nil
}

// FindPage returns one page of articles, newest first, with the total count.
func (r *ArticleRepoImpl) FindPage(ctx context.Context, page, limit int) (*entity.ArticlePage, error) {
	result := &entity.ArticlePage{Articles: []entity.Article{}}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM articles;`).Scan(&result.Total); err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+articleColumns+` FROM articles ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2;`,
		limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		result.Articles = append(result.Articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return result, nil
}

func scanArticle(row pgx.Row) (*entity.Article, error) {
	var a entity.Article
	err := row.Scan(
		&a.ID,
		&a.Header,
		&a.Subheader,
		&a.Thumbnail,
		&a.Content,
		&a.URL,
		&a.PublishedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan article: %w", err)
	}
	return &a, nil
}
