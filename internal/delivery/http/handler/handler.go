package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/newsfeed/crawler-service/internal/delivery/http/response"
	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/usecase"
	"go.uber.org/zap"
)

const (
	defaultPage  = 1
	defaultLimit = 10

	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500

	healthTimeout = 2 * time.Second
)

// ArticleReader is the query side of the article store.
type ArticleReader interface {
	List(ctx context.Context, page, limit int) (*usecase.ArticleList, error)
	Get(ctx context.Context, id string) (*entity.Article, error)
}

// DeadLetterLister reads the jobs that were given up on.
type DeadLetterLister interface {
	List(ctx context.Context, limit int) ([]*entity.DeadLetter, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handler struct {
	articles    ArticleReader
	deadLetters DeadLetterLister
	checks      map[string]Pinger
	logger      *zap.Logger
}

// NewHandler creates the API handler. checks maps a dependency name to its health probe.
func NewHandler(articles ArticleReader, deadLetters DeadLetterLister, checks map[string]Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		articles:    articles,
		deadLetters: deadLetters,
		checks:      checks,
		logger:      logger.Named("http"),
	}
}

func (h *Handler) HandleListArticles(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page", defaultPage)
	if err != nil {
		response.Error(w, h.logger, http.StatusBadRequest, "page must be an integer")
		return
	}
	limit, err := intQuery(r, "limit", defaultLimit)
	if err != nil {
		response.Error(w, h.logger, http.StatusBadRequest, "limit must be an integer")
		return
	}

	list, err := h.articles.List(r.Context(), page, limit)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidPagination) {
			response.Error(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to list articles", zap.Int("page", page), zap.Int("limit", limit), zap.Error(err))
		response.Error(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.JSON(w, h.logger, http.StatusOK, list)
}

func (h *Handler) HandleGetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	article, err := h.articles.Get(r.Context(), id)
	switch {
	case err == nil:
		response.JSON(w, h.logger, http.StatusOK, article)
	case errors.Is(err, usecase.ErrInvalidArticleID):
		response.Error(w, h.logger, http.StatusBadRequest, "Invalid article id")
	case errors.Is(err, entity.ErrArticleNotFound):
		response.Error(w, h.logger, http.StatusNotFound, "Article not found")
	default:
		h.logger.Error("failed to get article", zap.String("id", id), zap.Error(err))
		response.Error(w, h.logger, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) HandleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultDeadLetterLimit)
	if err != nil || limit < 1 || limit > maxDeadLetterLimit {
		response.Error(w, h.logger, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}

	deadLetters, err := h.deadLetters.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list dead letters", zap.Int("limit", limit), zap.Error(err))
		response.Error(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := response.DeadLetterList{Data: make([]response.DeadLetter, 0, len(deadLetters))}
	for _, dl := range deadLetters {
		resp.Data = append(resp.Data, response.NewDeadLetter(dl))
	}
	response.JSON(w, h.logger, http.StatusOK, resp)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := response.HealthResponse{Status: "ok", Dependencies: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			resp.Dependencies[name] = "unhealthy"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Dependencies[name] = "healthy"
	}

	response.JSON(w, h.logger, status, resp)
}

func intQuery(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
