package repository

import (
	"context"

	"github.com/newsfeed/crawler-service/internal/entity"
)

// DeadLetterRepository stores jobs that will not be retried, for manual inspection.
type DeadLetterRepository interface {
	// Save creates or updates the dead-letter record for the job URL.
	Save(ctx context.Context, deadLetter *entity.DeadLetter) error
	// List returns the most recent dead letters.
	List(ctx context.Context, limit int) ([]*entity.DeadLetter, error)
}
