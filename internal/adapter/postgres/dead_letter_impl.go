package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
)

// DeadLetterRepoImpl stores abandoned jobs in the dead_letter_jobs table.
type DeadLetterRepoImpl struct {
	db *pgxpool.Pool
}

var _ repository.DeadLetterRepository = (*DeadLetterRepoImpl)(nil)

// NewDeadLetterRepo creates a new instance of DeadLetterRepoImpl.
func NewDeadLetterRepo(db *pgxpool.Pool) *DeadLetterRepoImpl {
	return &DeadLetterRepoImpl{db: db}
}

// Save creates or updates the record for a URL. Attempts accumulate across repeated failures.
func (r *DeadLetterRepoImpl) Save(ctx context.Context, dl *entity.DeadLetter) error {
	query := `
		INSERT INTO dead_letter_jobs (url, discovered_at, attempts, failure_reason, permanent, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO UPDATE SET
			attempts = dead_letter_jobs.attempts + EXCLUDED.attempts,
			failure_reason = EXCLUDED.failure_reason,
			permanent = EXCLUDED.permanent,
			failed_at = EXCLUDED.failed_at;
	`
	_, err := r.db.Exec(ctx, query,
		dl.URL,
		dl.DiscoveredAt,
		dl.Attempts,
		dl.FailureReason,
		dl.Permanent,
		dl.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("save dead letter %s: %w", dl.URL, err)
	}
	return nil
}

// List returns the most recently failed jobs.
func (r *DeadLetterRepoImpl) List(ctx context.Context, limit int) ([]*entity.DeadLetter, error) {
	query := `
		SELECT id, url, discovered_at, attempts, failure_reason, permanent, failed_at
		FROM dead_letter_jobs
		ORDER BY failed_at DESC
		LIMIT $1;
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var deadLetters []*entity.DeadLetter
	for rows.Next() {
		var dl entity.DeadLetter
		if err := rows.Scan(
			&dl.ID,
			&dl.URL,
			&dl.DiscoveredAt,
			&dl.Attempts,
			&dl.FailureReason,
			&dl.Permanent,
			&dl.FailedAt,
		); err != nil {
			return nil, err
		}
		deadLetters = append(deadLetters, &dl)
	}
	return deadLetters, rows.Err()
}
