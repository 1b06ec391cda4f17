package repository

import (
	"context"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
)

// QueueRepository is a durable, at-least-once crawl job queue.
type QueueRepository interface {
	// Enqueue adds all jobs in a single round trip.
	Enqueue(ctx context.Context, jobs []entity.CrawlJob) error
	// Dequeue blocks until a job is available for consumer or ctx is done.
	// Jobs left unacknowledged past the visibility timeout are redelivered.
	Dequeue(ctx context.Context, consumer string) (*entity.CrawlJob, error)
	// Ack marks the job as finished.
	Ack(ctx context.Context, job *entity.CrawlJob) error
	// Retry acknowledges the current delivery and schedules a new one after delay.
	Retry(ctx context.Context, job *entity.CrawlJob, delay time.Duration) error
	// PromoteDue moves retries whose delay elapsed back into the queue.
	PromoteDue(ctx context.Context) (int, error)
	// Depth returns the number of jobs waiting in the queue.
	Depth(ctx context.Context) (int64, error)
}

// EventPublisher delivers extracted articles to the downstream analysis topic.
type EventPublisher interface {
	// Publish returns only once the broker acknowledged the message.
	Publish(ctx context.Context, article *entity.Article) error
}
