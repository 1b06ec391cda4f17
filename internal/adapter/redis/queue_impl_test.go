package redis

import (
	"context"
	"testing"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, visibility time.Duration) (*StreamQueueImpl, *redis.Client) {
	t.Helper()

	_, client := newTestClient(t)
	q, err := NewStreamQueue(context.Background(), client, QueueConfig{
		Prefix:            "test",
		MaxLen:            1000,
		VisibilityTimeout: visibility,
		BlockTimeout:      50 * time.Millisecond,
	})
	require.NoError(t, err)
	return q, client
}

func TestStreamQueue_EnqueueDequeueAck(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 0)
	ctx := context.Background()
	discovered := time.UnixMilli(1735787045000)

	require.NoError(t, q.Enqueue(ctx, []entity.CrawlJob{
		entity.NewCrawlJob("https://a.example/1", discovered),
		entity.NewCrawlJob("https://a.example/2", discovered),
	}))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, depth)

	job, err := q.Dequeue(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example/1", job.URL)
	assert.Equal(t, discovered.UnixMilli(), job.DiscoveredAt.UnixMilli())
	assert.Equal(t, 0, job.Attempt)
	assert.NotEmpty(t, job.ID)

	require.NoError(t, q.Ack(ctx, job))

	depth, err = q.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)
}

func TestStreamQueue_NewIsIdempotent(t *testing.T) {
	t.Parallel()

	q, client := newTestQueue(t, 0)
	_, err := NewStreamQueue(context.Background(), client, QueueConfig{Prefix: "test"})
	require.NoError(t, err)
	assert.Equal(t, "test:jobs", q.stream)
}

func TestStreamQueue_DequeueHonoursCancellation(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx, "worker-1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestStreamQueue_RetryAndPromote(t *testing.T) {
	t.Parallel()

	q, client := newTestQueue(t, 0)
	ctx := context.Background()
	now := time.Now()
	q.now = func() time.Time { return now }

	require.NoError(t, q.Enqueue(ctx, []entity.CrawlJob{entity.NewCrawlJob("https://a.example/1", now)}))
	job, err := q.Dequeue(ctx, "worker-1")
	require.NoError(t, err)

	require.NoError(t, q.Retry(ctx, job, 10*time.Second))

	assert.EqualValues(t, 0, client.XLen(ctx, "test:jobs").Val())
	assert.EqualValues(t, 1, client.ZCard(ctx, "test:retry").Val())

	moved, err := q.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, moved, "retry not yet due")

	q.now = func() time.Time { return now.Add(11 * time.Second) }
	moved, err = q.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.EqualValues(t, 0, client.ZCard(ctx, "test:retry").Val())

	again, err := q.Dequeue(ctx, "worker-2")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example/1", again.URL)
	assert.Equal(t, 1, again.Attempt)
	assert.NotEqual(t, job.ID, again.ID)
}

func TestStreamQueue_RedeliversAfterVisibilityTimeout(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, []entity.CrawlJob{entity.NewCrawlJob("https://a.example/1", time.Now())}))

	first, err := q.Dequeue(ctx, "worker-1")
	require.NoError(t, err)

	// worker-1 never acknowledges
	time.Sleep(100 * time.Millisecond)

	second, err := q.Dequeue(ctx, "worker-2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.URL, second.URL)
}

func TestStreamQueue_UnsettledDeliveriesCountAsAttempts(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, []entity.CrawlJob{entity.NewCrawlJob("https://a.example/1", time.Now())}))

	first, err := q.Dequeue(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Attempt)

	// each consumer dies before settling the job
	for want := 1; want <= 3; want++ {
		time.Sleep(60 * time.Millisecond)
		job, err := q.Dequeue(ctx, "worker-2")
		require.NoError(t, err)
		assert.Equal(t, first.ID, job.ID)
		assert.Equal(t, want, job.Attempt)
	}
}

func TestStreamQueue_ReclaimKeepsHigherRetryAttempt(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 20*time.Millisecond)
	ctx := context.Background()

	job := entity.NewCrawlJob("https://a.example/1", time.Now())
	job.Attempt = 2
	require.NoError(t, q.Enqueue(ctx, []entity.CrawlJob{job}))

	first, err := q.Dequeue(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Attempt)

	time.Sleep(60 * time.Millisecond)
	again, err := q.Dequeue(ctx, "worker-2")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Attempt)
}

func TestStreamQueue_MalformedMessageIsAcked(t *testing.T) {
	t.Parallel()

	q, client := newTestQueue(t, 0)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "test:jobs",
		Values: map[string]any{"job": "not json", "attempt": "0"},
	}).Err())

	_, err := q.Dequeue(ctx, "worker-1")
	require.ErrorIs(t, err, entity.ErrMalformedJob)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, depth)
}
