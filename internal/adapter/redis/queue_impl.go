package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
	"github.com/redis/go-redis/v9"
)

const (
	fieldJob     = "job"
	fieldAttempt = "attempt"

	defaultBlockTimeout = 5 * time.Second
	promoteBatchSize    = 100
)

// promoteScript moves due members of the retry set back onto the stream.
// Members are "<attempt> <job json>".
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
	local sep = string.find(member, ' ', 1, true)
	local attempt = string.sub(member, 1, sep - 1)
	local job = string.sub(member, sep + 1)
	if ARGV[3] == '0' then
		redis.call('XADD', KEYS[2], '*', 'job', job, 'attempt', attempt)
	else
		redis.call('XADD', KEYS[2], 'MAXLEN', ARGV[3], '*', 'job', job, 'attempt', attempt)
	end
	redis.call('ZREM', KEYS[1], member)
end
return #due
`)

// QueueConfig configures the stream-backed queue.
type QueueConfig struct {
	Prefix string
	MaxLen int64
	// VisibilityTimeout is how long a delivery may stay unacknowledged before redelivery.
	VisibilityTimeout time.Duration
	BlockTimeout      time.Duration
}

// StreamQueueImpl is an at-least-once job queue on a Redis stream with one consumer group.
// Delayed retries wait in a sorted set scored by due time.
type StreamQueueImpl struct {
	client     *redis.Client
	stream     string
	group      string
	retrySet   string
	maxLen     int64
	visibility time.Duration
	block      time.Duration
	now        func() time.Time
}

var _ repository.QueueRepository = (*StreamQueueImpl)(nil)

// NewStreamQueue creates the queue and its consumer group if they do not exist.
func NewStreamQueue(ctx context.Context, client *redis.Client, cfg QueueConfig) (*StreamQueueImpl, error) {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "crawler"
	}
	block := cfg.BlockTimeout
	if block <= 0 {
		block = defaultBlockTimeout
	}

	q := &StreamQueueImpl{
		client:     client,
		stream:     prefix + ":jobs",
		group:      prefix + "-workers",
		retrySet:   prefix + ":retry",
		maxLen:     cfg.MaxLen,
		visibility: cfg.VisibilityTimeout,
		block:      block,
		now:        time.Now,
	}

	err := client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return q, nil
}

// Enqueue appends all jobs to the stream in one pipelined round trip.
func (q *StreamQueueImpl) Enqueue(ctx context.Context, jobs []entity.CrawlJob) error {
	if len(jobs) == 0 {
		return nil
	}

	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, job := range jobs {
			payload, err := json.Marshal(job.Payload())
			if err != nil {
				return fmt.Errorf("encode job %s: %w", job.URL, err)
			}
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: q.stream,
				MaxLen: q.maxLen,
				Values: map[string]any{fieldJob: string(payload), fieldAttempt: job.Attempt},
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue %d jobs: %w", len(jobs), err)
	}
	return nil
}

// Dequeue first reclaims a delivery whose visibility timeout elapsed, then waits for new
// messages until one arrives or ctx is done.
func (q *StreamQueueImpl) Dequeue(ctx context.Context, consumer string) (*entity.CrawlJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if q.visibility > 0 {
			claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   q.stream,
				Group:    q.group,
				Consumer: consumer,
				MinIdle:  q.visibility,
				Start:    "0-0",
				Count:    1,
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return nil, fmt.Errorf("reclaim stale jobs: %w", err)
			}
			if len(claimed) > 0 {
				return q.decodeReclaimed(ctx, claimed[0])
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    1,
			Block:    q.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("read jobs: %w", err)
		}
		for _, s := range streams {
			if len(s.Messages) > 0 {
				return q.decode(ctx, s.Messages[0])
			}
		}
	}
}

// decode turns a message into a job. Undecodable messages are acknowledged so they are
// not redelivered forever.
func (q *StreamQueueImpl) decode(ctx context.Context, msg redis.XMessage) (*entity.CrawlJob, error) {
	job, err := decodeMessage(msg)
	if err != nil {
		if ackErr := q.ack(ctx, msg.ID); ackErr != nil {
			return nil, errors.Join(err, ackErr)
		}
		return nil, err
	}
	return job, nil
}

// decodeReclaimed decodes a redelivered message. Deliveries that were never settled count
// as attempts, so a job that keeps crashing its worker still exhausts its budget.
func (q *StreamQueueImpl) decodeReclaimed(ctx context.Context, msg redis.XMessage) (*entity.CrawlJob, error) {
	job, err := q.decode(ctx, msg)
	if err != nil {
		return nil, err
	}

	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  msg.ID,
		End:    msg.ID,
		Count:  1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read delivery count of %s: %w", msg.ID, err)
	}
	if len(pending) > 0 {
		job.Attempt = max(job.Attempt, int(pending[0].RetryCount)-1)
	}
	return job, nil
}

func decodeMessage(msg redis.XMessage) (*entity.CrawlJob, error) {
	raw, _ := msg.Values[fieldJob].(string)
	var payload entity.CrawlJobPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w %s: %v", entity.ErrMalformedJob, msg.ID, err)
	}

	job := entity.FromPayload(payload)
	job.ID = msg.ID
	if s, ok := msg.Values[fieldAttempt].(string); ok {
		job.Attempt, _ = strconv.Atoi(s)
	}
	return &job, nil
}

// Ack acknowledges the delivery and removes the message from the stream.
func (q *StreamQueueImpl) Ack(ctx context.Context, job *entity.CrawlJob) error {
	return q.ack(ctx, job.ID)
}

// ack acknowledges a delivery by message id.
func (q *StreamQueueImpl) ack(ctx context.Context, id string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, q.stream, q.group, id)
		pipe.XDel(ctx, q.stream, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ack job %s: %w", id, err)
	}
	return nil
}

// Retry acknowledges the current delivery and schedules the next attempt after delay,
// atomically.
func (q *StreamQueueImpl) Retry(ctx context.Context, job *entity.CrawlJob, delay time.Duration) error {
	payload, err := json.Marshal(job.Payload())
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.URL, err)
	}
	member := strconv.Itoa(job.Attempt+1) + " " + string(payload)
	due := q.now().Add(delay).UnixMilli()

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, q.stream, q.group, job.ID)
		pipe.XDel(ctx, q.stream, job.ID)
		pipe.ZAdd(ctx, q.retrySet, redis.Z{Score: float64(due), Member: member})
		return nil
	})
	if err != nil {
		return fmt.Errorf("schedule retry of %s: %w", job.URL, err)
	}
	return nil
}

// PromoteDue moves retries whose due time has passed back onto the stream.
func (q *StreamQueueImpl) PromoteDue(ctx context.Context) (int, error) {
	moved, err := promoteScript.Run(ctx, q.client,
		[]string{q.retrySet, q.stream},
		q.now().UnixMilli(), promoteBatchSize, max(q.maxLen, 0),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("promote retries: %w", err)
	}
	return moved, nil
}

// Depth counts jobs on the stream plus those waiting for a retry.
func (q *StreamQueueImpl) Depth(ctx context.Context) (int64, error) {
	var streamLen, retryLen *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		streamLen = pipe.XLen(ctx, q.stream)
		retryLen = pipe.ZCard(ctx, q.retrySet)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return streamLen.Val() + retryLen.Val(), nil
}
