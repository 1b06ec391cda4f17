package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
	"github.com/newsfeed/crawler-service/internal/usecase"
	"github.com/newsfeed/crawler-service/pkg/metrics"
	"go.uber.org/zap"
)

const (
	defaultConcurrency     = 4
	defaultPromoteInterval = time.Second
	dequeueErrorPause      = time.Second
	settleTimeout          = 10 * time.Second
	jitterFactor           = 0.2
	maxBackoff             = 10 * time.Minute
)

// JobHandler processes one crawl job.
type JobHandler interface {
	Process(ctx context.Context, job *entity.CrawlJob) error
}

// Config configures the pool.
type Config struct {
	Concurrency int
	JobTimeout  time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	// ConsumerName prefixes the queue consumer id of each worker.
	ConsumerName    string
	PromoteInterval time.Duration
}

// Pool runs a fixed number of workers that pull jobs from the queue independently.
// It alone decides between acknowledging, retrying and dead-lettering a job.
type Pool struct {
	cfg         Config
	queue       repository.QueueRepository
	deadLetters repository.DeadLetterRepository
	handler     JobHandler
	logger      *zap.Logger

	running     atomic.Bool
	wg          sync.WaitGroup
	stopDequeue context.CancelFunc
	jobsCtx     context.Context
	cancelJobs  context.CancelFunc
}

// NewPool creates a worker pool.
func NewPool(
	cfg Config,
	queue repository.QueueRepository,
	deadLetters repository.DeadLetterRepository,
	handler JobHandler,
	logger *zap.Logger,
) (*Pool, error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.JobTimeout <= 0 {
		return nil, errors.New("job timeout must be positive")
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.PromoteInterval <= 0 {
		cfg.PromoteInterval = defaultPromoteInterval
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = "worker"
	}

	return &Pool{
		cfg:         cfg,
		queue:       queue,
		deadLetters: deadLetters,
		handler:     handler,
		logger:      logger.Named("worker_pool"),
	}, nil
}

// Start launches the workers and the retry promoter.
func (p *Pool) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("pool is already running")
	}

	dequeueCtx, stopDequeue := context.WithCancel(ctx)
	p.stopDequeue = stopDequeue
	// jobs outlive Stop's dequeue cancellation so in-flight work can finish
	p.jobsCtx, p.cancelJobs = context.WithCancel(context.WithoutCancel(ctx))

	for i := range p.cfg.Concurrency {
		consumer := fmt.Sprintf("%s-%d", p.cfg.ConsumerName, i)
		p.wg.Add(1)
		go p.work(dequeueCtx, consumer)
	}

	p.wg.Add(1)
	go p.promote(dequeueCtx)

	p.logger.Info("worker pool started", zap.Int("concurrency", p.cfg.Concurrency))
	return nil
}

// Stop stops dequeuing and waits for in-flight jobs. When ctx expires first, in-flight
// jobs are cancelled and left unacknowledged for redelivery.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.running.CompareAndSwap(true, false) {
		return errors.New("pool is not running")
	}
	p.logger.Info("worker pool draining")
	p.stopDequeue()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancelJobs()
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.cancelJobs()
		<-done
		p.logger.Warn("worker pool drain timed out, in-flight jobs abandoned")
		return ctx.Err()
	}
}

func (p *Pool) work(ctx context.Context, consumer string) {
	defer p.wg.Done()
	logger := p.logger.With(zap.String("consumer", consumer))

	for {
		job, err := p.queue.Dequeue(ctx, consumer)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, entity.ErrMalformedJob) {
				logger.Error("discarded malformed job", zap.Error(err))
				continue
			}
			logger.Error("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueErrorPause):
			}
			continue
		}
		if job == nil {
			continue
		}
		p.handle(logger, job)
	}
}

func (p *Pool) handle(logger *zap.Logger, job *entity.CrawlJob) {
	logger = logger.With(zap.String("url", job.URL), zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	logger.Info("processing job")

	jobCtx, cancel := context.WithTimeout(p.jobsCtx, p.cfg.JobTimeout)
	err := p.handler.Process(jobCtx, job)
	cancel()

	if err != nil && p.jobsCtx.Err() != nil {
		logger.Warn("job abandoned on shutdown", zap.Error(err))
		return
	}

	ctx, cancelSettle := context.WithTimeout(context.Background(), settleTimeout)
	defer cancelSettle()
	p.settle(ctx, logger, job, err)
}

// settle routes a finished job. A job whose settlement fails stays pending and is
// redelivered after the visibility timeout.
func (p *Pool) settle(ctx context.Context, logger *zap.Logger, job *entity.CrawlJob, procErr error) {
	if procErr == nil {
		p.ack(ctx, logger, job, "completed")
		logger.Info("job completed")
		return
	}

	switch outcome := usecase.Classify(procErr); {
	case outcome == usecase.Dropped && errors.Is(procErr, entity.ErrOracleOutput):
		// not retried, but kept for inspection of what the oracle returned
		logger.Warn("no article produced from oracle output", zap.Error(procErr))
		p.deadLetter(ctx, logger, job, procErr, false)

	case outcome == usecase.Dropped:
		logger.Warn("no article produced", zap.Error(procErr))
		p.ack(ctx, logger, job, "dropped")

	case outcome == usecase.Permanent:
		logger.Error("job failed permanently", zap.Error(procErr))
		p.deadLetter(ctx, logger, job, procErr, true)

	case job.Attempt+1 >= p.cfg.MaxAttempts:
		logger.Error("job exhausted its attempts", zap.Error(procErr))
		p.deadLetter(ctx, logger, job, procErr, false)

	default:
		delay := p.RetryDelay(job.Attempt)
		if err := p.queue.Retry(ctx, job, delay); err != nil {
			logger.Error("failed to schedule retry", zap.Error(err))
			return
		}
		metrics.JobsProcessed.WithLabelValues("retried").Inc()
		logger.Warn("job failed, retry scheduled", zap.Duration("delay", delay), zap.Error(procErr))
	}
}

func (p *Pool) ack(ctx context.Context, logger *zap.Logger, job *entity.CrawlJob, outcome string) {
	if err := p.queue.Ack(ctx, job); err != nil {
		logger.Error("failed to acknowledge job", zap.Error(err))
		return
	}
	metrics.JobsProcessed.WithLabelValues(outcome).Inc()
}

func (p *Pool) deadLetter(ctx context.Context, logger *zap.Logger, job *entity.CrawlJob, procErr error, permanent bool) {
	err := p.deadLetters.Save(ctx, &entity.DeadLetter{
		URL:           job.URL,
		DiscoveredAt:  job.DiscoveredAt,
		Attempts:      job.Attempt + 1,
		FailureReason: procErr.Error(),
		Permanent:     permanent,
		FailedAt:      time.Now(),
	})
	if err != nil {
		logger.Error("failed to store dead letter", zap.Error(err))
		return
	}
	p.ack(ctx, logger, job, "dead_letter")
}

// RetryDelay returns the backoff before the retry that follows attempt: base * 2^attempt
// with ±20% jitter.
func (p *Pool) RetryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.BackoffBase
	b.RandomizationFactor = jitterFactor
	b.Multiplier = 2
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	var delay time.Duration
	for range attempt + 1 {
		delay = b.NextBackOff()
	}
	return delay
}

func (p *Pool) promote(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if moved, err := p.queue.PromoteDue(ctx); err != nil {
				if ctx.Err() == nil {
					p.logger.Error("retry promotion failed", zap.Error(err))
				}
			} else if moved > 0 {
				p.logger.Info("promoted due retries", zap.Int("count", moved))
			}
			if depth, err := p.queue.Depth(ctx); err == nil {
				metrics.JobsInQueue.Set(float64(depth))
			}
		}
	}
}
