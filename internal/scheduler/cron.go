package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/newsfeed/crawler-service/internal/usecase"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CycleRunner runs one discovery cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (usecase.CycleResult, error)
}

// Scheduler triggers discovery cycles on a cron schedule. A trigger that fires while a
// cycle is still running is skipped.
type Scheduler struct {
	cron       *cron.Cron
	schedule   cron.Schedule
	job        cron.Job
	runner     CycleRunner
	runOnStart bool
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	// startup tracks the run-on-start cycle, which cron does not wait for.
	startup sync.WaitGroup
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a scheduler for the cron expression expr, e.g. "@every 5m" or "*/5 * * * *".
func New(expr string, runOnStart bool, runner CycleRunner, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("runner cannot be nil")
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	logger = logger.Named("scheduler")
	cronLogger := cronLog{logger.Sugar()}
	s := &Scheduler{
		cron:       cron.New(cron.WithParser(parser), cron.WithLogger(cronLogger)),
		schedule:   schedule,
		runner:     runner,
		runOnStart: runOnStart,
		logger:     logger,
	}
	s.job = cron.NewChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)).
		Then(cron.FuncJob(s.runCycle))
	return s, nil
}

// Start begins triggering cycles until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Schedule(s.schedule, s.job)
	s.cron.Start()
	s.logger.Info("scheduler started")

	if s.runOnStart {
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			s.job.Run()
		}()
	}
}

// Stop prevents new cycles, cancels a running one and waits for it to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.startup.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runCycle() {
	if s.ctx.Err() != nil {
		return
	}
	if _, err := s.runner.RunCycle(s.ctx); err != nil {
		s.logger.Error("discovery cycle failed", zap.Error(err))
	}
}

// cronLog routes cron's own logging through zap.
type cronLog struct {
	sugar *zap.SugaredLogger
}

func (l cronLog) Info(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
