// Package scheduler drives recurring pipeline runs on a cron schedule,
// with an optional Redis lock so only one instance fires per window.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/talkless/talkless/config"
	"github.com/talkless/talkless/internal/pipeline"
)

// LastRunSource reports when the pipeline last started. A zero time
// means it never ran.
type LastRunSource interface {
	LatestRunTime(ctx context.Context) (time.Time, error)
}

const lockKey = "talkless:sched:lock"

// Scheduler ticks every minute and fires a run when the cron spec is due.
type Scheduler struct {
	cfg    config.SchedulerConfig
	orch   *pipeline.Orchestrator
	runs   LastRunSource
	rdb    *redis.Client
	logger *log.Logger
	stop   chan struct{}
}

// New builds a scheduler. rdb may be nil; the lock is then skipped.
func New(cfg config.SchedulerConfig, orch *pipeline.Orchestrator, runs LastRunSource, rdb *redis.Client, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	return &Scheduler{
		cfg:    cfg,
		orch:   orch,
		runs:   runs,
		rdb:    rdb,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Start blocks, ticking once a minute until ctx is cancelled or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Printf("Scheduler started with spec %q", s.cfg.CronSpec)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop signals the scheduler loop to exit.
func (s *Scheduler) Stop() { close(s.stop) }

func (s *Scheduler) tick(ctx context.Context) {
	last, err := s.runs.LatestRunTime(ctx)
	if err != nil {
		s.logger.Printf("Could not read last run time: %v", err)
		return
	}
	if !isDue(s.cfg.CronSpec, last, time.Now()) {
		return
	}

	// distributed lock to avoid duplicate runs
	if s.rdb != nil {
		ttl := s.cfg.LockTTL
		if ttl <= 0 {
			ttl = 2 * time.Minute
		}
		ok, err := s.rdb.SetNX(ctx, lockKey, "1", ttl).Result()
		if err != nil {
			s.logger.Printf("Lock acquisition failed: %v", err)
			return
		}
		if !ok {
			return
		}
		defer s.rdb.Del(ctx, lockKey)
	}

	s.logger.Printf("Schedule due, starting pipeline run")
	if _, err := s.orch.Execute(ctx); err != nil {
		s.logger.Printf("Scheduled run failed: %v", err)
	}
}

// isDue determines whether a run should fire now given the cron spec
// and the last run start. Supports "@daily", "@hourly", and standard
// cron expressions.
func isDue(cronSpec string, last time.Time, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	switch cronSpec {
	case "@daily":
		return now.Sub(last) >= 24*time.Hour
	case "@hourly":
		return now.Sub(last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			return now.Sub(last) >= 24*time.Hour
		}
		next := expr.Next(last)
		return !next.After(now)
	}
}
