package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 50 * time.Second

// Job is one unit of background work. It returns how many items it handled.
type Job func(ctx context.Context) (int, error)

type Spec struct {
	Name     string
	Schedule string
	Run      Job
}

// Scheduler runs background jobs on robfig/cron. A run that overlaps the
// previous one of the same job is skipped.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

func New(log *zap.Logger, specs ...Spec) (*Scheduler, error) {
	cl := cronLogger{log: log}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	s := &Scheduler{cron: c, log: log}
	for _, spec := range specs {
		if _, err := c.AddFunc(spec.Schedule, s.wrap(spec)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) wrap(spec Spec) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		n, err := spec.Run(ctx)
		if err != nil {
			s.log.Error("job failed", zap.String("job", spec.Name), zap.Error(err))
			return
		}
		if n > 0 {
			s.log.Info("job finished",
				zap.String("job", spec.Name),
				zap.Int("handled", n),
				zap.Duration("took", time.Since(start)))
		}
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("cron scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("cron jobs still running at shutdown")
	}
}

type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
