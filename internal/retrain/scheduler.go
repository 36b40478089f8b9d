package retrain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule accepts a standard 5-field cron expression or a descriptor
// such as "@daily".
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := scheduleParser.Parse(strings.TrimSpace(spec))
	if err != nil {
		return nil, fmt.Errorf("parse retrain schedule %q: %w", spec, err)
	}
	return s, nil
}

// Job is what the scheduler fires, usually a retrain check or a workflow start.
type Job func(ctx context.Context) error

// Scheduler fires a Job on a cron schedule. A firing is skipped while the
// previous one is still running.
type Scheduler struct {
	spec  string
	sched cron.Schedule
	job   Job
	log   *slog.Logger
	c     *cron.Cron
}

func NewScheduler(spec string, job Job, l *slog.Logger) (*Scheduler, error) {
	if l == nil {
		l = slog.Default()
	}
	sched, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	return &Scheduler{spec: spec, sched: sched, job: job, log: l}, nil
}

// Next reports the first firing after t.
func (s *Scheduler) Next(t time.Time) time.Time { return s.sched.Next(t) }

// Start runs the scheduler until ctx is done or Stop is called. Jobs get
// ctx, so cancelling it also cancels a running job.
func (s *Scheduler) Start(ctx context.Context) {
	logger := cronLogger{s.log}
	s.c = cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s.c.Schedule(s.sched, cron.FuncJob(func() {
		started := time.Now()
		if err := s.job(ctx); err != nil {
			s.log.Error("scheduled retrain failed", "err", err, "duration", time.Since(started).Round(time.Millisecond))
			return
		}
		s.log.Info("scheduled retrain done", "duration", time.Since(started).Round(time.Millisecond))
	}))
	s.c.Start()
	s.log.Info("retrain scheduler started", "schedule", s.spec, "next", s.Next(time.Now()).Format(time.RFC3339))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{"err", err}, keysAndValues...)...)
}
