// Package scheduler runs periodic jobs such as the invoice auto-release sweep.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
)

// Parser accepts standard 5-field cron expressions (minute, hour, dom, month, dow).
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner. Overlapping runs of the same job are skipped
// and panics are recovered.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// New creates a scheduler whose jobs each get at most timeout to run.
func New(timeout time.Duration) *Scheduler {
	l := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// Add registers job under name on the cron expression spec.
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		start := time.Now()
		entry := logger.L().WithField("job", name)
		if err := job(ctx); err != nil {
			entry.WithError(err).Error("scheduler: job failed")
			return
		}
		entry.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("scheduler: job finished")
	})
	if err != nil {
		return fmt.Errorf("scheduler: add %s (%q): %w", name, spec, err)
	}
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// NextRun returns the next fire time of spec after from.
func NextRun(spec string, from time.Time) (time.Time, error) {
	sched, err := Parser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduler: parse %q: %w", spec, err)
	}
	return sched.Next(from), nil
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.L().WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.L().WithFields(fields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func fields(kv []interface{}) logrus.Fields {
	out := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
