package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor purges events older than the retention period on a cron schedule.
type Janitor struct {
	store     Store
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
	now       func() time.Time
}

// NewJanitor parses schedule (standard cron syntax or descriptors such as
// "@daily") and prepares the purge job.
func NewJanitor(log *slog.Logger, store Store, schedule string, retention time.Duration) (*Janitor, error) {
	if log == nil {
		log = slog.Default()
	}
	j := &Janitor{
		store:     store,
		retention: retention,
		logger:    log.With(slog.String("component", "events_janitor")),
		now:       time.Now,
	}
	j.cron = cron.New(cron.WithLogger(cronLogger{log: j.logger}))
	if _, err := j.cron.AddFunc(schedule, func() { j.Purge(context.Background()) }); err != nil {
		return nil, fmt.Errorf("events purge schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Purge deletes expired events and returns how many were removed.
func (j *Janitor) Purge(ctx context.Context) int64 {
	cutoff := j.now().Add(-j.retention)
	n, err := j.store.Purge(ctx, cutoff)
	if err != nil {
		j.logger.Error("purge events failed", slog.Any("error", err))
		return 0
	}
	j.logger.Info("purged events", slog.Int64("count", n), slog.Time("before", cutoff))
	return n
}

func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop stops the scheduler and waits for a running purge, or for ctx.
func (j *Janitor) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
