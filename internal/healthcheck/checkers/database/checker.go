package dbchecker

import (
	"context"
	"log/slog"
	"time"

	"github.com/memohai/linkfix/internal/healthcheck"
)

const (
	checkTypeDatabase = "database.ping"
	defaultTimeout    = 2 * time.Second
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ healthcheck.Checker = (*Checker)(nil)

// Checker pings the database.
type Checker struct {
	logger  *slog.Logger
	db      Pinger
	timeout time.Duration
}

func NewChecker(log *slog.Logger, db Pinger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:  log.With(slog.String("checker", "healthcheck_database")),
		db:      db,
		timeout: defaultTimeout,
	}
}

func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	item := healthcheck.CheckResult{
		ID:     checkTypeDatabase,
		Type:   checkTypeDatabase,
		Status: healthcheck.StatusOK,
	}
	if c.db == nil {
		item.Status = healthcheck.StatusWarn
		item.Summary = "Database checker service is not available."
		return []healthcheck.CheckResult{item}
	}
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()
	err := c.db.Ping(pctx)
	item.Metadata = map[string]any{"latency_ms": time.Since(start).Milliseconds()}
	if err != nil {
		c.logger.Warn("database ping failed", slog.Any("error", err))
		item.Status = healthcheck.StatusError
		item.Summary = "Database is unreachable."
		item.Detail = err.Error()
		return []healthcheck.CheckResult{item}
	}
	item.Summary = "Database is reachable."
	return []healthcheck.CheckResult{item}
}
