package channelchecker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memohai/linkfix/internal/healthcheck"
)

const (
	checkTypeChannelConnection = "channel.connection"
	checkTypeEmbedWaiters      = "channel.embed_waiters"

	// DefaultMaxWaiters is the number of pending embed waits above which the
	// check warns.
	DefaultMaxWaiters = 500
)

// ConnectionObserver reports whether the platform session is ready.
type ConnectionObserver interface {
	Ready() bool
}

// WaiterCounter reports the number of pending embed waits.
type WaiterCounter interface {
	Pending() int
}

var _ healthcheck.Checker = (*Checker)(nil)

// Checker evaluates the chat platform connection.
type Checker struct {
	logger     *slog.Logger
	platform   string
	observer   ConnectionObserver
	waiters    WaiterCounter
	maxWaiters int
}

// NewChecker creates a channel health checker. waiters may be nil.
func NewChecker(log *slog.Logger, platform string, observer ConnectionObserver, waiters WaiterCounter) *Checker {
	if log == nil {
		log = slog.Default()
	}
	platform = strings.TrimSpace(platform)
	if platform == "" {
		platform = "unknown"
	}
	return &Checker{
		logger:     log.With(slog.String("checker", "healthcheck_channel")),
		platform:   platform,
		observer:   observer,
		waiters:    waiters,
		maxWaiters: DefaultMaxWaiters,
	}
}

// ListChecks evaluates the connection and the embed wait backlog.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	// Observers are context-free; best effort early cancellation guard.
	if err := ctx.Err(); err != nil {
		return []healthcheck.CheckResult{}
	}
	if c.observer == nil {
		c.logger.Warn("channel healthcheck dependency is unavailable", slog.String("platform", c.platform))
		return []healthcheck.CheckResult{
			{
				ID:      checkTypeChannelConnection + ".service",
				Type:    checkTypeChannelConnection,
				Status:  healthcheck.StatusWarn,
				Summary: "Channel checker service is not available.",
				Detail:  "connection observer is nil",
			},
		}
	}

	conn := healthcheck.CheckResult{
		ID:       checkTypeChannelConnection + "." + c.platform,
		Type:     checkTypeChannelConnection,
		Status:   healthcheck.StatusError,
		Summary:  fmt.Sprintf("Channel %s connection is down.", c.platform),
		Metadata: map[string]any{"platform": c.platform},
	}
	if c.observer.Ready() {
		conn.Status = healthcheck.StatusOK
		conn.Summary = fmt.Sprintf("Channel %s is connected.", c.platform)
	}
	checks := []healthcheck.CheckResult{conn}

	if c.waiters != nil {
		pending := c.waiters.Pending()
		item := healthcheck.CheckResult{
			ID:       checkTypeEmbedWaiters + "." + c.platform,
			Type:     checkTypeEmbedWaiters,
			Status:   healthcheck.StatusOK,
			Summary:  fmt.Sprintf("%d embed waits pending.", pending),
			Metadata: map[string]any{"pending": pending, "max": c.maxWaiters},
		}
		if pending > c.maxWaiters {
			item.Status = healthcheck.StatusWarn
			item.Detail = "embed updates may not be arriving from the gateway"
		}
		checks = append(checks, item)
	}
	return checks
}
