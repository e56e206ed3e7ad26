package channelchecker

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/memohai/linkfix/internal/healthcheck"
)

type fakeObserver struct {
	ready bool
}

func (f fakeObserver) Ready() bool { return f.ready }

type fakeWaiters int

func (f fakeWaiters) Pending() int { return int(f) }

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckerListChecks(t *testing.T) {
	t.Parallel()

	checker := NewChecker(newTestLogger(), "discord", fakeObserver{ready: true}, fakeWaiters(3))
	items := checker.ListChecks(context.Background())
	if len(items) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(items))
	}
	if items[0].ID != "channel.connection.discord" || items[0].Status != healthcheck.StatusOK {
		t.Fatalf("unexpected connection check: %+v", items[0])
	}
	if items[1].Status != healthcheck.StatusOK || items[1].Metadata["pending"] != 3 {
		t.Fatalf("unexpected waiter check: %+v", items[1])
	}
}

func TestCheckerDisconnectedAndBacklog(t *testing.T) {
	t.Parallel()

	checker := NewChecker(newTestLogger(), "discord", fakeObserver{}, fakeWaiters(DefaultMaxWaiters+1))
	items := checker.ListChecks(context.Background())
	if items[0].Status != healthcheck.StatusError {
		t.Fatalf("expected error for a session that is not ready, got %s", items[0].Status)
	}
	if items[1].Status != healthcheck.StatusWarn {
		t.Fatalf("expected warn for waiter backlog, got %s", items[1].Status)
	}

	report := healthcheck.Run(context.Background(), checker)
	if report.Status != healthcheck.StatusError {
		t.Fatalf("report must carry the worst status, got %s", report.Status)
	}
}

func TestCheckerNilObserver(t *testing.T) {
	t.Parallel()

	checker := NewChecker(newTestLogger(), "", nil, nil)
	items := checker.ListChecks(context.Background())
	if len(items) != 1 {
		t.Fatalf("expected service warning check, got %d", len(items))
	}
	if items[0].Status != "warn" {
		t.Fatalf("expected warn status, got %s", items[0].Status)
	}
}

func TestCheckerCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if items := NewChecker(nil, "discord", fakeObserver{ready: true}, nil).ListChecks(ctx); len(items) != 0 {
		t.Fatalf("expected no checks after cancellation, got %d", len(items))
	}
}
