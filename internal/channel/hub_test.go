package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitPending(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.Pending() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d pending waiters, got %d", n, h.Pending())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHubWakesWaiter(t *testing.T) {
	t.Parallel()

	h := NewHub(time.Minute)
	var (
		wg    sync.WaitGroup
		count int
		ok    bool
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		count, ok = h.WaitForEmbeds(context.Background(), EmbedWait{MessageID: "m1", Timeout: time.Second})
	}()
	waitPending(t, h, 1)

	h.Publish(EmbedUpdate{MessageID: "m1", EmbedCount: 0})
	h.Publish(EmbedUpdate{MessageID: "other", EmbedCount: 2})
	h.Publish(EmbedUpdate{MessageID: "m1", EmbedCount: 1})
	wg.Wait()

	if !ok || count != 1 {
		t.Fatalf("expected one embed, got %d %v", count, ok)
	}
	if h.Pending() != 0 {
		t.Fatalf("waiter not removed")
	}
}

func TestHubRemembersEarlyUpdates(t *testing.T) {
	t.Parallel()

	h := NewHub(time.Minute)
	sent := time.Now()
	h.Publish(EmbedUpdate{MessageID: "m1", EmbedCount: 2})

	count, ok := h.WaitForEmbeds(context.Background(), EmbedWait{MessageID: "m1", Since: sent, Timeout: time.Millisecond})
	if !ok || count != 2 {
		t.Fatalf("expected cached update, got %d %v", count, ok)
	}

	// Updates older than Since do not count.
	_, ok = h.WaitForEmbeds(context.Background(), EmbedWait{MessageID: "m1", Since: time.Now().Add(time.Hour), Timeout: time.Millisecond})
	if ok {
		t.Fatal("expected stale update to be ignored")
	}

	// Nor do counts that are not above Have.
	_, ok = h.WaitForEmbeds(context.Background(), EmbedWait{MessageID: "m1", Have: 2, Timeout: time.Millisecond})
	if ok {
		t.Fatal("expected no new embeds")
	}
}

func TestHubTimeoutRemovesWaiter(t *testing.T) {
	t.Parallel()

	h := NewHub(time.Minute)
	start := time.Now()
	count, ok := h.WaitForEmbeds(context.Background(), EmbedWait{MessageID: "m1", Have: 1, Timeout: 20 * time.Millisecond})
	if ok || count != 1 {
		t.Fatalf("expected timeout, got %d %v", count, ok)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("returned before the timeout")
	}
	if h.Pending() != 0 {
		t.Fatalf("expected waiter to be removed, %d pending", h.Pending())
	}
}

func TestHubContextCancelIsTimeout(t *testing.T) {
	t.Parallel()

	h := NewHub(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := h.WaitForEmbeds(ctx, EmbedWait{MessageID: "m1", Timeout: time.Minute})
		done <- ok
	}()
	waitPending(t, h, 1)
	cancel()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected cancelled wait to fail")
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not return after cancel")
	}
	waitPending(t, h, 0)
}

func TestHubExpiresObservations(t *testing.T) {
	t.Parallel()

	h := NewHub(time.Second)
	now := time.Unix(1000, 0)
	h.now = func() time.Time { return now }
	h.Publish(EmbedUpdate{MessageID: "m1", EmbedCount: 1})

	now = now.Add(2 * time.Second)
	if _, ok := h.WaitForEmbeds(context.Background(), EmbedWait{MessageID: "m1"}); ok {
		t.Fatal("expected expired observation to be ignored")
	}
	h.Publish(EmbedUpdate{MessageID: "m2", EmbedCount: 1})
	h.mu.Lock()
	_, kept := h.recent["m1"]
	h.mu.Unlock()
	if kept {
		t.Fatal("expected expired observation to be swept")
	}
}
