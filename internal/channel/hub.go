package channel

import (
	"context"
	"sync"
	"time"
)

// DefaultObservationTTL is how long the Hub remembers embed counts.
const DefaultObservationTTL = time.Minute

type observation struct {
	count int
	at    time.Time
}

type embedWaiter struct {
	have  int
	since time.Time
	ch    chan int
}

// Hub fans platform message updates out to embed waiters. Recent updates are
// remembered so an update that lands before its waiter subscribes still counts.
type Hub struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	recent    map[string]observation
	waiters   map[string]map[uint64]*embedWaiter
	nextID    uint64
	lastSweep time.Time
}

var _ EmbedWatcher = (*Hub)(nil)

func NewHub(ttl time.Duration) *Hub {
	if ttl <= 0 {
		ttl = DefaultObservationTTL
	}
	return &Hub{
		ttl:     ttl,
		now:     time.Now,
		recent:  map[string]observation{},
		waiters: map[string]map[uint64]*embedWaiter{},
	}
}

// Publish records an update and wakes the waiters it satisfies.
func (h *Hub) Publish(u EmbedUpdate) {
	if u.MessageID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	h.recent[u.MessageID] = observation{count: u.EmbedCount, at: now}
	for id, w := range h.waiters[u.MessageID] {
		if u.EmbedCount <= w.have || now.Before(w.since) {
			continue
		}
		w.ch <- u.EmbedCount
		delete(h.waiters[u.MessageID], id)
	}
	if len(h.waiters[u.MessageID]) == 0 {
		delete(h.waiters, u.MessageID)
	}
	h.sweepLocked(now)
}

func (h *Hub) sweepLocked(now time.Time) {
	if now.Sub(h.lastSweep) < h.ttl {
		return
	}
	h.lastSweep = now
	for id, obs := range h.recent {
		if now.Sub(obs.at) > h.ttl {
			delete(h.recent, id)
		}
	}
}

// WaitForEmbeds blocks until an update reports more than req.Have embeds for
// the message, the timeout elapses, or ctx is done.
func (h *Hub) WaitForEmbeds(ctx context.Context, req EmbedWait) (int, bool) {
	h.mu.Lock()
	if obs, ok := h.recent[req.MessageID]; ok && obs.count > req.Have &&
		!obs.at.Before(req.Since) && h.now().Sub(obs.at) <= h.ttl {
		h.mu.Unlock()
		return obs.count, true
	}
	if req.Timeout <= 0 {
		h.mu.Unlock()
		return req.Have, false
	}
	h.nextID++
	id := h.nextID
	w := &embedWaiter{have: req.Have, since: req.Since, ch: make(chan int, 1)}
	if h.waiters[req.MessageID] == nil {
		h.waiters[req.MessageID] = map[uint64]*embedWaiter{}
	}
	h.waiters[req.MessageID][id] = w
	h.mu.Unlock()

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()
	select {
	case count := <-w.ch:
		return count, true
	case <-timer.C:
	case <-ctx.Done():
	}
	h.remove(req.MessageID, id)
	select {
	case count := <-w.ch:
		return count, true
	default:
		return req.Have, false
	}
}

func (h *Hub) remove(messageID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.waiters[messageID], id)
	if len(h.waiters[messageID]) == 0 {
		delete(h.waiters, messageID)
	}
}

// Pending returns the number of registered waiters.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ws := range h.waiters {
		n += len(ws)
	}
	return n
}
