package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/memohai/linkfix/internal/db"
)

// LinkPrefix prefixes the names of link fix events, e.g. "link_twitter".
const LinkPrefix = "link_"

var ErrInvalidEvent = errors.New("events: name is required")

// Event is one analytics record.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	GuildID   string    `json:"guild_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LinkEvent names the event recorded when a provider's link is fixed.
func LinkEvent(providerID string) string {
	return LinkPrefix + providerID
}

// Stat is the number of events with a name.
type Stat struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Store persists events.
type Store interface {
	Record(ctx context.Context, e Event) error
	Stats(ctx context.Context, since time.Time) ([]Stat, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

func prepare(e Event) (Event, error) {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return Event{}, ErrInvalidEvent
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e, nil
}

// PGStore stores events in postgres.
type PGStore struct {
	db db.DBTX
}

var _ Store = (*PGStore)(nil)

func NewPGStore(conn db.DBTX) *PGStore {
	return &PGStore{db: conn}
}

func (s *PGStore) Record(ctx context.Context, e Event) error {
	e, err := prepare(e)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO events (id, name, guild_id, created_at) VALUES ($1, $2, $3, $4)`,
		e.ID, e.Name, e.GuildID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PGStore) Stats(ctx context.Context, since time.Time) ([]Stat, error) {
	rows, err := s.db.Query(ctx,
		`SELECT name, count(*) FROM events WHERE created_at >= $1 GROUP BY name ORDER BY count(*) DESC, name`,
		since)
	if err != nil {
		return nil, fmt.Errorf("select event stats: %w", err)
	}
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Stat])
	if err != nil {
		return nil, fmt.Errorf("scan event stats: %w", err)
	}
	return stats, nil
}

func (s *PGStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM events WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MemoryStore keeps events in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Record(_ context.Context, e Event) error {
	e, err := prepare(e)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryStore) Stats(_ context.Context, since time.Time) ([]Stat, error) {
	m.mu.Lock()
	counts := map[string]int64{}
	for _, e := range m.events {
		if !e.CreatedAt.Before(since) {
			counts[e.Name]++
		}
	}
	m.mu.Unlock()
	stats := make([]Stat, 0, len(counts))
	for name, n := range counts {
		stats = append(stats, Stat{Name: name, Count: n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Name < stats[j].Name
	})
	return stats, nil
}

func (m *MemoryStore) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	var purged int64
	for _, e := range m.events {
		if e.CreatedAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return purged, nil
}
