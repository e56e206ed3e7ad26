package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/memohai/linkfix/internal/provider"
)

var (
	ErrInvalidGuild      = errors.New("policy: guild id is required")
	ErrInvalidEntity     = errors.New("policy: invalid entity")
	ErrInvalidCustomSite = errors.New("policy: invalid custom site")
)

// Store persists guild settings and the allow/deny list entries.
type Store interface {
	Snapshot(ctx context.Context, guildID, channelID, memberID string, roleIDs []string) (Snapshot, error)
	GuildSettings(ctx context.Context, guildID string) (GuildSettings, error)
	SaveGuildSettings(ctx context.Context, settings GuildSettings) (GuildSettings, error)
	SetListEntry(ctx context.Context, guildID string, kind EntityKind, id string, entry ListEntry) error
}

func validateSettings(s GuildSettings) (GuildSettings, error) {
	if strings.TrimSpace(s.GuildID) == "" {
		return GuildSettings{}, ErrInvalidGuild
	}
	for _, site := range s.CustomSites {
		if strings.TrimSpace(site.Domain) == "" || strings.TrimSpace(site.FixDomain) == "" {
			return GuildSettings{}, fmt.Errorf("%w: %q needs domain and fix_domain", ErrInvalidCustomSite, site.Name)
		}
	}
	return s.normalize(), nil
}

type entityKey struct {
	guild string
	kind  EntityKind
	id    string
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	guilds  map[string]GuildSettings
	entries map[entityKey]ListEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		guilds:  map[string]GuildSettings{},
		entries: map[entityKey]ListEntry{},
	}
}

func (m *MemoryStore) Snapshot(_ context.Context, guildID, channelID, memberID string, roleIDs []string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := Snapshot{
		Settings: m.settingsLocked(guildID),
		Channel:  m.entries[entityKey{guildID, EntityTextChannel, channelID}],
		Member:   m.entries[entityKey{guildID, EntityMember, memberID}],
	}
	for _, id := range roleIDs {
		snap.Roles = append(snap.Roles, m.entries[entityKey{guildID, EntityRole, id}])
	}
	return snap, nil
}

func (m *MemoryStore) GuildSettings(_ context.Context, guildID string) (GuildSettings, error) {
	if strings.TrimSpace(guildID) == "" {
		return GuildSettings{}, ErrInvalidGuild
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settingsLocked(guildID), nil
}

func (m *MemoryStore) settingsLocked(guildID string) GuildSettings {
	s, ok := m.guilds[guildID]
	if !ok {
		return DefaultGuildSettings(guildID)
	}
	return cloneSettings(s)
}

func (m *MemoryStore) SaveGuildSettings(_ context.Context, settings GuildSettings) (GuildSettings, error) {
	settings, err := validateSettings(cloneSettings(settings))
	if err != nil {
		return GuildSettings{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guilds[settings.GuildID] = settings
	return cloneSettings(settings), nil
}

func (m *MemoryStore) SetListEntry(_ context.Context, guildID string, kind EntityKind, id string, entry ListEntry) error {
	if strings.TrimSpace(guildID) == "" {
		return ErrInvalidGuild
	}
	if !kind.valid() || strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s %q", ErrInvalidEntity, kind, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entityKey{guildID, kind, id}] = entry
	return nil
}

func cloneSettings(s GuildSettings) GuildSettings {
	if s.Providers != nil {
		providers := make(map[string]ProviderSettings, len(s.Providers))
		for k, v := range s.Providers {
			providers[k] = v
		}
		s.Providers = providers
	}
	s.Keywords = append([]string(nil), s.Keywords...)
	s.CustomSites = append([]provider.CustomSite(nil), s.CustomSites...)
	return s
}
