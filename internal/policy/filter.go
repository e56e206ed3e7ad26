package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memohai/linkfix/internal/provider"
)

// Decision is the verdict for one message. It doubles as the guild's
// provider preferences for matching.
type Decision struct {
	Accept   bool
	Reason   Reason
	Settings GuildSettings

	registry *provider.Registry
}

var _ provider.Preferences = Decision{}

func (d Decision) ProviderEnabled(id string) bool {
	if ps, ok := d.Settings.Providers[id]; ok {
		return ps.Enabled
	}
	return provider.Defaults{Registry: d.registry}.ProviderEnabled(id)
}

func (d Decision) ProviderView(id string) provider.View {
	return provider.ParseView(string(d.Settings.Providers[id].View))
}

func (d Decision) TranslationLang(id string) string {
	if !d.Settings.Providers[id].Translate {
		return ""
	}
	return d.Settings.Lang
}

func reject(reason Reason, settings GuildSettings) Decision {
	return Decision{Reason: reason, Settings: settings}
}

// Evaluate judges a message against a store snapshot. It performs no I/O.
func Evaluate(snap Snapshot, q Query) Decision {
	s := snap.Settings
	switch {
	case q.FromSelf:
		return reject(ReasonSelf, s)
	case q.System:
		return reject(ReasonSystem, s)
	case q.Webhook && !s.Webhooks:
		return reject(ReasonWebhook, s)
	case !keywordsAllow(s, q.Text):
		return reject(ReasonKeyword, s)
	case !snap.Channel.Enabled(s.TextChannelsUseAllowList):
		return reject(ReasonChannel, s)
	}
	if q.IsMember {
		if !snap.Member.Enabled(s.MembersUseAllowList) {
			return reject(ReasonMember, s)
		}
		if !rolesAllow(s, snap.Roles) {
			return reject(ReasonRole, s)
		}
	}
	return Decision{Accept: true, Settings: s}
}

func keywordsAllow(s GuildSettings, text string) bool {
	if len(s.Keywords) == 0 {
		return true
	}
	text = strings.ToLower(text)
	found := false
	for _, k := range s.Keywords {
		if strings.Contains(text, strings.ToLower(k)) {
			found = true
			break
		}
	}
	if s.KeywordsUseAllowList {
		return found
	}
	return !found
}

func rolesAllow(s GuildSettings, roles []ListEntry) bool {
	if len(roles) == 0 {
		return true
	}
	if s.RolesUseAnyRule {
		for _, r := range roles {
			if r.Enabled(s.RolesUseAllowList) {
				return true
			}
		}
		return false
	}
	for _, r := range roles {
		if !r.Enabled(s.RolesUseAllowList) {
			return false
		}
	}
	return true
}

// Filter loads guild state from a Store and evaluates messages against it.
type Filter struct {
	store    Store
	registry *provider.Registry
	logger   *slog.Logger
}

func NewFilter(log *slog.Logger, store Store, registry *provider.Registry) *Filter {
	if log == nil {
		log = slog.Default()
	}
	return &Filter{
		store:    store,
		registry: registry,
		logger:   log.With(slog.String("component", "policy")),
	}
}

// Check decides whether the message is processed. Messages from the bot
// itself or from the system are rejected without touching the store.
func (f *Filter) Check(ctx context.Context, q Query) (Decision, error) {
	var d Decision
	if q.FromSelf || q.System {
		d = Evaluate(Snapshot{Settings: DefaultGuildSettings(q.GuildID)}, q)
	} else {
		snap, err := f.store.Snapshot(ctx, q.GuildID, q.ChannelID, q.AuthorID, q.RoleIDs)
		if err != nil {
			return Decision{}, fmt.Errorf("load policy snapshot: %w", err)
		}
		d = Evaluate(snap, q)
	}
	d.registry = f.registry
	if !d.Accept {
		f.logger.Debug("message filtered",
			slog.String("guild_id", q.GuildID),
			slog.String("channel_id", q.ChannelID),
			slog.String("reason", string(d.Reason)),
		)
	}
	return d, nil
}
