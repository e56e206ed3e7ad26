package policy

import (
	"strings"

	"github.com/memohai/linkfix/internal/provider"
)

// OriginalMessagePolicy is what happens to the user's message once every
// fixed link was delivered and embedded.
type OriginalMessagePolicy string

const (
	OriginalNothing      OriginalMessagePolicy = "nothing"
	OriginalRemoveEmbeds OriginalMessagePolicy = "remove_embeds"
	OriginalDelete       OriginalMessagePolicy = "delete"
)

// ParseOriginalMessagePolicy falls back to OriginalRemoveEmbeds for unknown values.
func ParseOriginalMessagePolicy(raw string) OriginalMessagePolicy {
	switch OriginalMessagePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case OriginalNothing:
		return OriginalNothing
	case OriginalDelete:
		return OriginalDelete
	default:
		return OriginalRemoveEmbeds
	}
}

const DefaultLang = "en"

// ProviderSettings overrides the catalog defaults of one provider for a guild.
type ProviderSettings struct {
	Enabled   bool          `json:"enabled"`
	View      provider.View `json:"view,omitempty"`
	Translate bool          `json:"translate,omitempty"`
}

// GuildSettings is the per-guild configuration the pipeline consults.
type GuildSettings struct {
	GuildID   string                      `json:"guild_id"`
	Providers map[string]ProviderSettings `json:"providers,omitempty"`
	Lang      string                      `json:"lang"`

	ReplyToMessage  bool                  `json:"reply_to_message"`
	ReplySilently   bool                  `json:"reply_silently"`
	OriginalMessage OriginalMessagePolicy `json:"original_message"`
	Webhooks        bool                  `json:"webhooks"`

	Keywords                 []string `json:"keywords,omitempty"`
	KeywordsUseAllowList     bool     `json:"keywords_use_allow_list"`
	TextChannelsUseAllowList bool     `json:"text_channels_use_allow_list"`
	MembersUseAllowList      bool     `json:"members_use_allow_list"`
	RolesUseAllowList        bool     `json:"roles_use_allow_list"`
	RolesUseAnyRule          bool     `json:"roles_use_any_rule"`

	CustomSites []provider.CustomSite `json:"custom_sites,omitempty"`
	// LinkTemplate overrides the display template of fixed links.
	LinkTemplate string `json:"link_template,omitempty"`
}

// DefaultGuildSettings returns the settings of a guild that never changed anything.
func DefaultGuildSettings(guildID string) GuildSettings {
	return GuildSettings{
		GuildID:         guildID,
		Lang:            DefaultLang,
		ReplySilently:   true,
		OriginalMessage: OriginalRemoveEmbeds,
	}
}

func (s GuildSettings) normalize() GuildSettings {
	s.Lang = strings.TrimSpace(s.Lang)
	if s.Lang == "" {
		s.Lang = DefaultLang
	}
	s.OriginalMessage = ParseOriginalMessagePolicy(string(s.OriginalMessage))
	keywords := make([]string, 0, len(s.Keywords))
	for _, k := range s.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	s.Keywords = keywords
	for id, ps := range s.Providers {
		if ps.View != "" {
			ps.View = provider.ParseView(string(ps.View))
			s.Providers[id] = ps
		}
	}
	return s
}

// EntityKind names a filterable guild entity.
type EntityKind string

const (
	EntityTextChannel EntityKind = "text_channel"
	EntityMember      EntityKind = "member"
	EntityRole        EntityKind = "role"
)

func (k EntityKind) valid() bool {
	switch k {
	case EntityTextChannel, EntityMember, EntityRole:
		return true
	}
	return false
}

// ListEntry records whether an entity is on the guild's allow and deny lists.
// An entity the store has never seen is on neither.
type ListEntry struct {
	OnAllowList bool `json:"on_allow_list"`
	OnDenyList  bool `json:"on_deny_list"`
}

// Enabled applies the guild's list mode to the entry.
func (e ListEntry) Enabled(useAllowList bool) bool {
	if useAllowList {
		return e.OnAllowList
	}
	return !e.OnDenyList
}

// Snapshot is the store state needed to judge one message.
type Snapshot struct {
	Settings GuildSettings
	Channel  ListEntry
	Member   ListEntry
	Roles    []ListEntry
}

// Query describes an incoming message to the filter.
type Query struct {
	GuildID   string
	ChannelID string
	AuthorID  string
	RoleIDs   []string
	Text      string

	FromSelf bool
	System   bool
	Webhook  bool
	// IsMember is false for authors that are not guild members, e.g. webhooks.
	IsMember bool
}

// Reason explains a rejection.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonSelf    Reason = "self"
	ReasonSystem  Reason = "system"
	ReasonWebhook Reason = "webhook"
	ReasonKeyword Reason = "keyword"
	ReasonChannel Reason = "channel"
	ReasonMember  Reason = "member"
	ReasonRole    Reason = "role"
)
