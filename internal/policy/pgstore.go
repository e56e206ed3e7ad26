package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/memohai/linkfix/internal/db"
	"github.com/memohai/linkfix/internal/provider"
)

// PGStore is the postgres Store. Guilds without a row read as defaults.
type PGStore struct {
	db db.DBTX
}

var _ Store = (*PGStore)(nil)

func NewPGStore(conn db.DBTX) *PGStore {
	return &PGStore{db: conn}
}

const selectGuild = `SELECT providers, lang, reply_to_message, reply_silently, original_message, webhooks,
	keywords, keywords_use_allow_list, text_channels_use_allow_list, members_use_allow_list,
	roles_use_allow_list, roles_use_any_rule, link_render_template
FROM guilds WHERE id = $1`

const selectCustomSites = `SELECT name, domain, fix_domain FROM custom_websites
WHERE guild_id = $1 ORDER BY position, id`

const selectEntries = `SELECT kind, entity_id, on_allow_list, on_deny_list FROM filter_entries
WHERE guild_id = $1 AND (
	(kind = 'text_channel' AND entity_id = $2)
	OR (kind = 'member' AND entity_id = $3)
	OR (kind = 'role' AND entity_id = ANY($4))
)`

func (s *PGStore) GuildSettings(ctx context.Context, guildID string) (GuildSettings, error) {
	if strings.TrimSpace(guildID) == "" {
		return GuildSettings{}, ErrInvalidGuild
	}
	settings := DefaultGuildSettings(guildID)
	var (
		providers []byte
		original  string
	)
	err := s.db.QueryRow(ctx, selectGuild, guildID).Scan(
		&providers,
		&settings.Lang,
		&settings.ReplyToMessage,
		&settings.ReplySilently,
		&original,
		&settings.Webhooks,
		&settings.Keywords,
		&settings.KeywordsUseAllowList,
		&settings.TextChannelsUseAllowList,
		&settings.MembersUseAllowList,
		&settings.RolesUseAllowList,
		&settings.RolesUseAnyRule,
		&settings.LinkTemplate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return GuildSettings{}, fmt.Errorf("select guild %s: %w", guildID, err)
	}
	settings.OriginalMessage = OriginalMessagePolicy(original)
	if len(providers) > 0 {
		if err := json.Unmarshal(providers, &settings.Providers); err != nil {
			return GuildSettings{}, fmt.Errorf("decode guild %s providers: %w", guildID, err)
		}
	}

	rows, err := s.db.Query(ctx, selectCustomSites, guildID)
	if err != nil {
		return GuildSettings{}, fmt.Errorf("select custom websites: %w", err)
	}
	sites, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (provider.CustomSite, error) {
		var site provider.CustomSite
		err := row.Scan(&site.Name, &site.Domain, &site.FixDomain)
		return site, err
	})
	if err != nil {
		return GuildSettings{}, fmt.Errorf("scan custom websites: %w", err)
	}
	settings.CustomSites = sites
	return settings.normalize(), nil
}

func (s *PGStore) Snapshot(ctx context.Context, guildID, channelID, memberID string, roleIDs []string) (Snapshot, error) {
	settings, err := s.GuildSettings(ctx, guildID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Settings: settings}
	if roleIDs == nil {
		roleIDs = []string{}
	}
	rows, err := s.db.Query(ctx, selectEntries, guildID, channelID, memberID, roleIDs)
	if err != nil {
		return Snapshot{}, fmt.Errorf("select filter entries: %w", err)
	}
	defer rows.Close()
	roles := map[string]ListEntry{}
	for rows.Next() {
		var (
			kind, id string
			entry    ListEntry
		)
		if err := rows.Scan(&kind, &id, &entry.OnAllowList, &entry.OnDenyList); err != nil {
			return Snapshot{}, fmt.Errorf("scan filter entry: %w", err)
		}
		switch EntityKind(kind) {
		case EntityTextChannel:
			snap.Channel = entry
		case EntityMember:
			snap.Member = entry
		case EntityRole:
			roles[id] = entry
		}
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("read filter entries: %w", err)
	}
	for _, id := range roleIDs {
		snap.Roles = append(snap.Roles, roles[id])
	}
	return snap, nil
}

const upsertGuild = `INSERT INTO guilds (id, providers, lang, reply_to_message, reply_silently, original_message,
	webhooks, keywords, keywords_use_allow_list, text_channels_use_allow_list, members_use_allow_list,
	roles_use_allow_list, roles_use_any_rule, link_render_template)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
	providers = EXCLUDED.providers,
	lang = EXCLUDED.lang,
	reply_to_message = EXCLUDED.reply_to_message,
	reply_silently = EXCLUDED.reply_silently,
	original_message = EXCLUDED.original_message,
	webhooks = EXCLUDED.webhooks,
	keywords = EXCLUDED.keywords,
	keywords_use_allow_list = EXCLUDED.keywords_use_allow_list,
	text_channels_use_allow_list = EXCLUDED.text_channels_use_allow_list,
	members_use_allow_list = EXCLUDED.members_use_allow_list,
	roles_use_allow_list = EXCLUDED.roles_use_allow_list,
	roles_use_any_rule = EXCLUDED.roles_use_any_rule,
	link_render_template = EXCLUDED.link_render_template,
	updated_at = now()`

func (s *PGStore) SaveGuildSettings(ctx context.Context, settings GuildSettings) (GuildSettings, error) {
	settings, err := validateSettings(cloneSettings(settings))
	if err != nil {
		return GuildSettings{}, err
	}
	providers := settings.Providers
	if providers == nil {
		providers = map[string]ProviderSettings{}
	}
	rawProviders, err := json.Marshal(providers)
	if err != nil {
		return GuildSettings{}, fmt.Errorf("encode providers: %w", err)
	}
	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertGuild,
			settings.GuildID,
			rawProviders,
			settings.Lang,
			settings.ReplyToMessage,
			settings.ReplySilently,
			string(settings.OriginalMessage),
			settings.Webhooks,
			settings.Keywords,
			settings.KeywordsUseAllowList,
			settings.TextChannelsUseAllowList,
			settings.MembersUseAllowList,
			settings.RolesUseAllowList,
			settings.RolesUseAnyRule,
			settings.LinkTemplate,
		); err != nil {
			return fmt.Errorf("upsert guild: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM custom_websites WHERE guild_id = $1`, settings.GuildID); err != nil {
			return fmt.Errorf("clear custom websites: %w", err)
		}
		for i, site := range settings.CustomSites {
			if _, err := tx.Exec(ctx,
				`INSERT INTO custom_websites (guild_id, position, name, domain, fix_domain) VALUES ($1, $2, $3, $4, $5)`,
				settings.GuildID, i, site.Name, site.Domain, site.FixDomain,
			); err != nil {
				return fmt.Errorf("insert custom website: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return GuildSettings{}, err
	}
	return settings, nil
}

func (s *PGStore) SetListEntry(ctx context.Context, guildID string, kind EntityKind, id string, entry ListEntry) error {
	if strings.TrimSpace(guildID) == "" {
		return ErrInvalidGuild
	}
	if !kind.valid() || strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s %q", ErrInvalidEntity, kind, id)
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO guilds (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, guildID); err != nil {
			return fmt.Errorf("ensure guild: %w", err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO filter_entries (guild_id, kind, entity_id, on_allow_list, on_deny_list)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (guild_id, kind, entity_id) DO UPDATE SET
	on_allow_list = EXCLUDED.on_allow_list,
	on_deny_list = EXCLUDED.on_deny_list`,
			guildID, string(kind), id, entry.OnAllowList, entry.OnDenyList)
		if err != nil {
			return fmt.Errorf("upsert filter entry: %w", err)
		}
		return nil
	})
}
