// Package discord connects the link pipeline to Discord through discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/memohai/linkfix/internal/channel"
)

const inboundDedupTTL = time.Minute

// ErrNotReady is returned before the gateway reported the bot's own user.
var ErrNotReady = errors.New("discord: session not ready")

// Handler processes one inbound guild message.
type Handler func(ctx context.Context, msg channel.IncomingMessage) error

// Publisher receives embed count updates of edited messages.
type Publisher interface {
	Publish(u channel.EmbedUpdate)
}

// session is the subset of *discordgo.Session the adapter calls.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

type Options struct {
	// EventLogChannelID receives operational notices. Empty disables them.
	EventLogChannelID string
}

// DiscordAdapter implements channel.Platform and channel.Notifier on top of a
// discordgo session and turns gateway events into pipeline input.
type DiscordAdapter struct {
	logger   *slog.Logger
	session  session
	hub      Publisher
	eventLog string
	now      func() time.Time

	mu           sync.Mutex
	selfID       string
	seenMessages map[string]time.Time
	removers     []func()
	cancel       context.CancelFunc
}

var (
	_ channel.Platform = (*DiscordAdapter)(nil)
	_ channel.Notifier = (*DiscordAdapter)(nil)
)

// NewSession creates a bot session that surfaces rate limits instead of
// sleeping through them.
func NewSession(token string) (*discordgo.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.ShouldRetryOnRateLimit = false
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	return s, nil
}

func NewDiscordAdapter(log *slog.Logger, s session, hub Publisher, opts Options) *DiscordAdapter {
	if log == nil {
		log = slog.Default()
	}
	return &DiscordAdapter{
		logger:       log.With(slog.String("adapter", "discord")),
		session:      s,
		hub:          hub,
		eventLog:     strings.TrimSpace(opts.EventLogChannelID),
		now:          time.Now,
		seenMessages: make(map[string]time.Time),
	}
}

// Connect registers the gateway handlers on s and opens the connection.
// Inbound messages are handled on their own goroutine until Close.
func (a *DiscordAdapter) Connect(s *discordgo.Session, handler Handler) error {
	ctx, cancel := context.WithCancel(context.Background())
	removers := []func(){
		s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			if r.User != nil {
				a.setSelfID(r.User.ID)
				a.logger.Info("ready", slog.String("user_id", r.User.ID), slog.Int("guilds", len(r.Guilds)))
			}
		}),
		s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			a.onMessageCreate(ctx, handler, m.Message)
		}),
		s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
			a.onMessageUpdate(m.Message)
		}),
	}

	a.mu.Lock()
	a.removers = removers
	a.cancel = cancel
	a.mu.Unlock()

	if err := s.Open(); err != nil {
		a.Close()
		return fmt.Errorf("discord open connection: %w", err)
	}
	a.logger.Info("connected")
	return nil
}

// Close stops inbound handling. The caller closes the session itself.
func (a *DiscordAdapter) Close() {
	a.mu.Lock()
	removers, cancel := a.removers, a.cancel
	a.removers, a.cancel = nil, nil
	a.mu.Unlock()
	for _, remove := range removers {
		remove()
	}
	if cancel != nil {
		cancel()
	}
}

func (a *DiscordAdapter) setSelfID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selfID = id
}

func (a *DiscordAdapter) self() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selfID
}

// Ready reports whether the gateway has delivered the Ready event.
func (a *DiscordAdapter) Ready() bool {
	return a.self() != ""
}

func (a *DiscordAdapter) onMessageCreate(ctx context.Context, handler Handler, m *discordgo.Message) {
	if ctx.Err() != nil {
		return
	}
	msg, ok := a.incoming(m)
	if !ok {
		return
	}
	if a.isDuplicateInbound(m.ID) {
		return
	}
	a.logger.Debug("inbound received",
		slog.String("guild_id", msg.GuildID),
		slog.String("channel_id", msg.ChannelID),
		slog.String("message_id", msg.MessageID),
	)
	go func() {
		if err := handler(ctx, msg); err != nil {
			a.logger.Error("handle inbound failed",
				slog.String("guild_id", msg.GuildID),
				slog.String("message_id", msg.MessageID),
				slog.Any("error", err),
			)
		}
	}()
}

func (a *DiscordAdapter) onMessageUpdate(m *discordgo.Message) {
	if m == nil || m.ID == "" || a.hub == nil {
		return
	}
	a.hub.Publish(channel.EmbedUpdate{
		ChannelID:  m.ChannelID,
		MessageID:  m.ID,
		EmbedCount: embedCount(m),
	})
}

// incoming converts a gateway message. Direct messages and messages
// without content are dropped here.
func (a *DiscordAdapter) incoming(m *discordgo.Message) (channel.IncomingMessage, bool) {
	if m == nil || m.Author == nil || m.GuildID == "" || strings.TrimSpace(m.Content) == "" {
		return channel.IncomingMessage{}, false
	}
	self := a.self()
	msg := channel.IncomingMessage{
		Origin: channel.Origin{
			GuildID:    m.GuildID,
			ChannelID:  m.ChannelID,
			MessageID:  m.ID,
			AuthorID:   m.Author.ID,
			EmbedCount: embedCount(m),
		},
		Content:    m.Content,
		FromSelf:   self != "" && m.Author.ID == self,
		System:     m.Type != discordgo.MessageTypeDefault && m.Type != discordgo.MessageTypeReply,
		Webhook:    m.WebhookID != "",
		ReceivedAt: a.now().UTC(),
	}
	if m.Member != nil && !msg.Webhook {
		msg.IsMember = true
		msg.RoleIDs = append([]string(nil), m.Member.Roles...)
	}
	return msg, true
}

// embedCount is zero for messages whose embeds are suppressed.
func embedCount(m *discordgo.Message) int {
	if m.Flags&discordgo.MessageFlagsSuppressEmbeds != 0 {
		return 0
	}
	return len(m.Embeds)
}

func (a *DiscordAdapter) isDuplicateInbound(messageID string) bool {
	if strings.TrimSpace(messageID) == "" {
		return false
	}

	now := a.now().UTC()
	expireBefore := now.Add(-inboundDedupTTL)

	a.mu.Lock()
	defer a.mu.Unlock()

	for key, seenAt := range a.seenMessages {
		if seenAt.Before(expireBefore) {
			delete(a.seenMessages, key)
		}
	}

	if _, ok := a.seenMessages[messageID]; ok {
		return true
	}
	a.seenMessages[messageID] = now
	return false
}

func (a *DiscordAdapter) Send(ctx context.Context, msg channel.OutboundMessage) (channel.SentMessage, error) {
	channelID := strings.TrimSpace(msg.ChannelID)
	if channelID == "" {
		return channel.SentMessage{}, errors.New("discord target is required")
	}
	data := &discordgo.MessageSend{
		Content:         msg.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if msg.Reply != nil && msg.Reply.MessageID != "" {
		failIfNotExists := false
		data.Reference = &discordgo.MessageReference{
			MessageID:       msg.Reply.MessageID,
			ChannelID:       channelID,
			FailIfNotExists: &failIfNotExists,
		}
		data.AllowedMentions.RepliedUser = !msg.Reply.Silent
	}
	sent, err := a.session.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return channel.SentMessage{}, mapError("send message", err)
	}
	return channel.SentMessage{
		ID:         sent.ID,
		ChannelID:  channelID,
		EmbedCount: embedCount(sent),
	}, nil
}

func (a *DiscordAdapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return mapError("delete message", a.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (a *DiscordAdapter) SuppressEmbeds(ctx context.Context, channelID, messageID string) error {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Flags = discordgo.MessageFlagsSuppressEmbeds
	_, err := a.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return mapError("suppress embeds", err)
}

func (a *DiscordAdapter) Typing(ctx context.Context, channelID string) error {
	return mapError("typing", a.session.ChannelTyping(channelID, discordgo.WithContext(ctx)))
}

func (a *DiscordAdapter) Permissions(ctx context.Context, channelID string) (channel.Permissions, error) {
	self := a.self()
	if self == "" {
		return channel.Permissions{}, ErrNotReady
	}
	perms, err := a.session.UserChannelPermissions(self, channelID, discordgo.WithContext(ctx))
	if err != nil {
		return channel.Permissions{}, mapError("channel permissions", err)
	}
	return channel.Permissions{
		SendMessages:   perms&discordgo.PermissionSendMessages != 0,
		EmbedLinks:     perms&discordgo.PermissionEmbedLinks != 0,
		ManageMessages: perms&discordgo.PermissionManageMessages != 0,
	}, nil
}

// Notify posts text to the event log channel, if one is configured.
func (a *DiscordAdapter) Notify(ctx context.Context, text string) error {
	if a.eventLog == "" {
		return nil
	}
	_, err := a.session.ChannelMessageSendComplex(a.eventLog, &discordgo.MessageSend{
		Content:         text,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	return mapError("notify", err)
}
