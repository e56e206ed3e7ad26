// Package channel defines the platform-neutral message model used by the link
// pipeline, the platform capabilities it needs, and helpers shared by adapters.
package channel

import (
	"errors"
	"time"
)

// Platform failures adapters translate their API errors into.
var (
	// ErrRateLimited means the platform throttled the request.
	ErrRateLimited = errors.New("channel: rate limited")
	// ErrEmbedTooLarge means the platform rejected a message because a cached
	// preview of one of its links is too large.
	ErrEmbedTooLarge = errors.New("channel: cached embed too large")
	ErrNotFound      = errors.New("channel: message or channel not found")
	ErrForbidden     = errors.New("channel: missing permission")
)

// IsStale reports whether err means the target is gone or out of reach.
func IsStale(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}

// Origin identifies the user message links were found in.
type Origin struct {
	GuildID    string
	ChannelID  string
	MessageID  string
	AuthorID   string
	EmbedCount int
}

// IncomingMessage is a message received from the platform.
type IncomingMessage struct {
	Origin
	Content string
	RoleIDs []string

	FromSelf bool
	System   bool
	Webhook  bool
	// IsMember is set when the author is a guild member.
	IsMember   bool
	ReceivedAt time.Time
}

// ReplyRef makes an outbound message a reply.
type ReplyRef struct {
	MessageID string
	// Silent replies do not ping the replied-to author.
	Silent bool
}

// OutboundMessage is a message the bot sends.
type OutboundMessage struct {
	ChannelID string
	Content   string
	Reply     *ReplyRef
}

// SentMessage is what the platform returned for a sent message.
type SentMessage struct {
	ID         string
	ChannelID  string
	EmbedCount int
}

// Permissions are the bot's permissions in a channel.
type Permissions struct {
	SendMessages   bool
	EmbedLinks     bool
	ManageMessages bool
}

// CanFix reports whether the bot can post fixed links in the channel.
func (p Permissions) CanFix() bool {
	return p.SendMessages && p.EmbedLinks
}

// EmbedUpdate is a message update observed on the platform.
type EmbedUpdate struct {
	ChannelID  string
	MessageID  string
	EmbedCount int
}

// EmbedWait describes what WaitForEmbeds waits for.
type EmbedWait struct {
	ChannelID string
	MessageID string
	// Have is the embed count already known; the wait ends when an update
	// reports more.
	Have int
	// Since discards updates observed before it.
	Since   time.Time
	Timeout time.Duration
}
