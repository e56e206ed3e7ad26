package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/memohai/linkfix/internal/channel"
)

// DefaultNoticeCooldown throttles rate-limit notices to the event log channel.
const DefaultNoticeCooldown = time.Minute

// FailureKind classifies a soft delivery failure.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureEmbedTooLarge
	FailureRateLimited
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureEmbedTooLarge:
		return "embed_too_large"
	case FailureRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// ReplyMode is the guild's reply configuration.
type ReplyMode struct {
	ToMessage bool
	Silent    bool
}

// ChunkOutcome is the delivery result of one chunk.
type ChunkOutcome struct {
	Chunk   channel.Chunk
	Sent    bool
	Message *channel.SentMessage
	Failure FailureKind
}

// Outcome is the delivery result of one message's chunks.
type Outcome struct {
	// StartedAt is taken before the first send; embed updates older than it
	// cannot belong to the sent messages.
	StartedAt time.Time
	Chunks    []ChunkOutcome
}

// Sent returns the messages that were delivered, in order.
func (o Outcome) Sent() []channel.SentMessage {
	var out []channel.SentMessage
	for _, c := range o.Chunks {
		if c.Sent && c.Message != nil {
			out = append(out, *c.Message)
		}
	}
	return out
}

// FailedLinks returns the link indexes of chunks that failed softly.
func (o Outcome) FailedLinks() []int {
	var out []int
	for _, c := range o.Chunks {
		if !c.Sent {
			out = append(out, c.Chunk.Links...)
		}
	}
	return out
}

// Complete reports whether every chunk was sent.
func (o Outcome) Complete() bool {
	if len(o.Chunks) == 0 {
		return false
	}
	for _, c := range o.Chunks {
		if !c.Sent {
			return false
		}
	}
	return true
}

// Engine sends packed chunks sequentially.
type Engine struct {
	sender   channel.Sender
	notifier channel.Notifier
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	lastNotice time.Time
}

// NewEngine creates an Engine. notifier may be nil when no event log
// channel is configured.
func NewEngine(log *slog.Logger, sender channel.Sender, notifier channel.Notifier, cooldown time.Duration) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if cooldown <= 0 {
		cooldown = DefaultNoticeCooldown
	}
	return &Engine{
		sender:   sender,
		notifier: notifier,
		cooldown: cooldown,
		logger:   log.With(slog.String("component", "delivery")),
		now:      time.Now,
	}
}

// Deliver sends chunks in order, the first one as a reply when mode asks for
// it. Oversized cached embeds and rate limits are recorded on the outcome;
// any other error stops delivery and is returned with the partial outcome.
func (e *Engine) Deliver(ctx context.Context, chunks []channel.Chunk, mode ReplyMode, origin channel.Origin) (Outcome, error) {
	out := Outcome{StartedAt: e.now(), Chunks: make([]ChunkOutcome, 0, len(chunks))}
	noticed := false
	for i, chunk := range chunks {
		msg := channel.OutboundMessage{ChannelID: origin.ChannelID, Content: chunk.Text}
		if i == 0 && mode.ToMessage {
			msg.Reply = &channel.ReplyRef{MessageID: origin.MessageID, Silent: mode.Silent}
		}
		sent, err := e.sender.Send(ctx, msg)
		switch {
		case err == nil:
			out.Chunks = append(out.Chunks, ChunkOutcome{Chunk: chunk, Sent: true, Message: &sent})
		case errors.Is(err, channel.ErrEmbedTooLarge):
			e.logger.Info("chunk rejected for oversized cached embed",
				slog.String("channel_id", origin.ChannelID),
				slog.Int("chunk", i),
			)
			out.Chunks = append(out.Chunks, ChunkOutcome{Chunk: chunk, Failure: FailureEmbedTooLarge})
		case errors.Is(err, channel.ErrRateLimited):
			e.logger.Warn("chunk rate limited",
				slog.String("channel_id", origin.ChannelID),
				slog.Int("chunk", i),
			)
			out.Chunks = append(out.Chunks, ChunkOutcome{Chunk: chunk, Failure: FailureRateLimited})
			if !noticed {
				noticed = true
				e.noticeRateLimit(ctx, origin)
			}
		default:
			return out, fmt.Errorf("send chunk %d: %w", i, err)
		}
	}
	return out, nil
}

func (e *Engine) noticeRateLimit(ctx context.Context, origin channel.Origin) {
	if e.notifier == nil {
		return
	}
	e.mu.Lock()
	now := e.now()
	if !e.lastNotice.IsZero() && now.Sub(e.lastNotice) < e.cooldown {
		e.mu.Unlock()
		return
	}
	e.lastNotice = now
	e.mu.Unlock()

	text := fmt.Sprintf("Rate limited while sending fixed links (guild %s, channel %s).", origin.GuildID, origin.ChannelID)
	if err := e.notifier.Notify(context.WithoutCancel(ctx), text); err != nil {
		e.logger.Warn("rate limit notice failed", slog.Any("error", err))
	}
}
