package supervisor

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memohai/linkfix/internal/channel"
	"github.com/memohai/linkfix/internal/delivery"
	"github.com/memohai/linkfix/internal/policy"
)

const (
	DefaultEmbedTimeout  = 5 * time.Second
	DefaultSuppressDelay = 2 * time.Second
)

// EmbedState tracks a sent chunk message.
type EmbedState int

const (
	StateSent EmbedState = iota
	StateEmbedded
	StateNoEmbed
)

func (s EmbedState) String() string {
	switch s {
	case StateSent:
		return "sent"
	case StateEmbedded:
		return "embedded"
	case StateNoEmbed:
		return "no_embed"
	default:
		return "unknown"
	}
}

// OriginState tracks the user's message.
type OriginState int

const (
	OriginUntouched OriginState = iota
	OriginSuppressed
	OriginDeleted
	OriginUnchanged
)

func (s OriginState) String() string {
	switch s {
	case OriginUntouched:
		return "untouched"
	case OriginSuppressed:
		return "suppressed"
	case OriginDeleted:
		return "deleted"
	case OriginUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// ChunkResult is the reconciled state of one sent message.
type ChunkResult struct {
	Message channel.SentMessage
	State   EmbedState
	// Deleted is set when a message without embed was removed.
	Deleted bool
}

// Reconciliation is the result of waiting on every sent message.
type Reconciliation struct {
	Results []ChunkResult
}

// AllEmbedded reports whether every sent message gained an embed.
func (r Reconciliation) AllEmbedded() bool {
	for _, res := range r.Results {
		if res.State != StateEmbedded {
			return false
		}
	}
	return len(r.Results) > 0
}

type Options struct {
	EmbedTimeout time.Duration
	// SuppressDelay is how long to watch for late embeds after the first
	// suppression of the original message.
	SuppressDelay time.Duration
}

// Supervisor reconciles sent messages and the original message.
type Supervisor struct {
	watcher channel.EmbedWatcher
	editor  channel.MessageEditor
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

func New(log *slog.Logger, watcher channel.EmbedWatcher, editor channel.MessageEditor, opts Options) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = DefaultEmbedTimeout
	}
	if opts.SuppressDelay <= 0 {
		opts.SuppressDelay = DefaultSuppressDelay
	}
	return &Supervisor{
		watcher: watcher,
		editor:  editor,
		opts:    opts,
		logger:  log.With(slog.String("component", "supervisor")),
		now:     time.Now,
	}
}

// Reconcile waits concurrently for every sent message to gain an embed and
// deletes the ones that did not. Cancelling ctx ends the waits as timeouts.
func (s *Supervisor) Reconcile(ctx context.Context, outcome delivery.Outcome) Reconciliation {
	sent := outcome.Sent()
	results := make([]ChunkResult, len(sent))
	var g errgroup.Group
	for i, msg := range sent {
		results[i] = ChunkResult{Message: msg, State: StateSent}
		g.Go(func() error {
			results[i].State = s.awaitEmbed(ctx, msg, outcome.StartedAt)
			return nil
		})
	}
	_ = g.Wait()

	cleanup := context.WithoutCancel(ctx)
	for i := range results {
		if results[i].State != StateNoEmbed {
			continue
		}
		msg := results[i].Message
		err := s.editor.DeleteMessage(cleanup, msg.ChannelID, msg.ID)
		switch {
		case err == nil:
			results[i].Deleted = true
		case channel.IsStale(err):
			s.logger.Debug("message without embed already gone", slog.String("message_id", msg.ID))
		default:
			s.logger.Warn("delete message without embed", slog.String("message_id", msg.ID), slog.Any("error", err))
		}
	}
	return Reconciliation{Results: results}
}

func (s *Supervisor) awaitEmbed(ctx context.Context, msg channel.SentMessage, since time.Time) EmbedState {
	if msg.EmbedCount > 0 {
		return StateEmbedded
	}
	if _, ok := s.watcher.WaitForEmbeds(ctx, channel.EmbedWait{
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		Since:     since,
		Timeout:   s.opts.EmbedTimeout,
	}); ok {
		return StateEmbedded
	}
	return StateNoEmbed
}

// ShouldMutate reports whether the original message may be touched: every
// chunk was sent and every sent message is embedded.
func ShouldMutate(outcome delivery.Outcome, rec Reconciliation) bool {
	return outcome.Complete() && rec.AllEmbedded()
}

// MutateOrigin applies the guild's policy to the original message.
// Errors are never returned: a message or permission that is gone leaves the
// message unchanged.
func (s *Supervisor) MutateOrigin(ctx context.Context, origin channel.Origin, p policy.OriginalMessagePolicy, canManage bool) OriginState {
	if !canManage {
		return OriginUnchanged
	}
	log := s.logger.With(slog.String("message_id", origin.MessageID), slog.String("policy", string(p)))
	switch p {
	case policy.OriginalDelete:
		if err := s.editor.DeleteMessage(context.WithoutCancel(ctx), origin.ChannelID, origin.MessageID); err != nil {
			s.logMutationError(log, "delete original message", err)
			return OriginUnchanged
		}
		return OriginDeleted
	case policy.OriginalRemoveEmbeds:
		return s.suppressOrigin(ctx, log, origin)
	default:
		return OriginUnchanged
	}
}

func (s *Supervisor) suppressOrigin(ctx context.Context, log *slog.Logger, origin channel.Origin) OriginState {
	// Suppressing before the platform fetched the previews would let them
	// appear afterwards.
	if origin.EmbedCount == 0 {
		s.watcher.WaitForEmbeds(ctx, channel.EmbedWait{
			ChannelID: origin.ChannelID,
			MessageID: origin.MessageID,
			Timeout:   s.opts.EmbedTimeout,
		})
	}
	mutate := context.WithoutCancel(ctx)
	if err := s.editor.SuppressEmbeds(mutate, origin.ChannelID, origin.MessageID); err != nil {
		s.logMutationError(log, "suppress original embeds", err)
		return OriginUnchanged
	}
	suppressedAt := s.now()
	if _, ok := s.watcher.WaitForEmbeds(ctx, channel.EmbedWait{
		ChannelID: origin.ChannelID,
		MessageID: origin.MessageID,
		Since:     suppressedAt,
		Timeout:   s.opts.SuppressDelay,
	}); ok {
		log.Debug("embeds appeared after suppression, suppressing again")
		if err := s.editor.SuppressEmbeds(mutate, origin.ChannelID, origin.MessageID); err != nil {
			s.logMutationError(log, "suppress original embeds again", err)
		}
	}
	return OriginSuppressed
}

func (s *Supervisor) logMutationError(log *slog.Logger, msg string, err error) {
	if channel.IsStale(err) {
		log.Debug(msg, slog.Any("error", err))
		return
	}
	log.Warn(msg, slog.Any("error", err))
}
