package linkfix

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memohai/linkfix/internal/channel"
	"github.com/memohai/linkfix/internal/delivery"
	"github.com/memohai/linkfix/internal/events"
	"github.com/memohai/linkfix/internal/policy"
	"github.com/memohai/linkfix/internal/provider"
	"github.com/memohai/linkfix/internal/render"
	"github.com/memohai/linkfix/internal/richtext"
	"github.com/memohai/linkfix/internal/supervisor"
)

// Checker decides whether a message is processed.
type Checker interface {
	Check(ctx context.Context, q policy.Query) (policy.Decision, error)
}

// Recorder stores analytics events.
type Recorder interface {
	Record(ctx context.Context, e events.Event) error
}

// Skip explains why a message produced no output.
type Skip string

const (
	SkipNone          Skip = ""
	SkipNoCandidates  Skip = "no_candidates"
	SkipFiltered      Skip = "filtered"
	SkipNoMatch       Skip = "no_match"
	SkipNoPermission  Skip = "no_permission"
	SkipNothingRender Skip = "nothing_rendered"
)

// Result summarizes the handling of one message.
type Result struct {
	Skip           Skip
	Reason         policy.Reason
	Candidates     []Candidate
	Matched        []provider.MatchedLink
	Rendered       []render.RenderedLink
	Chunks         []channel.Chunk
	Outcome        delivery.Outcome
	Reconciliation supervisor.Reconciliation
	Origin         supervisor.OriginState
}

type Options struct {
	MessageLimit int
	Analytics    bool
}

// Service runs the link fixing pipeline for incoming messages.
type Service struct {
	registry   *provider.Registry
	checker    Checker
	renderer   *render.Renderer
	platform   channel.Platform
	engine     *delivery.Engine
	supervisor *supervisor.Supervisor
	recorder   Recorder
	opts       Options
	logger     *slog.Logger
}

// NewService wires the pipeline. recorder may be nil.
func NewService(
	log *slog.Logger,
	registry *provider.Registry,
	checker Checker,
	renderer *render.Renderer,
	platform channel.Platform,
	engine *delivery.Engine,
	sup *supervisor.Supervisor,
	recorder Recorder,
	opts Options,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = channel.DefaultMessageLimit
	}
	return &Service{
		registry:   registry,
		checker:    checker,
		renderer:   renderer,
		platform:   platform,
		engine:     engine,
		supervisor: sup,
		recorder:   recorder,
		opts:       opts,
		logger:     log.With(slog.String("service", "linkfix")),
	}
}

// HandleMessage fixes the links of one message. Only failures that mean the
// bot cannot send at all are returned.
func (s *Service) HandleMessage(ctx context.Context, msg channel.IncomingMessage) (Result, error) {
	var res Result
	res.Origin = supervisor.OriginUntouched
	if strings.TrimSpace(msg.Content) == "" {
		res.Skip = SkipNoCandidates
		return res, nil
	}
	res.Candidates = ExtractCandidates(richtext.Parse(msg.Content))
	if len(res.Candidates) == 0 {
		res.Skip = SkipNoCandidates
		return res, nil
	}

	decision, err := s.checker.Check(ctx, policy.Query{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		AuthorID:  msg.AuthorID,
		RoleIDs:   msg.RoleIDs,
		Text:      msg.Content,
		FromSelf:  msg.FromSelf,
		System:    msg.System,
		Webhook:   msg.Webhook,
		IsMember:  msg.IsMember,
	})
	if err != nil {
		return res, fmt.Errorf("policy check: %w", err)
	}
	if !decision.Accept {
		res.Skip, res.Reason = SkipFiltered, decision.Reason
		return res, nil
	}
	settings := decision.Settings

	for _, c := range res.Candidates {
		if link, ok := s.registry.Match(c.URL, c.Spoiler, decision, settings.CustomSites); ok {
			res.Matched = append(res.Matched, link)
		}
	}
	if len(res.Matched) == 0 {
		res.Skip = SkipNoMatch
		return res, nil
	}

	log := s.logger.With(
		slog.String("guild_id", msg.GuildID),
		slog.String("channel_id", msg.ChannelID),
		slog.String("message_id", msg.MessageID),
	)
	perms, err := s.platform.Permissions(ctx, msg.ChannelID)
	if err != nil {
		log.Debug("permissions unavailable", slog.Any("error", err))
		res.Skip = SkipNoPermission
		return res, nil
	}
	if !perms.CanFix() {
		res.Skip = SkipNoPermission
		return res, nil
	}

	if err := s.platform.Typing(ctx, msg.ChannelID); err != nil {
		log.Debug("typing indicator failed", slog.Any("error", err))
	}
	res.Rendered = s.renderer.WithTemplate(settings.LinkTemplate).RenderAll(ctx, res.Matched)
	texts := make([]string, 0, len(res.Rendered))
	for i, rl := range res.Rendered {
		if !rl.Succeeded {
			continue
		}
		texts = append(texts, rl.Text)
		s.record(ctx, log, events.LinkEvent(res.Matched[i].Provider.ID), msg.GuildID)
	}
	if len(texts) == 0 {
		res.Skip = SkipNothingRender
		return res, nil
	}

	res.Chunks = channel.Pack(texts, s.opts.MessageLimit)
	res.Outcome, err = s.engine.Deliver(ctx, res.Chunks, delivery.ReplyMode{
		ToMessage: settings.ReplyToMessage,
		Silent:    settings.ReplySilently,
	}, msg.Origin)
	if err != nil {
		return res, fmt.Errorf("deliver fixed links: %w", err)
	}

	res.Reconciliation = s.supervisor.Reconcile(ctx, res.Outcome)
	if !supervisor.ShouldMutate(res.Outcome, res.Reconciliation) {
		res.Origin = supervisor.OriginUnchanged
		log.Debug("original message left untouched",
			slog.Int("chunks", len(res.Chunks)),
			slog.Int("sent", len(res.Outcome.Sent())),
		)
		return res, nil
	}
	res.Origin = s.supervisor.MutateOrigin(ctx, msg.Origin, settings.OriginalMessage, perms.ManageMessages)
	log.Debug("links fixed",
		slog.Int("links", len(texts)),
		slog.Int("chunks", len(res.Chunks)),
		slog.String("origin", res.Origin.String()),
	)
	return res, nil
}

func (s *Service) record(ctx context.Context, log *slog.Logger, name, guildID string) {
	if !s.opts.Analytics || s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, events.Event{Name: name, GuildID: guildID}); err != nil {
		log.Warn("record event failed", slog.String("event", name), slog.Any("error", err))
	}
}
