package render

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"text/template"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memohai/linkfix/internal/provider"
)

// DefaultTemplate renders "[Label • author](fixed url)".
const DefaultTemplate = `[{{.Label}}{{with .Author}} • {{.}}{{end}}]({{.FixedURL}})`

const (
	DefaultVerifyTimeout = 15 * time.Second
	DefaultConcurrency   = 8
)

// RenderedLink is the display form of a matched link. Links that could not
// be rendered have Succeeded false and are dropped by the caller.
type RenderedLink struct {
	Text      string
	FixedURL  string
	Succeeded bool
}

// Verifier checks that the embed proxy can serve a fixed URL.
type Verifier interface {
	Verify(ctx context.Context, fixedURL string) error
}

// LinkData is the value display templates are executed with.
type LinkData struct {
	ProviderID  string
	Name        string
	Label       string
	Author      string
	FixedURL    string
	OriginalURL string
	Captures    map[string]string
}

type Options struct {
	// VerifyTimeout bounds each verification call.
	VerifyTimeout time.Duration
	// Concurrency caps the renders in flight for one message.
	Concurrency int
}

// Renderer turns matched links into display text.
type Renderer struct {
	verifier Verifier
	opts     Options
	logger   *slog.Logger
	tpl      *template.Template

	// shared by every Renderer derived with WithTemplate
	cache *templateCache
}

type templateCache struct {
	mu    sync.Mutex
	items map[string]*template.Template
}

var defaultTemplate = template.Must(template.New("link").Parse(DefaultTemplate))

// NewRenderer creates a Renderer. A nil verifier skips verification, so
// verified providers render like template ones.
func NewRenderer(log *slog.Logger, verifier Verifier, opts Options) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = DefaultVerifyTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Renderer{
		verifier: verifier,
		opts:     opts,
		logger:   log.With(slog.String("component", "render")),
		tpl:      defaultTemplate,
		cache:    &templateCache{items: map[string]*template.Template{}},
	}
}

// ParseTemplate validates a display template.
func ParseTemplate(src string) (*template.Template, error) {
	return template.New("link").Option("missingkey=zero").Parse(src)
}

// WithTemplate returns a Renderer that uses src as display template. An
// empty or invalid template keeps the default one.
func (r *Renderer) WithTemplate(src string) *Renderer {
	src = strings.TrimSpace(src)
	if src == "" || src == DefaultTemplate {
		return r
	}
	r.cache.mu.Lock()
	tpl, ok := r.cache.items[src]
	if !ok {
		parsed, err := ParseTemplate(src)
		if err != nil {
			r.logger.Warn("invalid link template, using default", slog.Any("error", err))
			parsed = defaultTemplate
		}
		r.cache.items[src] = parsed
		tpl = parsed
	}
	r.cache.mu.Unlock()
	clone := *r
	clone.tpl = tpl
	return &clone
}

// FixedURL builds the embed proxy URL for a matched link.
func FixedURL(link provider.MatchedLink) string {
	p := link.Provider
	var b strings.Builder
	b.WriteString("https://")
	b.WriteString(p.SubdomainPrefix(link.View))
	b.WriteString(p.FixDomain)
	b.WriteString(link.Pattern.Expand(link.Captures))
	if link.Lang != "" {
		b.WriteByte('/')
		b.WriteString(link.Lang)
	}
	b.WriteString(link.Pattern.EncodeQuery(link.Captures))
	return b.String()
}

// Render resolves one link. It never returns an error: verification
// failures and template errors yield Succeeded false.
func (r *Renderer) Render(ctx context.Context, link provider.MatchedLink) RenderedLink {
	if link.Provider == nil || link.Pattern == nil {
		return RenderedLink{}
	}
	fixed := FixedURL(link)
	if link.Provider.Strategy == provider.StrategyVerified && r.verifier != nil {
		vctx, cancel := context.WithTimeout(ctx, r.opts.VerifyTimeout)
		err := r.verifier.Verify(vctx, fixed)
		cancel()
		if err != nil {
			r.logger.Debug("link verification failed",
				slog.String("provider", link.Provider.ID),
				slog.String("url", fixed),
				slog.Any("error", err),
			)
			return RenderedLink{FixedURL: fixed}
		}
	}

	text, err := r.display(link, fixed)
	if err != nil {
		r.logger.Warn("render link template", slog.String("provider", link.Provider.ID), slog.Any("error", err))
		return RenderedLink{FixedURL: fixed}
	}
	if link.Spoiler {
		text = "||" + text + " ||"
	}
	return RenderedLink{Text: text, FixedURL: fixed, Succeeded: true}
}

func (r *Renderer) display(link provider.MatchedLink, fixed string) (string, error) {
	data := LinkData{
		ProviderID:  link.Provider.ID,
		Name:        link.Provider.Name,
		Label:       link.Provider.Label,
		Author:      link.Author(),
		FixedURL:    fixed,
		OriginalURL: link.OriginalURL,
		Captures:    link.Captures,
	}
	var b strings.Builder
	if err := r.tpl.Execute(&b, data); err != nil {
		return "", err
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return fixed, nil
	}
	return text, nil
}

// RenderAll renders links concurrently and returns the results in input order.
func (r *Renderer) RenderAll(ctx context.Context, links []provider.MatchedLink) []RenderedLink {
	out := make([]RenderedLink, len(links))
	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, link := range links {
		g.Go(func() error {
			out[i] = r.Render(ctx, link)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
