package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/memohai/linkfix/internal/route"
)

// Strategy selects how a provider's fixed link is produced.
type Strategy string

const (
	// StrategyTemplate rewrites the URL purely from the route template.
	StrategyTemplate Strategy = "template"
	// StrategyVerified rewrites like StrategyTemplate and then asks the embed
	// proxy whether it can render the post before using the link.
	StrategyVerified Strategy = "verified"
	// StrategyCustom is used for per-community custom sites.
	StrategyCustom Strategy = "custom"
)

// View is a presentation variant offered by some embed proxies.
type View string

const (
	ViewNormal      View = "normal"
	ViewGallery     View = "gallery"
	ViewTextOnly    View = "text_only"
	ViewDirectMedia View = "direct_media"
)

// ParseView normalizes a stored view name, falling back to ViewNormal.
func ParseView(raw string) View {
	switch View(strings.ToLower(strings.TrimSpace(raw))) {
	case ViewGallery:
		return ViewGallery
	case ViewTextOnly:
		return ViewTextOnly
	case ViewDirectMedia:
		return ViewDirectMedia
	default:
		return ViewNormal
	}
}

// CustomProviderID identifies links matched against community custom sites.
const CustomProviderID = "custom"

var ErrInvalidProvider = errors.New("provider: invalid definition")

// RouteSpec declares one route template and its optional query parameters.
type RouteSpec struct {
	Path  string   `yaml:"path" json:"path"`
	Query []string `yaml:"query,omitempty" json:"query,omitempty"`
}

// Provider describes a source site and the embed proxy that fixes its links.
type Provider struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Label string `yaml:"label" json:"label"`

	Domains   []string    `yaml:"domains" json:"domains"`
	Routes    []RouteSpec `yaml:"routes" json:"routes"`
	FixDomain string      `yaml:"fix_domain" json:"fix_domain"`
	// Views maps a view to the subdomain prefix of FixDomain, e.g. "g.".
	Views          map[View]string `yaml:"views,omitempty" json:"views,omitempty"`
	Translation    bool            `yaml:"translation,omitempty" json:"translation,omitempty"`
	Strategy       Strategy        `yaml:"strategy" json:"strategy"`
	DefaultEnabled bool            `yaml:"enabled" json:"enabled"`

	patterns []*route.Pattern
}

// Patterns returns the compiled routes in declaration order.
func (p *Provider) Patterns() []*route.Pattern {
	return p.patterns
}

// SubdomainPrefix returns the fix-domain prefix for the view. Providers
// without view support, or without an entry for the view, use the normal
// variant.
func (p *Provider) SubdomainPrefix(view View) string {
	if len(p.Views) == 0 {
		return ""
	}
	if prefix, ok := p.Views[view]; ok {
		return prefix
	}
	return p.Views[ViewNormal]
}

// SupportsView reports whether the provider declares the view.
func (p *Provider) SupportsView(view View) bool {
	_, ok := p.Views[view]
	return ok
}

func (p *Provider) compile() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidProvider)
	}
	if strings.TrimSpace(p.FixDomain) == "" {
		return fmt.Errorf("%w: %s: fix_domain is required", ErrInvalidProvider, p.ID)
	}
	if len(p.Domains) == 0 || len(p.Routes) == 0 {
		return fmt.Errorf("%w: %s: domains and routes are required", ErrInvalidProvider, p.ID)
	}
	switch p.Strategy {
	case "":
		p.Strategy = StrategyTemplate
	case StrategyTemplate, StrategyVerified:
	default:
		return fmt.Errorf("%w: %s: unknown strategy %q", ErrInvalidProvider, p.ID, p.Strategy)
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	if p.Label == "" {
		p.Label = p.Name
	}
	p.patterns = make([]*route.Pattern, 0, len(p.Routes))
	for _, spec := range p.Routes {
		pattern, err := route.Compile(p.Domains, spec.Path, spec.Query)
		if err != nil {
			return fmt.Errorf("provider %s: route %q: %w", p.ID, spec.Path, err)
		}
		p.patterns = append(p.patterns, pattern)
	}
	return nil
}

// Preferences is the per-community view of the provider set, supplied by the
// policy layer.
type Preferences interface {
	ProviderEnabled(id string) bool
	ProviderView(id string) View
	// TranslationLang returns the target language, or "" when the community
	// did not enable translation for the provider.
	TranslationLang(id string) string
}

// Defaults is a Preferences that applies each provider's catalog defaults.
type Defaults struct {
	Registry *Registry
}

func (d Defaults) ProviderEnabled(id string) bool {
	if d.Registry == nil {
		return true
	}
	p, ok := d.Registry.Get(id)
	return ok && p.DefaultEnabled
}

func (Defaults) ProviderView(string) View      { return ViewNormal }
func (Defaults) TranslationLang(string) string { return "" }

// CustomSite is a community-defined domain rewrite.
type CustomSite struct {
	Name      string `json:"name"`
	Domain    string `json:"domain"`
	FixDomain string `json:"fix_domain"`
}

// MatchedLink is a candidate URL bound to the provider that can fix it.
type MatchedLink struct {
	Provider    *Provider
	OriginalURL string
	Captures    route.Captures
	Pattern     *route.Pattern
	View        View
	Lang        string
	Spoiler     bool
}

// Author returns the captured username, if the route has one.
func (m MatchedLink) Author() string {
	return m.Captures["username"]
}
