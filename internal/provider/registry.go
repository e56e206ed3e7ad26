package provider

import (
	"fmt"
	"strings"
	"sync"

	"github.com/memohai/linkfix/internal/route"
)

// customRoute captures everything after the custom domain.
const customRoute = "/:path(.+)"

// Registry is an ordered, immutable list of providers. Instances must be
// created via NewRegistry and passed explicitly; there is no global registry.
type Registry struct {
	providers []*Provider
	byID      map[string]*Provider

	// custom caches compiled custom site patterns by domain. A nil entry
	// records a domain that does not compile.
	mu     sync.RWMutex
	custom map[string]*route.Pattern
}

// NewRegistry validates the providers and compiles their routes. Order is
// preserved: earlier providers win when several could match a URL.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{
		providers: make([]*Provider, 0, len(providers)),
		byID:      make(map[string]*Provider, len(providers)),
		custom:    make(map[string]*route.Pattern),
	}
	for i := range providers {
		p := providers[i]
		p.Domains = append([]string(nil), p.Domains...)
		p.Routes = append([]RouteSpec(nil), p.Routes...)
		if err := p.compile(); err != nil {
			return nil, err
		}
		if p.ID == CustomProviderID {
			return nil, fmt.Errorf("%w: id %q is reserved", ErrInvalidProvider, p.ID)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidProvider, p.ID)
		}
		r.providers = append(r.providers, &p)
		r.byID[p.ID] = &p
	}
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(providers ...Provider) *Registry {
	r, err := NewRegistry(providers...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get looks up a provider by id.
func (r *Registry) Get(id string) (*Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// List returns the providers in match order.
func (r *Registry) List() []*Provider {
	out := make([]*Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Match binds rawURL to the first enabled provider with a matching route.
// Community custom sites are tried after every built-in provider.
func (r *Registry) Match(rawURL string, spoiler bool, prefs Preferences, custom []CustomSite) (MatchedLink, bool) {
	for _, p := range r.providers {
		if prefs != nil && !prefs.ProviderEnabled(p.ID) {
			continue
		}
		for _, pattern := range p.patterns {
			caps, ok := pattern.Match(rawURL)
			if !ok {
				continue
			}
			link := MatchedLink{
				Provider:    p,
				OriginalURL: rawURL,
				Captures:    caps,
				Pattern:     pattern,
				View:        ViewNormal,
				Spoiler:     spoiler,
			}
			if prefs != nil {
				link.View = prefs.ProviderView(p.ID)
				if p.Translation {
					link.Lang = prefs.TranslationLang(p.ID)
				}
			}
			return link, true
		}
	}
	return r.matchCustom(rawURL, spoiler, custom)
}

// customPattern returns the compiled route for a custom site domain.
func (r *Registry) customPattern(domain string) *route.Pattern {
	r.mu.RLock()
	pattern, ok := r.custom[domain]
	r.mu.RUnlock()
	if ok {
		return pattern
	}
	// Compile returns nil for a domain that does not compile.
	pattern, _ = route.Compile([]string{domain}, customRoute, nil)
	r.mu.Lock()
	if cached, ok := r.custom[domain]; ok {
		pattern = cached
	} else {
		r.custom[domain] = pattern
	}
	r.mu.Unlock()
	return pattern
}

func (r *Registry) matchCustom(rawURL string, spoiler bool, sites []CustomSite) (MatchedLink, bool) {
	for _, site := range sites {
		domain := strings.TrimSpace(site.Domain)
		fixDomain := strings.TrimSpace(site.FixDomain)
		if domain == "" || fixDomain == "" {
			continue
		}
		pattern := r.customPattern(domain)
		if pattern == nil {
			continue
		}
		caps, ok := pattern.Match(rawURL)
		if !ok {
			continue
		}
		name := strings.TrimSpace(site.Name)
		if name == "" {
			name = domain
		}
		return MatchedLink{
			Provider: &Provider{
				ID:        CustomProviderID,
				Name:      name,
				Label:     name,
				Domains:   []string{domain},
				FixDomain: fixDomain,
				Strategy:  StrategyCustom,
				patterns:  []*route.Pattern{pattern},
			},
			OriginalURL: rawURL,
			Captures:    caps,
			Pattern:     pattern,
			View:        ViewNormal,
			Spoiler:     spoiler,
		}, true
	}
	return MatchedLink{}, false
}
