package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrefs struct {
	disabled map[string]bool
	views    map[string]View
	langs    map[string]string
}

func (p fakePrefs) ProviderEnabled(id string) bool   { return !p.disabled[id] }
func (p fakePrefs) ProviderView(id string) View      { return ParseView(string(p.views[id])) }
func (p fakePrefs) TranslationLang(id string) string { return p.langs[id] }

func testProviders() []Provider {
	return []Provider{
		{
			ID:          "twitter",
			Name:        "Twitter",
			Label:       "Tweet",
			Domains:     []string{"twitter.com", "x.com"},
			Routes:      []RouteSpec{{Path: "/:username/status/:id"}},
			FixDomain:   "fxtwitter.com",
			Views:       map[View]string{ViewNormal: "", ViewGallery: "g."},
			Translation: true,
		},
		{
			ID:        "mirror",
			Domains:   []string{"x.com"},
			Routes:    []RouteSpec{{Path: "/:username/status/:id"}, {Path: "/:username"}},
			FixDomain: "mirror.example",
			Strategy:  StrategyVerified,
		},
	}
}

func TestRegistryMatchFirstProviderWins(t *testing.T) {
	t.Parallel()

	r := MustNewRegistry(testProviders()...)
	link, ok := r.Match("https://x.com/alice/status/123", false, fakePrefs{}, nil)
	require.True(t, ok)
	assert.Equal(t, "twitter", link.Provider.ID)
	assert.Equal(t, "alice", link.Author())
	assert.Equal(t, "123", link.Captures["id"])
	assert.Equal(t, "https://x.com/alice/status/123", link.OriginalURL)
	assert.Same(t, link.Provider.Patterns()[0], link.Pattern)
}

func TestRegistryMatchSkipsDisabledProvider(t *testing.T) {
	t.Parallel()

	r := MustNewRegistry(testProviders()...)
	prefs := fakePrefs{disabled: map[string]bool{"twitter": true}}
	link, ok := r.Match("https://x.com/alice/status/123", true, prefs, nil)
	require.True(t, ok)
	assert.Equal(t, "mirror", link.Provider.ID)
	assert.True(t, link.Spoiler)
	assert.Equal(t, "mirror", link.Provider.Name)
	assert.Equal(t, "mirror", link.Provider.Label)
}

func TestRegistryMatchRouteOrder(t *testing.T) {
	t.Parallel()

	r := MustNewRegistry(testProviders()...)
	link, ok := r.Match("https://x.com/alice", false, fakePrefs{}, nil)
	require.True(t, ok)
	assert.Equal(t, "mirror", link.Provider.ID)
	assert.Equal(t, "/:username", link.Pattern.Template().Source)
}

func TestRegistryMatchViewAndLang(t *testing.T) {
	t.Parallel()

	r := MustNewRegistry(testProviders()...)
	prefs := fakePrefs{
		views: map[string]View{"twitter": ViewGallery, "mirror": ViewGallery},
		langs: map[string]string{"twitter": "fr", "mirror": "de"},
	}
	link, ok := r.Match("https://twitter.com/alice/status/1", false, prefs, nil)
	require.True(t, ok)
	assert.Equal(t, ViewGallery, link.View)
	assert.Equal(t, "fr", link.Lang)
	assert.Equal(t, "g.", link.Provider.SubdomainPrefix(link.View))

	link, ok = r.Match("https://x.com/alice", false, prefs, nil)
	require.True(t, ok)
	assert.Equal(t, "", link.Lang, "mirror has no translation support")
	assert.Equal(t, "", link.Provider.SubdomainPrefix(link.View))
}

func TestRegistryMatchCustomSitesLast(t *testing.T) {
	t.Parallel()

	r := MustNewRegistry(testProviders()...)
	custom := []CustomSite{
		{Name: "", Domain: " ", FixDomain: "ignored.example"},
		{Name: "Mirror X", Domain: "x.com", FixDomain: "fx.example"},
		{Name: "Example", Domain: "example.com", FixDomain: "fixexample.com"},
	}

	link, ok := r.Match("https://x.com/alice/status/1", false, fakePrefs{}, custom)
	require.True(t, ok)
	assert.Equal(t, "twitter", link.Provider.ID)

	link, ok = r.Match("https://www.example.com/some/post?id=4", true, fakePrefs{}, custom)
	require.True(t, ok)
	assert.Equal(t, CustomProviderID, link.Provider.ID)
	assert.Equal(t, StrategyCustom, link.Provider.Strategy)
	assert.Equal(t, "Example", link.Provider.Label)
	assert.Equal(t, "fixexample.com", link.Provider.FixDomain)
	assert.Equal(t, "some/post?id=4", link.Captures["path"])
	assert.True(t, link.Spoiler)

	_, ok = r.Match("https://example.com/", false, fakePrefs{}, custom)
	assert.False(t, ok)
}

func TestRegistryCachesCustomPatterns(t *testing.T) {
	t.Parallel()

	r := MustNewRegistry(testProviders()...)
	custom := []CustomSite{{Name: "Example", Domain: "example.com", FixDomain: "fixexample.com"}}

	first, ok := r.Match("https://example.com/a", false, nil, custom)
	require.True(t, ok)
	second, ok := r.Match("https://example.com/b", false, nil, custom)
	require.True(t, ok)
	assert.Same(t, first.Pattern, second.Pattern)
	assert.Equal(t, "b", second.Captures["path"])

	other := []CustomSite{{Name: "Other", Domain: "other.example", FixDomain: "fixother.example"}}
	third, ok := r.Match("https://other.example/c", false, nil, other)
	require.True(t, ok)
	assert.NotSame(t, first.Pattern, third.Pattern)
	assert.Len(t, r.custom, 2)
}

func TestRegistryNoMatch(t *testing.T) {
	t.Parallel()

	r := MustNewRegistry(testProviders()...)
	_, ok := r.Match("https://example.org/alice/status/1", false, fakePrefs{}, nil)
	assert.False(t, ok)
	_, ok = r.Match("not a url", false, nil, nil)
	assert.False(t, ok)
}

func TestNewRegistryRejectsInvalidProviders(t *testing.T) {
	t.Parallel()

	valid := testProviders()[0]
	cases := map[string]func(p *Provider){
		"missing id":         func(p *Provider) { p.ID = "" },
		"reserved id":        func(p *Provider) { p.ID = CustomProviderID },
		"missing fix domain": func(p *Provider) { p.FixDomain = "" },
		"missing routes":     func(p *Provider) { p.Routes = nil },
		"unknown strategy":   func(p *Provider) { p.Strategy = "magic" },
	}
	for name, mutate := range cases {
		p := valid
		mutate(&p)
		_, err := NewRegistry(p)
		if !errors.Is(err, ErrInvalidProvider) {
			t.Fatalf("%s: expected ErrInvalidProvider, got %v", name, err)
		}
	}

	bad := valid
	bad.Routes = []RouteSpec{{Path: "no-slash"}}
	_, err := NewRegistry(bad)
	assert.Error(t, err)

	_, err = NewRegistry(valid, valid)
	assert.True(t, errors.Is(err, ErrInvalidProvider))
}

func TestNewRegistryCopiesInput(t *testing.T) {
	t.Parallel()

	providers := testProviders()
	r := MustNewRegistry(providers...)
	providers[0].Domains[0] = "changed.example"

	p, ok := r.Get("twitter")
	require.True(t, ok)
	assert.Equal(t, "twitter.com", p.Domains[0])
	assert.Len(t, r.List(), 2)
}

func TestParseView(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ViewGallery, ParseView(" Gallery "))
	assert.Equal(t, ViewDirectMedia, ParseView("direct_media"))
	assert.Equal(t, ViewTextOnly, ParseView("text_only"))
	assert.Equal(t, ViewNormal, ParseView("compatibility"))
}
