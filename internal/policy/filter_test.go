package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/memohai/linkfix/internal/provider"
)

func member() Query {
	return Query{
		GuildID:   "g1",
		ChannelID: "c1",
		AuthorID:  "u1",
		RoleIDs:   []string{"r1", "r2"},
		Text:      "look https://x.com/a/status/1",
		IsMember:  true,
	}
}

func TestEvaluateDefaultsAccept(t *testing.T) {
	t.Parallel()

	d := Evaluate(Snapshot{Settings: DefaultGuildSettings("g1"), Roles: []ListEntry{{}, {}}}, member())
	if !d.Accept || d.Reason != ReasonNone {
		t.Fatalf("expected accept, got %+v", d)
	}
}

func TestEvaluateRejections(t *testing.T) {
	t.Parallel()

	base := DefaultGuildSettings("g1")
	cases := []struct {
		name  string
		snap  func() Snapshot
		query func() Query
		want  Reason
	}{
		{
			name:  "self",
			snap:  func() Snapshot { return Snapshot{Settings: base} },
			query: func() Query { q := member(); q.FromSelf = true; return q },
			want:  ReasonSelf,
		},
		{
			name:  "system",
			snap:  func() Snapshot { return Snapshot{Settings: base} },
			query: func() Query { q := member(); q.System = true; return q },
			want:  ReasonSystem,
		},
		{
			name: "webhook not opted in",
			snap: func() Snapshot { return Snapshot{Settings: base} },
			query: func() Query {
				q := member()
				q.Webhook, q.IsMember = true, false
				return q
			},
			want: ReasonWebhook,
		},
		{
			name: "keyword deny list",
			snap: func() Snapshot {
				s := base
				s.Keywords = []string{"NOFIX"}
				return Snapshot{Settings: s}
			},
			query: func() Query { q := member(); q.Text = "nofix https://x.com/a/status/1"; return q },
			want:  ReasonKeyword,
		},
		{
			name: "keyword allow list without keyword",
			snap: func() Snapshot {
				s := base
				s.Keywords = []string{"fixit"}
				s.KeywordsUseAllowList = true
				return Snapshot{Settings: s}
			},
			query: member,
			want:  ReasonKeyword,
		},
		{
			name:  "channel on deny list",
			snap:  func() Snapshot { return Snapshot{Settings: base, Channel: ListEntry{OnDenyList: true}} },
			query: member,
			want:  ReasonChannel,
		},
		{
			name: "channel missing from allow list",
			snap: func() Snapshot {
				s := base
				s.TextChannelsUseAllowList = true
				return Snapshot{Settings: s}
			},
			query: member,
			want:  ReasonChannel,
		},
		{
			name:  "member on deny list",
			snap:  func() Snapshot { return Snapshot{Settings: base, Member: ListEntry{OnDenyList: true}} },
			query: member,
			want:  ReasonMember,
		},
		{
			name: "one role denied under all rule",
			snap: func() Snapshot {
				return Snapshot{Settings: base, Roles: []ListEntry{{}, {OnDenyList: true}}}
			},
			query: member,
			want:  ReasonRole,
		},
		{
			name: "no role allowed under any rule",
			snap: func() Snapshot {
				s := base
				s.RolesUseAllowList, s.RolesUseAnyRule = true, true
				return Snapshot{Settings: s, Roles: []ListEntry{{}, {OnDenyList: true}}}
			},
			query: member,
			want:  ReasonRole,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := Evaluate(tc.snap(), tc.query())
			if d.Accept || d.Reason != tc.want {
				t.Fatalf("expected reject with %q, got accept=%v reason=%q", tc.want, d.Accept, d.Reason)
			}
		})
	}
}

func TestEvaluateAccepts(t *testing.T) {
	t.Parallel()

	s := DefaultGuildSettings("g1")
	s.Webhooks = true
	s.Keywords = []string{"FixIt"}
	s.KeywordsUseAllowList = true
	s.RolesUseAllowList, s.RolesUseAnyRule = true, true

	q := member()
	q.Text = "please fixit https://x.com/a/status/1"
	if d := Evaluate(Snapshot{Settings: s, Roles: []ListEntry{{}, {OnAllowList: true}}}, q); !d.Accept {
		t.Fatalf("allowed role must accept, got %q", d.Reason)
	}

	// Webhook authors are not members, so member and role lists do not apply.
	q.Webhook, q.IsMember = true, false
	if d := Evaluate(Snapshot{Settings: s, Member: ListEntry{OnDenyList: true}}, q); !d.Accept {
		t.Fatalf("webhook must accept, got %q", d.Reason)
	}

	// A member without roles passes the role check.
	q = member()
	q.Text = "fixit"
	q.RoleIDs = nil
	if d := Evaluate(Snapshot{Settings: s}, q); !d.Accept {
		t.Fatalf("member without roles must accept, got %q", d.Reason)
	}
}

func TestListEntryEnabled(t *testing.T) {
	t.Parallel()

	both := ListEntry{OnAllowList: true, OnDenyList: true}
	if !(ListEntry{}).Enabled(false) || (ListEntry{}).Enabled(true) {
		t.Fatal("empty entry must follow the list mode")
	}
	if !both.Enabled(true) || both.Enabled(false) {
		t.Fatal("entry on both lists must follow the active list")
	}
}

func testRegistry(t *testing.T) *provider.Registry {
	t.Helper()
	reg, err := provider.NewRegistry(
		provider.Provider{
			ID: "twitter", Domains: []string{"x.com"}, FixDomain: "fixupx.com",
			Routes:      []provider.RouteSpec{{Path: "/:username/status/:id"}},
			Views:       map[provider.View]string{provider.ViewNormal: "", provider.ViewGallery: "g."},
			Translation: true, DefaultEnabled: true,
		},
		provider.Provider{
			ID: "tiktok", Domains: []string{"tiktok.com"}, FixDomain: "tnktok.com",
			Routes: []provider.RouteSpec{{Path: "/@:username/video/:id"}},
		},
	)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func TestDecisionPreferences(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	store := NewMemoryStore()
	s := DefaultGuildSettings("g1")
	s.Lang = "fr"
	s.Providers = map[string]ProviderSettings{
		"twitter": {Enabled: true, View: provider.ViewGallery, Translate: true},
	}
	if _, err := store.SaveGuildSettings(context.Background(), s); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	f := NewFilter(nil, store, reg)
	d, err := f.Check(context.Background(), member())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !d.Accept {
		t.Fatalf("expected accept, got %q", d.Reason)
	}

	if !d.ProviderEnabled("twitter") {
		t.Fatal("twitter must be enabled")
	}
	// tiktok falls back to the catalog default.
	if d.ProviderEnabled("tiktok") || d.ProviderEnabled("unknown") {
		t.Fatal("tiktok and unknown providers must be disabled")
	}
	if d.ProviderView("twitter") != provider.ViewGallery || d.ProviderView("tiktok") != provider.ViewNormal {
		t.Fatalf("unexpected views %q %q", d.ProviderView("twitter"), d.ProviderView("tiktok"))
	}
	if d.TranslationLang("twitter") != "fr" || d.TranslationLang("tiktok") != "" {
		t.Fatalf("unexpected translation langs %q %q", d.TranslationLang("twitter"), d.TranslationLang("tiktok"))
	}
}

type failingStore struct{ Store }

func (failingStore) Snapshot(context.Context, string, string, string, []string) (Snapshot, error) {
	return Snapshot{}, errors.New("boom")
}

func TestFilterCheck(t *testing.T) {
	t.Parallel()

	f := NewFilter(nil, failingStore{}, nil)

	q := member()
	q.FromSelf = true
	d, err := f.Check(context.Background(), q)
	if err != nil {
		t.Fatalf("self messages never reach the store, got %v", err)
	}
	if d.Reason != ReasonSelf {
		t.Fatalf("expected %q, got %q", ReasonSelf, d.Reason)
	}

	if _, err := f.Check(context.Background(), member()); err == nil {
		t.Fatal("expected store error")
	}
}

func TestFilterCheckUsesListEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.SetListEntry(ctx, "g1", EntityRole, "r2", ListEntry{OnDenyList: true}); err != nil {
		t.Fatalf("set list entry: %v", err)
	}

	f := NewFilter(nil, store, nil)
	d, err := f.Check(ctx, member())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if d.Reason != ReasonRole {
		t.Fatalf("expected %q, got %q", ReasonRole, d.Reason)
	}

	q := member()
	q.RoleIDs = []string{"r1"}
	d, err = f.Check(ctx, q)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !d.Accept {
		t.Fatalf("expected accept, got %q", d.Reason)
	}
}
