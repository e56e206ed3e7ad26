package route

import (
	"errors"
	"reflect"
	"testing"
)

var twitterDomains = []string{"twitter.com", "x.com", "nitter.poast.org"}

func TestPatternMatch(t *testing.T) {
	t.Parallel()

	p := MustCompile(twitterDomains, "/:username/status/:id", nil)

	cases := []struct {
		url  string
		ok   bool
		want Captures
	}{
		{
			url:  "https://x.com/alice/status/123",
			ok:   true,
			want: Captures{"domain": "x.com", "subdomain": "", "username": "alice", "id": "123"},
		},
		{
			url:  "http://mobile.twitter.com/alice/status/123/",
			ok:   true,
			want: Captures{"domain": "twitter.com", "subdomain": "mobile", "username": "alice", "id": "123"},
		},
		{
			url:  "HTTPS://X.COM/Alice/STATUS/123?s=20#frag",
			ok:   true,
			want: Captures{"domain": "X.COM", "subdomain": "", "username": "Alice", "id": "123"},
		},
		{
			url:  "https://nitter.poast.org/bob/status/9",
			ok:   true,
			want: Captures{"domain": "nitter.poast.org", "subdomain": "", "username": "bob", "id": "9"},
		},
		{url: "https://vxtwitter.com/alice/status/123"},
		{url: "https://twitter.com.evil.com/alice/status/123"},
		{url: "https://a.b.x.com/alice/status/123"},
		{url: "https://x.com/alice/status/"},
		{url: "https://x.com/alice/status/123/photo/1"},
		{url: "ftp://x.com/alice/status/123"},
		{url: "see https://x.com/alice/status/123"},
	}
	for _, tc := range cases {
		got, ok := p.Match(tc.url)
		if ok != tc.ok {
			t.Fatalf("url=%q: want ok=%v got %v", tc.url, tc.ok, ok)
		}
		if tc.ok && !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("url=%q: want %v got %v", tc.url, tc.want, got)
		}
	}
}

func TestPatternConstrainedParam(t *testing.T) {
	t.Parallel()

	p := MustCompile(twitterDomains, "/:username/status/:id/:media_type(photo|video)/:media_id", nil)

	caps, ok := p.Match("https://x.com/alice/status/1/PHOTO/2")
	if !ok {
		t.Fatal("expected match")
	}
	if caps["media_type"] != "PHOTO" || caps["media_id"] != "2" {
		t.Fatalf("unexpected captures %v", caps)
	}

	if _, ok := p.Match("https://x.com/alice/status/1/gif/2"); ok {
		t.Fatal("constraint must reject gif")
	}
}

func TestPatternOptionalParam(t *testing.T) {
	t.Parallel()

	p := MustCompile([]string{"example.com"}, "/post/:id/:slug?", nil)

	caps, ok := p.Match("https://example.com/post/42")
	if !ok {
		t.Fatal("expected match without slug")
	}
	if caps["id"] != "42" {
		t.Fatalf("unexpected id %q", caps["id"])
	}
	if _, has := caps["slug"]; has {
		t.Fatalf("slug must be absent, got %v", caps)
	}
	if got := p.Expand(caps); got != "/post/42" {
		t.Fatalf("unexpected expansion %q", got)
	}

	caps, ok = p.Match("https://example.com/post/42/hello-world")
	if !ok {
		t.Fatal("expected match with slug")
	}
	if caps["slug"] != "hello-world" {
		t.Fatalf("unexpected slug %q", caps["slug"])
	}
	if got := p.Expand(caps); got != "/post/42/hello-world" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestPatternQueryParams(t *testing.T) {
	t.Parallel()

	p := MustCompile([]string{"youtube.com"}, "/watch", []string{"v", "t"})

	caps, ok := p.Match("https://www.youtube.com/watch?feature=share&v=abc&t=10#x")
	if !ok {
		t.Fatal("expected match")
	}
	if caps["subdomain"] != "www" || caps["v"] != "abc" || caps["t"] != "10" {
		t.Fatalf("unexpected captures %v", caps)
	}
	if got := p.EncodeQuery(caps); got != "?v=abc&t=10" {
		t.Fatalf("unexpected query %q", got)
	}

	caps, ok = p.Match("https://youtube.com/watch")
	if !ok {
		t.Fatal("expected match without query")
	}
	if _, has := caps["v"]; has {
		t.Fatalf("v must be absent, got %v", caps)
	}
	if got := p.EncodeQuery(caps); got != "" {
		t.Fatalf("expected empty query, got %q", got)
	}

	caps, ok = p.Match("https://youtube.com/watch?t=5")
	if !ok {
		t.Fatal("expected match")
	}
	if got := p.EncodeQuery(caps); got != "?t=5" {
		t.Fatalf("unexpected query %q", got)
	}
}

func TestPatternQueryRoundTrip(t *testing.T) {
	t.Parallel()

	p := MustCompile([]string{"example.com"}, "/watch", []string{"v", "list"})

	cases := map[string]string{
		"https://example.com/watch?v=a%20b":                "?v=a%20b",
		"https://example.com/watch?v=a+b":                  "?v=a+b",
		"https://example.com/watch?v=%E2%9C%93&list=x%2Fy": "?v=%E2%9C%93&list=x%2Fy",
		"https://example.com/watch?v=first&v=second":       "?v=first",
		"https://example.com/watch?%76=encoded-key":        "?v=encoded-key",
		"https://example.com/watch?v=bad%zz":               "?v=bad%zz",
	}
	for raw, want := range cases {
		caps, ok := p.Match(raw)
		if !ok {
			t.Fatalf("url=%q: expected match", raw)
		}
		if got := p.EncodeQuery(caps); got != want {
			t.Fatalf("url=%q: want %q got %q", raw, want, got)
		}
	}
}

func TestPatternLiteralPrefix(t *testing.T) {
	t.Parallel()

	p := MustCompile([]string{"tiktok.com"}, "/@:username/video/:id", nil)
	caps, ok := p.Match("https://www.tiktok.com/@carol/video/777")
	if !ok {
		t.Fatal("expected match")
	}
	if caps["username"] != "carol" {
		t.Fatalf("unexpected username %q", caps["username"])
	}
	if got := p.Expand(caps); got != "/@carol/video/777" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	if _, err := Compile(nil, "/:id", nil); !errors.Is(err, ErrNoDomains) {
		t.Fatalf("expected ErrNoDomains, got %v", err)
	}
	cases := []struct {
		path  string
		query []string
	}{
		{path: "/:id", query: []string{"id"}},
		{path: "/:id", query: []string{""}},
		{path: "/:id(?P<id>x)"},
	}
	for _, tc := range cases {
		if _, err := Compile([]string{"x.com"}, tc.path, tc.query); !errors.Is(err, ErrInvalidTemplate) {
			t.Fatalf("path=%q query=%v: expected ErrInvalidTemplate, got %v", tc.path, tc.query, err)
		}
	}
}

func TestPatternAccessors(t *testing.T) {
	t.Parallel()

	domains := []string{"x.com"}
	p := MustCompile(domains, "/:id", []string{"q"})
	domains[0] = "mutated"
	if got := p.Domains(); !reflect.DeepEqual(got, []string{"x.com"}) {
		t.Fatalf("domains must be copied, got %v", got)
	}
	if got := p.QueryParams(); !reflect.DeepEqual(got, []string{"q"}) {
		t.Fatalf("unexpected query params %v", got)
	}
	if p.Template().Source != "/:id" {
		t.Fatalf("unexpected template source %q", p.Template().Source)
	}
	if p.String() == "" {
		t.Fatal("expected a regular expression")
	}
}
