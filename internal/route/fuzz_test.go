package route

import (
	"strings"
	"testing"
)

func FuzzPatternRoundTrip(f *testing.F) {
	f.Add("alice", "123", "")
	f.Add("Bob_99", "1750000000000000000", "slug")
	f.Add("ünïcode", "x.y", "a b")

	p := MustCompile([]string{"x.com", "twitter.com"}, "/:username/status/:id/:slug?", nil)

	f.Fuzz(func(t *testing.T, username, id, slug string) {
		for _, v := range []string{username, id, slug} {
			if strings.ContainsAny(v, "/?#\n") {
				t.Skip()
			}
		}
		if username == "" || id == "" {
			t.Skip()
		}
		caps := Captures{"username": username, "id": id}
		if slug != "" {
			caps["slug"] = slug
		}

		url := "https://x.com" + p.Expand(caps)
		got, ok := p.Match(url)
		if !ok {
			t.Fatalf("expanded url %q does not match", url)
		}
		again := "https://x.com" + p.Expand(got)
		if again != url {
			t.Fatalf("round trip changed url: %q -> %q", url, again)
		}
		for name, want := range caps {
			if got[name] != want {
				t.Fatalf("capture %s: want %q got %q", name, want, got[name])
			}
		}
	})
}

func FuzzParseTemplate(f *testing.F) {
	f.Add("/:username/status/:id")
	f.Add("/@:u/:t(a|b)/:id?")
	f.Add("/:x((((")

	f.Fuzz(func(t *testing.T, path string) {
		tpl, err := ParseTemplate(path)
		if err != nil {
			return
		}
		if tpl.Source != path {
			t.Fatalf("source not preserved: %q", tpl.Source)
		}
		// Every accepted template must compile.
		if _, err := Compile([]string{"example.com"}, path, nil); err != nil {
			t.Fatalf("parsed template %q failed to compile: %v", path, err)
		}
	})
}
