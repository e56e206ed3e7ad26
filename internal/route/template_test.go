package route

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseTemplate(t *testing.T) {
	t.Parallel()

	tpl, err := ParseTemplate("/@:username/:media_type(video|photo)/:id/:slug?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Token{
		{Kind: TokenSlash},
		{Kind: TokenLiteral, Text: "@"},
		{Kind: TokenParam, Name: "username"},
		{Kind: TokenSlash},
		{Kind: TokenParam, Name: "media_type", Pattern: "video|photo"},
		{Kind: TokenSlash},
		{Kind: TokenParam, Name: "id"},
		{Kind: TokenSlash},
		{Kind: TokenParam, Name: "slug", Optional: true},
	}
	if !reflect.DeepEqual(tpl.Tokens, want) {
		t.Fatalf("unexpected tokens %+v", tpl.Tokens)
	}
	if got := tpl.Params(); !reflect.DeepEqual(got, []string{"username", "media_type", "id", "slug"}) {
		t.Fatalf("unexpected params %v", got)
	}
}

func TestParseTemplateNestedConstraint(t *testing.T) {
	t.Parallel()

	tpl, err := ParseTemplate("/:kind((?:a|b)+)/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tpl.Tokens) != 4 {
		t.Fatalf("expected 4 tokens, got %+v", tpl.Tokens)
	}
	if tpl.Tokens[1].Pattern != "(?:a|b)+" || tpl.Tokens[3].Text != "x" {
		t.Fatalf("unexpected tokens %+v", tpl.Tokens)
	}
}

func TestParseTemplateLiteralColon(t *testing.T) {
	t.Parallel()

	tpl, err := ParseTemplate("/a:/b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Token{
		{Kind: TokenSlash},
		{Kind: TokenLiteral, Text: "a:"},
		{Kind: TokenSlash},
		{Kind: TokenLiteral, Text: "b"},
	}
	if !reflect.DeepEqual(tpl.Tokens, want) {
		t.Fatalf("unexpected tokens %+v", tpl.Tokens)
	}
}

func TestParseTemplateErrors(t *testing.T) {
	t.Parallel()

	cases := []string{
		"status/:id",
		"/:id(photo",
		"/:id()",
		"/:id([)",
		"/:domain",
		"/:subdomain/x",
		"/:id/:id",
		"/watch?v",
		"/a#b",
	}
	for _, path := range cases {
		_, err := ParseTemplate(path)
		if !errors.Is(err, ErrInvalidTemplate) {
			t.Fatalf("path=%q: expected ErrInvalidTemplate, got %v", path, err)
		}
	}
}
