package linkfix

import (
	"context"
	"fmt"

	"github.com/memohai/linkfix/internal/policy"
	"github.com/memohai/linkfix/internal/provider"
	"github.com/memohai/linkfix/internal/richtext"
)

// PreviewLink is what HandleMessage would post for one link.
type PreviewLink struct {
	ProviderID  string `json:"provider_id"`
	OriginalURL string `json:"original_url"`
	FixedURL    string `json:"fixed_url"`
	Text        string `json:"text,omitempty"`
	Spoiler     bool   `json:"spoiler,omitempty"`
	Rendered    bool   `json:"rendered"`
}

// Preview is a dry run of the pipeline for a guild.
type Preview struct {
	// Reason is set when the guild's filters would drop the message.
	Reason policy.Reason `json:"reason,omitempty"`
	Links  []PreviewLink `json:"links"`
}

// Preview matches and renders the links of text with the guild's settings
// without sending anything. Filters are reported, not applied.
func (s *Service) Preview(ctx context.Context, guildID, text string) (Preview, error) {
	out := Preview{Links: []PreviewLink{}}
	candidates := ExtractCandidates(richtext.Parse(text))
	if len(candidates) == 0 {
		return out, nil
	}
	decision, err := s.checker.Check(ctx, policy.Query{GuildID: guildID, Text: text})
	if err != nil {
		return out, fmt.Errorf("policy check: %w", err)
	}
	out.Reason = decision.Reason

	var matched []provider.MatchedLink
	for _, c := range candidates {
		if link, ok := s.registry.Match(c.URL, c.Spoiler, decision, decision.Settings.CustomSites); ok {
			matched = append(matched, link)
		}
	}
	rendered := s.renderer.WithTemplate(decision.Settings.LinkTemplate).RenderAll(ctx, matched)
	for i, link := range matched {
		out.Links = append(out.Links, PreviewLink{
			ProviderID:  link.Provider.ID,
			OriginalURL: link.OriginalURL,
			FixedURL:    rendered[i].FixedURL,
			Text:        rendered[i].Text,
			Spoiler:     link.Spoiler,
			Rendered:    rendered[i].Succeeded,
		})
	}
	return out, nil
}
