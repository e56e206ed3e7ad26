package linkfix

import "github.com/memohai/linkfix/internal/richtext"

// Candidate is a URL found in a message that may be fixable.
type Candidate struct {
	URL     string
	Spoiler bool
}

// ExtractCandidates walks the message tree depth first and returns every URL
// Discord would preview, in document order. Code is skipped, <url> links are
// skipped because their author suppressed the preview, and anything inside a
// spoiler is flagged.
func ExtractCandidates(nodes []richtext.Node) []Candidate {
	return extract(nodes, false, nil)
}

func extract(nodes []richtext.Node, spoiler bool, out []Candidate) []Candidate {
	for _, n := range nodes {
		switch n.Kind {
		case richtext.KindCodeBlock, richtext.KindCodeInline, richtext.KindURLSuppressed:
		case richtext.KindURL, richtext.KindLink:
			out = append(out, Candidate{URL: n.URL, Spoiler: spoiler})
		case richtext.KindSpoiler:
			out = extract(n.Children, true, out)
		default:
			out = extract(n.Children, spoiler, out)
		}
	}
	return out
}
