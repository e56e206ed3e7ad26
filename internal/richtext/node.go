// Package richtext turns Discord message markdown into a small tree of
// nodes that keeps only what link detection cares about: code, spoilers,
// and the three kinds of links.
package richtext

// Kind identifies a node variant.
type Kind int

const (
	// KindText is plain text.
	KindText Kind = iota
	// KindContainer is any formatting wrapper (paragraph, emphasis, quote,
	// list, heading) whose children are rendered normally.
	KindContainer
	// KindCodeBlock is a fenced code block.
	KindCodeBlock
	// KindCodeInline is an inline code span.
	KindCodeInline
	// KindSpoiler is a ||spoiler|| span.
	KindSpoiler
	// KindURL is a bare URL that Discord would preview.
	KindURL
	// KindURLSuppressed is a <url> whose preview the author suppressed.
	KindURLSuppressed
	// KindLink is a masked [label](url) link.
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindContainer:
		return "container"
	case KindCodeBlock:
		return "code_block"
	case KindCodeInline:
		return "code_inline"
	case KindSpoiler:
		return "spoiler"
	case KindURL:
		return "url"
	case KindURLSuppressed:
		return "url_suppressed"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

// Node is one element of the parsed message.
type Node struct {
	Kind Kind
	// Text is set for text and code nodes.
	Text string
	// URL is set for the link kinds.
	URL      string
	Children []Node
}
