package richtext

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// discordParser understands the markdown subset Discord renders. Indented
// code blocks, setext headings, thematic breaks and raw HTML are left out
// because Discord shows them as plain text. Fenced code is lifted out before
// parsing, see liftCodeBlocks.
var discordParser = parser.NewParser(
	parser.WithBlockParsers(
		util.Prioritized(parser.NewListParser(), 300),
		util.Prioritized(parser.NewListItemParser(), 400),
		util.Prioritized(parser.NewATXHeadingParser(), 600),
		util.Prioritized(parser.NewBlockquoteParser(), 800),
		util.Prioritized(parser.NewParagraphParser(), 1000),
	),
	parser.WithInlineParsers(
		util.Prioritized(&codeBlockRefParser{}, 50),
		util.Prioritized(parser.NewCodeSpanParser(), 100),
		util.Prioritized(&spoilerParser{}, 150),
		util.Prioritized(parser.NewLinkParser(), 200),
		util.Prioritized(parser.NewAutoLinkParser(), 300),
		util.Prioritized(parser.NewEmphasisParser(), 500),
		util.Prioritized(&bareURLParser{}, 999),
	),
)

// Parse converts message content into a node tree.
func Parse(content string) []Node {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	lifted, blocks := liftCodeBlocks(content)
	c := converter{source: []byte(lifted), blocks: blocks}
	doc := discordParser.Parse(text.NewReader(c.source))
	return c.children(doc)
}

type converter struct {
	source []byte
	blocks []string
}

func (c converter) children(n ast.Node) []Node {
	var out []Node
	for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
		out = append(out, c.convert(ch))
	}
	return out
}

func (c converter) convert(n ast.Node) Node {
	switch v := n.(type) {
	case *codeBlockRef:
		var body string
		if v.Index < len(c.blocks) {
			body = c.blocks[v.Index]
		}
		return Node{Kind: KindCodeBlock, Text: body}
	case *ast.CodeSpan:
		return Node{Kind: KindCodeInline, Text: inlineText(v, c.source)}
	case *spoilerNode:
		return Node{Kind: KindSpoiler, Children: c.children(v)}
	case *bareURLNode:
		return Node{Kind: KindURL, URL: string(v.URL)}
	case *ast.AutoLink:
		return Node{Kind: KindURLSuppressed, URL: string(v.URL(c.source))}
	case *ast.Link:
		return Node{Kind: KindLink, URL: string(v.Destination), Children: c.children(v)}
	case *ast.Image:
		// Discord has no inline images; "![x](url)" shows as "!" and a masked link.
		return Node{Kind: KindLink, URL: string(v.Destination), Children: c.children(v)}
	case *ast.Text:
		return Node{Kind: KindText, Text: string(v.Segment.Value(c.source))}
	case *ast.String:
		return Node{Kind: KindText, Text: string(v.Value)}
	default:
		return Node{Kind: KindContainer, Children: c.children(n)}
	}
}

func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
