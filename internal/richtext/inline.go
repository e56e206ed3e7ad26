package richtext

import (
	"bytes"
	"regexp"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var kindSpoiler = ast.NewNodeKind("Spoiler")

type spoilerNode struct {
	ast.BaseInline
}

func (n *spoilerNode) Kind() ast.NodeKind { return kindSpoiler }

func (n *spoilerNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

type spoilerDelimiterProcessor struct{}

func (p *spoilerDelimiterProcessor) IsDelimiter(b byte) bool { return b == '|' }

func (p *spoilerDelimiterProcessor) CanOpenCloser(opener, closer *parser.Delimiter) bool {
	return opener.Char == closer.Char
}

func (p *spoilerDelimiterProcessor) OnMatch(consumes int) ast.Node {
	return &spoilerNode{}
}

var defaultSpoilerDelimiterProcessor = &spoilerDelimiterProcessor{}

// spoilerParser pushes a delimiter for every "||". Discord allows whitespace
// on either side of the markers, so the CommonMark flanking rules are not
// applied and every marker may open or close.
type spoilerParser struct{}

func (s *spoilerParser) Trigger() []byte {
	return []byte{'|'}
}

func (s *spoilerParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, segment := block.PeekLine()
	if len(line) < 2 || line[0] != '|' || line[1] != '|' {
		return nil
	}
	node := parser.NewDelimiter(true, true, 2, '|', defaultSpoilerDelimiterProcessor)
	node.Segment = segment.WithStop(segment.Start + 2)
	block.Advance(2)
	pc.PushDelimiter(node)
	return node
}

var kindBareURL = ast.NewNodeKind("BareURL")

type bareURLNode struct {
	ast.BaseInline
	URL []byte
}

func (n *bareURLNode) Kind() ast.NodeKind { return kindBareURL }

func (n *bareURLNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"URL": string(n.URL)}, nil)
}

var bareURLRegexp = regexp.MustCompile(`(?i)^https?://[^\s<\x{E000}]+`)

// bareURLParser recognizes http(s) URLs in running text. It only fires at a
// line head, after whitespace or after a delimiter, so URLs glued to a
// preceding word are left as text.
type bareURLParser struct{}

func (s *bareURLParser) Trigger() []byte {
	// ' ' stands for any whitespace and the head of a line.
	return []byte{' ', '*', '_', '~', '(', '|'}
}

func (s *bareURLParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	if pc.IsInLinkLabel() {
		return nil
	}
	line, segment := block.PeekLine()
	consumes := 0
	if len(line) > 0 && (util.IsSpace(line[0]) || bytes.IndexByte([]byte("*_~(|"), line[0]) >= 0) {
		consumes++
		line = line[1:]
	}
	m := bareURLRegexp.FindIndex(line)
	if m == nil {
		return nil
	}
	raw := line[:m[1]]
	if i := bytes.Index(raw, []byte("||")); i >= 0 {
		raw = raw[:i]
	}
	raw = bytes.TrimRight(raw, `.,:;"')]!?*_~`)
	if scheme := bytes.Index(raw, []byte("://")); len(raw) <= scheme+len("://") {
		return nil
	}
	if consumes != 0 {
		ast.MergeOrAppendTextSegment(parent, segment.WithStop(segment.Start+1))
	}
	block.Advance(consumes + len(raw))
	return &bareURLNode{URL: append([]byte(nil), raw...)}
}
