package richtext

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// Discord treats ``` as a code block wherever it starts, not only at the head
// of a line, and its content is never markdown. Blocks are lifted out of the
// source before goldmark runs and replaced by an inline placeholder, so a
// closing fence at the head of a line cannot cut the surrounding paragraph.
const (
	blockOpen  = '\uE000'
	blockClose = '\uE001'
	fence      = "```"
)

var langLine = regexp.MustCompile(`(?i)^[a-z0-9_+\-.#]+\n`)

// liftCodeBlocks returns content with every code block replaced by a
// placeholder, and the block contents in order.
func liftCodeBlocks(content string) (string, []string) {
	var (
		out    strings.Builder
		blocks []string
	)
	i, last := 0, 0
	for i < len(content) {
		switch content[i] {
		case '\\':
			i += 2
			continue
		case '`':
		default:
			i++
			continue
		}
		run := backtickRun(content, i)
		if run < 3 {
			// Inline code spans hide the backticks they contain.
			if end := closingRun(content, i+run, run); end >= 0 {
				i = end + run
			} else {
				i += run
			}
			continue
		}
		from := i + len(fence) + 1
		if from > len(content) {
			break
		}
		end := strings.Index(content[from:], fence)
		if end < 0 {
			i += run
			continue
		}
		end += from
		body := blockBody(content[i+len(fence) : end])
		if body == "" {
			i += run
			continue
		}
		out.WriteString(content[last:i])
		out.WriteRune(blockOpen)
		out.WriteString(strconv.Itoa(len(blocks)))
		out.WriteRune(blockClose)
		blocks = append(blocks, body)
		i = end + len(fence)
		last = i
	}
	if len(blocks) == 0 {
		return content, nil
	}
	out.WriteString(content[last:])
	return out.String(), blocks
}

func backtickRun(s string, i int) int {
	n := 0
	for i+n < len(s) && s[i+n] == '`' {
		n++
	}
	return n
}

// closingRun returns the start of the next backtick run of exactly n at or
// after from, or -1.
func closingRun(s string, from, n int) int {
	for i := from; i < len(s); {
		if s[i] != '`' {
			i++
			continue
		}
		run := backtickRun(s, i)
		if run == n {
			return i
		}
		i += run
	}
	return -1
}

// blockBody strips the language line and surrounding blank lines.
func blockBody(raw string) string {
	if loc := langLine.FindStringIndex(raw); loc != nil && strings.TrimSpace(raw[loc[1]:]) != "" {
		raw = raw[loc[1]:]
	}
	return strings.Trim(raw, "\n")
}

var kindCodeBlockRef = ast.NewNodeKind("CodeBlockRef")

// codeBlockRef stands for a lifted code block.
type codeBlockRef struct {
	ast.BaseInline
	Index int
}

func (n *codeBlockRef) Kind() ast.NodeKind { return kindCodeBlockRef }

func (n *codeBlockRef) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Index": strconv.Itoa(n.Index)}, nil)
}

type codeBlockRefParser struct{}

func (s *codeBlockRefParser) Trigger() []byte {
	return []byte(string(blockOpen))[:1]
}

func (s *codeBlockRefParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	open := []byte(string(blockOpen))
	if !bytes.HasPrefix(line, open) {
		return nil
	}
	rest := line[len(open):]
	end := bytes.IndexRune(rest, blockClose)
	if end <= 0 {
		return nil
	}
	idx, err := strconv.Atoi(string(rest[:end]))
	if err != nil {
		return nil
	}
	block.Advance(len(open) + end + len(string(blockClose)))
	return &codeBlockRef{Index: idx}
}
