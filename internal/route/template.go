// Package route compiles path templates such as "/:username/status/:id" into
// URL matchers and expands captured values back into paths.
//
// Compilation runs in three stages: ParseTemplate turns the source string into
// a token list, Compile lowers the tokens plus a domain list into a regular
// expression, and the resulting Pattern matches URLs without side effects.
package route

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalidTemplate is returned for malformed path templates.
	ErrInvalidTemplate = errors.New("route: invalid template")
	// ErrNoDomains is returned when a pattern is compiled without any domain.
	ErrNoDomains = errors.New("route: at least one domain is required")
)

// Names filled in for every match, never declared by templates.
const (
	CaptureDomain    = "domain"
	CaptureSubdomain = "subdomain"

	queryGroup = "_query"
)

// DefaultParamPattern is used for parameters declared without a constraint.
const DefaultParamPattern = `[^/?#]+`

// TokenKind identifies the token variants of a parsed template.
type TokenKind int

const (
	TokenSlash TokenKind = iota
	TokenLiteral
	TokenParam
)

// Token is one element of a parsed template.
type Token struct {
	Kind TokenKind
	// Text holds the literal for TokenLiteral.
	Text string
	// Name, Pattern and Optional describe a TokenParam. Pattern is empty for
	// unconstrained parameters.
	Name     string
	Pattern  string
	Optional bool
}

// Template is the parsed form of a route path.
type Template struct {
	Source string
	Tokens []Token
}

// Params returns the parameter names in declaration order.
func (t Template) Params() []string {
	names := make([]string, 0, len(t.Tokens))
	for _, tok := range t.Tokens {
		if tok.Kind == TokenParam {
			names = append(names, tok.Name)
		}
	}
	return names
}

// ParseTemplate parses a path template. Parameters are written ":name",
// constrained with ":name(alt1|alt2)" and made optional with a trailing "?".
func ParseTemplate(path string) (Template, error) {
	if !strings.HasPrefix(path, "/") {
		return Template{}, fmt.Errorf("%w: %q must start with '/'", ErrInvalidTemplate, path)
	}
	if !utf8.ValidString(path) {
		return Template{}, fmt.Errorf("%w: not valid UTF-8", ErrInvalidTemplate)
	}
	tpl := Template{Source: path}
	seen := make(map[string]struct{})
	var literal strings.Builder
	flush := func() {
		if literal.Len() > 0 {
			tpl.Tokens = append(tpl.Tokens, Token{Kind: TokenLiteral, Text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(path); {
		c := path[i]
		switch {
		case c == '/':
			flush()
			tpl.Tokens = append(tpl.Tokens, Token{Kind: TokenSlash})
			i++
		case c == ':' && i+1 < len(path) && isNameByte(path[i+1]):
			flush()
			tok, next, err := parseParam(path, i)
			if err != nil {
				return Template{}, err
			}
			if tok.Name == CaptureDomain || tok.Name == CaptureSubdomain || tok.Name == queryGroup {
				return Template{}, fmt.Errorf("%w: parameter name %q is reserved", ErrInvalidTemplate, tok.Name)
			}
			if _, dup := seen[tok.Name]; dup {
				return Template{}, fmt.Errorf("%w: duplicate parameter %q", ErrInvalidTemplate, tok.Name)
			}
			seen[tok.Name] = struct{}{}
			tpl.Tokens = append(tpl.Tokens, tok)
			i = next
		case c == '?' || c == '#':
			return Template{}, fmt.Errorf("%w: unexpected %q at offset %d", ErrInvalidTemplate, c, i)
		default:
			literal.WriteByte(c)
			i++
		}
	}
	flush()
	return tpl, nil
}

// parseParam reads a parameter starting at the ':' found at offset start and
// returns the token with the offset just past it.
func parseParam(path string, start int) (Token, int, error) {
	i := start + 1
	for i < len(path) && isNameByte(path[i]) {
		i++
	}
	tok := Token{Kind: TokenParam, Name: path[start+1 : i]}

	if i < len(path) && path[i] == '(' {
		depth := 0
		end := -1
		for j := i; j < len(path); j++ {
			switch path[j] {
			case '\\':
				j++
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					end = j
				}
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			return Token{}, 0, fmt.Errorf("%w: unclosed constraint for %q", ErrInvalidTemplate, tok.Name)
		}
		tok.Pattern = path[i+1 : end]
		if tok.Pattern == "" {
			return Token{}, 0, fmt.Errorf("%w: empty constraint for %q", ErrInvalidTemplate, tok.Name)
		}
		if _, err := regexp.Compile("(?:" + tok.Pattern + ")"); err != nil {
			return Token{}, 0, fmt.Errorf("%w: constraint for %q: %v", ErrInvalidTemplate, tok.Name, err)
		}
		i = end + 1
	}

	if i < len(path) && path[i] == '?' {
		tok.Optional = true
		i++
	}
	return tok, i, nil
}

func isNameByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
