package route

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Captures maps parameter names to the values taken from a matched URL.
type Captures map[string]string

// Pattern is a compiled route. It is immutable and safe for concurrent use.
type Pattern struct {
	template Template
	domains  []string
	query    []string
	re       *regexp.Regexp
}

// Compile builds a Pattern matching http(s) URLs on any of the domains,
// optionally behind one subdomain label, whose path follows the template.
// Query parameters listed in query are captured when present and never
// required.
func Compile(domains []string, path string, query []string) (*Pattern, error) {
	if len(domains) == 0 {
		return nil, ErrNoDomains
	}
	tpl, err := ParseTemplate(path)
	if err != nil {
		return nil, err
	}
	params := make(map[string]struct{}, len(tpl.Tokens))
	for _, name := range tpl.Params() {
		params[name] = struct{}{}
	}
	for _, name := range query {
		if name == "" {
			return nil, fmt.Errorf("%w: empty query parameter", ErrInvalidTemplate)
		}
		if _, dup := params[name]; dup {
			return nil, fmt.Errorf("%w: query parameter %q shadows a path parameter", ErrInvalidTemplate, name)
		}
		params[name] = struct{}{}
	}

	expr := buildExpr(domains, tpl)
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return &Pattern{
		template: tpl,
		domains:  append([]string(nil), domains...),
		query:    append([]string(nil), query...),
		re:       re,
	}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(domains []string, path string, query []string) *Pattern {
	p, err := Compile(domains, path, query)
	if err != nil {
		panic(err)
	}
	return p
}

func buildExpr(domains []string, tpl Template) string {
	var b strings.Builder
	b.WriteString(`(?i)^https?://(?:(?P<` + CaptureSubdomain + `>[^./?#]+)\.)?(?P<` + CaptureDomain + `>`)
	for i, d := range domains {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(regexp.QuoteMeta(strings.ToLower(d)))
	}
	b.WriteByte(')')

	tokens := tpl.Tokens
	for i, tok := range tokens {
		switch tok.Kind {
		case TokenSlash:
			if optionalParamAt(tokens, i+1) {
				continue
			}
			b.WriteByte('/')
		case TokenLiteral:
			b.WriteString(regexp.QuoteMeta(tok.Text))
		case TokenParam:
			pattern := tok.Pattern
			if pattern == "" {
				pattern = DefaultParamPattern
			}
			group := `(?P<` + tok.Name + `>` + pattern + `)`
			if !tok.Optional {
				b.WriteString(group)
				continue
			}
			b.WriteString(`(?:`)
			if i > 0 && tokens[i-1].Kind == TokenSlash {
				b.WriteByte('/')
			}
			b.WriteString(group)
			b.WriteString(`)?`)
		}
	}
	b.WriteString(`/?(?:\?(?P<` + queryGroup + `>[^#]*))?(?:#.*)?$`)
	return b.String()
}

func optionalParamAt(tokens []Token, i int) bool {
	return i < len(tokens) && tokens[i].Kind == TokenParam && tokens[i].Optional
}

// Template returns the parsed template the pattern was compiled from.
func (p *Pattern) Template() Template { return p.template }

// Domains returns the domains the pattern accepts.
func (p *Pattern) Domains() []string { return append([]string(nil), p.domains...) }

// QueryParams returns the declared query parameter names.
func (p *Pattern) QueryParams() []string { return append([]string(nil), p.query...) }

// String returns the underlying regular expression.
func (p *Pattern) String() string { return p.re.String() }

// Match reports whether raw is a URL accepted by the pattern. On success the
// captures always contain "domain" and "subdomain" (possibly empty), every
// matched path parameter, and each declared query parameter that is present.
func (p *Pattern) Match(raw string) (Captures, bool) {
	m := p.re.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	caps := Captures{CaptureSubdomain: ""}
	var rawQuery string
	for i, name := range p.re.SubexpNames() {
		switch {
		case name == "":
		case name == queryGroup:
			rawQuery = m[i]
		case name == CaptureSubdomain || name == CaptureDomain:
			caps[name] = m[i]
		case m[i] != "":
			caps[name] = m[i]
		}
	}
	if len(p.query) > 0 && rawQuery != "" {
		values := rawQueryValues(rawQuery)
		for _, name := range p.query {
			if v := values[name]; v != "" {
				caps[name] = v
			}
		}
	}
	return caps, true
}

// rawQueryValues maps each decoded key to its first value, left escaped so
// EncodeQuery can write it back unchanged.
func rawQueryValues(rawQuery string) map[string]string {
	values := make(map[string]string)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if _, seen := values[key]; !seen {
			values[key] = value
		}
	}
	return values
}

// Expand rebuilds the path for the captured values. Optional parameters that
// were not captured are left out together with their leading slash.
func (p *Pattern) Expand(caps Captures) string {
	var b strings.Builder
	tokens := p.template.Tokens
	for i, tok := range tokens {
		switch tok.Kind {
		case TokenSlash:
			if optionalParamAt(tokens, i+1) && caps[tokens[i+1].Name] == "" {
				continue
			}
			b.WriteByte('/')
		case TokenLiteral:
			b.WriteString(tok.Text)
		case TokenParam:
			b.WriteString(caps[tok.Name])
		}
	}
	return b.String()
}

// EncodeQuery renders the captured query parameters in declaration order,
// including the leading '?', or returns "" when none were captured. Values
// are written as they appeared in the matched URL.
func (p *Pattern) EncodeQuery(caps Captures) string {
	var b strings.Builder
	for _, name := range p.query {
		v, ok := caps[name]
		if !ok || v == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}
