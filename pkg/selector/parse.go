package selector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidSelector is the mark carried by every selector parse failure.
var ErrInvalidSelector = errors.New("invalid selector")

// ParseError describes where a selector failed to parse.
type ParseError struct {
	Selector string
	Pos      int
	Msg      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid selector %q at position %d: %s", e.Selector, e.Pos, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidSelector
}

// Parse compiles selector text. It never returns a Selector that matches
// everything because of a syntax problem: any error leaves nothing compiled.
func Parse(text string) (*Selector, error) {
	p := &parser{src: text}
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("empty selector")
	}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.src[p.pos])
	}
	return &Selector{text: text, root: root}, nil
}

// MustParse is Parse for selectors known to be valid, such as builtins.
func MustParse(text string) *Selector {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Selector: p.src, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if !strings.HasPrefix(p.src[p.pos:], "||") {
			return left, nil
		}
		p.pos += 2
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orExpr{left: left, right: right}
	}
}

func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if !strings.HasPrefix(p.src[p.pos:], "&&") {
			return left, nil
		}
		p.pos += 2
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andExpr{left: left, right: right}
	}
}

func (p *parser) parseUnary() (expr, error) {
	p.skipSpace()
	switch p.peek() {
	case '!':
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{inner: inner}, nil
	case '(':
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, p.errorf("expected ')'")
		}
		p.pos++
		return inner, nil
	case 0:
		return nil, p.errorf("unexpected end of selector")
	}
	return p.parsePath()
}

func (p *parser) parsePath() (expr, error) {
	if p.peek() == '$' {
		// A lone type filter selects matching nodes anywhere.
		filter, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return pathExpr{segments: []segment{{kind: segDeepWildcard}}, filter: filter}, nil
	}

	var e pathExpr
	for {
		seg, err := p.parseSegment()
		if err != nil {
			return nil, err
		}
		e.segments = append(e.segments, seg)

		switch p.peek() {
		case '[':
			continue
		case '.':
			p.pos++
			if p.peek() == '$' {
				return nil, p.errorf("type filter must follow a segment")
			}
			continue
		case '$':
			filter, err := p.parseType()
			if err != nil {
				return nil, err
			}
			e.filter = filter
		}
		if !p.eof() && !isDelimiter(p.peek()) {
			return nil, p.errorf("unexpected %q", p.peek())
		}
		return e, nil
	}
}

func (p *parser) parseSegment() (segment, error) {
	switch c := p.peek(); {
	case c == '[':
		p.pos++
		start := p.pos
		for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
			p.pos++
		}
		if p.peek() != ']' {
			return segment{}, p.errorf("expected ']'")
		}
		digits := p.src[start:p.pos]
		p.pos++
		if digits == "" {
			return segment{kind: segAnyIndex}, nil
		}
		i, err := strconv.Atoi(digits)
		if err != nil {
			return segment{}, &ParseError{Selector: p.src, Pos: start, Msg: "index out of range"}
		}
		return segment{kind: segIndex, index: i}, nil

	case c == '*':
		p.pos++
		kind := segWildcard
		if p.peek() == '*' {
			p.pos++
			kind = segDeepWildcard
		}
		if p.peek() == '*' {
			return segment{}, p.errorf("too many '*'")
		}
		if !p.eof() && isKeyByte(p.peek()) {
			return segment{}, p.errorf("wildcard cannot be combined with a key")
		}
		return segment{kind: kind}, nil

	case c == '\'':
		key, n, err := unquote(p.src[p.pos:])
		if err != nil {
			return segment{}, p.errorf("%s", err)
		}
		p.pos += n
		return segment{kind: segKey, key: key}, nil

	case isKeyByte(c):
		start := p.pos
		for !p.eof() && isKeyByte(p.peek()) {
			p.pos++
		}
		return segment{kind: segKey, key: p.src[start:p.pos]}, nil
	}
	if p.eof() {
		return segment{}, p.errorf("expected segment, found end of selector")
	}
	return segment{}, p.errorf("expected segment, found %q", p.peek())
}

func (p *parser) parseType() (TypeHint, error) {
	start := p.pos
	p.pos++
	for !p.eof() && isTypeByte(p.peek()) {
		p.pos++
	}
	name := p.src[start+1 : p.pos]
	hint, ok := typeNames[strings.ToLower(name)]
	if !ok {
		return 0, &ParseError{Selector: p.src, Pos: start, Msg: fmt.Sprintf("unknown type filter $%s", name)}
	}
	return hint, nil
}

func unquote(s string) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		return b.String(), i + 1, nil
	}
	return "", 0, errors.New("unterminated quoted key")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// isDelimiter reports bytes that may legally follow a complete path.
func isDelimiter(c byte) bool {
	return isSpace(c) || c == ')' || c == '&' || c == '|'
}

func isKeyByte(c byte) bool {
	switch c {
	case '.', '[', ']', '\'', '$', '*', '(', ')', '!', '&', '|', 0:
		return false
	}
	return !isSpace(c)
}

func isTypeByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
