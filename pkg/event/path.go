package event

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Segment is one step of a Path: a field name or an array index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

func KeySegment(key string) Segment {
	return Segment{Key: key}
}

func IndexSegment(i int) Segment {
	return Segment{Index: i, IsIndex: true}
}

// Path is the location of a node relative to the tree root. The root itself
// has the empty path.
type Path []Segment

// Push returns p extended by s. The result never shares its backing array
// with p, so callers may keep both.
func (p Path) Push(s Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

// Last returns the final segment, or false for the root path.
func (p Path) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

// LastKey returns the field name of the last segment. Index segments and
// the root have no key.
func (p Path) LastKey() (string, bool) {
	s, ok := p.Last()
	if !ok || s.IsIndex {
		return "", false
	}
	return s.Key, true
}

// String renders the path as `user.emails[0].value`. Keys that would be
// ambiguous are single-quoted, with embedded quotes doubled.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if s.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(quoteKey(s.Key))
	}
	return b.String()
}

func quoteKey(key string) string {
	if key != "" && !strings.ContainsAny(key, ".[]' \t\r\n") {
		return key
	}
	return "'" + strings.ReplaceAll(key, "'", "''") + "'"
}

// ParsePath is the inverse of Path.String.
func ParsePath(s string) (Path, error) {
	p := Path{}
	i := 0
	expectKey := true
	for i < len(s) {
		switch c := s[i]; {
		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, errors.Newf("event: unterminated index in path %q at %d", s, i)
			}
			idx, err := strconv.Atoi(s[i+1 : i+end])
			if err != nil || idx < 0 {
				return nil, errors.Newf("event: invalid index in path %q at %d", s, i)
			}
			p = append(p, IndexSegment(idx))
			i += end + 1
			expectKey = false
		case c == '.':
			if expectKey {
				return nil, errors.Newf("event: empty segment in path %q at %d", s, i)
			}
			i++
			expectKey = true
			if i == len(s) {
				return nil, errors.Newf("event: trailing dot in path %q", s)
			}
		case c == '\'':
			if !expectKey {
				return nil, errors.Newf("event: missing dot before key in path %q at %d", s, i)
			}
			key, n, err := unquoteKey(s[i:])
			if err != nil {
				return nil, errors.Wrapf(err, "event: path %q", s)
			}
			p = append(p, KeySegment(key))
			i += n
			expectKey = false
		default:
			if !expectKey {
				return nil, errors.Newf("event: missing dot before key in path %q at %d", s, i)
			}
			end := i
			for end < len(s) && s[end] != '.' && s[end] != '[' {
				end++
			}
			p = append(p, KeySegment(s[i:end]))
			i = end
			expectKey = false
		}
	}
	return p, nil
}

// unquoteKey reads a single-quoted key at the start of s and returns it with
// the number of bytes consumed.
func unquoteKey(s string) (string, int, error) {
	var b strings.Builder
	i := 1
	for i < len(s) {
		if s[i] == '\'' {
			if i+1 < len(s) && s[i+1] == '\'' {
				b.WriteByte('\'')
				i += 2
				continue
			}
			return b.String(), i + 1, nil
		}
		b.WriteByte(s[i])
		i++
	}
	return "", 0, errors.New("unterminated quoted key")
}
