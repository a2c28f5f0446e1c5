package piiconfig

import (
	"regexp"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/supergoodsystems/pii-scrub/pkg/event"
)

func newPatternMatcher(pattern string, groups []int) (*patternMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g < 0 || g > re.NumSubexp() {
			return nil, errors.Newf("replace group %d out of range, pattern has %d groups", g, re.NumSubexp())
		}
	}
	if len(groups) == 0 {
		groups = []int{0}
	}
	longest := regexp.MustCompile(pattern)
	longest.Longest()
	return &patternMatcher{re: re, longest: longest, groups: groups}, nil
}

func (m *patternMatcher) matchValue(_ event.Path, v *event.Value) Match {
	if v == nil || v.Kind != event.KindString {
		return Match{}
	}
	s := v.String
	var spans [][2]int
	for _, loc := range m.re.FindAllStringSubmatchIndex(s, -1) {
		if m.validate != nil && !m.validate(s[loc[0]:loc[1]]) {
			continue
		}
		spans = append(spans, groupSpans(loc, m.groups, 0)...)
	}
	return Match{Spans: mergeSpans(spans)}
}

// findAllBytes runs the pattern once over the whole buffer so that anchors
// and word boundaries see the real surrounding bytes. Candidates rejected by
// the validator are skipped as a whole.
func (m *patternMatcher) findAllBytes(b []byte) []Region {
	var regions []Region
	for _, loc := range m.longest.FindAllSubmatchIndex(b, -1) {
		start, end := loc[0], loc[1]
		if start == end {
			continue
		}
		if m.validate != nil && !m.validate(string(b[start:end])) {
			continue
		}
		spans := groupSpans(loc, m.groups, 0)
		if len(spans) == 0 {
			continue
		}
		regions = append(regions, Region{Start: start, End: end, Spans: mergeSpans(spans)})
	}
	return regions
}

func (m *patternMatcher) scansBytes() bool { return true }

// groupSpans extracts the non-empty spans of the selected groups from a
// submatch index, shifted by offset.
func groupSpans(loc []int, groups []int, offset int) [][2]int {
	var spans [][2]int
	for _, g := range groups {
		s, e := loc[2*g], loc[2*g+1]
		if s < 0 || s == e {
			continue
		}
		spans = append(spans, [2]int{offset + s, offset + e})
	}
	return spans
}

// mergeSpans sorts spans and joins the overlapping ones.
func mergeSpans(spans [][2]int) [][2]int {
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	out := spans[:1]
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s[0] <= last[1] {
			if s[1] > last[1] {
				last[1] = s[1]
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

func (m pairMatcher) matchValue(path event.Path, _ *event.Value) Match {
	key, ok := path.LastKey()
	if !ok {
		return Match{}
	}
	return Match{Whole: m.key.MatchString(key)}
}

func (pairMatcher) findAllBytes([]byte) []Region { return nil }

func (pairMatcher) scansBytes() bool { return false }

func (anythingMatcher) matchValue(event.Path, *event.Value) Match {
	return Match{Whole: true}
}

func (anythingMatcher) findAllBytes([]byte) []Region { return nil }

func (anythingMatcher) scansBytes() bool { return false }

// Match runs the rule's matcher against the node at path. ok is false when
// nothing matched.
func (r *Rule) Match(path event.Path, v *event.Value) (Match, bool) {
	m := r.matcher.matchValue(path, v)
	return m, m.Whole || len(m.Spans) > 0
}

// FindAllBytes returns the non-overlapping leftmost-longest matches of the
// rule in b, in order.
func (r *Rule) FindAllBytes(b []byte) []Region {
	return r.matcher.findAllBytes(b)
}

// ScansBytes reports whether the rule can be applied to raw byte buffers.
// Only pattern based rules can; key and anything rules need a tree.
func (r *Rule) ScansBytes() bool {
	return r.matcher.scansBytes()
}

// Builtin reports whether the rule comes from a builtin category.
func (r *Rule) Builtin() bool {
	return r.builtin
}
