// Package selector compiles and matches path expressions that decide where in
// an event tree a scrubbing rule may fire.
//
// A selector is anchored at the tree root:
//
//	user.email          exactly that field
//	request.*.token     one arbitrary segment between request and token
//	request.**.token    any number of segments, including none
//	items[].name        name of every element of items
//	items[0]            first element only
//	**$string           every string anywhere
//	!a && (b || c)      boolean combinations
//
// Selectors are pure: matching the same path and hint twice gives the same
// answer, and a compiled Selector may be shared between goroutines.
package selector

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/supergoodsystems/pii-scrub/pkg/event"
)

// TypeHint is a set of type annotations for the node being matched.
type TypeHint uint16

const (
	HintNull TypeHint = 1 << iota
	HintBool
	HintNumber
	HintString
	HintArray
	HintObject
	// HintIP marks strings that parse as an IPv4 or IPv6 address.
	HintIP
	// HintBinary marks a raw byte buffer. Event nodes never carry it.
	HintBinary

	HintAny = HintNull | HintBool | HintNumber | HintString | HintArray | HintObject | HintIP | HintBinary
	// HintScalar covers the hints a scalar event node can carry.
	HintScalar = HintNull | HintBool | HintNumber | HintString | HintIP
)

var typeNames = map[string]TypeHint{
	"null":    HintNull,
	"bool":    HintBool,
	"boolean": HintBool,
	"number":  HintNumber,
	"string":  HintString,
	"array":   HintArray,
	"object":  HintObject,
	"ip":      HintIP,
	"binary":  HintBinary,
	"any":     HintAny,
}

// HintFor computes the hint of an event node.
func HintFor(v *event.Value) TypeHint {
	if v.IsNull() {
		return HintNull
	}
	switch v.Kind {
	case event.KindBool:
		return HintBool
	case event.KindNumber:
		return HintNumber
	case event.KindString:
		if looksLikeIP(v.String) {
			return HintString | HintIP
		}
		return HintString
	case event.KindArray:
		return HintArray
	case event.KindObject:
		return HintObject
	}
	return 0
}

func looksLikeIP(s string) bool {
	if len(s) < 2 || len(s) > 45 {
		return false
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

// Selector is a compiled path expression.
type Selector struct {
	text string
	root expr
}

// String returns the source text the selector was compiled from.
func (s *Selector) String() string {
	return s.text
}

// Matches reports whether the node at path, annotated with hint, is selected.
func (s *Selector) Matches(path event.Path, hint TypeHint) bool {
	if s == nil || s.root == nil {
		return false
	}
	return s.root.match(path, hint)
}

// Types returns the union of the type filters used by the selector's path
// expressions, or zero when some path expression has no filter at all.
func (s *Selector) Types() TypeHint {
	if s == nil || s.root == nil {
		return 0
	}
	return s.root.types()
}

type expr interface {
	match(path event.Path, hint TypeHint) bool
	types() TypeHint
}

type orExpr struct{ left, right expr }

func (e orExpr) match(p event.Path, h TypeHint) bool {
	return e.left.match(p, h) || e.right.match(p, h)
}

func (e orExpr) types() TypeHint {
	l, r := e.left.types(), e.right.types()
	if l == 0 || r == 0 {
		return 0
	}
	return l | r
}

type andExpr struct{ left, right expr }

func (e andExpr) match(p event.Path, h TypeHint) bool {
	return e.left.match(p, h) && e.right.match(p, h)
}

func (e andExpr) types() TypeHint {
	l, r := e.left.types(), e.right.types()
	switch {
	case l == 0:
		return r
	case r == 0:
		return l
	}
	return l & r
}

type notExpr struct{ inner expr }

func (e notExpr) match(p event.Path, h TypeHint) bool {
	return !e.inner.match(p, h)
}

func (e notExpr) types() TypeHint { return 0 }

type segmentKind uint8

const (
	segKey segmentKind = iota
	segIndex
	segAnyIndex
	segWildcard
	segDeepWildcard
)

type segment struct {
	kind  segmentKind
	key   string
	index int
}

func (s segment) matches(ps event.Segment) bool {
	switch s.kind {
	case segWildcard:
		return true
	case segAnyIndex:
		return ps.IsIndex
	case segIndex:
		return ps.IsIndex && ps.Index == s.index
	case segKey:
		if ps.IsIndex {
			// An all-digit literal also addresses an array index.
			i, err := strconv.Atoi(s.key)
			return err == nil && i == ps.Index
		}
		return strings.EqualFold(s.key, ps.Key)
	}
	return false
}

type pathExpr struct {
	segments []segment
	// filter restricts the type of the final node; zero accepts anything.
	filter TypeHint
}

func (e pathExpr) match(p event.Path, h TypeHint) bool {
	if e.filter != 0 && e.filter&h == 0 {
		return false
	}
	return matchSegments(e.segments, p)
}

func (e pathExpr) types() TypeHint { return e.filter }

// matchSegments anchors segs at the start and end of p. A deep wildcard first
// tries to swallow as much as possible and backtracks so that trailing
// literal segments can still match.
func matchSegments(segs []segment, p event.Path) bool {
	for len(segs) > 0 {
		s := segs[0]
		if s.kind == segDeepWildcard {
			rest := segs[1:]
			if len(rest) == 0 {
				return true
			}
			for i := len(p); i >= 0; i-- {
				if matchSegments(rest, p[i:]) {
					return true
				}
			}
			return false
		}
		if len(p) == 0 || !s.matches(p[0]) {
			return false
		}
		segs, p = segs[1:], p[1:]
	}
	return len(p) == 0
}
