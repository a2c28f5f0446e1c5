package redact

import (
	"github.com/cockroachdb/errors"
	"github.com/supergoodsystems/pii-scrub/internal/shared"
	"github.com/supergoodsystems/pii-scrub/pkg/event"
	"github.com/supergoodsystems/pii-scrub/pkg/meta"
	piiconfig "github.com/supergoodsystems/pii-scrub/pkg/pii-config"
	"github.com/supergoodsystems/pii-scrub/pkg/selector"
)

type Options struct {
	// MaxDepth bounds the nesting the walker descends into. The content of
	// deeper containers is dropped and noted in the meta.
	MaxDepth int
	// InPlace scrubs the given tree instead of a copy of it.
	InPlace bool
	// OnError receives per-node failures. They never abort a scrub.
	OnError func(error)
}

// Scrub walks root depth first and applies the rules selected for every
// node. It returns the scrubbed tree and what was changed. A removed root
// becomes null.
// NOTE: with InPlace the input tree is modified and must not be used by
// other goroutines during the call
func Scrub(root *event.Value, rules *piiconfig.Rules, o Options) (*event.Value, *meta.Meta) {
	if o.MaxDepth <= 0 {
		o.MaxDepth = shared.DefaultMaxDepth
	}
	if o.OnError == nil {
		o.OnError = func(error) {}
	}
	if !o.InPlace {
		root = root.Clone()
	}
	if root == nil {
		root = event.Null()
	}
	w := &walker{rules: rules, opts: o, meta: meta.New()}
	out, removed := w.visit(root, event.Path{}, 0)
	if removed {
		out = event.Null()
	}
	if o.InPlace && out != root {
		*root = *out
		out = root
	}
	return out, w.meta
}

type walker struct {
	rules *piiconfig.Rules
	opts  Options
	meta  *meta.Meta
}

// visit scrubs v and its children. It returns the value that takes v's
// place, or removed when v must be dropped from its parent.
func (w *walker) visit(v *event.Value, path event.Path, depth int) (out *event.Value, removed bool) {
	v, removed = w.applyRules(v, path)
	if removed {
		return nil, true
	}

	switch v.Kind {
	case event.KindArray, event.KindObject:
		if depth >= w.opts.MaxDepth {
			if isEmpty(v) {
				return v, false
			}
			w.meta.Add(meta.Remark{Path: path.String(), Type: meta.DepthLimit, Length: getSize(v)})
			if v.Kind == event.KindArray {
				v.Array = []*event.Value{}
			} else {
				v.Object = event.NewObject()
			}
			return v, false
		}
	}

	switch v.Kind {
	case event.KindArray:
		kept := v.Array[:0:0]
		for i, item := range v.Array {
			child, gone := w.visit(item, path.Push(event.IndexSegment(i)), depth+1)
			if !gone {
				kept = append(kept, child)
			}
		}
		v.Array = kept
	case event.KindObject:
		for _, key := range v.Object.Keys() {
			item, _ := v.Object.Get(key)
			child, gone := w.visit(item, path.Push(event.KeySegment(key)), depth+1)
			if gone {
				v.Object.Delete(key)
				continue
			}
			if child != item {
				v.Object.Set(key, child)
			}
		}
	}
	return v, false
}

// applyRules runs the ordered rules selected for the node. A Remove ends the
// sequence. Remarks are recorded only when the node ends up changed or
// removed, so a sequence that restores the original value leaves no trace
// other than errors.
func (w *walker) applyRules(v *event.Value, path event.Path) (*event.Value, bool) {
	selected := w.rules.RulesFor(path, selector.HintFor(v))
	if len(selected) == 0 {
		return v, false
	}
	var (
		pathStr = path.String()
		orig    = v
		pending []meta.Remark
	)
	commit := func(changed bool) {
		for _, r := range pending {
			if changed || r.Type == meta.Error {
				w.meta.Add(r)
			}
		}
	}
	for _, rule := range selected {
		m, ok := rule.Match(path, v)
		if !ok {
			continue
		}
		action := ActionFor(rule, w.rules)
		remark := meta.Remark{Path: pathStr, RuleID: rule.ID, Type: action.RemarkType(), Length: getSize(v)}

		if action.Method == piiconfig.MethodRemove {
			pending = append(pending, remark)
			commit(true)
			return nil, true
		}

		if !m.Whole {
			s, ranges := ApplySpans(action, v.String, m.Spans)
			if len(ranges) == 0 {
				continue
			}
			for i := range ranges {
				r := remark
				r.Range = &ranges[i]
				pending = append(pending, r)
			}
			v = event.String(s)
			continue
		}

		next, _, err := Apply(action, v)
		if err != nil {
			pending = append(pending, meta.Remark{Path: pathStr, RuleID: rule.ID, Type: meta.Error, Length: remark.Length})
			w.opts.OnError(errors.Wrapf(err, "rule %s at %s", errors.Safe(rule.ID), pathStr))
			continue
		}
		if next.Equal(v) {
			continue
		}
		pending = append(pending, remark)
		v = next
	}
	commit(!v.Equal(orig))
	return v, false
}

func isEmpty(v *event.Value) bool {
	if v.Kind == event.KindArray {
		return len(v.Array) == 0
	}
	return v.Object.Len() == 0
}
