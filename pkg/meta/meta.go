// Package meta records what a scrub changed. A Remark never holds any part of
// the original value, only where it was, how long it was and which rule
// changed it.
package meta

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/redact"
	"github.com/supergoodsystems/pii-scrub/internal/shared"
)

type Type string

const (
	Removed       Type = shared.RemarkRemoved
	Substituted   Type = shared.RemarkSubstituted
	Masked        Type = shared.RemarkMasked
	Pseudonymized Type = shared.RemarkPseudonymized
	DepthLimit    Type = shared.RemarkDepthLimit
	Error         Type = shared.RemarkError
)

// Range is a byte range inside the scrubbed value.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Remark is one change made to one node.
type Remark struct {
	Path   string `json:"path"`
	RuleID string `json:"rule"`
	Type   Type   `json:"type"`
	// Length is the size of the original value: bytes for strings, the
	// encoded size for anything else.
	Length int `json:"len"`
	// Range locates the redacted span in the new value, when the rule only
	// touched part of a string.
	Range *Range `json:"range,omitempty"`
}

// SafeFormat implements redact.SafeFormatter. Paths are built from event
// keys, which may be sensitive themselves, so they are marked unsafe.
func (r Remark) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s by %s at %s (len %d)",
		redact.SafeString(r.Type), redact.SafeString(r.RuleID), r.Path, redact.SafeInt(r.Length))
	if r.Range != nil {
		w.Printf(" [%d:%d]", redact.SafeInt(r.Range.Start), redact.SafeInt(r.Range.End))
	}
}

func (r Remark) String() string {
	return redact.StringWithoutMarkers(r)
}

// Redacted renders the remark with its path elided, for logs.
func (r Remark) Redacted() string {
	return string(redact.Sprint(r).Redact())
}

// Meta is the ordered record of remarks of one scrub, keyed by path.
type Meta struct {
	paths   []string
	remarks map[string][]Remark
	count   int
}

func New() *Meta {
	return &Meta{remarks: map[string][]Remark{}}
}

// Add appends r under its path.
func (m *Meta) Add(r Remark) {
	if m.remarks == nil {
		m.remarks = map[string][]Remark{}
	}
	if _, ok := m.remarks[r.Path]; !ok {
		m.paths = append(m.paths, r.Path)
	}
	m.remarks[r.Path] = append(m.remarks[r.Path], r)
	m.count++
}

// Get returns the remarks recorded for path, in the order they were made.
func (m *Meta) Get(path string) []Remark {
	if m == nil {
		return nil
	}
	return m.remarks[path]
}

// Paths returns the paths that carry remarks, in first-touched order.
func (m *Meta) Paths() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.paths...)
}

// Len returns the total number of remarks.
func (m *Meta) Len() int {
	if m == nil {
		return 0
	}
	return m.count
}

// All returns every remark, grouped by path in first-touched order.
func (m *Meta) All() []Remark {
	if m == nil {
		return nil
	}
	out := make([]Remark, 0, m.count)
	for _, p := range m.paths {
		out = append(out, m.remarks[p]...)
	}
	return out
}

// Count returns the number of remarks of type t.
func (m *Meta) Count(t Type) int {
	n := 0
	for _, r := range m.All() {
		if r.Type == t {
			n++
		}
	}
	return n
}

// MarshalJSON encodes the meta as an object from path to remarks, keeping
// path order.
func (m *Meta) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if m != nil {
		for i, p := range m.paths {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(p)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			val, err := json.Marshal(m.remarks[p])
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
