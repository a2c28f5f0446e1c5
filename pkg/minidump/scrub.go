// Package minidump scrubs raw byte buffers such as crash dumps. It has no
// notion of structure: every byte-capable rule is run over the buffer as a
// pattern, and matches are overwritten with a filler byte so that the buffer
// keeps its length and every offset inside it stays valid.
package minidump

import (
	"github.com/cockroachdb/errors"
	"github.com/supergoodsystems/pii-scrub/internal/shared"
	piiconfig "github.com/supergoodsystems/pii-scrub/pkg/pii-config"
)

// ErrNoRules is returned when Scrub is called without compiled rules.
var ErrNoRules = errors.New("minidump: no rules")

type Options struct {
	// Filler overwrites matched bytes, 'x' when nil.
	Filler *byte
	// SkipUTF16 disables the second pass over UTF-16LE text.
	SkipUTF16 bool
	// InPlace overwrites the given buffer instead of a copy.
	InPlace bool
}

// Encoding of the text a region was found in.
const (
	EncodingUTF8    = "utf8"
	EncodingUTF16LE = "utf16le"
)

// Region is an overwritten byte range.
type Region struct {
	Offset   int
	Length   int
	RuleID   string
	Encoding string
}

type Result struct {
	Buffer  []byte
	Count   int
	Regions []Region
}

// Scrub overwrites every match of the buffer rules in buf. The scan is a
// single left to right pass: at each position the earliest match of any
// rule wins, the longest one on a tie, then rule order. Scanning resumes
// after the overwritten match, so regions never overlap.
func Scrub(buf []byte, rules *piiconfig.Rules, o Options) (Result, error) {
	if rules == nil {
		return Result{}, ErrNoRules
	}
	filler := byte(shared.DefaultFiller)
	if o.Filler != nil {
		filler = *o.Filler
	}
	out := buf
	if !o.InPlace {
		out = append([]byte(nil), buf...)
	}
	res := Result{Buffer: out}
	binary := rules.BinaryRules()
	if len(binary) == 0 || len(out) == 0 {
		return res, nil
	}

	for _, r := range scan(out, binary) {
		overwrite(out, r.spans, filler, 1)
		for _, sp := range r.spans {
			res.Regions = append(res.Regions, Region{Offset: sp[0], Length: sp[1] - sp[0], RuleID: r.rule.ID, Encoding: EncodingUTF8})
		}
		res.Count++
	}
	if !o.SkipUTF16 {
		n, regions := scrubUTF16(out, binary, filler)
		res.Count += n
		res.Regions = append(res.Regions, regions...)
	}
	return res, nil
}

type match struct {
	rule  *piiconfig.Rule
	spans [][2]int
}

// scan merges the matches every rule finds over the whole of buf into one
// non-overlapping list. A rule's matches that start before the end of the
// previous winner are dropped.
func scan(buf []byte, rules []*piiconfig.Rule) []match {
	all := make([][]piiconfig.Region, len(rules))
	for i, r := range rules {
		all[i] = r.FindAllBytes(buf)
	}
	cursor := make([]int, len(rules))
	var found []match
	pos := 0
	for {
		best := -1
		for i := range rules {
			regions := all[i]
			for cursor[i] < len(regions) && regions[cursor[i]].Start < pos {
				cursor[i]++
			}
			if cursor[i] == len(regions) {
				continue
			}
			if best < 0 || better(regions[cursor[i]], all[best][cursor[best]]) {
				best = i
			}
		}
		if best < 0 {
			return found
		}
		region := all[best][cursor[best]]
		found = append(found, match{rule: rules[best], spans: region.Spans})
		pos = region.End
	}
}

// better reports whether a beats b: earlier start, then longer match. Ties
// go to the rule seen first.
func better(a, b piiconfig.Region) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.End-a.Start > b.End-b.Start
}

// overwrite fills spans of buf with filler. For wide text every unit is
// the filler followed by zero bytes.
func overwrite(buf []byte, spans [][2]int, filler byte, width int) {
	for _, sp := range spans {
		for i := sp[0]; i < sp[1]; i++ {
			if (i-sp[0])%width == 0 {
				buf[i] = filler
			} else {
				buf[i] = 0
			}
		}
	}
}
