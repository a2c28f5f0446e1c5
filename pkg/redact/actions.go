package redact

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/supergoodsystems/pii-scrub/internal/shared"
	"github.com/supergoodsystems/pii-scrub/pkg/event"
	"github.com/supergoodsystems/pii-scrub/pkg/meta"
	piiconfig "github.com/supergoodsystems/pii-scrub/pkg/pii-config"
)

// ErrActionNotApplicable is returned when an action cannot transform a node
// of the given type, such as replacing an object with a string.
var ErrActionNotApplicable = piiconfig.ErrActionNotApplicable

var digestPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Action is a resolved redaction together with the key hashing uses.
type Action struct {
	piiconfig.Redaction
	HashKey string
}

// ActionFor builds the action of rule under rules.
func ActionFor(rule *piiconfig.Rule, rules *piiconfig.Rules) Action {
	return Action{Redaction: rule.Redaction, HashKey: rules.HashKey()}
}

// RemarkType returns the remark recorded when the action changes a value.
func (a Action) RemarkType() meta.Type {
	switch a.Method {
	case piiconfig.MethodRemove:
		return meta.Removed
	case piiconfig.MethodMask:
		return meta.Masked
	case piiconfig.MethodHash:
		return meta.Pseudonymized
	}
	return meta.Substituted
}

// Apply transforms a whole node. consumed is true when the node is gone and
// no later rule may see it. Null carries no data, so only Remove changes it.
func Apply(a Action, v *event.Value) (out *event.Value, consumed bool, err error) {
	if a.Method == piiconfig.MethodRemove {
		return nil, true, nil
	}
	if v.IsNull() {
		return v, false, nil
	}
	if !v.Kind.IsScalar() {
		return v, false, errors.Wrapf(ErrActionNotApplicable, "cannot %s %s", errors.Safe(a.Method), errors.Safe(v.Kind.String()))
	}
	switch a.Method {
	case piiconfig.MethodReplace:
		return event.String(a.Text), false, nil
	case piiconfig.MethodHash:
		if v.Kind == event.KindString && isDigest(v.String) {
			return v, false, nil
		}
		return event.String(Hash(a.HashKey, v.Text())), false, nil
	case piiconfig.MethodMask:
		return event.String(Mask(v.Text(), a.Prefix, a.Suffix, a.Char)), false, nil
	}
	return v, false, errors.Newf("unknown redaction method %q", a.Method)
}

// ApplySpans transforms the given byte spans of s. It returns the new
// string and, for every span that actually changed, where its replacement
// sits in the new string. Remove is not a span action: callers drop the
// whole node instead.
func ApplySpans(a Action, s string, spans [][2]int) (string, []meta.Range) {
	sorted := append([][2]int(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i][0] < sorted[j][0] })

	var (
		out    []byte
		ranges []meta.Range
		last   int
	)
	for _, sp := range sorted {
		if sp[0] < last || sp[1] > len(s) || sp[0] >= sp[1] {
			continue
		}
		orig := s[sp[0]:sp[1]]
		repl := a.spanText(orig)
		out = append(out, s[last:sp[0]]...)
		start := len(out)
		out = append(out, repl...)
		if repl != orig {
			ranges = append(ranges, meta.Range{Start: start, End: len(out)})
		}
		last = sp[1]
	}
	out = append(out, s[last:]...)
	return string(out), ranges
}

func (a Action) spanText(orig string) string {
	switch a.Method {
	case piiconfig.MethodReplace:
		return a.Text
	case piiconfig.MethodHash:
		if isDigest(orig) {
			return orig
		}
		return Hash(a.HashKey, orig)
	case piiconfig.MethodMask:
		return Mask(orig, a.Prefix, a.Suffix, a.Char)
	}
	return orig
}

// Hash returns the lowercase hex HMAC-SHA1 of s under key, or the plain
// SHA-1 digest when key is empty.
func Hash(key, s string) string {
	if key == "" {
		sum := sha1.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	}
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(s))
	return hex.EncodeToString(mac.Sum(nil))
}

func isDigest(s string) bool {
	return digestPattern.MatchString(s)
}

// Mask replaces the characters of s with char, keeping the first prefix and
// the last suffix characters. Values too short to keep anything are masked
// entirely.
func Mask(s string, prefix, suffix int, char string) string {
	ch := shared.DefaultMaskChar
	if char != "" {
		ch, _ = utf8.DecodeRuneInString(char)
	}
	runes := []rune(s)
	from, to := prefix, len(runes)-suffix
	if len(runes) <= prefix+suffix {
		from, to = 0, len(runes)
	}
	for i := from; i < to; i++ {
		runes[i] = ch
	}
	return string(runes)
}
