package redact

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/supergoodsystems/pii-scrub/pkg/event"
	"github.com/supergoodsystems/pii-scrub/pkg/meta"
	piiconfig "github.com/supergoodsystems/pii-scrub/pkg/pii-config"
)

func Test_Actions(t *testing.T) {
	t.Run("Masks around the kept prefix and suffix", func(t *testing.T) {
		require.Equal(t, "12******90", Mask("1234567890", 2, 2, ""))
		require.Equal(t, "**", Mask("ab", 2, 2, ""))
		require.Equal(t, "****", Mask("abcd", 2, 2, ""))
		require.Equal(t, "ab#de", Mask("abcde", 2, 2, "#"))
		require.Equal(t, "h***o", Mask("héllo", 1, 1, ""))
		require.Equal(t, "", Mask("", 1, 1, ""))
	})

	t.Run("Hashes with and without a key", func(t *testing.T) {
		require.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", Hash("", "abc"))
		require.Equal(t, "de7c9b85b8b78aa6bc8a7a36f70a90701c9db4d9", Hash("key", "The quick brown fox jumps over the lazy dog"))
	})

	t.Run("Applies actions to whole values", func(t *testing.T) {
		remove := Action{Redaction: piiconfig.Redaction{Method: piiconfig.MethodRemove}}
		out, consumed, err := Apply(remove, event.ObjectValue(nil))
		require.NoError(t, err)
		require.True(t, consumed)
		require.Nil(t, out)

		replace := Action{Redaction: piiconfig.Redaction{Method: piiconfig.MethodReplace, Text: "[x]"}}
		out, consumed, err = Apply(replace, event.Bool(true))
		require.NoError(t, err)
		require.False(t, consumed)
		require.Equal(t, event.String("[x]"), out)

		out, _, err = Apply(replace, event.Null())
		require.NoError(t, err)
		require.True(t, out.IsNull())

		_, _, err = Apply(replace, event.Array(event.String("a")))
		require.True(t, errors.Is(err, ErrActionNotApplicable))
	})

	t.Run("Leaves digests alone when hashing", func(t *testing.T) {
		hash := Action{Redaction: piiconfig.Redaction{Method: piiconfig.MethodHash}, HashKey: "k"}
		out, _, err := Apply(hash, event.String("secret"))
		require.NoError(t, err)
		require.Equal(t, Hash("k", "secret"), out.String)

		again, _, err := Apply(hash, out)
		require.NoError(t, err)
		require.Equal(t, out.String, again.String)

		number, _, err := Apply(hash, event.Int(42))
		require.NoError(t, err)
		require.Equal(t, Hash("k", "42"), number.String)
	})

	t.Run("Applies actions to spans", func(t *testing.T) {
		replace := Action{Redaction: piiconfig.Redaction{Method: piiconfig.MethodReplace, Text: "[ssn]"}}
		s, ranges := ApplySpans(replace, "call 078-05-1120 now", [][2]int{{5, 16}})
		require.Equal(t, "call [ssn] now", s)
		require.Equal(t, []meta.Range{{Start: 5, End: 10}}, ranges)

		mask := Action{Redaction: piiconfig.Redaction{Method: piiconfig.MethodMask}}
		s, ranges = ApplySpans(mask, "a 1 b 2", [][2]int{{6, 7}, {2, 3}})
		require.Equal(t, "a * b *", s)
		require.Equal(t, []meta.Range{{Start: 2, End: 3}, {Start: 6, End: 7}}, ranges)

		s, ranges = ApplySpans(replace, "[ssn]", [][2]int{{0, 5}})
		require.Equal(t, "[ssn]", s)
		require.Empty(t, ranges)
	})

	t.Run("Maps methods to remark types", func(t *testing.T) {
		for method, want := range map[string]meta.Type{
			piiconfig.MethodRemove:  meta.Removed,
			piiconfig.MethodReplace: meta.Substituted,
			piiconfig.MethodMask:    meta.Masked,
			piiconfig.MethodHash:    meta.Pseudonymized,
		} {
			require.Equal(t, want, Action{Redaction: piiconfig.Redaction{Method: method}}.RemarkType())
		}
	})
}
