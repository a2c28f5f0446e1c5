package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Event(t *testing.T) {
	t.Run("Parses and re-encodes a document preserving key order and number text", func(t *testing.T) {
		doc := `{"zeta":1.50,"alpha":{"b":[true,null,"x"],"a":-3},"mid":"s"}`
		v, err := Parse([]byte(doc))
		require.NoError(t, err)
		require.Equal(t, KindObject, v.Kind)
		require.Equal(t, []string{"zeta", "alpha", "mid"}, v.Object.Keys())

		out, err := v.MarshalJSON()
		require.NoError(t, err)
		require.Equal(t, doc, string(out))
	})

	t.Run("Rejects trailing data and invalid documents", func(t *testing.T) {
		_, err := Parse([]byte(`{"a":1} {"b":2}`))
		require.Error(t, err)
		_, err = Parse([]byte(`{"a" 1}`))
		require.Error(t, err)
		_, err = Parse([]byte{0xff, 0xfe})
		require.Error(t, err)
	})

	t.Run("Clone is deep", func(t *testing.T) {
		v, err := Parse([]byte(`{"user":{"tags":["a","b"]}}`))
		require.NoError(t, err)
		c := v.Clone()
		require.True(t, v.Equal(c))

		user, _ := c.Object.Get("user")
		tags, _ := user.Object.Get("tags")
		tags.Array[0].String = "changed"
		user.Object.Delete("tags")

		orig, _ := v.Object.Get("user")
		origTags, ok := orig.Object.Get("tags")
		require.True(t, ok)
		require.Equal(t, "a", origTags.Array[0].String)
		require.False(t, v.Equal(c))
	})

	t.Run("Object delete keeps remaining order", func(t *testing.T) {
		o := NewObject().Set("a", Int(1)).Set("b", Int(2)).Set("c", Int(3))
		require.True(t, o.Delete("b"))
		require.False(t, o.Delete("b"))
		require.Equal(t, []string{"a", "c"}, o.Keys())
		o.Set("a", String("replaced"))
		require.Equal(t, []string{"a", "c"}, o.Keys())
	})

	t.Run("Converts decoded Go values", func(t *testing.T) {
		v, err := FromAny(map[string]any{
			"b":     []any{"x", 1.5, true, nil},
			"a":     map[string]string{"k": "v"},
			"count": 3,
		})
		require.NoError(t, err)
		out, err := v.MarshalJSON()
		require.NoError(t, err)
		require.Equal(t, `{"a":{"k":"v"},"b":["x",1.5,true,null],"count":3}`, string(out))

		_, err = FromAny(struct{}{})
		require.Error(t, err)
	})

	t.Run("Renders scalar text", func(t *testing.T) {
		require.Equal(t, "true", Bool(true).Text())
		require.Equal(t, "42", Int(42).Text())
		require.Equal(t, "s", String("s").Text())
		require.Equal(t, "", Null().Text())
		require.Equal(t, "", Array().Text())
	})
}

func Test_Path(t *testing.T) {
	t.Run("Renders keys and indexes", func(t *testing.T) {
		p := Path{}.Push(KeySegment("user")).Push(KeySegment("emails")).Push(IndexSegment(0)).Push(KeySegment("value"))
		require.Equal(t, "user.emails[0].value", p.String())
		require.Equal(t, "", Path{}.String())
		require.Equal(t, "[2].a", Path{IndexSegment(2), KeySegment("a")}.String())
	})

	t.Run("Quotes ambiguous keys", func(t *testing.T) {
		p := Path{KeySegment("headers"), KeySegment("x.forwarded"), KeySegment("it's")}
		require.Equal(t, "headers.'x.forwarded'.'it''s'", p.String())

		parsed, err := ParsePath(p.String())
		require.NoError(t, err)
		require.Equal(t, p, parsed)
	})

	t.Run("Push does not alias the parent path", func(t *testing.T) {
		base := make(Path, 0, 8).Push(KeySegment("a"))
		left := base.Push(KeySegment("left"))
		right := base.Push(KeySegment("right"))
		require.Equal(t, "a.left", left.String())
		require.Equal(t, "a.right", right.String())
	})

	t.Run("Parses paths and rejects malformed ones", func(t *testing.T) {
		p, err := ParsePath("items[10].name")
		require.NoError(t, err)
		require.Equal(t, Path{KeySegment("items"), IndexSegment(10), KeySegment("name")}, p)

		root, err := ParsePath("")
		require.NoError(t, err)
		require.Len(t, root, 0)

		for _, bad := range []string{"a..b", "a.", "a[x]", "a[1", ".a", "'open"} {
			_, err := ParsePath(bad)
			require.Error(t, err, bad)
		}
	})

	t.Run("Reports last key", func(t *testing.T) {
		key, ok := Path{KeySegment("a"), KeySegment("password")}.LastKey()
		require.True(t, ok)
		require.Equal(t, "password", key)
		_, ok = Path{KeySegment("a"), IndexSegment(1)}.LastKey()
		require.False(t, ok)
		_, ok = Path{}.LastKey()
		require.False(t, ok)
	})
}
