package piiscrub

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/supergoodsystems/pii-scrub/pkg/event"
	"github.com/supergoodsystems/pii-scrub/pkg/meta"
	piiconfig "github.com/supergoodsystems/pii-scrub/pkg/pii-config"
	"github.com/supergoodsystems/pii-scrub/pkg/redact"
)

const emailDoc = `
applications:
  - selector: "**$string"
    rules: ["@email"]
  - selector: "$binary"
    rules: ["@email"]
`

const hashDoc = `
rules:
  - id: h
    type: anything
    redaction: {method: hash}
applications:
  - {selector: user.id, rules: [h]}
`

func Test_ScrubEvent(t *testing.T) {
	t.Setenv("PIISCRUB_MAX_DEPTH", "")
	t.Setenv("PIISCRUB_HASH_KEY", "")

	t.Run("Replaces an email with exactly one remark", func(t *testing.T) {
		rules := compile(t, emailDoc)
		tree := parse(t, `{"user":{"email":"jane@example.com","name":"Jane"}}`)

		out, m, err := ScrubEvent(rules, tree, nil)
		require.NoError(t, err)
		require.Equal(t, `{"user":{"email":"[email]","name":"Jane"}}`, encode(t, out))
		require.Equal(t, 1, m.Len())
		require.Equal(t, []meta.Remark{{
			Path:   "user.email",
			RuleID: "@email",
			Type:   meta.Substituted,
			Length: 16,
			Range:  &meta.Range{Start: 0, End: 7},
		}}, m.Get("user.email"))

		// the input is scrubbed on a copy
		require.Equal(t, `{"user":{"email":"jane@example.com","name":"Jane"}}`, encode(t, tree))
	})

	t.Run("Applies a custom rule of a builtin category", func(t *testing.T) {
		rules := compile(t, `
rules:
  - {id: email, type: email, redaction: {method: replace, text: "[redacted]"}}
applications:
  - {selector: "**$string", rules: [email]}
`)
		out, m, err := ScrubEvent(rules, parse(t, `{"user":{"email":"a@b.com","name":"Alice"}}`), nil)
		require.NoError(t, err)
		require.Equal(t, `{"user":{"email":"[redacted]","name":"Alice"}}`, encode(t, out))
		require.Equal(t, 1, m.Len())
		require.Equal(t, []string{"user.email"}, m.Paths())
	})

	t.Run("Scrubs in place when asked to", func(t *testing.T) {
		rules := compile(t, emailDoc)
		tree := parse(t, `{"email":"jane@example.com"}`)

		out, _, err := ScrubEvent(rules, tree, &Options{InPlace: true})
		require.NoError(t, err)
		require.Same(t, tree, out)
		require.Equal(t, `{"email":"[email]"}`, encode(t, tree))
	})

	t.Run("Hashes with the key from the options", func(t *testing.T) {
		rules := compile(t, hashDoc)
		out, _, err := ScrubEvent(rules, parse(t, `{"user":{"id":"abc"}}`), &Options{HashKey: "key"})
		require.NoError(t, err)
		require.Equal(t, `{"user":{"id":"`+redact.Hash("key", "abc")+`"}}`, encode(t, out))
	})

	t.Run("Hashes with the key from the environment", func(t *testing.T) {
		t.Setenv("PIISCRUB_HASH_KEY", "env-key")
		rules := compile(t, hashDoc)
		out, _, err := ScrubEvent(rules, parse(t, `{"user":{"id":"abc"}}`), nil)
		require.NoError(t, err)
		require.Equal(t, `{"user":{"id":"`+redact.Hash("env-key", "abc")+`"}}`, encode(t, out))
	})

	t.Run("Prefers the hash key of the document", func(t *testing.T) {
		rules := compile(t, "vars: {hashKey: doc-key}\n"+hashDoc)
		out, _, err := ScrubEvent(rules, parse(t, `{"user":{"id":"abc"}}`), &Options{HashKey: "key"})
		require.NoError(t, err)
		require.Equal(t, `{"user":{"id":"`+redact.Hash("doc-key", "abc")+`"}}`, encode(t, out))
	})

	t.Run("Logs node failures without their paths", func(t *testing.T) {
		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))
		rules := compile(t, `
rules:
  - {id: blank, type: anything, redaction: {method: replace, text: "-"}}
applications:
  - {selector: user, rules: [blank]}
`)
		out, m, err := ScrubEvent(rules, parse(t, `{"user":{"name":"Jane"}}`), &Options{Logger: logger})
		require.NoError(t, err)
		require.Equal(t, `{"user":{"name":"Jane"}}`, encode(t, out))
		require.Equal(t, 1, m.Count(meta.Error))
		require.Contains(t, logs.String(), "node not scrubbed")
		require.NotContains(t, logs.String(), "at user")
	})

	t.Run("Requires rules", func(t *testing.T) {
		_, _, err := ScrubEvent(nil, event.Null(), nil)
		require.True(t, errors.Is(err, ErrNoRules))
	})
}

func Test_ScrubBuffer(t *testing.T) {
	t.Run("Overwrites matches and keeps the length", func(t *testing.T) {
		rules := compile(t, emailDoc)
		buf := []byte("mail jane@example.com")

		out, count, err := ScrubBuffer(rules, buf, nil)
		require.NoError(t, err)
		require.Equal(t, "mail xxxxxxxxxxxxxxxx", string(out))
		require.Equal(t, 1, count)
		require.Equal(t, "mail jane@example.com", string(buf))

		filler := byte('*')
		out, _, err = ScrubBuffer(rules, buf, &Options{Filler: &filler, InPlace: true})
		require.NoError(t, err)
		require.Equal(t, "mail ****************", string(buf))
		require.Equal(t, buf, out)
	})

	t.Run("Fills with NUL bytes when asked to", func(t *testing.T) {
		rules := compile(t, emailDoc)
		var nul byte
		out, count, err := ScrubBuffer(rules, []byte("mail jane@example.com"), &Options{Filler: &nul})
		require.NoError(t, err)
		require.Equal(t, 1, count)
		require.Equal(t, append([]byte("mail "), make([]byte, 16)...), out)
	})

	t.Run("Requires rules", func(t *testing.T) {
		_, _, err := ScrubBuffer(nil, []byte("a"), nil)
		require.True(t, errors.Is(err, ErrNoRules))
	})
}

func Test_Service(t *testing.T) {
	t.Setenv("PIISCRUB_MAX_DEPTH", "")

	t.Run("Scrubs JSON events and keeps key order", func(t *testing.T) {
		sg, err := New(nil)
		require.NoError(t, err)

		out, m, err := sg.ScrubEventJSON([]byte(emailDoc), []byte(`{"b":"jane@example.com","a":1}`))
		require.NoError(t, err)
		require.Equal(t, `{"b":"[email]","a":1}`, string(out))
		require.Equal(t, []string{"b"}, m.Paths())

		_, _, err = sg.ScrubEventJSON([]byte(emailDoc), []byte(`{"c":"x"}`))
		require.NoError(t, err)
		require.Equal(t, 1, sg.cache.Len())
	})

	t.Run("Scrubs buffers", func(t *testing.T) {
		sg, err := New(nil)
		require.NoError(t, err)

		res, err := sg.ScrubBufferDocument([]byte(emailDoc), []byte("to jane@example.com"))
		require.NoError(t, err)
		require.Equal(t, "to xxxxxxxxxxxxxxxx", string(res.Buffer))
		require.Len(t, res.Regions, 1)
		require.Equal(t, 3, res.Regions[0].Offset)
	})

	t.Run("Reports invalid documents and events", func(t *testing.T) {
		sg, err := New(nil)
		require.NoError(t, err)

		_, _, err = sg.ScrubEventJSON([]byte("rules: ["), []byte(`{}`))
		require.True(t, errors.Is(err, piiconfig.ErrConfigParse))

		_, _, err = sg.ScrubEventJSON([]byte(emailDoc), []byte(`{"a":`))
		require.Error(t, err)
		require.Equal(t, 1, sg.cache.Len())
	})

	t.Run("Logs compile warnings once per document", func(t *testing.T) {
		var logs bytes.Buffer
		sg, err := New(&Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})
		require.NoError(t, err)

		doc := []byte(`
rules:
  - {id: blank, type: anything, redaction: {method: replace}}
applications:
  - {selector: "**$object", rules: [blank]}
`)
		for i := 0; i < 2; i++ {
			_, err = sg.Rules(doc)
			require.NoError(t, err)
		}
		require.Equal(t, 1, strings.Count(logs.String(), "config warning"))
	})

	t.Run("Logs compile warnings once for concurrent misses", func(t *testing.T) {
		var logs bytes.Buffer
		sg, err := New(&Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})
		require.NoError(t, err)

		doc := []byte(`
rules:
  - {id: blank, type: anything, redaction: {method: replace}}
applications:
  - {selector: "**$object", rules: [blank]}
`)
		results := make([]*piiconfig.Rules, 32)
		errs := make([]error, len(results))
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = sg.Rules(doc)
			}(i)
		}
		wg.Wait()

		for i := range results {
			require.NoError(t, errs[i])
			require.Same(t, results[0], results[i])
		}
		require.Equal(t, 1, strings.Count(logs.String(), "config warning"))
		require.Equal(t, 1, sg.cache.Len())
	})
}

func Test_SharedRules(t *testing.T) {
	t.Setenv("PIISCRUB_MAX_DEPTH", "")
	t.Setenv("PIISCRUB_HASH_KEY", "")

	rules := compile(t, `
vars: {hashKey: k}
rules:
  - {id: h, type: anything, redaction: {method: hash}}
  - {id: token, type: pattern, pattern: "tok_[0-9]+", redaction: {method: mask}}
applications:
  - {selector: "**$string", rules: ["@email", token]}
  - {selector: "$binary", rules: ["@email", token]}
  - {selector: user.id, rules: [h]}
`)
	js := `{"user":{"id":"abc","email":"jane@example.com"},"note":"tok_42 and tok_7","list":["a@b.io",1]}`
	buf := []byte("\x00mail jane@example.com tok_99 \xff")

	eventOut, eventMeta, err := ScrubEvent(rules, parse(t, js), nil)
	require.NoError(t, err)
	wantEvent := encode(t, eventOut)
	wantPaths := eventMeta.Paths()
	wantBuf, wantCount, err := ScrubBuffer(rules, buf, nil)
	require.NoError(t, err)
	require.Equal(t, 2, wantCount)

	t.Run("Gives every goroutine the sequential result", func(t *testing.T) {
		type result struct {
			event string
			paths []string
			buf   []byte
			count int
			err   error
		}
		results := make([]result, 16)
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func(r *result) {
				defer wg.Done()
				for n := 0; n < 20 && r.err == nil; n++ {
					tree, err := event.Parse([]byte(js))
					if err != nil {
						r.err = err
						return
					}
					out, m, err := ScrubEvent(rules, tree, &Options{InPlace: n%2 == 0})
					if err != nil {
						r.err = err
						return
					}
					encoded, err := out.MarshalJSON()
					if err != nil {
						r.err = err
						return
					}
					r.event, r.paths = string(encoded), m.Paths()
					r.buf, r.count, r.err = ScrubBuffer(rules, buf, nil)
				}
			}(&results[i])
		}
		wg.Wait()

		for _, r := range results {
			require.NoError(t, r.err)
			require.Equal(t, wantEvent, r.event)
			require.Equal(t, wantPaths, r.paths)
			require.Equal(t, wantBuf, r.buf)
			require.Equal(t, wantCount, r.count)
		}
		require.Equal(t, "\x00mail jane@example.com tok_99 \xff", string(buf))
	})
}

func compile(t *testing.T, doc string) *piiconfig.Rules {
	t.Helper()
	cfg, err := piiconfig.Parse([]byte(doc))
	require.NoError(t, err)
	rules, err := piiconfig.Compile(cfg)
	require.NoError(t, err)
	return rules
}

func parse(t *testing.T, js string) *event.Value {
	t.Helper()
	v, err := event.Parse([]byte(js))
	require.NoError(t, err)
	return v
}

func encode(t *testing.T, v *event.Value) string {
	t.Helper()
	b, err := v.MarshalJSON()
	require.NoError(t, err)
	return string(b)
}
