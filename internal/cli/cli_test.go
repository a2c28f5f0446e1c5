package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	piiconfig "github.com/supergoodsystems/pii-scrub/pkg/pii-config"
)

const testConfig = `
applications:
  - selector: "**$string"
    rules: ["@email"]
  - selector: "$binary"
    rules: ["@email"]
`

func Test_OutputPath(t *testing.T) {
	for _, tc := range []struct {
		in, outDir, want string
	}{
		{"dir/a.json", "", "dir/a.scrubbed.json"},
		{"dir/a.json.zst", "out", "out/a.scrubbed.json.zst"},
		{"dump", "", "dump.scrubbed"},
		{"-", "out", "-"},
	} {
		require.Equal(t, tc.want, outputPath(tc.in, tc.outDir), tc.in)
	}
}

func Test_EventCommand(t *testing.T) {
	t.Run("Scrubs stdin to stdout", func(t *testing.T) {
		cfg := writeFile(t, t.TempDir(), "config.yaml", []byte(testConfig))
		stdout, _, err := run(t, `{"user":{"email":"jane@example.com"}}`, "event", "--config", cfg)
		require.NoError(t, err)
		require.Equal(t, `{"user":{"email":"[email]"}}`+"\n", stdout)
	})

	t.Run("Scrubs plain and compressed files into a directory", func(t *testing.T) {
		dir := t.TempDir()
		out := t.TempDir()
		cfg := writeFile(t, dir, "config.yaml", []byte(testConfig))
		a := writeFile(t, dir, "a.json", []byte(`{"to":"jane@example.com"}`))
		b := writeFile(t, dir, "b.json.zst", encoder.EncodeAll([]byte(`{"cc":"joe@example.com"}`), nil))

		_, stderr, err := run(t, "", "event", "--config", cfg, "--out", out, a, b)
		require.NoError(t, err)
		require.Equal(t, 2, strings.Count(stderr, "scrubbed event"))

		plain, err := os.ReadFile(filepath.Join(out, "a.scrubbed.json"))
		require.NoError(t, err)
		require.Equal(t, `{"to":"[email]"}`, string(plain))

		compressed, err := os.ReadFile(filepath.Join(out, "b.scrubbed.json.zst"))
		require.NoError(t, err)
		decoded, err := decoder.DecodeAll(compressed, nil)
		require.NoError(t, err)
		require.Equal(t, `{"cc":"[email]"}`, string(decoded))
	})

	t.Run("Wraps events with their meta", func(t *testing.T) {
		cfg := writeFile(t, t.TempDir(), "config.yaml", []byte(testConfig))
		stdout, _, err := run(t, `{"user":{"email":"jane@example.com"}}`, "event", "--meta", "--config", cfg)
		require.NoError(t, err)

		var out struct {
			Event map[string]any              `json:"event"`
			Meta  map[string][]map[string]any `json:"meta"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		require.Equal(t, map[string]any{"email": "[email]"}, out.Event["user"])
		require.Len(t, out.Meta["user.email"], 1)
		require.Equal(t, "@email", out.Meta["user.email"][0]["rule"])
		require.Equal(t, "substituted", out.Meta["user.email"][0]["type"])
	})

	t.Run("Reads legacy data scrubbing settings", func(t *testing.T) {
		cfg := writeFile(t, t.TempDir(), "settings.yaml", []byte("scrubData: true\nscrubDefaults: true\nsensitiveFields: [secret]\n"))
		stdout, _, err := run(t, `{"secret":"x","mail":"jane@example.com","n":1}`, "event", "--data-scrubbing", "--config", cfg)
		require.NoError(t, err)
		require.Equal(t, `{"secret":"[Filtered]","mail":"[Filtered]","n":1}`+"\n", stdout)
	})

	t.Run("Fails without a config", func(t *testing.T) {
		_, _, err := run(t, `{}`, "event")
		require.Error(t, err)
		require.Contains(t, err.Error(), "--config")
	})

	t.Run("Fails on invalid events", func(t *testing.T) {
		cfg := writeFile(t, t.TempDir(), "config.yaml", []byte(testConfig))
		_, _, err := run(t, `{"a":`, "event", "--config", cfg)
		require.Error(t, err)
		require.Contains(t, err.Error(), "parsing -")
	})
}

func Test_MinidumpCommand(t *testing.T) {
	t.Run("Overwrites matches and keeps the size", func(t *testing.T) {
		dir := t.TempDir()
		cfg := writeFile(t, dir, "config.yaml", []byte(testConfig))
		dump := writeFile(t, dir, "crash.dmp", []byte("MDMP\x00jane@example.com\x00"))

		_, stderr, err := run(t, "", "minidump", "--config", cfg, "--filler", "#", dump)
		require.NoError(t, err)
		require.Contains(t, stderr, "matches=1")

		out, err := os.ReadFile(filepath.Join(dir, "crash.scrubbed.dmp"))
		require.NoError(t, err)
		require.Equal(t, "MDMP\x00"+strings.Repeat("#", 16)+"\x00", string(out))

		orig, err := os.ReadFile(dump)
		require.NoError(t, err)
		require.Equal(t, "MDMP\x00jane@example.com\x00", string(orig))
	})
}

func Test_CheckCommand(t *testing.T) {
	t.Run("Reports a valid config", func(t *testing.T) {
		cfg := writeFile(t, t.TempDir(), "config.yaml", []byte(testConfig))
		stdout, _, err := run(t, "", "check", "--config", cfg)
		require.NoError(t, err)
		require.Contains(t, stdout, "ok, 1 buffer rules")
	})

	t.Run("Prints warnings", func(t *testing.T) {
		cfg := writeFile(t, t.TempDir(), "config.yaml", []byte(`
rules:
  - {id: blank, type: anything, redaction: {method: replace}}
applications:
  - {selector: "**$object", rules: [blank]}
`))
		stdout, stderr, err := run(t, "", "check", "--config", cfg)
		require.NoError(t, err)
		require.Contains(t, stdout, "warning: ")
		require.Contains(t, stderr, "config warning")
	})

	t.Run("Rejects unknown references", func(t *testing.T) {
		cfg := writeFile(t, t.TempDir(), "config.yaml", []byte(`
applications:
  - {selector: "**", rules: [nope]}
`))
		_, _, err := run(t, "", "check", "--config", cfg)
		require.True(t, errors.Is(err, piiconfig.ErrRuleReference))
	})

	t.Run("Rejects unknown log levels", func(t *testing.T) {
		cfg := writeFile(t, t.TempDir(), "config.yaml", []byte(testConfig))
		_, _, err := run(t, "", "check", "--config", cfg, "--log-level", "loud")
		require.Error(t, err)
	})
}

func Test_CategoriesCommand(t *testing.T) {
	stdout, _, err := run(t, "", "categories")
	require.NoError(t, err)
	require.Equal(t, strings.Join(piiconfig.Categories(), "\n")+"\n", stdout)
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
