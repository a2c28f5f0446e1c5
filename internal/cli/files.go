package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

const (
	stdio          = "-"
	zstExt         = ".zst"
	scrubbedSuffix = ".scrubbed"
)

var (
	decoder, _ = zstd.NewReader(nil)
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
)

// readInput reads a file, or stdin for "-". Files ending in .zst are
// decompressed.
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == stdio {
		b, err := io.ReadAll(stdin)
		return b, errors.Wrap(err, "reading stdin")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if strings.HasSuffix(path, zstExt) {
		if b, err = decoder.DecodeAll(b, nil); err != nil {
			return nil, errors.Wrapf(err, "decompressing %s", path)
		}
	}
	return b, nil
}

// writeOutput writes data to path, or stdout for "-". Paths ending in .zst
// are compressed.
func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == stdio {
		_, err := stdout.Write(data)
		return errors.Wrap(err, "writing stdout")
	}
	if strings.HasSuffix(path, zstExt) {
		data = encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing %s", path)
}

// outputPath names the scrubbed copy of in: a.json becomes a.scrubbed.json
// in outDir, or next to in when outDir is empty.
func outputPath(in, outDir string) string {
	if in == stdio {
		return stdio
	}
	dir, name := filepath.Split(in)
	if outDir != "" {
		dir = outDir
	}
	zst := strings.HasSuffix(name, zstExt)
	name = strings.TrimSuffix(name, zstExt)
	ext := filepath.Ext(name)
	name = strings.TrimSuffix(name, ext) + scrubbedSuffix + ext
	if zst {
		name += zstExt
	}
	return filepath.Join(dir, name)
}

// eachFile runs fn for every input, at most jobs at a time. The first
// failure cancels the inputs not yet started.
func eachFile(ctx context.Context, inputs []string, jobs int, fn func(in string) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for _, in := range inputs {
		in := in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(in)
		})
	}
	return g.Wait()
}

// inputsOf returns args, or stdin when there are none.
func inputsOf(args []string) []string {
	if len(args) == 0 {
		return []string{stdio}
	}
	return args
}
