package piiscrub

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/supergoodsystems/pii-scrub/internal/shared"
)

// Options configure a scrub
type Options struct {
	// MaxDepth bounds how deep the walker descends into an event. The content
	// of deeper containers is dropped and noted in the meta.
	// (defaults to the PIISCRUB_MAX_DEPTH environment variable, or 64 if not set)
	MaxDepth int

	// InPlace scrubs the given event or buffer instead of a copy of it.
	// Defaults to false
	InPlace bool

	// HashKey is the key of the hash method for configs that do not set
	// vars.hashKey.
	// (defaults to the PIISCRUB_HASH_KEY environment variable)
	HashKey string

	// Filler overwrites matched bytes in buffers. Any byte, NUL included,
	// may be used.
	// (defaults to 'x' if nil)
	Filler *byte

	// SkipUTF16 disables the pass over UTF-16LE text in buffers
	SkipUTF16 bool

	// OnError allows you to handle nodes that could not be scrubbed. These
	// never abort a scrub.
	// (by default errors are logged as warnings, with paths redacted)
	OnError func(error)

	// Logger receives config warnings and debug output
	// (defaults to slog.Default())
	Logger *slog.Logger
}

func (o *Options) parse() (*Options, error) {
	if o == nil {
		o = &Options{}
	} else {
		copy := *o
		o = &copy
	}

	if o.MaxDepth == 0 {
		if env := os.Getenv(shared.EnvMaxDepth); env != "" {
			depth, err := strconv.Atoi(env)
			if err != nil {
				return nil, errors.Newf("piiscrub: invalid %s %q", errors.Safe(shared.EnvMaxDepth), env)
			}
			o.MaxDepth = depth
		}
	}
	if o.MaxDepth == 0 {
		o.MaxDepth = shared.DefaultMaxDepth
	}
	if o.MaxDepth < 0 {
		return nil, errors.Newf("piiscrub: MaxDepth must be positive, got %d", o.MaxDepth)
	}

	if o.HashKey == "" {
		o.HashKey = os.Getenv(shared.EnvHashKey)
	}

	if o.Filler == nil {
		filler := byte(shared.DefaultFiller)
		o.Filler = &filler
	}

	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	if o.OnError == nil {
		logger := o.Logger
		o.OnError = func(e error) {
			logger.Warn("piiscrub: node not scrubbed", slog.String("error", string(redact.Sprint(e).Redact())))
		}
	}

	return o, nil
}
