// package piiscrub scrubs personally identifiable information from events
// and raw byte buffers.
//
// Rules come from a config document that binds selectors (paths into the
// event with optional type filters) to redaction rules. Compile the document
// once with [piiconfig.Parse] and [piiconfig.Compile], then call [ScrubEvent]
// for structured events or [ScrubBuffer] for crash dumps. [Service] does the
// compiling and caching for callers that receive documents at runtime.
package piiscrub

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/supergoodsystems/pii-scrub/pkg/event"
	"github.com/supergoodsystems/pii-scrub/pkg/meta"
	"github.com/supergoodsystems/pii-scrub/pkg/minidump"
	piiconfig "github.com/supergoodsystems/pii-scrub/pkg/pii-config"
	"github.com/supergoodsystems/pii-scrub/pkg/redact"
)

// ErrNoRules is returned when a scrub is started without compiled rules.
var ErrNoRules = errors.New("piiscrub: missing rules")

// ScrubEvent returns tree with rules applied and a record of every change.
// Unless o.InPlace is set, tree is left untouched. Per-node failures are
// reported to o.OnError and recorded in the meta; an error is returned only
// for invalid options or missing rules.
func ScrubEvent(rules *piiconfig.Rules, tree *event.Value, o *Options) (*event.Value, *meta.Meta, error) {
	o, err := o.parse()
	if err != nil {
		return nil, nil, err
	}
	if rules == nil {
		return nil, nil, ErrNoRules
	}
	out, m := redact.Scrub(tree, rules.WithHashKey(o.HashKey), redact.Options{
		MaxDepth: o.MaxDepth,
		InPlace:  o.InPlace,
		OnError:  o.OnError,
	})
	return out, m, nil
}

// ScrubBuffer overwrites every match of the buffer rules in buf and returns
// the scrubbed buffer, which always has the length of buf, and the number
// of matches.
func ScrubBuffer(rules *piiconfig.Rules, buf []byte, o *Options) ([]byte, int, error) {
	res, err := scrubBuffer(rules, buf, o)
	if err != nil {
		return nil, 0, err
	}
	return res.Buffer, res.Count, nil
}

func scrubBuffer(rules *piiconfig.Rules, buf []byte, o *Options) (minidump.Result, error) {
	o, err := o.parse()
	if err != nil {
		return minidump.Result{}, err
	}
	if rules == nil {
		return minidump.Result{}, ErrNoRules
	}
	return minidump.Scrub(buf, rules, minidump.Options{
		Filler:    o.Filler,
		SkipUTF16: o.SkipUTF16,
		InPlace:   o.InPlace,
	})
}

// New creates a new scrubbing service.
// An error is returned only if the configuration is invalid.
func New(o *Options) (*Service, error) {
	o, err := o.parse()
	if err != nil {
		return nil, err
	}
	return &Service{options: o, cache: piiconfig.NewCache()}, nil
}

// Rules returns the compiled rules of doc. Compile warnings are logged the
// first time a document is seen, once even when concurrent callers miss the
// cache together.
func (s *Service) Rules(doc []byte) (*piiconfig.Rules, error) {
	if rules, ok := s.cache.Get(doc); ok {
		return rules, nil
	}
	v, err, _ := s.loads.Do(string(doc), func() (interface{}, error) {
		// a previous call may have stored doc since the miss above
		if rules, ok := s.cache.Get(doc); ok {
			return rules, nil
		}
		rules, err := s.cache.Load(doc)
		if err != nil {
			return nil, err
		}
		for _, w := range rules.Warnings() {
			s.options.Logger.Warn("piiscrub: config warning", slog.String("warning", w.Error()))
		}
		return rules, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*piiconfig.Rules), nil
}

// ScrubEventJSON scrubs a JSON encoded event with the rules of doc and
// returns the encoded result. Key order is preserved.
func (s *Service) ScrubEventJSON(doc, body []byte) ([]byte, *meta.Meta, error) {
	rules, err := s.Rules(doc)
	if err != nil {
		return nil, nil, err
	}
	tree, err := event.Parse(body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "piiscrub: invalid event")
	}

	o := *s.options
	o.InPlace = true
	out, m, err := ScrubEvent(rules, tree, &o)
	if err != nil {
		return nil, nil, err
	}
	encoded, err := out.MarshalJSON()
	if err != nil {
		return nil, nil, err
	}
	s.options.Logger.Debug("piiscrub: scrubbed event", slog.Int("remarks", m.Len()))
	return encoded, m, nil
}

// ScrubBufferDocument scrubs buf with the rules of doc and reports every
// overwritten region.
func (s *Service) ScrubBufferDocument(doc, buf []byte) (minidump.Result, error) {
	rules, err := s.Rules(doc)
	if err != nil {
		return minidump.Result{}, err
	}
	res, err := scrubBuffer(rules, buf, s.options)
	if err != nil {
		return minidump.Result{}, err
	}
	s.options.Logger.Debug("piiscrub: scrubbed buffer", slog.Int("bytes", len(buf)), slog.Int("matches", res.Count))
	return res, nil
}
