package piiscrub

import (
	piiconfig "github.com/supergoodsystems/pii-scrub/pkg/pii-config"
	"golang.org/x/sync/singleflight"
)

// Service scrubs events and buffers for callers that hold raw config
// documents rather than compiled rules. Documents are compiled once and
// kept in a cache keyed by their content. The cache is never evicted, so a
// Service suits callers with a bounded set of documents.
//
// A Service is safe for concurrent use.
type Service struct {
	options *Options
	cache   *piiconfig.Cache
	loads   singleflight.Group
}
