package shared

// Remark types recorded in the scrub meta.
const (
	RemarkRemoved       = "removed"
	RemarkSubstituted   = "substituted"
	RemarkMasked        = "masked"
	RemarkPseudonymized = "pseudonymized"
	RemarkDepthLimit    = "depth_limit_exceeded"
	RemarkError         = "error"
)

const (
	DefaultReplacement = "[redacted]"
	FilteredText       = "[Filtered]"
	DefaultMaskChar    = '*'
	DefaultFiller      = 'x'
	DefaultMaxDepth    = 64
)

// Environment variables read by Options.
const (
	EnvMaxDepth = "PIISCRUB_MAX_DEPTH"
	EnvHashKey  = "PIISCRUB_HASH_KEY"
	EnvLogLevel = "PIISCRUB_LOG_LEVEL"
)

// BuiltinPrefix starts references to builtin rules, as in "@email".
const BuiltinPrefix = "@"
