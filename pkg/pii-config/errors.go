package piiconfig

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrConfigParse marks malformed configuration documents.
	ErrConfigParse = errors.New("malformed pii config")
	// ErrRuleReference marks references to rule ids that do not exist.
	ErrRuleReference = errors.New("unknown rule reference")
	// ErrRegexCompile marks custom patterns that fail to compile.
	ErrRegexCompile = errors.New("invalid rule pattern")
	// ErrActionNotApplicable marks an action that cannot act on a node of a
	// given type, such as replacing an object with a string. It is a warning
	// and never aborts a scrub.
	ErrActionNotApplicable = errors.New("redaction not applicable")
)

// Location points at a declaration inside a config document. Line and Column
// are 1-based and zero when the config was built in code.
type Location struct {
	Path   string
	Line   int
	Column int
}

func (l Location) String() string {
	path := l.Path
	if path == "" {
		path = "document"
	}
	if l.Line == 0 {
		return path
	}
	return fmt.Sprintf("%s (line %d, column %d)", path, l.Line, l.Column)
}

// Error is returned for every configuration problem. errors.Is matches it
// against its Kind (one of the sentinels above, or
// selector.ErrInvalidSelector) and errors.As reaches its Cause.
type Error struct {
	Location
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("pii config: %s: %s", e.Location, e.Msg)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}
