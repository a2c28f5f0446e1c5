package piiconfig

import (
	"regexp"

	"github.com/supergoodsystems/pii-scrub/pkg/event"
	"github.com/supergoodsystems/pii-scrub/pkg/selector"
)

// Redaction methods accepted in a config document.
const (
	MethodRemove  = "remove"
	MethodReplace = "replace"
	MethodMask    = "mask"
	MethodHash    = "hash"
	// MethodFilter is shorthand for replace with the "[Filtered]" text.
	MethodFilter = "filter"
)

// Rule types accepted in a config document. Builtin category names
// (email, ip, creditcard, ...) are accepted as types as well.
const (
	TypePattern    = "pattern"
	TypeRedactPair = "redact_pair"
	TypeAnything   = "anything"
	TypeMultiple   = "multiple"
	TypeAlias      = "alias"
)

// Config is a parsed, not yet validated scrub configuration.
type Config struct {
	Vars         Vars          `yaml:"vars,omitempty" json:"vars,omitempty"`
	Rules        []RuleConfig  `yaml:"rules,omitempty" json:"rules,omitempty"`
	Applications []Application `yaml:"applications,omitempty" json:"applications,omitempty"`

	// locations maps document paths such as "rules[1].pattern" to where they
	// were declared; filled by Parse.
	locations map[string]Location
}

type Vars struct {
	// HashKey keys the HMAC used by the hash method. Without it a plain
	// SHA-1 digest is used.
	HashKey string `yaml:"hashKey,omitempty" json:"hashKey,omitempty"`
}

// RuleConfig declares one named rule.
type RuleConfig struct {
	ID   string `yaml:"id" json:"id"`
	Type string `yaml:"type" json:"type"`

	// pattern
	Pattern       string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Flags         string `yaml:"flags,omitempty" json:"flags,omitempty"`
	ReplaceGroups []int  `yaml:"replaceGroups,omitempty" json:"replaceGroups,omitempty"`

	// redact_pair
	KeyPattern string `yaml:"keyPattern,omitempty" json:"keyPattern,omitempty"`

	// multiple and alias
	Rules     []string `yaml:"rules,omitempty" json:"rules,omitempty"`
	Rule      string   `yaml:"rule,omitempty" json:"rule,omitempty"`
	HideInner bool     `yaml:"hideInner,omitempty" json:"hideInner,omitempty"`

	Redaction *Redaction `yaml:"redaction,omitempty" json:"redaction,omitempty"`
}

// Redaction is the action a rule takes on matched content.
type Redaction struct {
	Method string `yaml:"method" json:"method"`
	// Text is the placeholder for replace.
	Text string `yaml:"text,omitempty" json:"text,omitempty"`
	// Prefix and Suffix are the number of characters mask keeps visible.
	Prefix int `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Suffix int `yaml:"suffix,omitempty" json:"suffix,omitempty"`
	// Char is the mask character, "*" by default.
	Char string `yaml:"char,omitempty" json:"char,omitempty"`
}

// Application binds a selector to an ordered list of rule ids.
type Application struct {
	Selector string   `yaml:"selector" json:"selector"`
	Rules    []string `yaml:"rules" json:"rules"`
}

// Rules is a compiled configuration. It is immutable after Compile and safe
// for concurrent use by any number of scrub calls.
type Rules struct {
	bindings []binding
	binary   []*Rule
	hashKey  string
	warnings []error
}

type binding struct {
	selector *selector.Selector
	rules    []*Rule
}

// Rule is a compiled leaf rule: one matcher with one resolved redaction.
type Rule struct {
	// ID is the rule id reported in remarks.
	ID string
	// Category is the builtin category the matcher comes from, if any.
	Category  string
	Redaction Redaction

	matcher matcher
	// builtin rules run before custom rules at the same node.
	builtin bool
	// order is the declaration order used to break ties.
	order int
}

// Match describes what a rule matched on one node.
type Match struct {
	// Whole is set when the rule acts on the entire value.
	Whole bool
	// Spans are byte ranges inside a string value, sorted and disjoint.
	Spans [][2]int
}

// Region is a match inside a byte buffer. Spans are the byte ranges to
// overwrite.
type Region struct {
	Start, End int
	Spans      [][2]int
}

type matcher interface {
	matchValue(path event.Path, v *event.Value) Match
	// findAllBytes returns the acceptable leftmost-longest matches in b.
	// Matchers that cannot scan bytes return nil.
	findAllBytes(b []byte) []Region
	scansBytes() bool
}

type patternMatcher struct {
	re      *regexp.Regexp
	longest *regexp.Regexp
	groups  []int
	// validate rejects candidates that have the right shape but fail a
	// checksum or parse.
	validate func(string) bool
}

type pairMatcher struct {
	key *regexp.Regexp
}

type anythingMatcher struct{}
