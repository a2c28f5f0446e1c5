package piiconfig

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/supergoodsystems/pii-scrub/internal/shared"
	"github.com/supergoodsystems/pii-scrub/pkg/event"
	"github.com/supergoodsystems/pii-scrub/pkg/selector"
)

// Compile validates cfg and builds the selector index. Every rule reference
// is resolved, every pattern and selector compiled, before Compile returns;
// a scrub never sees a partially valid configuration.
func Compile(cfg *Config) (*Rules, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := &compiler{
		cfg:       cfg,
		declared:  map[string]int{},
		resolved:  map[string][]*Rule{},
		resolving: map[string]bool{},
	}
	for i, rc := range cfg.Rules {
		path := fmt.Sprintf("rules[%d]", i)
		switch {
		case rc.ID == "":
			return nil, c.errorf(ErrConfigParse, path+".id", "rule id is required")
		case strings.HasPrefix(rc.ID, shared.BuiltinPrefix):
			return nil, c.errorf(ErrConfigParse, path+".id", "rule ids starting with %q are reserved", shared.BuiltinPrefix)
		}
		if _, dup := c.declared[rc.ID]; dup {
			return nil, c.errorf(ErrConfigParse, path+".id", "duplicate rule id %q", rc.ID)
		}
		c.declared[rc.ID] = i
	}
	// Declared rules are compiled up front so that unused rules are
	// validated too.
	for i, rc := range cfg.Rules {
		if _, err := c.resolve(rc.ID, fmt.Sprintf("rules[%d]", i)); err != nil {
			return nil, err
		}
	}

	rules := &Rules{hashKey: cfg.Vars.HashKey}
	for i, app := range cfg.Applications {
		path := fmt.Sprintf("applications[%d]", i)
		sel, err := selector.Parse(app.Selector)
		if err != nil {
			return nil, &Error{
				Kind:     selector.ErrInvalidSelector,
				Location: cfg.location(path + ".selector"),
				Msg:      "invalid selector",
				Cause:    err,
			}
		}
		if len(app.Rules) == 0 {
			return nil, c.errorf(ErrConfigParse, path+".rules", "application has no rules")
		}
		b := binding{selector: sel}
		for j, ref := range app.Rules {
			leaves, err := c.resolve(ref, fmt.Sprintf("%s.rules[%d]", path, j))
			if err != nil {
				return nil, err
			}
			b.rules = appendUnique(b.rules, leaves...)
		}
		sortRules(b.rules)
		c.checkApplicable(b, path)
		rules.bindings = append(rules.bindings, b)
	}
	rules.binary = binaryRules(rules.bindings)
	rules.warnings = c.warnings
	return rules, nil
}

type compiler struct {
	cfg       *Config
	declared  map[string]int
	resolved  map[string][]*Rule
	resolving map[string]bool
	order     int
	warnings  []error
}

func (c *compiler) errorf(kind error, path, format string, args ...any) error {
	return &Error{Kind: kind, Location: c.cfg.location(path), Msg: fmt.Sprintf(format, args...)}
}

// orderStride leaves room below each declared rule for the leaves a
// multiple or alias rule wraps.
const orderStride = 1 << 16

// declOrder is the order of the rule declared at index i, independent of
// when it happens to be compiled.
func declOrder(i int) int {
	return (i + 1) * orderStride
}

// nextBuiltin orders builtin references after every declared rule, by first
// mention.
func (c *compiler) nextBuiltin() int {
	c.order++
	return declOrder(len(c.cfg.Rules) + c.order)
}

// resolve returns the leaf rules a reference stands for. Results are cached
// per reference so that every mention of a rule shares the same leaves,
// which is what de-duplication at a node relies on.
func (c *compiler) resolve(ref, at string) ([]*Rule, error) {
	if leaves, ok := c.resolved[ref]; ok {
		return leaves, nil
	}
	if c.resolving[ref] {
		return nil, c.errorf(ErrRuleReference, at, "rule %q references itself", ref)
	}
	c.resolving[ref] = true
	defer delete(c.resolving, ref)

	var (
		leaves []*Rule
		err    error
	)
	if strings.HasPrefix(ref, shared.BuiltinPrefix) {
		leaves, err = c.resolveBuiltin(ref, at)
	} else {
		i, ok := c.declared[ref]
		if !ok {
			return nil, c.errorf(ErrRuleReference, at, "rule %q is not declared", ref)
		}
		leaves, err = c.compileRule(i, c.cfg.Rules[i], fmt.Sprintf("rules[%d]", i))
	}
	if err != nil {
		return nil, err
	}
	c.resolved[ref] = leaves
	return leaves, nil
}

// resolveBuiltin handles "@category", "@category:method", "@common" and
// "@common:method".
func (c *compiler) resolveBuiltin(ref, at string) ([]*Rule, error) {
	name, method, _ := strings.Cut(strings.TrimPrefix(ref, shared.BuiltinPrefix), ":")
	if method != "" && !validMethod(method) {
		return nil, c.errorf(ErrRuleReference, at, "unknown redaction method %q in %q", method, ref)
	}
	if name == "common" {
		var leaves []*Rule
		for _, cat := range commonCategories {
			inner := shared.BuiltinPrefix + cat
			if method != "" {
				inner += ":" + method
			}
			l, err := c.resolve(inner, at)
			if err != nil {
				return nil, err
			}
			leaves = appendUnique(leaves, l...)
		}
		return leaves, nil
	}
	cat, ok := categories[name]
	if !ok {
		return nil, c.errorf(ErrRuleReference, at, "unknown builtin rule %q", ref)
	}
	red := cat.redaction
	switch method {
	case "":
	case MethodFilter:
		red = Redaction{Method: MethodReplace, Text: shared.FilteredText}
	default:
		red = cat.withDefaults(method)
	}
	return []*Rule{{
		ID:        ref,
		Category:  name,
		Redaction: red,
		matcher:   cat.newMatcher(),
		builtin:   true,
		order:     c.nextBuiltin(),
	}}, nil
}

func (c *compiler) compileRule(i int, rc RuleConfig, path string) ([]*Rule, error) {
	leaf := &Rule{ID: rc.ID}
	def := Redaction{Method: MethodReplace, Text: shared.DefaultReplacement}

	switch rc.Type {
	case TypePattern:
		if rc.Pattern == "" {
			return nil, c.errorf(ErrConfigParse, path+".pattern", "pattern is required")
		}
		pattern, err := c.withFlags(rc.Pattern, rc.Flags, path)
		if err != nil {
			return nil, err
		}
		m, err := newPatternMatcher(pattern, rc.ReplaceGroups)
		if err != nil {
			return nil, &Error{Kind: ErrRegexCompile, Location: c.cfg.location(path + ".pattern"), Msg: fmt.Sprintf("rule %q", rc.ID), Cause: err}
		}
		leaf.matcher = m

	case TypeRedactPair:
		if rc.KeyPattern == "" {
			return nil, c.errorf(ErrConfigParse, path+".keyPattern", "keyPattern is required")
		}
		pattern, err := c.withFlags(rc.KeyPattern, rc.Flags, path)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &Error{Kind: ErrRegexCompile, Location: c.cfg.location(path + ".keyPattern"), Msg: fmt.Sprintf("rule %q", rc.ID), Cause: err}
		}
		leaf.matcher = pairMatcher{key: re}
		def = Redaction{Method: MethodRemove}

	case TypeAnything:
		leaf.matcher = anythingMatcher{}
		def = Redaction{Method: MethodRemove}

	case TypeMultiple:
		if len(rc.Rules) == 0 {
			return nil, c.errorf(ErrConfigParse, path+".rules", "multiple rule %q has no rules", rc.ID)
		}
		var inner []*Rule
		for j, ref := range rc.Rules {
			leaves, err := c.resolve(ref, fmt.Sprintf("%s.rules[%d]", path, j))
			if err != nil {
				return nil, err
			}
			inner = appendUnique(inner, leaves...)
		}
		return c.wrap(i, rc, path, inner)

	case TypeAlias:
		if rc.Rule == "" {
			return nil, c.errorf(ErrConfigParse, path+".rule", "alias %q has no rule", rc.ID)
		}
		inner, err := c.resolve(rc.Rule, path+".rule")
		if err != nil {
			return nil, err
		}
		return c.wrap(i, rc, path, inner)

	case "":
		return nil, c.errorf(ErrConfigParse, path+".type", "rule type is required")

	default:
		cat, ok := categories[rc.Type]
		if !ok {
			return nil, c.errorf(ErrConfigParse, path+".type", "unknown rule type %q", rc.Type)
		}
		leaf.matcher = cat.newMatcher()
		leaf.Category = cat.name
		leaf.builtin = true
		def = cat.redaction
	}

	red, err := c.redaction(rc.Redaction, def, path)
	if err != nil {
		return nil, err
	}
	leaf.Redaction = red
	leaf.order = declOrder(i)
	return []*Rule{leaf}, nil
}

// wrap applies the id and redaction of a multiple or alias rule to its
// inner leaves. Leaves that need no change are shared with the inner rule.
func (c *compiler) wrap(i int, rc RuleConfig, path string, inner []*Rule) ([]*Rule, error) {
	if !rc.HideInner && rc.Redaction == nil {
		return inner, nil
	}
	out := make([]*Rule, 0, len(inner))
	for k, in := range inner {
		l := *in
		if rc.HideInner {
			l.ID = rc.ID
		}
		red, err := c.redaction(rc.Redaction, in.Redaction, path)
		if err != nil {
			return nil, err
		}
		l.Redaction = red
		l.order = declOrder(i) + k + 1
		out = append(out, &l)
	}
	return out, nil
}

func (c *compiler) withFlags(pattern, flags, path string) (string, error) {
	if flags == "" {
		return pattern, nil
	}
	for _, f := range flags {
		if f != 'i' && f != 'm' && f != 's' {
			return "", c.errorf(ErrRegexCompile, path+".flags", "unsupported flag %q", f)
		}
	}
	return "(?" + flags + ")" + pattern, nil
}

// redaction normalizes a declared redaction, falling back to def.
func (c *compiler) redaction(r *Redaction, def Redaction, path string) (Redaction, error) {
	if r == nil {
		return def, nil
	}
	path += ".redaction"
	out := *r
	switch out.Method {
	case MethodRemove, MethodHash:
	case MethodReplace:
		if out.Text == "" {
			out.Text = shared.DefaultReplacement
		}
	case MethodFilter:
		out = Redaction{Method: MethodReplace, Text: shared.FilteredText}
	case MethodMask:
		if out.Prefix < 0 || out.Suffix < 0 {
			return out, c.errorf(ErrConfigParse, path, "mask prefix and suffix cannot be negative")
		}
		if utf8.RuneCountInString(out.Char) > 1 {
			return out, c.errorf(ErrConfigParse, path+".char", "mask char must be a single character")
		}
	case "":
		return out, c.errorf(ErrConfigParse, path+".method", "redaction method is required")
	default:
		return out, c.errorf(ErrConfigParse, path+".method", "unknown redaction method %q", out.Method)
	}
	return out, nil
}

// checkApplicable warns about bindings whose selector can only ever match
// containers while their rules replace, mask or hash, which only work on
// scalars.
func (c *compiler) checkApplicable(b binding, path string) {
	types := b.selector.Types()
	containers := selector.HintArray | selector.HintObject
	if types == 0 || types&^containers != 0 {
		return
	}
	for _, r := range b.rules {
		switch r.Redaction.Method {
		case MethodReplace, MethodMask, MethodHash:
			c.warnings = append(c.warnings, &Error{
				Kind:     ErrActionNotApplicable,
				Location: c.cfg.location(path + ".selector"),
				Msg:      fmt.Sprintf("rule %q cannot %s containers selected by %q", r.ID, r.Redaction.Method, b.selector),
			})
		}
	}
}

func validMethod(m string) bool {
	switch m {
	case MethodRemove, MethodReplace, MethodMask, MethodHash, MethodFilter:
		return true
	}
	return false
}

func appendUnique(list []*Rule, rules ...*Rule) []*Rule {
	for _, r := range rules {
		if !containsRule(list, r) {
			list = append(list, r)
		}
	}
	return list
}

func containsRule(list []*Rule, r *Rule) bool {
	for _, l := range list {
		if l == r {
			return true
		}
	}
	return false
}

// sortRules puts builtin category rules before custom ones, each in
// declaration order.
func sortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].builtin != rules[j].builtin {
			return rules[i].builtin
		}
		return rules[i].order < rules[j].order
	})
}

// binaryRules picks the rules used on raw buffers: those bound under an
// explicit $binary selector if any exist, every byte-capable rule otherwise.
func binaryRules(bindings []binding) []*Rule {
	explicit := false
	for _, b := range bindings {
		if b.selector.Types()&selector.HintBinary != 0 {
			explicit = true
			break
		}
	}
	var out []*Rule
	for _, b := range bindings {
		if explicit && (b.selector.Types()&selector.HintBinary == 0 || !b.selector.Matches(event.Path{}, selector.HintBinary)) {
			continue
		}
		for _, r := range b.rules {
			if r.ScansBytes() {
				out = appendUnique(out, r)
			}
		}
	}
	sortRules(out)
	return out
}

// RulesFor returns the de-duplicated, ordered rules whose selector matches
// the node at path.
func (r *Rules) RulesFor(path event.Path, hint selector.TypeHint) []*Rule {
	if r == nil {
		return nil
	}
	var out []*Rule
	for i := range r.bindings {
		b := &r.bindings[i]
		if !b.selector.Matches(path, hint) {
			continue
		}
		out = appendUnique(out, b.rules...)
	}
	if len(out) > 1 {
		sortRules(out)
	}
	return out
}

// BinaryRules returns the ordered rules applied to raw byte buffers.
func (r *Rules) BinaryRules() []*Rule {
	if r == nil {
		return nil
	}
	return r.binary
}

// HashKey returns the key used by the hash method.
func (r *Rules) HashKey() string {
	if r == nil {
		return ""
	}
	return r.hashKey
}

// Warnings returns problems found at compile time that do not prevent
// scrubbing, each marked with ErrActionNotApplicable.
func (r *Rules) Warnings() []error {
	if r == nil {
		return nil
	}
	return r.warnings
}

// Empty reports whether no rule is bound to any selector.
func (r *Rules) Empty() bool {
	return r == nil || len(r.bindings) == 0
}

// WithHashKey returns rules that hash with key when the document did not
// set vars.hashKey. The receiver is not modified.
func (r *Rules) WithHashKey(key string) *Rules {
	if r == nil || key == "" || r.hashKey != "" {
		return r
	}
	out := *r
	out.hashKey = key
	return &out
}
