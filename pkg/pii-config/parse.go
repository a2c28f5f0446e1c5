package piiconfig

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	topLevelFields   = []string{"vars", "rules", "applications"}
	varsFields       = []string{"hashKey"}
	ruleFields       = []string{"id", "type", "pattern", "flags", "replaceGroups", "keyPattern", "rules", "rule", "hideInner", "redaction"}
	redactionFields  = []string{"method", "text", "prefix", "suffix", "char"}
	applicationField = []string{"selector", "rules"}
)

// Parse reads a config document. YAML and JSON are both accepted. Rules and
// applications may be written as lists, or as mappings keyed by rule id and
// selector respectively; either way their order is kept.
//
// Parse only checks the document shape. Compile validates references,
// patterns and selectors, and reports them at the positions Parse recorded.
func Parse(doc []byte) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, &Error{Kind: ErrConfigParse, Msg: "invalid document", Cause: err}
	}
	p := &docParser{cfg: &Config{locations: map[string]Location{}}}
	if len(root.Content) == 0 {
		return p.cfg, nil
	}
	n := root.Content[0]
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return p.cfg, nil
	}
	if err := p.checkFields(n, "", topLevelFields); err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		var err error
		switch k.Value {
		case "vars":
			err = p.parseVars(v)
		case "rules":
			err = p.parseRules(v)
		case "applications":
			err = p.parseApplications(v)
		}
		if err != nil {
			return nil, err
		}
	}
	return p.cfg, nil
}

type docParser struct {
	cfg *Config
}

func (p *docParser) mark(path string, n *yaml.Node) Location {
	loc := Location{Path: path, Line: n.Line, Column: n.Column}
	p.cfg.locations[path] = loc
	return loc
}

func (p *docParser) errorf(path string, n *yaml.Node, format string, args ...any) error {
	return &Error{
		Kind:     ErrConfigParse,
		Location: Location{Path: path, Line: n.Line, Column: n.Column},
		Msg:      fmt.Sprintf(format, args...),
	}
}

// checkFields records the position of n and of each of its fields, and
// rejects fields outside allowed.
func (p *docParser) checkFields(n *yaml.Node, path string, allowed []string) error {
	p.mark(path, n)
	if n.Kind != yaml.MappingNode {
		return p.errorf(path, n, "expected a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		field := join(path, k.Value)
		if !contains(allowed, k.Value) {
			return p.errorf(field, k, "unknown field %q", k.Value)
		}
		p.mark(field, n.Content[i+1])
	}
	return nil
}

func (p *docParser) decode(n *yaml.Node, path string, out any) error {
	if err := n.Decode(out); err != nil {
		return &Error{
			Kind:     ErrConfigParse,
			Location: Location{Path: path, Line: n.Line, Column: n.Column},
			Msg:      "cannot decode",
			Cause:    err,
		}
	}
	return nil
}

func (p *docParser) parseVars(n *yaml.Node) error {
	if err := p.checkFields(n, "vars", varsFields); err != nil {
		return err
	}
	return p.decode(n, "vars", &p.cfg.Vars)
}

func (p *docParser) parseRules(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		for i, item := range n.Content {
			rc, err := p.parseRule(item, fmt.Sprintf("rules[%d]", i))
			if err != nil {
				return err
			}
			p.cfg.Rules = append(p.cfg.Rules, rc)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			path := fmt.Sprintf("rules[%d]", i/2)
			rc, err := p.parseRule(v, path)
			if err != nil {
				return err
			}
			if rc.ID != "" && rc.ID != k.Value {
				return p.errorf(path+".id", v, "id %q does not match key %q", rc.ID, k.Value)
			}
			rc.ID = k.Value
			p.mark(path+".id", k)
			p.cfg.Rules = append(p.cfg.Rules, rc)
		}
	default:
		return p.errorf("rules", n, "expected a list or mapping of rules")
	}
	return nil
}

func (p *docParser) parseRule(n *yaml.Node, path string) (RuleConfig, error) {
	var rc RuleConfig
	if err := p.checkFields(n, path, ruleFields); err != nil {
		return rc, err
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == "redaction" {
			if err := p.checkFields(n.Content[i+1], path+".redaction", redactionFields); err != nil {
				return rc, err
			}
		}
	}
	err := p.decode(n, path, &rc)
	return rc, err
}

func (p *docParser) parseApplications(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		for i, item := range n.Content {
			path := fmt.Sprintf("applications[%d]", i)
			if err := p.checkFields(item, path, applicationField); err != nil {
				return err
			}
			var app Application
			if err := p.decode(item, path, &app); err != nil {
				return err
			}
			p.cfg.Applications = append(p.cfg.Applications, app)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			path := fmt.Sprintf("applications[%d]", i/2)
			p.mark(path, k)
			p.mark(path+".selector", k)
			p.mark(path+".rules", v)
			app := Application{Selector: k.Value}
			if err := p.decode(v, path+".rules", &app.Rules); err != nil {
				return err
			}
			p.cfg.Applications = append(p.cfg.Applications, app)
		}
	default:
		return p.errorf("applications", n, "expected a list or mapping of applications")
	}
	return nil
}

// location returns where path was declared, falling back to its closest
// recorded parent.
func (c *Config) location(path string) Location {
	for p := path; ; {
		if loc, ok := c.locations[p]; ok {
			loc.Path = path
			return loc
		}
		i := strings.LastIndexAny(p, ".[")
		if i <= 0 {
			return Location{Path: path}
		}
		p = p[:i]
	}
}

func join(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
