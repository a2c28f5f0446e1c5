package piiconfig

import (
	"regexp"
	"strings"
)

// DataScrubbing holds the legacy on/off style scrubbing settings.
type DataScrubbing struct {
	ScrubData        bool     `yaml:"scrubData" json:"scrubData"`
	ScrubDefaults    bool     `yaml:"scrubDefaults" json:"scrubDefaults"`
	SensitiveFields  []string `yaml:"sensitiveFields" json:"sensitiveFields"`
	ExcludeFields    []string `yaml:"excludeFields" json:"excludeFields"`
	ScrubIPAddresses bool     `yaml:"scrubIpAddresses" json:"scrubIpAddresses"`
}

// StripFieldsRuleID is the id of the rule generated for SensitiveFields.
const StripFieldsRuleID = "strip-fields"

// FromDataScrubbing converts legacy settings into an equivalent config.
// Scalars anywhere in the event are scrubbed unless they sit at or below an
// excluded field.
func FromDataScrubbing(ds DataScrubbing) *Config {
	cfg := &Config{}
	if !ds.ScrubData && !ds.ScrubIPAddresses {
		return cfg
	}

	var refs []string
	if ds.ScrubData {
		if ds.ScrubDefaults {
			refs = append(refs, "@common:filter")
		}
		var fields []string
		for _, f := range ds.SensitiveFields {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, regexp.QuoteMeta(f))
			}
		}
		if len(fields) > 0 {
			cfg.Rules = append(cfg.Rules, RuleConfig{
				ID:         StripFieldsRuleID,
				Type:       TypeRedactPair,
				KeyPattern: ".*(" + strings.Join(fields, "|") + ").*",
				Flags:      "i",
				Redaction:  &Redaction{Method: MethodFilter},
			})
			refs = append(refs, StripFieldsRuleID)
		}
	}

	if len(refs) > 0 {
		sel := "$string || $number || $boolean"
		if excluded := exclusions(ds.ExcludeFields); excluded != "" {
			sel = "(" + sel + ") && !(" + excluded + ")"
		}
		cfg.Applications = append(cfg.Applications, Application{Selector: sel, Rules: refs})
	}
	if ds.ScrubIPAddresses {
		cfg.Applications = append(cfg.Applications, Application{Selector: "$ip", Rules: []string{"@ip:replace"}})
	}
	return cfg
}

func exclusions(fields []string) string {
	var parts []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		key := "'" + strings.ReplaceAll(f, "'", "''") + "'"
		parts = append(parts, "**."+key, "**."+key+".**")
	}
	return strings.Join(parts, " || ")
}
