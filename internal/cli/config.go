package cli

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	piiconfig "github.com/supergoodsystems/pii-scrub/pkg/pii-config"
	"gopkg.in/yaml.v3"
)

// loadRules reads and compiles the config named by --config.
func (a *app) loadRules() (*piiconfig.Rules, error) {
	if a.configPath == "" {
		return nil, errors.New("missing --config")
	}
	doc, err := readInput(a.configPath, nil)
	if err != nil {
		return nil, err
	}

	var cfg *piiconfig.Config
	if a.dataScrubbing {
		var ds piiconfig.DataScrubbing
		if err := yaml.Unmarshal(doc, &ds); err != nil {
			return nil, errors.Wrapf(err, "reading data scrubbing settings from %s", a.configPath)
		}
		cfg = piiconfig.FromDataScrubbing(ds)
	} else if cfg, err = piiconfig.Parse(doc); err != nil {
		return nil, errors.Wrapf(err, "loading %s", a.configPath)
	}

	rules, err := piiconfig.Compile(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", a.configPath)
	}
	for _, w := range rules.Warnings() {
		a.log.Warn("config warning", slog.String("config", a.configPath), slog.String("warning", w.Error()))
	}
	return rules, nil
}
