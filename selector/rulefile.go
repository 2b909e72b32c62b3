package selector

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleFile is the optional YAML rule supplement merged into Build.
//
//	fast_rules:
//	  - '[data-sponsor]'
//	  - '.promo-banner'
//	slow_rules:
//	  - selector: 'div[class*="takeover"]'
//	    positions: [fixed]
//	    min_z: 200
//	exclude_generic_on:
//	  - example.org
type RuleFile struct {
	FastRules        []string   `yaml:"fast_rules"`
	SlowRules        []SlowRule `yaml:"slow_rules"`
	ExcludeGenericOn []string   `yaml:"exclude_generic_on"`
}

// LoadRuleFile reads a YAML rule supplement.
func LoadRuleFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("selector: read rule file: %w", err)
	}
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("selector: parse rule file: %w", err)
	}
	return &rf, nil
}
