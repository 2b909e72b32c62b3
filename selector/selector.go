// Package selector builds the per-site rule sets the engine classifies with
// and owns the injected suppression style artifact.
//
// A Config is immutable once built: it is rebuilt only on domain or mode
// change, or when the periodic health check finds the style artifact
// stripped by a host script.
package selector

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mugenyume/mugenblock/dom"
)

// Mode is the sensitivity level for a site.
type Mode string

const (
	// ModeOff performs no tree work at all; network-layer filtering owned
	// elsewhere is the only active defense.
	ModeOff Mode = "off"
	// ModeStandard runs fast rules and marker classification.
	ModeStandard Mode = "standard"
	// ModeAggressive additionally enables slow rules and the advanced
	// structural heuristics.
	ModeAggressive Mode = "aggressive"
)

// ParseMode maps a stored string to a Mode, defaulting to standard.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(s)) {
	case ModeOff:
		return ModeOff
	case ModeAggressive:
		return ModeAggressive
	default:
		return ModeStandard
	}
}

// SlowRule is a style-dependent rule: the structural selector must match and
// the computed style must satisfy the position/stacking constraints.
type SlowRule struct {
	Selector  string   `yaml:"selector"`
	Positions []string `yaml:"positions"`
	MinZ      int      `yaml:"min_z"`

	parsed dom.Selector
}

// Matches reports whether n satisfies both halves of the rule.
func (r SlowRule) Matches(n *dom.Node) bool {
	if !r.parsed.Matches(n) {
		return false
	}
	if len(r.Positions) > 0 {
		ok := false
		for _, p := range r.Positions {
			if n.Computed.Position == p {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if r.MinZ > 0 && (n.Computed.ZAuto || n.Computed.ZIndex < r.MinZ) {
		return false
	}
	return true
}

// Config is the per-page-load rule bundle.
type Config struct {
	Site string
	Mode Mode

	FastRules []dom.Selector
	SlowRules []SlowRule

	fastText  []string
	styleHash string
}

// Build produces the rule bundle for a site identity at a sensitivity level.
// Extra rules from a RuleFile are merged in when provided.
func Build(site string, mode Mode, extra *RuleFile) *Config {
	cfg := &Config{Site: site, Mode: mode}
	if mode == ModeOff {
		return cfg
	}

	fast := append([]string(nil), defaultFastRules...)
	excluded := genericExcludedDomains
	if extra != nil {
		fast = append(fast, extra.FastRules...)
		excluded = append(excluded, extra.ExcludeGenericOn...)
	}
	if !domainExcluded(site, excluded) {
		fast = append(fast, genericTokenRules...)
	}

	for _, s := range fast {
		cfg.FastRules = append(cfg.FastRules, dom.ParseSelector(s))
		cfg.fastText = append(cfg.fastText, s)
	}

	if mode == ModeAggressive {
		slow := append([]SlowRule(nil), defaultSlowRules...)
		if extra != nil {
			slow = append(slow, extra.SlowRules...)
		}
		for i := range slow {
			slow[i].parsed = dom.ParseSelector(slow[i].Selector)
		}
		cfg.SlowRules = slow
	}

	cfg.styleHash = hashRules(cfg.fastText)
	return cfg
}

func domainExcluded(site string, excluded []string) bool {
	site = strings.ToLower(site)
	for _, d := range excluded {
		if site == d || strings.HasSuffix(site, "."+d) {
			return true
		}
	}
	return false
}

func hashRules(rules []string) string {
	h := sha256.Sum256([]byte(strings.Join(rules, ",")))
	return hex.EncodeToString(h[:])
}

// StyleHash identifies the current rule text. The style artifact is rebuilt
// only when this changes.
func (c *Config) StyleHash() string { return c.styleHash }

// FastMatch reports whether n matches any fast rule.
func (c *Config) FastMatch(n *dom.Node) bool {
	for _, sel := range c.FastRules {
		if sel.Matches(n) {
			return true
		}
	}
	return false
}

// SlowMatch reports whether n matches any slow rule. Empty outside
// aggressive mode.
func (c *Config) SlowMatch(n *dom.Node) bool {
	for _, r := range c.SlowRules {
		if r.Matches(n) {
			return true
		}
	}
	return false
}

// FastSweep hides every current fast-rule match in the document. Used at
// install time and by the media guard's high-alert re-sweep.
func (c *Config) FastSweep(doc *dom.Document, hide func(*dom.Node)) int {
	matches := doc.QueryAll(c.FastRules)
	for _, n := range matches {
		hide(n)
	}
	return len(matches)
}

// HasMarkerAttr reports whether n carries an exact ad-framework marker
// attribute.
func HasMarkerAttr(n *dom.Node) bool {
	for _, name := range MarkerAttrs {
		if _, ok := n.Attr(name); ok {
			return true
		}
	}
	return false
}

// IsMarkerAttrName reports whether name is a known ad-marker attribute.
func IsMarkerAttrName(name string) bool {
	name = strings.ToLower(name)
	for _, m := range MarkerAttrs {
		if name == m {
			return true
		}
	}
	return false
}

// HasAdSlotClass reports whether any class token contains a known ad-slot
// marker.
func HasAdSlotClass(n *dom.Node) bool {
	for _, token := range n.ClassList() {
		lower := strings.ToLower(token)
		for _, marker := range AdSlotClassMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// MatchesAdNetwork reports whether a URL belongs to a known ad network.
func MatchesAdNetwork(url string) bool {
	lower := strings.ToLower(url)
	for _, s := range AdNetworkSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// IsPlayerUI reports whether n matches the player-UI allow-list.
func IsPlayerUI(n *dom.Node) bool {
	if playerUITags[n.Tag] {
		return true
	}
	hay := strings.ToLower(strings.Join(n.ClassList(), " ") + " " + n.ID())
	for _, p := range playerUIPatterns {
		if strings.Contains(hay, p) {
			return true
		}
	}
	return false
}
