package selector

import (
	"strings"
	"time"

	"github.com/mugenyume/mugenblock/dom"
	"github.com/mugenyume/mugenblock/loop"
)

// StyleID is the stable identifier of the injected suppression style rule.
// Exactly one element with this id is present in a defended document.
const StyleID = "mugenblock-style"

const suppression = "{display:none !important;visibility:hidden !important;pointer-events:none !important}"

// HealInterval is how often the style artifact is checked for host damage.
const HealInterval = 8 * time.Second

// RuleText renders the single combined suppression rule.
func (c *Config) RuleText() string {
	if len(c.fastText) == 0 {
		return ""
	}
	return strings.Join(c.fastText, ",") + suppression
}

// InstallStyle ensures the suppression style artifact exists and carries the
// current rule text. A matching artifact is left alone; a stale or missing
// one is replaced. Returns true when the artifact was (re)built.
func (c *Config) InstallStyle(doc *dom.Document) bool {
	if c.Mode == ModeOff || len(c.fastText) == 0 {
		return false
	}
	existing := doc.ByID(StyleID)
	if existing != nil {
		if h, _ := existing.Attr("data-rule-hash"); h == c.styleHash {
			return false
		}
		_ = doc.RemoveNode(existing)
	}

	style := dom.NewNode("style", "id", StyleID, "data-rule-hash", c.styleHash)
	style.Text = c.RuleText()
	if _, err := doc.AppendChild(doc.Head, style); err != nil {
		return false
	}
	return true
}

// StartHealth schedules the periodic artifact check on the loop. Host
// scripts that strip injected style elements are healed within one interval.
// The returned func cancels the check.
func (c *Config) StartHealth(lp *loop.Loop, doc *dom.Document) func() {
	return lp.Every(HealInterval, func() {
		c.InstallStyle(doc)
	})
}
