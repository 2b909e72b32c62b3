package engine

import (
	"strings"
	"unicode"

	"github.com/mugenyume/mugenblock/dom"
	"github.com/mugenyume/mugenblock/selector"
)

// Each advanced heuristic is independently sufficient to hide. They only
// fire in aggressive mode with quiet mode inactive; an ambiguous or failed
// style read is always a non-match, never a hide.

const (
	clusterMinTokens   = 3
	clusterTokenLen    = 15
	overlayMinZ        = 100
	overlayMinCoverage = 0.70
)

// isObfuscatedCluster detects the machine-generated class soup ad injectors
// stamp onto out-of-flow containers: at least three class tokens longer than
// 15 characters mixing an uppercase letter with a digit or underscore, on a
// fixed or absolute element.
func (e *Engine) isObfuscatedCluster(n *dom.Node) bool {
	tokens := n.ClassList()
	if len(tokens) < clusterMinTokens {
		return false
	}
	obfuscated := 0
	for _, t := range tokens {
		if len(t) > clusterTokenLen && hasUpper(t) && hasDigitOrUnderscore(t) {
			obfuscated++
		}
	}
	return obfuscated >= clusterMinTokens && n.Computed.Positioned()
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func hasDigitOrUnderscore(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) || r == '_' {
			return true
		}
	}
	return false
}

// isFullBleedOverlay detects viewport-covering interstitials: fixed or
// absolute, stacking order above 100, covering at least 70% of the viewport
// in both axes, and either textless or carrying a known marker attribute.
func (e *Engine) isFullBleedOverlay(n *dom.Node) bool {
	if !n.Computed.Positioned() {
		return false
	}
	if n.Computed.ZAuto || n.Computed.ZIndex <= overlayMinZ {
		return false
	}
	vp := e.doc.Viewport
	if vp.W <= 0 || vp.H <= 0 {
		return false
	}
	if n.Bounds.W < vp.W*overlayMinCoverage || n.Bounds.H < vp.H*overlayMinCoverage {
		return false
	}
	return len(n.VisibleText()) == 0 || selector.HasMarkerAttr(n)
}

// closeIconAnchor checks whether n is, or contains, a vector icon whose
// declared view-box matches a known close-ad-button fingerprint. On match it
// returns the nearest ancestor with an inline fixed-position rule: that
// container, not the icon, is what should disappear.
func (e *Engine) closeIconAnchor(n *dom.Node) *dom.Node {
	icon := findCloseIcon(n, 0)
	if icon == nil {
		return nil
	}
	for p := icon; p != nil; p = p.Parent {
		if strings.Contains(strings.ToLower(p.InlineStyle("position")), "fixed") {
			return p
		}
	}
	return nil
}

func findCloseIcon(n *dom.Node, depth int) *dom.Node {
	if depth > 4 {
		return nil
	}
	if n.Tag == "svg" {
		if vb, ok := n.Attr("viewbox"); ok && isCloseIconViewBox(vb) {
			return n
		}
	}
	for _, c := range n.Children {
		if found := findCloseIcon(c, depth+1); found != nil {
			return found
		}
	}
	return nil
}

func isCloseIconViewBox(vb string) bool {
	vb = strings.Join(strings.Fields(vb), " ")
	for _, known := range selector.CloseIconViewBoxes {
		if vb == known {
			return true
		}
	}
	return false
}
