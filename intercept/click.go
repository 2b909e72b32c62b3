package intercept

import (
	"log/slog"

	"github.com/mugenyume/mugenblock/dom"
	"github.com/mugenyume/mugenblock/selector"
)

const (
	// clickMinZ is the stacking order above which a click target is
	// overlay-suspect.
	clickMinZ = 10
	// clickMinCoverage is the viewport fraction (each axis) a target must
	// cover before its click can be vetoed.
	clickMinCoverage = 0.40
)

// InstallClick attaches the capture-phase click interceptor. It evaluates
// the exact event target synchronously and vetoes the click before any host
// handler runs: default prevented, propagation stopped, target hidden via
// the standard hide primitive. All other clicks pass through untouched.
func InstallClick(doc *dom.Document, hide func(*dom.Node, bool) bool, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	doc.AddClickListener(true, func(ev *dom.ClickEvent) {
		t := ev.Target
		if t == nil || !clickSuspect(doc, t) {
			return
		}
		ev.PreventDefault()
		ev.StopPropagation()
		hide(t, true)
		logger.Debug("intercept: click vetoed", "tag", t.Tag, "xpath", t.XPath())
	})
}

func clickSuspect(doc *dom.Document, t *dom.Node) bool {
	if !t.Computed.Positioned() {
		return false
	}
	if t.Computed.ZAuto || t.Computed.ZIndex <= clickMinZ {
		return false
	}
	vp := doc.Viewport
	if vp.W <= 0 || vp.H <= 0 {
		return false
	}
	if t.Bounds.W < vp.W*clickMinCoverage || t.Bounds.H < vp.H*clickMinCoverage {
		return false
	}
	return !selector.IsPlayerUI(t)
}
