package engine

import (
	"time"

	"github.com/mugenyume/mugenblock/dom"
	"github.com/mugenyume/mugenblock/selector"
)

// runDeferredPass classifies the collected candidates under the fixed
// wall-clock budget. Candidates left when the deadline passes are dropped
// for this round; only a future mutation re-surfaces them.
func (e *Engine) runDeferredPass() {
	e.passPending = false
	cands := e.candidates
	e.candidates = nil
	if len(cands) == 0 || e.stopped {
		return
	}

	deadline := e.now().Add(passBudget)
	hides := 0
	classified := 0
	for _, n := range cands {
		if e.now().After(deadline) {
			break
		}
		classified++
		if e.classify(n, deadline) {
			hides++
		}
	}

	// Hysteresis: a fruitless pass after a sustained dry spell disables the
	// expensive heuristics until the next hide.
	if hides == 0 && e.now().Sub(e.quiet.lastHide) > quietAfter {
		e.quiet.active = true
	}

	if dropped := len(cands) - classified; dropped > 0 {
		e.logger.Debug("engine: budget expired",
			"classified", classified, "unclassified", dropped)
	}
}

// classify applies the layered procedure to one candidate and, bounded by
// the fan-out cap, to its descendants. Reports whether anything was hidden.
func (e *Engine) classify(root *dom.Node, deadline time.Time) bool {
	hid := false

	// Explicit worklist: pathological trees must not grow the stack.
	work := []*dom.Node{root}
	for len(work) > 0 {
		if e.now().After(deadline) {
			break
		}
		n := work[len(work)-1]
		work = work[:len(work)-1]

		if !n.Connected() {
			e.processed.Forget(n)
			continue
		}
		if e.processed.Has(n) {
			continue
		}
		if e.classifyOne(n) {
			hid = true
			continue // subtree is suppressed with it
		}
		if len(n.Children) < fanoutCap {
			for i := len(n.Children) - 1; i >= 0; i-- {
				work = append(work, n.Children[i])
			}
		}
	}
	return hid
}

// classifyOne runs the ordered checks on a single node, short-circuiting on
// the first hide.
func (e *Engine) classifyOne(n *dom.Node) bool {
	// 1. Fast-rule structural match.
	if e.rules.FastMatch(n) {
		return e.Hide(n, false)
	}
	// 2. Exact ad-marker attribute: escalate.
	if selector.HasMarkerAttr(n) {
		return e.escalate(n, false)
	}
	// 3. Ad-slot class token: escalate.
	if selector.HasAdSlotClass(n) {
		return e.escalate(n, false)
	}
	// 4. Embedded frame from a known ad network.
	if n.Tag == "iframe" {
		if src, ok := n.Attr("src"); ok && selector.MatchesAdNetwork(src) {
			return e.Hide(n, false)
		}
	}
	// 5. Advanced structural heuristics: aggressive mode only, skipped while
	// quiet mode is active.
	if e.rules.Mode == selector.ModeAggressive && !e.quiet.active {
		if e.rules.SlowMatch(n) {
			return e.Hide(n, true)
		}
		if e.isObfuscatedCluster(n) || e.isFullBleedOverlay(n) {
			return e.Hide(n, true)
		}
		if anchor := e.closeIconAnchor(n); anchor != nil {
			return e.Hide(anchor, true)
		}
	}
	return false
}
