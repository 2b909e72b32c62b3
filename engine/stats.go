package engine

import "github.com/mugenyume/mugenblock/dom"

// Stats is a point-in-time snapshot of the engine's local-only tallies.
// Counters are never transmitted off-device; this surface exists for the
// on-device control API and tooling.
type Stats struct {
	Site string `json:"site"`
	Mode string `json:"mode"`
	Counters
	QueueLen     int  `json:"queue_len"`
	ProcessedLen int  `json:"processed_len"`
	Quiet        bool `json:"quiet"`
}

// Stats snapshots the current state. Safe from any goroutine: the read runs
// as a loop task. Must not be called from inside a loop task.
func (e *Engine) Stats() Stats {
	var st Stats
	e.onLoop(func() { st = e.snapshot() })
	return st
}

func (e *Engine) snapshot() Stats {
	return Stats{
		Site:         e.rules.Site,
		Mode:         string(e.rules.Mode),
		Counters:     e.counters,
		QueueLen:     e.removal.Len(),
		ProcessedLen: e.processed.Len(),
		Quiet:        e.quiet.active,
	}
}

// Sweep re-runs the fast-selector cleanup over the whole document and
// returns how many matches were hidden for the first time. Like Stats it
// marshals onto the loop, so any goroutine may call it.
func (e *Engine) Sweep() int {
	hidden := 0
	e.onLoop(func() { hidden = e.sweep() })
	return hidden
}

func (e *Engine) sweep() int {
	hidden := 0
	e.rules.FastSweep(e.doc, func(n *dom.Node) {
		if e.Hide(n, false) {
			hidden++
		}
	})
	return hidden
}

// onLoop runs fn on the loop goroutine that owns all engine state. With no
// loop attached the engine is single-goroutine and fn runs inline.
func (e *Engine) onLoop(fn func()) {
	if e.lp == nil {
		fn()
		return
	}
	e.lp.Call(fn)
}
