package engine

import (
	"time"

	"github.com/mugenyume/mugenblock/dom"
	"github.com/mugenyume/mugenblock/mutation"
	"github.com/mugenyume/mugenblock/selector"
)

// OnBatch handles one raw batch of tree changes. The urgent path runs
// synchronously with zero deferral; everything else is collected as
// candidates for the next deferred pass.
//
// Backpressure is at-most-one-pending: if a deferred pass is already
// scheduled, the new candidate batch is dropped entirely. Dropped batches
// are counted so the behavior stays observable.
func (e *Engine) OnBatch(recs []mutation.Record) {
	if e.stopped || e.rules.Mode == selector.ModeOff {
		return
	}
	e.counters.Batches++

	var cands []*dom.Node
	for _, rec := range recs {
		n, ok := rec.Node.(*dom.Node)
		if !ok || n == nil {
			continue
		}
		switch rec.Op {
		case mutation.OpInsert, mutation.OpMarkup:
			// Urgent: exact ad-framework marker attributes escalate now.
			if selector.HasMarkerAttr(n) {
				e.escalate(n, false)
				continue
			}
			cands = append(cands, n)
		case mutation.OpAttr:
			if selector.IsMarkerAttrName(rec.Name) {
				e.escalate(n, false)
				continue
			}
			cands = append(cands, n)
		}
	}

	if len(cands) == 0 {
		return
	}
	if e.passPending {
		e.counters.DroppedBatches++
		return
	}
	e.candidates = cands
	e.passPending = true
	if e.lp != nil {
		e.lp.PostIdle(func(time.Time) { e.runDeferredPass() })
	}
}
