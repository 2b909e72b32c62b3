package engine

import (
	"time"

	"github.com/mugenyume/mugenblock/dom"
)

// processedSet is the identity-keyed side table of classified-and-hidden
// nodes. Membership is weak in spirit: entries whose node is observed
// disconnected are pruned opportunistically, so the table never pins a
// discarded subtree for the page's whole lifetime.
type processedSet struct {
	m    map[*dom.Node]struct{}
	adds int
}

const pruneEvery = 128

func newProcessedSet() *processedSet {
	return &processedSet{m: make(map[*dom.Node]struct{})}
}

func (s *processedSet) Has(n *dom.Node) bool {
	_, ok := s.m[n]
	return ok
}

func (s *processedSet) Add(n *dom.Node) {
	s.m[n] = struct{}{}
	s.adds++
	if s.adds%pruneEvery == 0 {
		s.prune()
	}
}

func (s *processedSet) Forget(n *dom.Node) {
	delete(s.m, n)
}

func (s *processedSet) Len() int { return len(s.m) }

// prune drops entries for nodes no longer connected to the tree. Nodes
// detached by the drain loop itself stay forgotten; re-insertion by the host
// makes them classifiable again, which is the intended weak semantics.
func (s *processedSet) prune() {
	for n := range s.m {
		if !n.Connected() {
			delete(s.m, n)
		}
	}
}

// removalQueue holds nodes pending structural detachment. FIFO, no
// priority; every member was previously added to the processed set.
type removalQueue struct {
	q []*dom.Node
}

func newRemovalQueue() *removalQueue { return &removalQueue{} }

func (q *removalQueue) push(n *dom.Node) { q.q = append(q.q, n) }

func (q *removalQueue) Len() int { return len(q.q) }

func (q *removalQueue) popChunk(max int) []*dom.Node {
	if len(q.q) == 0 {
		return nil
	}
	if max > len(q.q) {
		max = len(q.q)
	}
	chunk := q.q[:max]
	q.q = q.q[max:]
	return chunk
}

// scheduleDrain starts the self-throttling drain loop if it is not already
// running. Hiding is two-phase: the visual suppression already happened; the
// drain detaches nodes in fixed chunks during idle windows so structural
// work never causes layout thrash on the hot path.
func (e *Engine) scheduleDrain() {
	if e.draining || e.lp == nil {
		return
	}
	e.draining = true
	e.lp.PostIdle(func(time.Time) { e.drainStep() })
}

func (e *Engine) drainStep() {
	if e.stopped {
		e.draining = false
		return
	}
	chunk := e.removal.popChunk(drainChunk)
	for _, n := range chunk {
		// Already-detached nodes are a benign race with the host.
		if err := e.doc.RemoveNode(n); err == nil {
			e.counters.Detached++
		}
	}
	if e.removal.Len() > 0 {
		e.lp.PostIdle(func(time.Time) { e.drainStep() })
		return
	}
	// Empty: cool down instead of busy-polling, then check again.
	e.lp.After(drainCooldown, func() {
		if e.removal.Len() > 0 {
			e.lp.PostIdle(func(time.Time) { e.drainStep() })
		} else {
			e.draining = false
		}
	})
}
