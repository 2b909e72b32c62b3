// Package engine implements the incremental classification core: a
// mutation-driven watcher that discovers candidate nodes, classifies them
// under a wall-clock budget, adapts its own sensitivity from recent outcomes,
// and drains confirmed-bad nodes through a decoupled removal pipeline.
//
// The engine never blocks and never retries: an expired budget drops the
// rest of the candidate list, and the next host mutation naturally
// re-surfaces anything that still matters.
package engine

import (
	"log/slog"
	"time"

	"github.com/mugenyume/mugenblock/dom"
	"github.com/mugenyume/mugenblock/loop"
	"github.com/mugenyume/mugenblock/selector"
)

const (
	// passBudget bounds one deferred classification pass.
	passBudget = 8 * time.Millisecond
	// ancestorCap bounds the upward walk of ancestor escalation.
	ancestorCap = 10
	// fanoutCap skips recursive descent into subtrees wider than this.
	fanoutCap = 30
	// quietAfter is how long without a hide before quiet mode engages.
	quietAfter = 10 * time.Second
	// drainChunk is how many queued nodes one idle slice may detach.
	drainChunk = 50
	// drainCooldown is the wait after the queue empties before rechecking.
	drainCooldown = 2 * time.Second
)

// Counters are local-only tallies. Monotonic, reset only by process restart,
// never transmitted off-device.
type Counters struct {
	Hides             uint64 `json:"hides"`
	HeuristicRemovals uint64 `json:"heuristic_removals"`
	Batches           uint64 `json:"batches"`
	DroppedBatches    uint64 `json:"dropped_batches"`
	Detached          uint64 `json:"detached"`
}

// quietState is the adaptive hysteresis flag. Mutated only by the classifier.
type quietState struct {
	active   bool
	lastHide time.Time
}

// Config for creating an Engine.
type Config struct {
	Doc    *dom.Document
	Loop   *loop.Loop
	Rules  *selector.Config
	Logger *slog.Logger

	// ApplyHide is an optional host hook invoked after the in-tree
	// suppression, e.g. to mirror the hide onto a live page.
	ApplyHide func(*dom.Node)

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Engine is the per-page classification core. All state is touched only from
// loop tasks (or, in tests, a single goroutine), so it carries no locks.
type Engine struct {
	doc       *dom.Document
	lp        *loop.Loop
	rules     *selector.Config
	logger    *slog.Logger
	now       func() time.Time
	applyHide func(*dom.Node)

	processed *processedSet
	removal   *removalQueue
	quiet     quietState
	counters  Counters

	passPending bool
	candidates  []*dom.Node

	draining bool
	stopped  bool
	stopHeal func()
}

// New creates an Engine. Call Install to attach it to its document.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	e := &Engine{
		doc:       cfg.Doc,
		lp:        cfg.Loop,
		rules:     cfg.Rules,
		logger:    cfg.Logger,
		now:       cfg.Clock,
		applyHide: cfg.ApplyHide,
		processed: newProcessedSet(),
		removal:   newRemovalQueue(),
	}
	e.quiet.lastHide = e.now()
	return e
}

// Install wires the engine to the document: suppression style artifact plus
// its health check, an initial fast sweep, and the mutation observer. In the
// lowest sensitivity mode Install is a no-op: the engine does no tree work.
func (e *Engine) Install() {
	if e.rules.Mode == selector.ModeOff {
		e.logger.Info("engine: mode off, no tree work", "site", e.rules.Site)
		return
	}

	e.rules.InstallStyle(e.doc)
	if e.lp != nil {
		e.stopHeal = e.rules.StartHealth(e.lp, e.doc)
	}
	e.rules.FastSweep(e.doc, func(n *dom.Node) { e.Hide(n, false) })

	e.doc.Observe(e.OnBatch)
	e.logger.Info("engine: installed",
		"site", e.rules.Site, "mode", string(e.rules.Mode),
		"fast_rules", len(e.rules.FastRules), "slow_rules", len(e.rules.SlowRules))
}

// Stop halts background work. Queued removals are abandoned.
func (e *Engine) Stop() {
	e.stopped = true
	if e.stopHeal != nil {
		e.stopHeal()
	}
}

// Rules returns the active rule bundle.
func (e *Engine) Rules() *selector.Config { return e.rules }

// QuietActive reports the hysteresis state.
func (e *Engine) QuietActive() bool { return e.quiet.active }

// Hide is the standard hide primitive: immediate visual suppression recorded
// in the processed set, then enqueue for deferred structural detachment.
// Hiding an already-processed node is a no-op. In the lowest sensitivity
// mode Hide touches nothing, so callers wired through hooks (guard, click
// veto) cannot do tree work there either. Returns true on first hide.
func (e *Engine) Hide(n *dom.Node, heuristic bool) bool {
	if n == nil || e.rules.Mode == selector.ModeOff || e.processed.Has(n) {
		return false
	}
	n.ForceHide()
	if e.applyHide != nil {
		e.applyHide(n)
	}
	e.processed.Add(n)
	e.removal.push(n)
	e.counters.Hides++
	if heuristic {
		e.counters.HeuristicRemovals++
	}
	e.quiet.active = false
	e.quiet.lastHide = e.now()
	e.scheduleDrain()

	e.logger.Debug("engine: hid node",
		"tag", n.Tag, "xpath", n.XPath(), "heuristic", heuristic)
	return true
}

// escalate walks upward from n, bounded to ancestorCap ancestors or the
// document body, tracking the highest ancestor that is fixed/absolute
// positioned or has a non-auto stacking order, and hides that ancestor (or n
// itself if none qualifies).
func (e *Engine) escalate(n *dom.Node, heuristic bool) bool {
	target := n
	p := n.Parent
	for i := 0; i < ancestorCap && p != nil && p != e.doc.Body && p != e.doc.Root; i++ {
		if p.Computed.Positioned() || !p.Computed.ZAuto {
			target = p
		}
		p = p.Parent
	}
	return e.Hide(target, heuristic)
}
