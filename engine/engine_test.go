package engine

import (
	"testing"
	"time"

	"github.com/mugenyume/mugenblock/dom"
	"github.com/mugenyume/mugenblock/guard"
	"github.com/mugenyume/mugenblock/loop"
	"github.com/mugenyume/mugenblock/mutation"
	"github.com/mugenyume/mugenblock/selector"
)

func newTestEngine(t *testing.T, mode selector.Mode) (*Engine, *dom.Document) {
	t.Helper()
	doc := dom.NewDocument("https://example.com")
	e := New(Config{
		Doc:   doc,
		Rules: selector.Build("example.com", mode, nil),
	})
	return e, doc
}

// fakeClock returns a clock that advances step per call.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestHide_Idempotent(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)
	n := dom.NewNode("div")
	doc.AppendChild(doc.Body, n)

	if !e.Hide(n, false) {
		t.Fatal("first hide returned false")
	}
	if !n.Hidden() {
		t.Error("node not visually suppressed")
	}
	if e.Hide(n, false) {
		t.Error("second hide returned true")
	}
	if e.counters.Hides != 1 {
		t.Errorf("Hides: got %d, want 1", e.counters.Hides)
	}
	if e.removal.Len() != 1 {
		t.Errorf("removal queue: got %d, want 1", e.removal.Len())
	}
}

func TestHide_CallsApplyHook(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	var applied []*dom.Node
	e := New(Config{
		Doc:       doc,
		Rules:     selector.Build("example.com", selector.ModeStandard, nil),
		ApplyHide: func(n *dom.Node) { applied = append(applied, n) },
	})
	n := dom.NewNode("div")
	doc.AppendChild(doc.Body, n)

	e.Hide(n, false)
	if len(applied) != 1 || applied[0] != n {
		t.Errorf("hook calls: %v", applied)
	}
}

func TestEscalate_HidesPositionedAncestor(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)

	wrapper := dom.NewNode("div")
	wrapper.SetComputed("fixed", 999)
	inner := dom.NewNode("div")
	marker := dom.NewNode("ins", "data-ad-client", "ca-pub-1")
	doc.AppendChild(doc.Body, wrapper)
	doc.AppendChild(wrapper, inner)
	doc.AppendChild(inner, marker)

	if !e.escalate(marker, false) {
		t.Fatal("escalate did not hide")
	}
	if !wrapper.Hidden() {
		t.Error("positioned ancestor not hidden")
	}
	if marker.Hidden() {
		t.Error("marker hidden instead of its container")
	}
}

func TestEscalate_NoQualifyingAncestorHidesSelf(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)
	inner := dom.NewNode("div")
	marker := dom.NewNode("ins", "data-ad-slot", "1")
	doc.AppendChild(doc.Body, inner)
	doc.AppendChild(inner, marker)

	e.escalate(marker, false)
	if !marker.Hidden() {
		t.Error("marker itself should be hidden")
	}
	if inner.Hidden() {
		t.Error("static ancestor hidden")
	}
}

func TestEscalate_BoundedByAncestorCap(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)

	// A positioned ancestor further than the cap must not be chosen.
	far := dom.NewNode("div")
	far.SetComputed("fixed", 500)
	doc.AppendChild(doc.Body, far)
	parent := far
	for i := 0; i < ancestorCap+2; i++ {
		c := dom.NewNode("div")
		doc.AppendChild(parent, c)
		parent = c
	}
	marker := dom.NewNode("ins", "data-ad-client", "x")
	doc.AppendChild(parent, marker)

	e.escalate(marker, false)
	if far.Hidden() {
		t.Error("ancestor beyond cap was hidden")
	}
	if !marker.Hidden() {
		t.Error("marker not hidden")
	}
}

func TestOnBatch_UrgentMarkerInsert(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)
	n := dom.NewNode("ins", "data-ad-client", "ca-pub-1")
	doc.AppendChild(doc.Body, n)

	e.OnBatch([]mutation.Record{{Op: mutation.OpInsert, Node: n}})

	if !n.Hidden() {
		t.Error("marker insert not hidden synchronously")
	}
	if e.passPending {
		t.Error("urgent-only batch scheduled a deferred pass")
	}
}

func TestOnBatch_MarkerAttributeWrite(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)
	n := dom.NewNode("div")
	doc.AppendChild(doc.Body, n)

	e.OnBatch([]mutation.Record{{
		Op: mutation.OpAttr, Node: n, Name: "data-ad-slot", Value: "3",
	}})
	if !n.Hidden() {
		t.Error("marker attribute write not treated as urgent")
	}
}

func TestOnBatch_DropsWhilePassPending(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)
	a := dom.NewNode("div")
	b := dom.NewNode("div")
	doc.AppendChild(doc.Body, a)
	doc.AppendChild(doc.Body, b)

	e.OnBatch([]mutation.Record{{Op: mutation.OpInsert, Node: a}})
	if !e.passPending {
		t.Fatal("first batch did not schedule a pass")
	}
	e.OnBatch([]mutation.Record{{Op: mutation.OpInsert, Node: b}})

	if e.counters.DroppedBatches != 1 {
		t.Errorf("DroppedBatches: got %d, want 1", e.counters.DroppedBatches)
	}
	if len(e.candidates) != 1 || e.candidates[0] != a {
		t.Error("pending candidates were replaced")
	}
}

func TestDeferredPass_HidesFastRuleMatch(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)
	ad := dom.NewNode("div", "class", "ad-banner")
	doc.AppendChild(doc.Body, ad)

	e.OnBatch([]mutation.Record{{Op: mutation.OpInsert, Node: ad}})
	e.runDeferredPass()

	if !ad.Hidden() {
		t.Error("fast-rule match not hidden by deferred pass")
	}
	if e.passPending {
		t.Error("passPending not cleared")
	}
}

func TestDeferredPass_DescendsIntoChildren(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)
	wrap := dom.NewNode("div")
	child := dom.NewNode("iframe", "src", "https://ads.exoclick.com/f")
	doc.AppendChild(doc.Body, wrap)
	doc.AppendChild(wrap, child)

	e.OnBatch([]mutation.Record{{Op: mutation.OpInsert, Node: wrap}})
	e.runDeferredPass()

	if !child.Hidden() {
		t.Error("ad-network iframe under candidate not hidden")
	}
}

func TestDeferredPass_FanoutCapSkipsWideSubtrees(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)
	wide := dom.NewNode("div")
	doc.AppendChild(doc.Body, wide)
	var ad *dom.Node
	for i := 0; i < fanoutCap+5; i++ {
		c := dom.NewNode("div")
		if i == 0 {
			c = dom.NewNode("div", "class", "ad-banner")
			ad = c
		}
		doc.AppendChild(wide, c)
	}

	e.OnBatch([]mutation.Record{{Op: mutation.OpInsert, Node: wide}})
	e.runDeferredPass()

	if ad.Hidden() {
		t.Error("descended into subtree wider than the fan-out cap")
	}
}

func TestDeferredPass_BudgetBound(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	// Every clock read advances 1ms, so the pass can classify only a
	// bounded number of candidates before its deadline.
	e := New(Config{
		Doc:   doc,
		Rules: selector.Build("example.com", selector.ModeStandard, nil),
		Clock: fakeClock(time.Unix(1000, 0), time.Millisecond),
	})

	var recs []mutation.Record
	for i := 0; i < 10000; i++ {
		n := dom.NewNode("div")
		doc.AppendChild(doc.Body, n)
		recs = append(recs, mutation.Record{Op: mutation.OpInsert, Node: n})
	}
	e.OnBatch(recs)
	e.runDeferredPass()

	if e.processed.Len() != 0 {
		t.Errorf("nothing should match, processed=%d", e.processed.Len())
	}
	if e.candidates != nil {
		t.Error("expired pass kept candidates instead of dropping them")
	}
	if e.passPending {
		t.Error("passPending still set")
	}
}

func TestQuietMode_EngagesAfterDrySpell(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	clock := fakeClock(time.Unix(1000, 0), time.Second)
	e := New(Config{
		Doc:   doc,
		Rules: selector.Build("example.com", selector.ModeAggressive, nil),
		Clock: clock,
	})

	plain := dom.NewNode("div")
	doc.AppendChild(doc.Body, plain)

	// First fruitless pass: the dry spell is still shorter than the
	// threshold from construction time.
	e.OnBatch([]mutation.Record{{Op: mutation.OpInsert, Node: plain}})
	e.runDeferredPass()

	// Advance well past the threshold, then another fruitless pass.
	for i := 0; i < 15; i++ {
		clock()
	}
	plain2 := dom.NewNode("div")
	doc.AppendChild(doc.Body, plain2)
	e.OnBatch([]mutation.Record{{Op: mutation.OpInsert, Node: plain2}})
	e.runDeferredPass()

	if !e.QuietActive() {
		t.Fatal("quiet mode did not engage after sustained dry spell")
	}

	// Any hide re-enables full sensitivity.
	ad := dom.NewNode("div", "class", "ad-banner")
	doc.AppendChild(doc.Body, ad)
	e.Hide(ad, false)
	if e.QuietActive() {
		t.Error("hide did not clear quiet mode")
	}
}

func TestQuietMode_SkipsHeuristics(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeAggressive)

	overlay := dom.NewNode("div")
	overlay.SetComputed("fixed", 500)
	overlay.Bounds = dom.Rect{W: 1280, H: 800}
	doc.AppendChild(doc.Body, overlay)

	e.quiet.active = true
	if e.classifyOne(overlay) {
		t.Fatal("heuristic fired while quiet")
	}

	e.quiet.active = false
	if !e.classifyOne(overlay) {
		t.Error("overlay heuristic did not fire when not quiet")
	}
}

func TestDrain_DetachesQueuedNodes(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	lp := loop.New(loop.Config{})
	e := New(Config{
		Doc:   doc,
		Loop:  lp,
		Rules: selector.Build("example.com", selector.ModeStandard, nil),
	})
	go lp.Run()
	defer lp.Stop()

	var nodes []*dom.Node
	for i := 0; i < drainChunk+10; i++ {
		n := dom.NewNode("div")
		doc.AppendChild(doc.Body, n)
		nodes = append(nodes, n)
	}
	lp.Post(func() {
		for _, n := range nodes {
			e.Hide(n, false)
		}
	})

	// Stats marshals the read onto the loop, so polling here is safe.
	deadline := time.Now().Add(5 * time.Second)
	for {
		st := e.Stats()
		if st.Detached == uint64(len(nodes)) && st.QueueLen == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("drain never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	for _, n := range nodes {
		if n.Connected() {
			t.Fatal("queued node still connected after drain")
		}
	}
}

func TestSweep_CountsFirstTimeHides(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)
	ad := dom.NewNode("div", "class", "ad-banner")
	doc.AppendChild(doc.Body, ad)

	if got := e.Sweep(); got != 1 {
		t.Errorf("first sweep: got %d, want 1", got)
	}
	if got := e.Sweep(); got != 0 {
		t.Errorf("second sweep: got %d, want 0", got)
	}
}

func TestStats_Snapshot(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)
	ad := dom.NewNode("div", "class", "ad-banner")
	doc.AppendChild(doc.Body, ad)
	e.Hide(ad, true)

	st := e.Stats()
	if st.Site != "example.com" || st.Mode != "standard" {
		t.Errorf("identity: %+v", st)
	}
	if st.Hides != 1 || st.HeuristicRemovals != 1 {
		t.Errorf("counters: %+v", st.Counters)
	}
	if st.QueueLen != 1 || st.ProcessedLen != 1 {
		t.Errorf("queue/processed: %+v", st)
	}
}

func TestModeOff_NoTreeWork(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeOff)
	n := dom.NewNode("ins", "data-ad-client", "x")
	doc.AppendChild(doc.Body, n)

	e.OnBatch([]mutation.Record{{Op: mutation.OpInsert, Node: n}})
	if n.Hidden() {
		t.Error("mode off still hid a node")
	}
	if e.counters.Batches != 0 {
		t.Error("mode off counted a batch")
	}
}

func TestModeOff_HideIsNoop(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeOff)
	n := dom.NewNode("div", "class", "ad-banner")
	doc.AppendChild(doc.Body, n)

	if e.Hide(n, false) {
		t.Fatal("hide reported work in mode off")
	}
	if n.Hidden() {
		t.Fatal("node hidden in mode off")
	}
	if st := e.Stats(); st.Hides != 0 || st.QueueLen != 0 {
		t.Errorf("state changed: %+v", st)
	}
}

// A guard wired through the engine's hide must also do nothing in the
// lowest sensitivity mode, even when a media event opens its sweep path.
func TestModeOff_MediaGuardLeavesOverlays(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeOff)

	video := dom.NewNode("video")
	video.Bounds = dom.Rect{X: 100, Y: 100, W: 640, H: 360}
	doc.AppendChild(doc.Body, video)

	overlay := dom.NewNode("div")
	overlay.SetComputed("fixed", 50)
	overlay.Bounds = dom.Rect{X: 200, Y: 200, W: 300, H: 200}
	doc.AppendChild(doc.Body, overlay)

	g := guard.New(guard.Config{Doc: doc, Rules: e.Rules(), Hide: e.Hide})
	g.Install(video)
	doc.DispatchMediaEvent(video, "pause")

	if overlay.Hidden() {
		t.Fatal("media guard hid a node in mode off")
	}
	if st := e.Stats(); st.Hides != 0 {
		t.Errorf("hides: got %d, want 0", st.Hides)
	}
}

// Control-surface reads and sweeps come from HTTP and MCP goroutines while
// the loop mutates engine state. Both must marshal onto the loop.
func TestStats_OffLoopCallersMarshalOntoLoop(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	lp := loop.New(loop.Config{})
	e := New(Config{
		Doc:   doc,
		Loop:  lp,
		Rules: selector.Build("example.com", selector.ModeStandard, nil),
	})
	go lp.Run()
	defer lp.Stop()

	const rounds = 200
	writer := make(chan struct{})
	go func() {
		defer close(writer)
		for i := 0; i < rounds; i++ {
			lp.Call(func() {
				n := dom.NewNode("div", "class", "ad-banner")
				doc.AppendChild(doc.Body, n)
				e.Hide(n, false)
			})
		}
	}()

	for i := 0; i < rounds; i++ {
		_ = e.Stats()
		_ = e.Sweep()
	}
	<-writer

	if st := e.Stats(); st.Hides != rounds {
		t.Errorf("hides: got %d, want %d", st.Hides, rounds)
	}
}
