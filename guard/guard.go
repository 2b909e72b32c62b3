// Package guard re-sweeps the page in short high-frequency bursts anchored
// to media state transitions. Ad overlays love to appear the instant a video
// pauses or goes fullscreen; the mutation watcher alone reacts on its
// deferred cadence, so the guard runs a time-boxed high-alert window that
// repeats the fast-selector cleanup plus a geometry-targeted overlay sweep.
package guard

import (
	"log/slog"
	"time"

	"github.com/mugenyume/mugenblock/dom"
	"github.com/mugenyume/mugenblock/loop"
	"github.com/mugenyume/mugenblock/selector"
)

const (
	// installedAttr marks a media element whose guard is already attached.
	installedAttr = "data-mugenblock-guard"
	// alertInterval is the re-sweep cadence inside a high-alert window.
	alertInterval = 150 * time.Millisecond
	// alertRepeats closes the window after ~2s of re-sweeps.
	alertRepeats = 13
	// sweepMinZ is the stacking order below which the geometry sweep does
	// not consider an element overlay-like.
	sweepMinZ = 10
)

// Config for creating a Guard.
type Config struct {
	Doc    *dom.Document
	Loop   *loop.Loop
	Rules  *selector.Config
	Hide   func(n *dom.Node, heuristic bool) bool
	Logger *slog.Logger
}

// Guard watches media elements and owns their high-alert windows.
type Guard struct {
	doc    *dom.Document
	lp     *loop.Loop
	rules  *selector.Config
	hide   func(*dom.Node, bool) bool
	logger *slog.Logger

	// active tracks media elements with a window open; concurrent triggers
	// coalesce into the existing window instead of stacking.
	active map[*dom.Node]bool
}

// New creates a Guard.
func New(cfg Config) *Guard {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Guard{
		doc:    cfg.Doc,
		lp:     cfg.Loop,
		rules:  cfg.Rules,
		hide:   cfg.Hide,
		logger: cfg.Logger,
		active: make(map[*dom.Node]bool),
	}
}

// InstallAll attaches the guard to every current media element.
func (g *Guard) InstallAll() int {
	installed := 0
	g.doc.Walk(func(n *dom.Node) bool {
		if n.Tag == "video" || n.Tag == "audio" {
			if g.Install(n) {
				installed++
			}
		}
		return true
	})
	return installed
}

// Install attaches listeners to one media element. Idempotent via a marker
// attribute; a second Install is a no-op.
func (g *Guard) Install(media *dom.Node) bool {
	if _, ok := media.Attr(installedAttr); ok {
		return false
	}
	_ = g.doc.SetAttribute(media, installedAttr, "1")

	trigger := func(event string) { g.trigger(media, event) }
	g.doc.AddMediaListener(media, trigger)

	// Clicks are observed in capture phase, before the page's own handlers.
	g.doc.AddClickListener(true, func(ev *dom.ClickEvent) {
		if media.ContainsNode(ev.Target) {
			g.trigger(media, "click")
		}
	})
	return true
}

// trigger opens a high-alert window for the media element, unless one is
// already running.
func (g *Guard) trigger(media *dom.Node, event string) {
	if g.active[media] {
		return
	}
	g.active[media] = true
	g.logger.Debug("guard: high alert", "event", event, "media", media.XPath())

	g.resweep(media)

	if g.lp == nil {
		g.active[media] = false
		return
	}
	reps := 0
	var stop func()
	stop = g.lp.Every(alertInterval, func() {
		g.resweep(media)
		reps++
		if reps >= alertRepeats {
			stop()
			g.active[media] = false
		}
	})
}

// resweep runs one high-alert iteration: the fast-selector cleanup plus the
// geometry-targeted overlay sweep.
func (g *Guard) resweep(media *dom.Node) {
	g.rules.FastSweep(g.doc, func(n *dom.Node) { g.hide(n, false) })
	g.geometrySweep(media)
}

// geometrySweep hides positioned high-stacked elements whose box intersects
// the media element's box. Two hard exclusions: an element containing the
// media element is never hidden, and neither is anything matching the
// player-UI allow-list.
func (g *Guard) geometrySweep(media *dom.Node) {
	if !media.Connected() {
		return
	}
	g.doc.Walk(func(n *dom.Node) bool {
		if !n.Computed.Positioned() {
			return true
		}
		if n.Computed.ZAuto || n.Computed.ZIndex <= sweepMinZ {
			return true
		}
		if !n.Bounds.Intersects(media.Bounds) {
			return true
		}
		if n.ContainsNode(media) {
			return true
		}
		if selector.IsPlayerUI(n) {
			return true
		}
		g.hide(n, true)
		return true
	})
}
