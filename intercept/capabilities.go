// Package intercept pre-empts known-bad mutation patterns at their origin.
//
// The capability layer wraps the document's four mutation-causing entry
// points as decorators, always retaining the original operation as the
// fallback delegate. It fails open: any internal classification error is
// swallowed and treated as "allow"; this layer must never be the reason
// the host page breaks. The click layer vetoes overlay clicks at capture
// time, before any host handler can act on them.
package intercept

import (
	"log/slog"
	"strings"

	"github.com/mugenyume/mugenblock/dom"
	"github.com/mugenyume/mugenblock/selector"
)

// sealedAttr is the idempotency token: once a document's capabilities are
// wrapped, repeated installation attempts are no-ops. The token lives as
// long as the page does.
const sealedAttr = "data-mugenblock-sealed"

// Options controls capability installation.
type Options struct {
	// AllowFrames installs into nested-frame documents too. Default is
	// top-level only.
	AllowFrames bool
	Logger      *slog.Logger
}

// InstallCapabilities wraps the document's mutation entry points. Returns
// false when installation was skipped (nested frame, or already installed).
func InstallCapabilities(doc *dom.Document, opts Options) bool {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if !doc.TopLevel && !opts.AllowFrames {
		return false
	}
	if _, sealed := doc.Root.Attr(sealedAttr); sealed {
		return false
	}

	navigate := doc.NavigateFn
	doc.NavigateFn = func(url string) (ctx *dom.Context, err error) {
		blocked := false
		func() {
			defer func() { _ = recover() }() // classification error => allow
			blocked = blockNavigation(url)
		}()
		if blocked {
			opts.Logger.Debug("intercept: navigation blocked", "url", url)
			return nil, nil
		}
		return navigate(url)
	}

	appendChild := doc.AppendChildFn
	doc.AppendChildFn = func(parent, child *dom.Node) (*dom.Node, error) {
		func() {
			defer func() { _ = recover() }()
			if child != nil && adMarked(child) {
				// The append itself proceeds untouched; only visibility is
				// altered, before the node ever lands in the tree.
				child.ForceHide()
				opts.Logger.Debug("intercept: append pre-hidden", "tag", child.Tag)
			}
		}()
		return appendChild(parent, child)
	}

	setAttribute := doc.SetAttributeFn
	doc.SetAttributeFn = func(n *dom.Node, name, value string) error {
		func() {
			defer func() { _ = recover() }()
			if n != nil && selector.IsMarkerAttrName(name) {
				n.ForceHide()
				opts.Logger.Debug("intercept: attr write pre-hidden",
					"tag", n.Tag, "attr", name)
			}
		}()
		return setAttribute(n, name, value)
	}

	insertMarkup := doc.InsertMarkupFn
	doc.InsertMarkupFn = func(target *dom.Node, markup string) error {
		blocked := false
		func() {
			defer func() { _ = recover() }()
			blocked = blockMarkup(markup)
		}()
		if blocked {
			opts.Logger.Debug("intercept: markup blocked", "len", len(markup))
			return nil
		}
		return insertMarkup(target, markup)
	}

	_ = doc.SetAttribute(doc.Root, sealedAttr, "1")
	opts.Logger.Info("intercept: capabilities wrapped", "url", doc.URL)
	return true
}

// blockNavigation classifies a navigation target. Empty targets and
// internal/blob/data schemes are unconditionally allowed.
func blockNavigation(url string) bool {
	if url == "" {
		return false
	}
	lower := strings.ToLower(url)
	for _, scheme := range []string{"about:", "blob:", "data:", "chrome:"} {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	if selector.MatchesAdNetwork(lower) {
		return true
	}
	for _, kw := range selector.SuspiciousNavKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// adMarked reports the known ad-marker signatures on an incoming node.
func adMarked(n *dom.Node) bool {
	return selector.HasMarkerAttr(n) || selector.HasAdSlotClass(n)
}

// blockMarkup blocks a bulk fragment only when it is both large enough to
// matter and carries a known marker substring.
func blockMarkup(markup string) bool {
	if len(markup) <= selector.MarkupBlockThreshold {
		return false
	}
	lower := strings.ToLower(markup)
	for _, marker := range selector.MarkupMarkerSubstrings {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
