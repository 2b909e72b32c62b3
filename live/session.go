package live

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/mugenyume/mugenblock/dom"
	"github.com/mugenyume/mugenblock/engine"
	"github.com/mugenyume/mugenblock/guard"
	"github.com/mugenyume/mugenblock/idgen"
	"github.com/mugenyume/mugenblock/intercept"
	"github.com/mugenyume/mugenblock/loop"
	"github.com/mugenyume/mugenblock/selector"
)

//go:embed observer.js
var observerJS string

const bindingName = "__mugenblock_binding"

// SessionConfig configures one defended page.
type SessionConfig struct {
	URL   string
	Rules *selector.Config

	// Classification runs the mutation classifier. Off leaves only the
	// injected CSS rules active.
	Classification bool
	// Interception wraps the document capabilities and click path.
	Interception bool
	// AllowFrames permits subframe creation when interception is on.
	AllowFrames bool

	Logger *slog.Logger
}

// Session binds one Chrome page to the defense engine. The page's DOM is
// mirrored into an in-process tree; mutations flow in over a CDP binding,
// suppressions flow back as style evaluations.
type Session struct {
	id     string
	cfg    SessionConfig
	page   *rod.Page
	doc    *dom.Document
	lp     *loop.Loop
	eng    *engine.Engine
	grd    *guard.Guard
	logger *slog.Logger
	cancel context.CancelFunc
}

// jsRecord is the wire shape of one record from the injected observer.
type jsRecord struct {
	Op       string  `json:"op"`
	XPath    string  `json:"xpath"`
	Tag      string  `json:"tag"`
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	OldValue string  `json:"old_value"`
	HTML     string  `json:"html"`
	Pos      string  `json:"pos"`
	Z        string  `json:"z"`
	Index    int     `json:"index"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	W        float64 `json:"w"`
	H        float64 `json:"h"`
}

// Open navigates a fresh stealth tab to the URL and attaches the engine.
func Open(ctx context.Context, br *Browser, cfg SessionConfig) (*Session, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	b := br.rod()
	if b == nil {
		return nil, fmt.Errorf("live: browser not started")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("live: create tab: %w", err)
	}

	s := &Session{
		id:   idgen.New(),
		cfg:  cfg,
		page: page,
	}
	s.logger = cfg.Logger.With("session", s.id, "url", cfg.URL)

	if err := s.prepare(); err != nil {
		page.Close()
		return nil, err
	}

	navCtx, cancelNav := context.WithTimeout(ctx, br.cfg.NavTimeout)
	defer cancelNav()
	if err := page.Context(navCtx).Navigate(cfg.URL); err != nil {
		page.Close()
		return nil, fmt.Errorf("live: navigate %s: %w", cfg.URL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.logger.Warn("live: wait load timeout", "error", err)
	}

	if err := s.attach(ctx); err != nil {
		page.Close()
		return nil, err
	}
	return s, nil
}

// prepare installs the pre-navigation page scripts: popup denylist,
// suppression stylesheet bootstrap, and the observer itself.
func (s *Session) prepare() error {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(s.page); err != nil {
		return fmt.Errorf("live: add binding: %w", err)
	}

	scripts := []string{}
	if s.cfg.Interception {
		deny := append([]string{}, selector.AdNetworkSubstrings...)
		deny = append(deny, selector.SuspiciousNavKeywords...)
		denyJSON, _ := json.Marshal(deny)
		scripts = append(scripts,
			fmt.Sprintf("window.__mugenblock_deny = %s;", denyJSON))
	}
	if s.cfg.Rules.Mode != selector.ModeOff {
		scripts = append(scripts, styleBootstrap(s.cfg.Rules))
	}
	scripts = append(scripts, observerJS)

	for _, src := range scripts {
		_, err := (proto.PageAddScriptToEvaluateOnNewDocument{Source: src}).Call(s.page)
		if err != nil {
			return fmt.Errorf("live: install page script: %w", err)
		}
	}
	return nil
}

// attach snapshots the page, builds the mirror, and starts the engine.
func (s *Session) attach(ctx context.Context) error {
	res, err := s.page.Eval(`() => window.__mugenblock_snapshot()`)
	if err != nil {
		return fmt.Errorf("live: snapshot: %w", err)
	}
	doc, err := buildMirror([]byte(res.Value.Str()))
	if err != nil {
		return err
	}
	s.doc = doc

	s.lp = loop.New(loop.Config{})
	go s.lp.Run()

	// The lowest sensitivity mode does no tree work: no interceptors, no
	// media guard, and Install below is already a no-op.
	modeOff := s.cfg.Rules.Mode == selector.ModeOff

	if s.cfg.Interception && !modeOff {
		intercept.InstallCapabilities(doc, intercept.Options{
			AllowFrames: s.cfg.AllowFrames,
			Logger:      s.logger,
		})
	}

	s.eng = engine.New(engine.Config{
		Doc:       doc,
		Loop:      s.lp,
		Rules:     s.cfg.Rules,
		Logger:    s.logger,
		ApplyHide: s.applyHide,
	})
	if s.cfg.Interception && !modeOff {
		intercept.InstallClick(doc, s.eng.Hide, s.logger)
	}
	if !modeOff {
		s.grd = guard.New(guard.Config{
			Doc:    doc,
			Loop:   s.lp,
			Rules:  s.cfg.Rules,
			Hide:   s.eng.Hide,
			Logger: s.logger,
		})
	}

	s.lp.Post(func() {
		if s.cfg.Classification {
			s.eng.Install()
		}
		if s.grd != nil {
			s.grd.InstallAll()
		}
	})

	bindCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.listenBinding(bindCtx)
	if !modeOff {
		s.startStyleHeal()
	}

	s.logger.Info("live: session attached",
		"classification", s.cfg.Classification,
		"interception", s.cfg.Interception)
	return nil
}

// ID returns the session's generated identifier.
func (s *Session) ID() string { return s.id }

// Engine exposes the per-page engine for stats surfaces.
func (s *Session) Engine() *engine.Engine { return s.eng }

// Document exposes the mirror tree.
func (s *Session) Document() *dom.Document { return s.doc }

// Close tears the session down. The page keeps its injected CSS.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.eng != nil {
		s.lp.Post(s.eng.Stop)
	}
	s.lp.Stop()
	s.page.Close()
	s.logger.Info("live: session closed")
}

// listenBinding receives observer payloads and hands them to the loop.
func (s *Session) listenBinding(ctx context.Context) {
	s.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var recs []jsRecord
		if err := json.Unmarshal([]byte(e.Payload), &recs); err != nil {
			s.logger.Warn("live: parse binding payload", "error", err)
			return
		}
		s.lp.Post(func() { s.apply(recs) })
	})()
}

// apply replays a batch of page records onto the mirror. Capability entry
// points and dispatchers fire the installed interceptors and the engine's
// observer as a side effect.
func (s *Session) apply(recs []jsRecord) {
	for _, rec := range recs {
		switch rec.Op {
		case "insert":
			s.applyInsert(rec)
		case "remove":
			s.applyRemove(rec)
		case "attr", "attr_del":
			s.applyAttr(rec)
		case "text":
			if n := resolveXPath(s.doc, rec.XPath); n != nil {
				n.Text = rec.Value
			}
		case "navigate":
			s.doc.Navigate(rec.Value)
		case "__click":
			if n := resolveXPath(s.doc, rec.XPath); n != nil {
				s.doc.DispatchClick(n)
			}
		case "__media":
			s.applyMedia(rec)
		}
	}
}

func (s *Session) applyInsert(rec jsRecord) {
	parent := resolveXPath(s.doc, rec.XPath)
	if parent == nil {
		return
	}
	var n *dom.Node
	if rec.HTML != "" {
		nodes, err := dom.ParseFragment(rec.HTML)
		if err != nil || len(nodes) == 0 {
			return
		}
		n = nodes[0]
	} else {
		n = dom.NewNode(rec.Tag)
	}
	setComputed(n, rec.Pos, rec.Z)
	n.Bounds = dom.Rect{X: rec.X, Y: rec.Y, W: rec.W, H: rec.H}
	s.doc.AppendChild(parent, n)
}

// applyRemove resolves the removed child by its same-tag index so a remove
// among same-tag siblings detaches the right one. Index 0 is sent by older
// observer payloads and falls back to the first match.
func (s *Session) applyRemove(rec jsRecord) {
	parent := resolveXPath(s.doc, rec.XPath)
	if parent == nil {
		return
	}
	idx := rec.Index
	if idx < 1 {
		idx = 1
	}
	seen := 0
	for _, c := range parent.Children {
		if c.Tag != rec.Tag {
			continue
		}
		seen++
		if seen == idx {
			s.doc.RemoveNode(c)
			return
		}
	}
}

func (s *Session) applyAttr(rec jsRecord) {
	n := resolveXPath(s.doc, rec.XPath)
	if n == nil {
		return
	}
	s.doc.SetAttribute(n, rec.Name, rec.Value)
	setComputed(n, rec.Pos, rec.Z)
	if rec.W > 0 || rec.H > 0 {
		n.Bounds = dom.Rect{X: rec.X, Y: rec.Y, W: rec.W, H: rec.H}
	}
}

func (s *Session) applyMedia(rec jsRecord) {
	n := resolveXPath(s.doc, rec.XPath)
	if n == nil {
		return
	}
	if s.grd != nil {
		s.grd.Install(n)
	}
	s.doc.DispatchMediaEvent(n, rec.Value)
}

// applyHide reflects a mirror suppression onto the real page. Runs on the
// loop goroutine, so the page call leaves it immediately.
func (s *Session) applyHide(n *dom.Node) {
	xpath := n.XPath()
	go func() {
		_, err := s.page.Eval(hideScript, xpath)
		if err != nil {
			s.logger.Debug("live: page hide failed", "xpath", xpath, "error", err)
		}
	}()
}

const hideScript = `(xpath) => {
	const r = document.evaluate(xpath, document, null,
		XPathResult.FIRST_ORDERED_NODE_TYPE, null);
	const el = r.singleNodeValue;
	if (!el || !el.style) return false;
	el.style.setProperty("display", "none", "important");
	el.style.setProperty("visibility", "hidden", "important");
	return true;
}`

// styleBootstrap builds the pre-navigation script that installs the
// suppression stylesheet as early as possible and re-adopts it if the page
// tears it out.
func styleBootstrap(rules *selector.Config) string {
	css, _ := json.Marshal(rules.RuleText())
	hash, _ := json.Marshal(rules.StyleHash())
	return fmt.Sprintf(`(() => {
	const install = () => {
		let el = document.getElementById(%q);
		if (el && el.getAttribute("data-rule-hash") === %s) return;
		if (el) el.remove();
		el = document.createElement("style");
		el.id = %q;
		el.setAttribute("data-rule-hash", %s);
		el.textContent = %s;
		(document.head || document.documentElement).appendChild(el);
	};
	if (document.readyState === "loading") {
		document.addEventListener("DOMContentLoaded", install);
	}
	install();
})();`, selector.StyleID, hash, selector.StyleID, hash, css)
}

// startStyleHeal re-asserts the page-side stylesheet on the same cadence the
// engine heals the mirror's.
func (s *Session) startStyleHeal() {
	script := styleBootstrap(s.cfg.Rules)
	s.lp.Every(selector.HealInterval, func() {
		go func() {
			if _, err := s.page.Eval(script); err != nil {
				s.logger.Debug("live: style heal failed", "error", err)
			}
		}()
	})
}
