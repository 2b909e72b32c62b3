package intercept

import (
	"strings"
	"testing"

	"github.com/mugenyume/mugenblock/dom"
)

func TestInstallCapabilities_Idempotent(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	if !InstallCapabilities(doc, Options{}) {
		t.Fatal("first install returned false")
	}
	if InstallCapabilities(doc, Options{}) {
		t.Error("second install returned true")
	}
}

func TestInstallCapabilities_SkipsNestedFrames(t *testing.T) {
	doc := dom.NewDocument("https://example.com/frame")
	doc.TopLevel = false
	if InstallCapabilities(doc, Options{}) {
		t.Error("installed into a nested frame without AllowFrames")
	}
	if !InstallCapabilities(doc, Options{AllowFrames: true}) {
		t.Error("AllowFrames did not install into a nested frame")
	}
}

func TestNavigate_BlocksAdNetworks(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	InstallCapabilities(doc, Options{})

	tests := []struct {
		url     string
		blocked bool
	}{
		{"https://syndication.exoclick.com/ads?zone=1", true},
		{"https://ADS.DOUBLECLICK.NET/click", true},
		{"https://tracker.example/popunder-go", true},
		{"https://example.com/article", false},
		{"", false},
		{"about:blank", false},
		{"blob:https://example.com/uuid", false},
		{"data:text/html,hello", false},
	}
	for _, tt := range tests {
		ctx, err := doc.Navigate(tt.url)
		if err != nil {
			t.Fatalf("Navigate(%q): %v", tt.url, err)
		}
		if blocked := ctx == nil; blocked != tt.blocked {
			t.Errorf("Navigate(%q): blocked=%v, want %v", tt.url, blocked, tt.blocked)
		}
	}
}

func TestAppendChild_PreHidesMarkedNodes(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	InstallCapabilities(doc, Options{})

	marked := dom.NewNode("ins", "data-ad-client", "ca-pub-1")
	if _, err := doc.AppendChild(doc.Body, marked); err != nil {
		t.Fatal(err)
	}
	if !marked.Hidden() {
		t.Error("ad-marked node reached the tree visible")
	}
	if !marked.Connected() {
		t.Error("append itself was suppressed; only visibility should change")
	}

	plain := dom.NewNode("div")
	doc.AppendChild(doc.Body, plain)
	if plain.Hidden() {
		t.Error("unmarked node was pre-hidden")
	}
}

func TestSetAttribute_PreHidesOnMarkerName(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	InstallCapabilities(doc, Options{})

	n := dom.NewNode("div")
	doc.AppendChild(doc.Body, n)

	if err := doc.SetAttribute(n, "data-ad-slot", "3"); err != nil {
		t.Fatal(err)
	}
	if !n.Hidden() {
		t.Error("marker attribute write did not pre-hide")
	}
	if v, _ := n.Attr("data-ad-slot"); v != "3" {
		t.Error("attribute write itself was suppressed")
	}

	other := dom.NewNode("div")
	doc.AppendChild(doc.Body, other)
	doc.SetAttribute(other, "title", "hello")
	if other.Hidden() {
		t.Error("benign attribute write pre-hid the node")
	}
}

func TestInsertMarkup_BlocksLargeMarkedFragments(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	InstallCapabilities(doc, Options{})

	pad := strings.Repeat("<span>x</span>", 30)
	big := `<div class="adsbygoogle">` + pad + `</div>`
	if len(big) <= 200 {
		t.Fatalf("fixture too small: %d", len(big))
	}
	if err := doc.InsertMarkup(doc.Body, big); err != nil {
		t.Fatal(err)
	}
	for _, c := range doc.Body.Children {
		if got, _ := c.Attr("class"); got == "adsbygoogle" {
			t.Fatal("marked fragment landed in the tree")
		}
	}

	small := `<div class="adsbygoogle"></div>`
	if err := doc.InsertMarkup(doc.Body, small); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range doc.Body.Children {
		if got, _ := c.Attr("class"); got == "adsbygoogle" {
			found = true
		}
	}
	if !found {
		t.Error("short fragment was blocked")
	}

	bigClean := `<div class="content">` + pad + `</div>`
	if err := doc.InsertMarkup(doc.Body, bigClean); err != nil {
		t.Fatal(err)
	}
	found = false
	for _, c := range doc.Body.Children {
		if got, _ := c.Attr("class"); got == "content" {
			found = true
		}
	}
	if !found {
		t.Error("large unmarked fragment was blocked")
	}
}

func TestClick_VetoesOverlay(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	hidden := make(map[*dom.Node]bool)
	InstallClick(doc, func(n *dom.Node, heuristic bool) bool {
		hidden[n] = true
		n.ForceHide()
		return true
	}, nil)

	overlay := dom.NewNode("div")
	overlay.SetComputed("fixed", 500)
	overlay.Bounds = dom.Rect{W: doc.Viewport.W * 0.6, H: doc.Viewport.H * 0.6}
	doc.AppendChild(doc.Body, overlay)

	ev := doc.DispatchClick(overlay)
	if !ev.DefaultPrevented() {
		t.Error("overlay click default not prevented")
	}
	if !hidden[overlay] {
		t.Error("vetoed target not hidden")
	}
}

func TestClick_PassesSmallTargets(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	InstallClick(doc, func(n *dom.Node, heuristic bool) bool { return true }, nil)

	small := dom.NewNode("button")
	small.SetComputed("fixed", 500)
	small.Bounds = dom.Rect{W: doc.Viewport.W * 0.1, H: doc.Viewport.H * 0.1}
	doc.AppendChild(doc.Body, small)

	if ev := doc.DispatchClick(small); ev.DefaultPrevented() {
		t.Error("small fixed target was vetoed")
	}

	static := dom.NewNode("div")
	static.Bounds = dom.Rect{W: doc.Viewport.W, H: doc.Viewport.H}
	doc.AppendChild(doc.Body, static)
	if ev := doc.DispatchClick(static); ev.DefaultPrevented() {
		t.Error("non-positioned target was vetoed")
	}
}

func TestClick_SkipsPlayerUI(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	InstallClick(doc, func(n *dom.Node, heuristic bool) bool { return true }, nil)

	controls := dom.NewNode("div", "class", "vjs-control-bar")
	controls.SetComputed("absolute", 500)
	controls.Bounds = dom.Rect{W: doc.Viewport.W, H: doc.Viewport.H}
	doc.AppendChild(doc.Body, controls)

	if ev := doc.DispatchClick(controls); ev.DefaultPrevented() {
		t.Error("player chrome click was vetoed")
	}
}

func TestClick_CaptureRunsBeforeHostHandlers(t *testing.T) {
	doc := dom.NewDocument("https://example.com")
	InstallClick(doc, func(n *dom.Node, heuristic bool) bool { return true }, nil)

	hostSaw := false
	doc.AddClickListener(false, func(ev *dom.ClickEvent) { hostSaw = true })

	overlay := dom.NewNode("div")
	overlay.SetComputed("fixed", 500)
	overlay.Bounds = dom.Rect{W: doc.Viewport.W, H: doc.Viewport.H}
	doc.AppendChild(doc.Body, overlay)

	doc.DispatchClick(overlay)
	if hostSaw {
		t.Error("host bubble handler ran after a vetoed click")
	}
}
