package live

import (
	"testing"

	"github.com/mugenyume/mugenblock/dom"
)

const sampleSnapshot = `{
  "url": "https://example.com/article",
  "vw": 1920, "vh": 1080,
  "root": {
    "tag": "html", "pos": "static", "z": "auto",
    "children": [
      {"tag": "head", "children": [
        {"tag": "title", "text": "Article"}
      ]},
      {"tag": "body", "pos": "static", "z": "auto", "children": [
        {"tag": "div", "attrs": {"class": "content"}, "children": [
          {"tag": "p", "text": "hello"}
        ]},
        {"tag": "div", "attrs": {"class": "ad-banner"},
         "pos": "fixed", "z": "200",
         "x": 0, "y": 980, "w": 1920, "h": 100}
      ]}
    ]
  }
}`

func TestBuildMirror(t *testing.T) {
	doc, err := buildMirror([]byte(sampleSnapshot))
	if err != nil {
		t.Fatal(err)
	}
	if doc.URL != "https://example.com/article" {
		t.Errorf("url: %q", doc.URL)
	}
	if doc.Viewport.W != 1920 || doc.Viewport.H != 1080 {
		t.Errorf("viewport: %+v", doc.Viewport)
	}
	if len(doc.Body.Children) != 2 {
		t.Fatalf("body children: got %d, want 2", len(doc.Body.Children))
	}

	banner := doc.Body.Children[1]
	if got, _ := banner.Attr("class"); got != "ad-banner" {
		t.Errorf("banner class: %q", got)
	}
	if !banner.Computed.Positioned() || banner.Computed.ZIndex != 200 {
		t.Errorf("banner computed: %+v", banner.Computed)
	}
	if banner.Bounds.W != 1920 || banner.Bounds.Y != 980 {
		t.Errorf("banner bounds: %+v", banner.Bounds)
	}

	p := doc.Body.Children[0].Children[0]
	if p.Tag != "p" || p.Text != "hello" {
		t.Errorf("paragraph: %+v", p)
	}
	if !p.Connected() {
		t.Error("snapshot subtree not connected")
	}
}

func TestBuildMirror_NonNumericZ(t *testing.T) {
	doc, err := buildMirror([]byte(sampleSnapshot))
	if err != nil {
		t.Fatal(err)
	}
	// "auto" z keeps ZAuto, position is still recorded.
	if !doc.Body.Computed.ZAuto {
		t.Error("auto z-index lost")
	}
	if doc.Body.Computed.Position != "static" {
		t.Errorf("position: %q", doc.Body.Computed.Position)
	}
}

func TestBuildMirror_Malformed(t *testing.T) {
	if _, err := buildMirror([]byte(`{"url": `)); err == nil {
		t.Fatal("malformed snapshot accepted")
	}
}

func TestResolveXPath(t *testing.T) {
	doc, err := buildMirror([]byte(sampleSnapshot))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		xpath string
		want  *dom.Node
	}{
		{"/html", doc.Root},
		{"/html/body", doc.Body},
		{"/html/body/div", doc.Body.Children[0]},
		{"/html/body/div[2]", doc.Body.Children[1]},
		{"/html/body/div/p", doc.Body.Children[0].Children[0]},
		{"/html/body/div[3]", nil},
		{"/html/body/span", nil},
		{"/body/div", nil},
		{"", nil},
		{"html/body", nil},
		{"/html/body/div[0]", nil},
		{"/html/body/div[x]", nil},
	}
	for _, tt := range tests {
		if got := resolveXPath(doc, tt.xpath); got != tt.want {
			t.Errorf("resolveXPath(%q): got %v, want %v", tt.xpath, got, tt.want)
		}
	}
}

func TestResolveXPath_RoundTripsNodeXPath(t *testing.T) {
	doc, err := buildMirror([]byte(sampleSnapshot))
	if err != nil {
		t.Fatal(err)
	}
	banner := doc.Body.Children[1]
	if got := resolveXPath(doc, banner.XPath()); got != banner {
		t.Errorf("round trip of %q: got %v", banner.XPath(), got)
	}
}
