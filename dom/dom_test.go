package dom

import (
	"testing"

	"github.com/mugenyume/mugenblock/mutation"
)

func TestAppendChild_EmitsInsert(t *testing.T) {
	doc := NewDocument("https://example.com")
	var got []mutation.Record
	doc.Observe(func(recs []mutation.Record) { got = append(got, recs...) })

	div := NewNode("div", "id", "box")
	if _, err := doc.AppendChild(doc.Body, div); err != nil {
		t.Fatalf("AppendChild: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("records: got %d, want 1", len(got))
	}
	if got[0].Op != mutation.OpInsert {
		t.Errorf("Op: got %q, want %q", got[0].Op, mutation.OpInsert)
	}
	if got[0].Node != any(div) {
		t.Error("record Node handle does not point at the inserted node")
	}
	if !div.Connected() {
		t.Error("inserted node should be connected")
	}
}

func TestSetAttribute_RecordsOldValue(t *testing.T) {
	doc := NewDocument("https://example.com")
	div := NewNode("div", "class", "a")
	doc.AppendChild(doc.Body, div)

	var got []mutation.Record
	doc.Observe(func(recs []mutation.Record) { got = append(got, recs...) })

	if err := doc.SetAttribute(div, "class", "b"); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("records: got %d, want 1", len(got))
	}
	if got[0].Value != "b" || got[0].OldValue != "a" {
		t.Errorf("Value/OldValue: got %q/%q, want b/a", got[0].Value, got[0].OldValue)
	}
}

func TestRemoveNode_Disconnects(t *testing.T) {
	doc := NewDocument("https://example.com")
	div := NewNode("div")
	doc.AppendChild(doc.Body, div)

	if err := doc.RemoveNode(div); err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	if div.Connected() {
		t.Error("removed node still connected")
	}
	if err := doc.RemoveNode(div); err != ErrDetached {
		t.Errorf("second remove: got %v, want ErrDetached", err)
	}
}

func TestXPath_SiblingIndex(t *testing.T) {
	doc := NewDocument("https://example.com")
	a := NewNode("div")
	b := NewNode("div")
	c := NewNode("span")
	doc.AppendChild(doc.Body, a)
	doc.AppendChild(doc.Body, b)
	doc.AppendChild(doc.Body, c)

	if got := a.XPath(); got != "/html/body/div" {
		t.Errorf("first div: got %q", got)
	}
	if got := b.XPath(); got != "/html/body/div[2]" {
		t.Errorf("second div: got %q", got)
	}
	if got := c.XPath(); got != "/html/body/span" {
		t.Errorf("span: got %q", got)
	}
}

func TestForceHide_Hidden(t *testing.T) {
	n := NewNode("div")
	if n.Hidden() {
		t.Fatal("fresh node reports hidden")
	}
	n.ForceHide()
	if !n.Hidden() {
		t.Error("ForceHide did not mark node hidden")
	}
	if n.InlineStyle("visibility") != "hidden" {
		t.Error("visibility not set")
	}
}

func TestInlineStyle_FallsBackToStyleAttr(t *testing.T) {
	n := NewNode("div", "style", "position: fixed; z-index: 50")
	if got := n.InlineStyle("position"); got != "fixed" {
		t.Errorf("position: got %q, want fixed", got)
	}
}

func TestParseFragment_Element(t *testing.T) {
	nodes, err := ParseFragment(`<div class="ad" data-x="1"><span>hi</span></div>`)
	if err != nil {
		t.Fatalf("ParseFragment: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("nodes: got %d, want 1", len(nodes))
	}
	n := nodes[0]
	if n.Tag != "div" {
		t.Errorf("tag: got %q", n.Tag)
	}
	if v, _ := n.Attr("data-x"); v != "1" {
		t.Errorf("data-x: got %q", v)
	}
	if len(n.Children) != 1 || n.Children[0].Tag != "span" {
		t.Fatalf("children: %+v", n.Children)
	}
	if n.Children[0].Text != "hi" {
		t.Errorf("text: got %q", n.Children[0].Text)
	}
}

func TestDispatchClick_CaptureBeforeBubble(t *testing.T) {
	doc := NewDocument("https://example.com")
	target := NewNode("a")
	doc.AppendChild(doc.Body, target)

	var order []string
	doc.AddClickListener(false, func(*ClickEvent) { order = append(order, "bubble") })
	doc.AddClickListener(true, func(*ClickEvent) { order = append(order, "capture") })

	doc.DispatchClick(target)
	if len(order) != 2 || order[0] != "capture" || order[1] != "bubble" {
		t.Errorf("order: %v", order)
	}
}

func TestDispatchClick_StopPropagationSkipsBubble(t *testing.T) {
	doc := NewDocument("https://example.com")
	target := NewNode("a")
	doc.AppendChild(doc.Body, target)

	bubbled := false
	doc.AddClickListener(true, func(ev *ClickEvent) {
		ev.PreventDefault()
		ev.StopPropagation()
	})
	doc.AddClickListener(false, func(*ClickEvent) { bubbled = true })

	ev := doc.DispatchClick(target)
	if !ev.DefaultPrevented() {
		t.Error("expected default prevented")
	}
	if bubbled {
		t.Error("bubble listener ran after StopPropagation")
	}
}

func TestQueryAll_Selectors(t *testing.T) {
	doc := NewDocument("https://example.com")
	ad := NewNode("div", "class", "ad-banner top")
	plain := NewNode("div", "class", "content")
	frame := NewNode("iframe", "src", "https://x.test/f")
	doc.AppendChild(doc.Body, ad)
	doc.AppendChild(doc.Body, plain)
	doc.AppendChild(doc.Body, frame)

	cases := []struct {
		sel  string
		want int
	}{
		{".ad-banner", 1},
		{"div", 2},
		{"iframe", 1},
		{`[class*="ad-"]`, 1},
		{"div.content", 1},
		{".missing", 0},
	}
	for _, tc := range cases {
		got := doc.QueryAll([]Selector{ParseSelector(tc.sel)})
		if len(got) != tc.want {
			t.Errorf("%s: got %d, want %d", tc.sel, len(got), tc.want)
		}
	}
}

func TestInsertMarkup_EmitsMarkupRecords(t *testing.T) {
	doc := NewDocument("https://example.com")
	var got []mutation.Record
	doc.Observe(func(recs []mutation.Record) { got = append(got, recs...) })

	if err := doc.InsertMarkup(doc.Body, `<div id="a"></div><p id="b"></p>`); err != nil {
		t.Fatalf("InsertMarkup: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records: got %d, want 2", len(got))
	}
	for _, r := range got {
		if r.Op != mutation.OpMarkup {
			t.Errorf("Op: got %q, want %q", r.Op, mutation.OpMarkup)
		}
	}
	if doc.ByID("b") == nil {
		t.Error("second fragment root not attached")
	}
}
