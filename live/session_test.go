package live

import (
	"testing"

	"github.com/mugenyume/mugenblock/dom"
)

func removeFixture(t *testing.T) (*Session, []*dom.Node) {
	t.Helper()
	doc := dom.NewDocument("https://example.com")
	nodes := []*dom.Node{
		dom.NewNode("div", "id", "a"),
		dom.NewNode("div", "id", "b"),
		dom.NewNode("div", "id", "c"),
	}
	for _, n := range nodes {
		doc.AppendChild(doc.Body, n)
	}
	return &Session{doc: doc}, nodes
}

func TestApplyRemove_ResolvesSameTagSiblingByIndex(t *testing.T) {
	s, nodes := removeFixture(t)

	s.applyRemove(jsRecord{Op: "remove", XPath: "/html/body", Tag: "div", Index: 2})

	if nodes[1].Connected() {
		t.Fatal("indexed sibling still connected")
	}
	if !nodes[0].Connected() || !nodes[2].Connected() {
		t.Fatal("wrong sibling removed")
	}
}

func TestApplyRemove_ZeroIndexFallsBackToFirst(t *testing.T) {
	s, nodes := removeFixture(t)

	s.applyRemove(jsRecord{Op: "remove", XPath: "/html/body", Tag: "div"})

	if nodes[0].Connected() {
		t.Fatal("first sibling still connected")
	}
	if !nodes[1].Connected() || !nodes[2].Connected() {
		t.Fatal("wrong sibling removed")
	}
}

func TestApplyRemove_IndexPastEndIsNoop(t *testing.T) {
	s, nodes := removeFixture(t)

	s.applyRemove(jsRecord{Op: "remove", XPath: "/html/body", Tag: "div", Index: 7})

	for _, n := range nodes {
		if !n.Connected() {
			t.Fatal("out-of-range index removed a sibling")
		}
	}
}
