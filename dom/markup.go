package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseFragment parses an HTML fragment in body context and converts the
// element nodes into detached dom subtrees. Text directly inside an element
// becomes that element's Text; top-level bare text is dropped, matching how
// fragment insertion treats stray whitespace.
func ParseFragment(markup string) ([]*Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	parsed, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}

	var out []*Node
	for _, hn := range parsed {
		if hn.Type != html.ElementNode {
			continue
		}
		out = append(out, fromHTML(hn))
	}
	return out, nil
}

func fromHTML(hn *html.Node) *Node {
	n := NewNode(hn.Data)
	for _, a := range hn.Attr {
		n.setAttr(a.Key, a.Val)
	}
	var text strings.Builder
	for c := hn.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			child := fromHTML(c)
			child.Parent = n
			n.Children = append(n.Children, child)
		case html.TextNode:
			text.WriteString(c.Data)
		}
	}
	n.Text = strings.TrimSpace(text.String())
	return n
}
