package dom

import (
	"strconv"
	"strings"
)

// Style is the computed-style subset the engine cares about. The host (live
// adapter or test fixture) fills it in; the in-memory tree never computes
// layout itself.
type Style struct {
	Position string // "static", "relative", "absolute", "fixed", "sticky"
	ZIndex   int
	ZAuto    bool // true when z-index is auto; ZIndex is meaningless then
}

// Positioned reports whether the element is taken out of normal flow in the
// way ancestor escalation cares about.
func (s Style) Positioned() bool {
	return s.Position == "fixed" || s.Position == "absolute"
}

// Rect is an axis-aligned bounding box in viewport coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Intersects reports whether the two rects overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.X+o.W <= r.X+r.W && o.Y+o.H <= r.Y+r.H
}

type inlineProp struct {
	value     string
	important bool
}

// Node is one element in the host tree. The engine holds Node pointers as
// opaque handles; it never owns them. Mutating entry points live on Document
// so the capability layer can wrap them.
type Node struct {
	Tag      string
	Parent   *Node
	Children []*Node
	Text     string // direct text content of this element

	Computed Style
	Bounds   Rect

	attrs  map[string]string
	inline map[string]inlineProp
	doc    *Document
}

// NewNode creates a detached element. Attribute pairs are name, value.
func NewNode(tag string, attrPairs ...string) *Node {
	n := &Node{Tag: strings.ToLower(tag)}
	n.Computed.ZAuto = true
	for i := 0; i+1 < len(attrPairs); i += 2 {
		n.setAttr(attrPairs[i], attrPairs[i+1])
	}
	return n
}

func (n *Node) setAttr(name, value string) {
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	n.attrs[strings.ToLower(name)] = value
}

func (n *Node) removeAttr(name string) {
	delete(n.attrs, strings.ToLower(name))
}

// Attr returns the attribute value and whether it is present.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.attrs[strings.ToLower(name)]
	return v, ok
}

// AttrNames returns the attribute names present on the element.
func (n *Node) AttrNames() []string {
	names := make([]string, 0, len(n.attrs))
	for name := range n.attrs {
		names = append(names, name)
	}
	return names
}

// ID returns the id attribute, or "".
func (n *Node) ID() string {
	v, _ := n.Attr("id")
	return v
}

// ClassList returns the whitespace-split class tokens.
func (n *Node) ClassList() []string {
	v, _ := n.Attr("class")
	return strings.Fields(v)
}

// Connected reports whether the node is still attached to its document.
func (n *Node) Connected() bool {
	for p := n; p != nil; p = p.Parent {
		if p.doc != nil && p == p.doc.Root {
			return true
		}
	}
	return false
}

// Document returns the owning document, or nil for a detached subtree.
func (n *Node) Document() *Document {
	for p := n; p != nil; p = p.Parent {
		if p.doc != nil {
			return p.doc
		}
	}
	return nil
}

// ContainsNode reports whether other is n or a descendant of n.
func (n *Node) ContainsNode(other *Node) bool {
	for p := other; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// VisibleText returns the trimmed text content of the subtree.
func (n *Node) VisibleText() string {
	var b strings.Builder
	n.collectText(&b)
	return strings.TrimSpace(b.String())
}

func (n *Node) collectText(b *strings.Builder) {
	if t := strings.TrimSpace(n.Text); t != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t)
	}
	for _, c := range n.Children {
		c.collectText(b)
	}
}

// SetInlineStyle writes one inline style property.
func (n *Node) SetInlineStyle(prop, value string, important bool) {
	if n.inline == nil {
		n.inline = make(map[string]inlineProp)
	}
	n.inline[prop] = inlineProp{value: value, important: important}
}

// InlineStyle returns the inline value for a property, or "". Properties
// written with SetInlineStyle shadow declarations from the style attribute.
func (n *Node) InlineStyle(prop string) string {
	if p, ok := n.inline[prop]; ok {
		return p.value
	}
	style, ok := n.Attr("style")
	if !ok {
		return ""
	}
	for _, decl := range strings.Split(style, ";") {
		name, value, found := strings.Cut(decl, ":")
		if found && strings.EqualFold(strings.TrimSpace(name), prop) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// InlineImportant reports whether the property is set at important priority.
func (n *Node) InlineImportant(prop string) bool {
	return n.inline[prop].important
}

// SetComputed records the computed position and stacking order the host
// resolved for the element.
func (n *Node) SetComputed(position string, zIndex int) {
	n.Computed.Position = position
	n.Computed.ZIndex = zIndex
	n.Computed.ZAuto = false
}

// SetPosition records the computed position, leaving z-index auto.
func (n *Node) SetPosition(position string) {
	n.Computed.Position = position
}

// ForceHide applies the two-property visual suppression: display and
// visibility, both at maximal override priority. Layout state is otherwise
// untouched; structural detachment is a separate, deferred concern.
func (n *Node) ForceHide() {
	n.SetInlineStyle("display", "none", true)
	n.SetInlineStyle("visibility", "hidden", true)
}

// Hidden reports whether ForceHide has been applied.
func (n *Node) Hidden() bool {
	return n.InlineStyle("display") == "none" && n.InlineImportant("display")
}

// adoptInto marks a subtree as owned by doc.
func (n *Node) adoptInto(doc *Document) {
	n.doc = doc
	for _, c := range n.Children {
		c.adoptInto(doc)
	}
}

// XPath returns a serialisable /html/body/div[2]-style reference for logging
// and wire records. Index is 1-based among same-tag siblings.
func (n *Node) XPath() string {
	if n.Parent == nil {
		return "/" + n.Tag
	}
	idx := 1
	for _, sib := range n.Parent.Children {
		if sib == n {
			break
		}
		if sib.Tag == n.Tag {
			idx++
		}
	}
	if idx > 1 {
		return n.Parent.XPath() + "/" + n.Tag + "[" + strconv.Itoa(idx) + "]"
	}
	return n.Parent.XPath() + "/" + n.Tag
}
