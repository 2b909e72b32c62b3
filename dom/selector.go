package dom

import "strings"

// Selector is a parsed simple selector. The supported subset covers what
// fast rules need and what the rendering engine can match without style
// computation:
//
//	tag  .class  #id  tag.class  tag#id
//	[attr]  [attr=val]  [attr^=prefix]  [attr*=substr]
//	.class*token / #id*token  (token containment in class/id, used by the
//	generic short-token rules)
type Selector struct {
	Tag      string
	Class    string // exact class token
	ID       string // exact id
	ClassSub string // substring of any class token
	IDSub    string // substring of the id
	Attr     string
	AttrVal  string
	AttrOp   byte // 0=present, '='=exact, '^'=prefix, '*'=substring
}

// ParseSelector parses a single simple selector. Unsupported syntax yields a
// selector that matches nothing.
func ParseSelector(s string) Selector {
	var sel Selector
	s = strings.TrimSpace(s)

	if i := strings.IndexByte(s, '['); i >= 0 && strings.HasSuffix(s, "]") {
		attr := s[i+1 : len(s)-1]
		s = s[:i]
		switch {
		case strings.Contains(attr, "^="):
			parts := strings.SplitN(attr, "^=", 2)
			sel.Attr, sel.AttrVal, sel.AttrOp = parts[0], unquote(parts[1]), '^'
		case strings.Contains(attr, "*="):
			parts := strings.SplitN(attr, "*=", 2)
			sel.Attr, sel.AttrVal, sel.AttrOp = parts[0], unquote(parts[1]), '*'
		case strings.Contains(attr, "="):
			parts := strings.SplitN(attr, "=", 2)
			sel.Attr, sel.AttrVal, sel.AttrOp = parts[0], unquote(parts[1]), '='
		default:
			sel.Attr = attr
		}
		sel.Attr = strings.ToLower(strings.TrimSpace(sel.Attr))
	}

	switch {
	case strings.HasPrefix(s, "."):
		sel.Class = s[1:]
	case strings.HasPrefix(s, "#"):
		sel.ID = s[1:]
	case strings.Contains(s, "."):
		parts := strings.SplitN(s, ".", 2)
		sel.Tag, sel.Class = strings.ToLower(parts[0]), parts[1]
	case strings.Contains(s, "#"):
		parts := strings.SplitN(s, "#", 2)
		sel.Tag, sel.ID = strings.ToLower(parts[0]), parts[1]
	default:
		sel.Tag = strings.ToLower(s)
	}
	return sel
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// Matches reports whether n matches the selector.
func (sel Selector) Matches(n *Node) bool {
	if sel.Tag != "" && n.Tag != sel.Tag {
		return false
	}
	if sel.ID != "" && n.ID() != sel.ID {
		return false
	}
	if sel.Class != "" && !hasClassToken(n, sel.Class) {
		return false
	}
	if sel.IDSub != "" && !strings.Contains(strings.ToLower(n.ID()), sel.IDSub) {
		return false
	}
	if sel.ClassSub != "" && !classContains(n, sel.ClassSub) {
		return false
	}
	if sel.Attr != "" {
		v, ok := n.Attr(sel.Attr)
		if !ok {
			return false
		}
		switch sel.AttrOp {
		case '=':
			if v != sel.AttrVal {
				return false
			}
		case '^':
			if !strings.HasPrefix(v, sel.AttrVal) {
				return false
			}
		case '*':
			if !strings.Contains(v, sel.AttrVal) {
				return false
			}
		}
	}
	return sel.Tag != "" || sel.ID != "" || sel.Class != "" ||
		sel.IDSub != "" || sel.ClassSub != "" || sel.Attr != ""
}

func hasClassToken(n *Node, token string) bool {
	for _, t := range n.ClassList() {
		if t == token {
			return true
		}
	}
	return false
}

func classContains(n *Node, sub string) bool {
	for _, t := range n.ClassList() {
		if strings.Contains(strings.ToLower(t), sub) {
			return true
		}
	}
	return false
}

// QueryAll returns every connected element matching any of the selectors.
func (d *Document) QueryAll(sels []Selector) []*Node {
	var out []*Node
	d.Walk(func(n *Node) bool {
		for _, sel := range sels {
			if sel.Matches(n) {
				out = append(out, n)
				break
			}
		}
		return true
	})
	return out
}
