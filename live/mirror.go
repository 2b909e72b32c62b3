package live

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mugenyume/mugenblock/dom"
)

// snapshotNode is one element in the page snapshot emitted by the injected
// script.
type snapshotNode struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs"`
	Pos      string            `json:"pos"`
	Z        string            `json:"z"`
	X        float64           `json:"x"`
	Y        float64           `json:"y"`
	W        float64           `json:"w"`
	H        float64           `json:"h"`
	Text     string            `json:"text"`
	Children []snapshotNode    `json:"children"`
}

type snapshot struct {
	URL  string       `json:"url"`
	VW   float64      `json:"vw"`
	VH   float64      `json:"vh"`
	Root snapshotNode `json:"root"`
}

// buildMirror turns a page snapshot into the in-process tree the engine
// classifies. Construction happens before observers and interceptors attach,
// so the emitted records go nowhere.
func buildMirror(raw []byte) (*dom.Document, error) {
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("live: decode snapshot: %w", err)
	}

	doc := dom.NewDocument(snap.URL)
	doc.Viewport = dom.Rect{W: snap.VW, H: snap.VH}

	applyStyle(doc.Root, snap.Root)
	for _, child := range snap.Root.Children {
		switch child.Tag {
		case "head":
			fillNode(doc, doc.Head, child)
		case "body":
			fillNode(doc, doc.Body, child)
		default:
			attach(doc, doc.Root, child)
		}
	}
	return doc, nil
}

// fillNode populates an existing skeleton node from its snapshot.
func fillNode(doc *dom.Document, n *dom.Node, snap snapshotNode) {
	for name, value := range snap.Attrs {
		doc.SetAttribute(n, name, value)
	}
	applyStyle(n, snap)
	n.Text = snap.Text
	for _, child := range snap.Children {
		attach(doc, n, child)
	}
}

// attach converts one snapshot subtree and appends it under parent.
func attach(doc *dom.Document, parent *dom.Node, snap snapshotNode) *dom.Node {
	pairs := make([]string, 0, len(snap.Attrs)*2)
	for name, value := range snap.Attrs {
		pairs = append(pairs, name, value)
	}
	n := dom.NewNode(snap.Tag, pairs...)
	applyStyle(n, snap)
	n.Text = snap.Text
	added, err := doc.AppendChild(parent, n)
	if err != nil || added == nil {
		return nil
	}
	for _, child := range snap.Children {
		attach(doc, n, child)
	}
	return n
}

func applyStyle(n *dom.Node, snap snapshotNode) {
	setComputed(n, snap.Pos, snap.Z)
	n.Bounds = dom.Rect{X: snap.X, Y: snap.Y, W: snap.W, H: snap.H}
}

func setComputed(n *dom.Node, pos, z string) {
	if pos == "" {
		return
	}
	if zi, err := strconv.Atoi(z); err == nil {
		n.SetComputed(pos, zi)
	} else {
		n.SetPosition(pos)
	}
}

// resolveXPath walks a /html/body/div[2]-style reference down the mirror.
// Returns nil when the path no longer matches; mirror drift is tolerated,
// the next snapshot or mutation self-corrects.
func resolveXPath(doc *dom.Document, xpath string) *dom.Node {
	if xpath == "" || xpath[0] != '/' {
		return nil
	}
	segs := strings.Split(xpath[1:], "/")
	if len(segs) == 0 || segs[0] != doc.Root.Tag {
		return nil
	}
	n := doc.Root
	for _, seg := range segs[1:] {
		tag, idx := splitSegment(seg)
		if tag == "" {
			return nil
		}
		var found *dom.Node
		count := 0
		for _, c := range n.Children {
			if c.Tag != tag {
				continue
			}
			count++
			if count == idx {
				found = c
				break
			}
		}
		if found == nil {
			return nil
		}
		n = found
	}
	return n
}

func splitSegment(seg string) (string, int) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, 1
	}
	end := strings.IndexByte(seg, ']')
	if end <= open {
		return "", 0
	}
	idx, err := strconv.Atoi(seg[open+1 : end])
	if err != nil || idx < 1 {
		return "", 0
	}
	return seg[:open], idx
}
