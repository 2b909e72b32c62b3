// Package dom provides the in-memory host tree the engine classifies.
//
// The tree is deliberately host-shaped rather than engine-shaped: mutating
// entry points are exposed as swappable function fields on Document so an
// interception layer can wrap them while retaining the original operation as
// a fallback delegate, and every default entry point reports what it did to
// registered observers as mutation records. The engine only ever holds Node
// pointers as opaque handles.
package dom

import (
	"errors"
	"strings"

	"github.com/mugenyume/mugenblock/mutation"
)

// ErrDetached is returned when a structural operation targets a node that is
// no longer part of the document.
var ErrDetached = errors.New("dom: node is detached")

// Context is the handle returned by a successful Navigate: a new browsing
// context opened for the given URL. A nil Context means the navigation was
// suppressed.
type Context struct {
	URL string
}

// Observer receives mutation records after each default entry point runs.
type Observer func([]mutation.Record)

// ClickEvent is dispatched through capture listeners before bubble
// listeners. A listener cancels the click by calling PreventDefault and
// StopPropagation.
type ClickEvent struct {
	Target *Node

	defaultPrevented   bool
	propagationStopped bool
}

// PreventDefault suppresses the click's default action.
func (e *ClickEvent) PreventDefault() { e.defaultPrevented = true }

// StopPropagation stops the event from reaching later listeners.
func (e *ClickEvent) StopPropagation() { e.propagationStopped = true }

// DefaultPrevented reports whether a listener cancelled the click.
func (e *ClickEvent) DefaultPrevented() bool { return e.defaultPrevented }

// ClickListener handles a dispatched click.
type ClickListener func(*ClickEvent)

// Document is the root of one host tree plus its mutable capability
// surface. Create one per page with NewDocument.
type Document struct {
	Root *Node // html
	Head *Node
	Body *Node

	URL      string
	Viewport Rect
	TopLevel bool // false inside a nested frame

	// Capability entry points. The defaults mutate the tree and notify
	// observers; an interceptor replaces these fields, keeping the previous
	// value as its delegate.
	NavigateFn     func(url string) (*Context, error)
	AppendChildFn  func(parent, child *Node) (*Node, error)
	SetAttributeFn func(n *Node, name, value string) error
	InsertMarkupFn func(target *Node, markup string) error

	observers        []Observer
	captureListeners []ClickListener
	bubbleListeners  []ClickListener
	mediaListeners   map[*Node][]func(event string)
}

// NewDocument builds an empty html/head/body skeleton for the given URL.
func NewDocument(url string) *Document {
	d := &Document{
		URL:      url,
		Viewport: Rect{W: 1280, H: 800},
		TopLevel: true,
	}
	d.Root = NewNode("html")
	d.Root.doc = d
	d.Head = NewNode("head")
	d.Body = NewNode("body")
	d.Head.Parent = d.Root
	d.Body.Parent = d.Root
	d.Head.adoptInto(d)
	d.Body.adoptInto(d)
	d.Root.Children = []*Node{d.Head, d.Body}

	d.NavigateFn = d.navigate
	d.AppendChildFn = d.appendChild
	d.SetAttributeFn = d.setAttribute
	d.InsertMarkupFn = d.insertMarkup
	return d
}

// Observe registers an observer for mutation records.
func (d *Document) Observe(fn Observer) {
	d.observers = append(d.observers, fn)
}

func (d *Document) emit(recs ...mutation.Record) {
	if len(d.observers) == 0 || len(recs) == 0 {
		return
	}
	for _, fn := range d.observers {
		fn(recs)
	}
}

// Navigate requests a new browsing context through the current entry point.
func (d *Document) Navigate(url string) (*Context, error) {
	return d.NavigateFn(url)
}

// AppendChild attaches child under parent through the current entry point.
func (d *Document) AppendChild(parent, child *Node) (*Node, error) {
	return d.AppendChildFn(parent, child)
}

// SetAttribute writes an attribute through the current entry point.
func (d *Document) SetAttribute(n *Node, name, value string) error {
	return d.SetAttributeFn(n, name, value)
}

// InsertMarkup splices a markup fragment under target through the current
// entry point.
func (d *Document) InsertMarkup(target *Node, markup string) error {
	return d.InsertMarkupFn(target, markup)
}

func (d *Document) navigate(url string) (*Context, error) {
	d.emit(mutation.Record{Op: mutation.OpNavigate, Value: url})
	return &Context{URL: url}, nil
}

func (d *Document) appendChild(parent, child *Node) (*Node, error) {
	if parent == nil || !parent.Connected() {
		return nil, ErrDetached
	}
	if child.Parent != nil {
		child.Parent.removeChild(child)
	}
	child.Parent = parent
	child.adoptInto(d)
	parent.Children = append(parent.Children, child)
	d.emit(mutation.Record{
		Op:    mutation.OpInsert,
		Node:  child,
		XPath: child.XPath(),
		Tag:   child.Tag,
	})
	return child, nil
}

func (d *Document) setAttribute(n *Node, name, value string) error {
	if n == nil {
		return ErrDetached
	}
	old, _ := n.Attr(name)
	n.setAttr(name, value)
	d.emit(mutation.Record{
		Op:       mutation.OpAttr,
		Node:     n,
		XPath:    n.XPath(),
		Tag:      n.Tag,
		Name:     strings.ToLower(name),
		Value:    value,
		OldValue: old,
	})
	return nil
}

func (d *Document) insertMarkup(target *Node, markup string) error {
	if target == nil || !target.Connected() {
		return ErrDetached
	}
	nodes, err := ParseFragment(markup)
	if err != nil {
		return err
	}
	recs := make([]mutation.Record, 0, len(nodes))
	for _, n := range nodes {
		n.Parent = target
		n.adoptInto(d)
		target.Children = append(target.Children, n)
		recs = append(recs, mutation.Record{
			Op:    mutation.OpMarkup,
			Node:  n,
			XPath: n.XPath(),
			Tag:   n.Tag,
			HTML:  markup,
		})
	}
	d.emit(recs...)
	return nil
}

// RemoveNode detaches n from the tree. Observers see a remove record. It is
// the structural half of the two-phase hide; callers treat ErrDetached as
// benign.
func (d *Document) RemoveNode(n *Node) error {
	if n == nil || n.Parent == nil || !n.Connected() {
		return ErrDetached
	}
	xpath := n.XPath()
	n.Parent.removeChild(n)
	d.emit(mutation.Record{Op: mutation.OpRemove, XPath: xpath, Tag: n.Tag})
	return nil
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			break
		}
	}
	child.Parent = nil
	child.doc = nil
}

// AddClickListener registers a click listener. Capture listeners observe the
// click before any bubble listener can act on it.
func (d *Document) AddClickListener(capture bool, fn ClickListener) {
	if capture {
		d.captureListeners = append(d.captureListeners, fn)
	} else {
		d.bubbleListeners = append(d.bubbleListeners, fn)
	}
}

// DispatchClick runs a click through capture then bubble listeners and
// reports whether the default action survived.
func (d *Document) DispatchClick(target *Node) *ClickEvent {
	ev := &ClickEvent{Target: target}
	for _, fn := range d.captureListeners {
		fn(ev)
		if ev.propagationStopped {
			return ev
		}
	}
	for _, fn := range d.bubbleListeners {
		fn(ev)
		if ev.propagationStopped {
			return ev
		}
	}
	return ev
}

// AddMediaListener registers fn for media state transitions (pause, play,
// fullscreenchange) on target.
func (d *Document) AddMediaListener(target *Node, fn func(event string)) {
	if d.mediaListeners == nil {
		d.mediaListeners = make(map[*Node][]func(string))
	}
	d.mediaListeners[target] = append(d.mediaListeners[target], fn)
}

// DispatchMediaEvent notifies media listeners registered for target.
func (d *Document) DispatchMediaEvent(target *Node, event string) {
	for _, fn := range d.mediaListeners[target] {
		fn(event)
	}
}

// ByID returns the first connected element with the given id, or nil.
func (d *Document) ByID(id string) *Node {
	var found *Node
	d.Walk(func(n *Node) bool {
		if n.ID() == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Walk visits every element depth-first. Return false from fn to stop.
func (d *Document) Walk(fn func(*Node) bool) {
	walk(d.Root, fn)
}

func walk(n *Node, fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
