// Package mutation defines the structured types emitted by a watched
// document. These are the public API contract: any consumer (the engine,
// sinks, custom pipelines) imports this package to receive and process
// document mutations.
package mutation

// Op is the type of document mutation observed.
type Op string

const (
	OpInsert   Op = "insert"   // node inserted (includes serialised subtree HTML)
	OpRemove   Op = "remove"   // node removed
	OpAttr     Op = "attr"     // attribute written
	OpAttrDel  Op = "attr_del" // attribute removed
	OpText     Op = "text"     // character data modified
	OpNavigate Op = "navigate" // new browsing context requested
	OpMarkup   Op = "markup"   // bulk markup fragment inserted
)

// Record is a single document mutation. Node is the opaque handle into the
// host tree; it is owned by the host, never by consumers. XPath is the
// serialisable reference used when the record crosses a process boundary.
type Record struct {
	Op       Op     `json:"op"`
	Node     any    `json:"-"`
	XPath    string `json:"xpath,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Name     string `json:"name,omitempty"`      // attribute name for attr/attr_del
	Value    string `json:"value,omitempty"`     // new value, or target URL for navigate
	OldValue string `json:"old_value,omitempty"` // previous value
	HTML     string `json:"html,omitempty"`      // serialised fragment for insert/markup
}

// Batch is the atomic unit delivered to the watcher. One batch = all
// mutations the host reported in a single notification.
type Batch struct {
	ID        string   `json:"id"` // UUIDv7
	PageID    string   `json:"page_id"`
	Seq       uint64   `json:"seq"` // monotonically increasing per page
	Records   []Record `json:"records"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
}
