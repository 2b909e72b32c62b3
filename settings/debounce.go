package settings

import (
	"context"
	"sync"
	"time"
)

// flushInterval is the write-buffer debounce window. User actions mutate the
// in-memory view immediately; disk sees one upsert per site per window.
const flushInterval = 500 * time.Millisecond

// writer buffers site upserts and flushes them on a timer or on Close.
type writer struct {
	store *Store

	mu      sync.Mutex
	pending map[string]SiteSettings
	timer   *time.Timer
	closed  bool
}

func newWriter(store *Store) *writer {
	return &writer{
		store:   store,
		pending: make(map[string]SiteSettings),
	}
}

// put buffers one site's settings for the next flush.
func (w *writer) put(set SiteSettings) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending[set.Site] = set
	if w.timer == nil {
		w.timer = time.AfterFunc(flushInterval, w.flushTimer)
	}
}

// peek returns the buffered value for a site, if any. Reads must see writes
// that have not reached disk yet.
func (w *writer) peek(site string) (SiteSettings, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	set, ok := w.pending[site]
	return set, ok
}

// drop removes any buffered value for sites cleared wholesale.
func (w *writer) dropAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = make(map[string]SiteSettings)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *writer) flushTimer() {
	w.Flush(context.Background())
}

// Flush writes all buffered upserts now.
func (w *writer) Flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]SiteSettings)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	for _, set := range batch {
		if err := w.store.upsertSite(ctx, set); err != nil {
			w.store.logger.Error("settings: flush failed",
				"site", set.Site, "error", err)
		}
	}
}

// Close flushes and stops accepting writes.
func (w *writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.Flush(context.Background())
}
