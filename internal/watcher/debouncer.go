package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid per-path event runs so one save-heavy editor
// session or git checkout becomes one batch instead of hundreds. The last
// event on a path decides its fate, with three refinements: a create
// followed by a modify stays a create, a create followed by a delete
// cancels outright, and a delete followed by a create is a replace,
// surfaced as a modify.
type Debouncer struct {
	window  time.Duration
	pending map[string]*trackedEvent
	mu      sync.Mutex
	output  chan []FileEvent
	timer   *time.Timer
	stopCh  chan struct{}
	stopped bool
}

// trackedEvent remembers the first operation seen for a path within the
// window; coalescing decisions depend on how the run started.
type trackedEvent struct {
	event    FileEvent
	firstOp  Operation
	lastSeen time.Time
}

// NewDebouncer creates a debouncer that emits a coalesced batch once no
// event has arrived for a full window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*trackedEvent),
		output:  make(chan []FileEvent, 10),
		stopCh:  make(chan struct{}),
	}
}

// Add enqueues an event, merging it with any pending event for the same
// path and resetting the flush timer.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	now := time.Now()
	if existing, ok := d.pending[event.Path]; ok {
		merged := merge(existing, event)
		if merged == nil {
			delete(d.pending, event.Path) // create then delete: never happened
		} else {
			existing.event = *merged
			existing.lastSeen = now
		}
	} else {
		d.pending[event.Path] = &trackedEvent{
			event:    event,
			firstOp:  event.Operation,
			lastSeen: now,
		}
	}

	d.scheduleFlush()
}

// merge applies the coalescing rules to a pending event and a newcomer on
// the same path; nil means the pair cancels out.
//
//	CREATE + MODIFY -> CREATE   (still a new file)
//	CREATE + DELETE -> nothing
//	MODIFY + DELETE -> DELETE
//	DELETE + CREATE -> MODIFY   (replaced in place)
func merge(existing *trackedEvent, incoming FileEvent) *FileEvent {
	switch existing.firstOp {
	case OpCreate:
		switch incoming.Operation {
		case OpModify:
			return &existing.event
		case OpDelete:
			return nil
		}
	case OpDelete:
		if incoming.Operation == OpCreate {
			replaced := incoming
			replaced.Operation = OpModify
			return &replaced
		}
	}
	return &incoming
}

// scheduleFlush restarts the window timer; flushing happens only after a
// quiet window with no further events.
func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits the pending batch. The send is non-blocking: a consumer
// that has stalled loses the batch (logged), and the next full scan picks
// the changes up.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]FileEvent, 0, len(d.pending))
	for _, te := range d.pending {
		events = append(events, te.event)
	}
	d.pending = make(map[string]*trackedEvent)

	select {
	case d.output <- events:
	default:
		slog.Warn("debouncer output full, dropping batch", "batch_size", len(events))
	}
}

// Output returns the channel of coalesced batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop halts the timer and closes the output channel; safe to call more
// than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.stopCh)
	close(d.output)
}
