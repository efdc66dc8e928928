package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ChangeCallback processes one debounced batch of changed files. It
// receives the host paths that were added/modified and the ones removed;
// the indexer is expected to call store.DeleteByFile before reindexing
// each changed path.
type ChangeCallback func(ctx context.Context, changed, removed []string)

// ChangeQueue is the change-queue component: it wraps a
// Debouncer with a default 60s window, tracks which host paths are
// currently pending, and runs the callback on one batch at a time. File
// events arriving while a callback is running are debounced into later
// batches that wait in the debouncer's output buffer (ten batches) rather
// than racing the in-flight one; once that buffer is full, further
// batches are dropped with a warning (see Debouncer.flush).
type ChangeQueue struct {
	debouncer *Debouncer
	callback  ChangeCallback
	window    time.Duration

	mu      sync.Mutex
	running bool
	stopped bool
	log     *slog.Logger

	doneCh chan struct{}
}

// NewChangeQueue builds a ChangeQueue with the given debounce window
// and callback, invoked once per coalesced batch.
func NewChangeQueue(window time.Duration, callback ChangeCallback, log *slog.Logger) *ChangeQueue {
	if window <= 0 {
		window = 60 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &ChangeQueue{
		debouncer: NewDebouncer(window),
		callback:  callback,
		window:    window,
		log:       log,
		doneCh:    make(chan struct{}),
	}
}

// AddFile enqueues a change for path (create or modify).
func (q *ChangeQueue) AddFile(path string) {
	q.debouncer.Add(FileEvent{Path: path, Operation: OpModify, Timestamp: time.Now()})
}

// RemoveFile enqueues a removal for path.
func (q *ChangeQueue) RemoveFile(path string) {
	q.debouncer.Add(FileEvent{Path: path, Operation: OpDelete, Timestamp: time.Now()})
}

// Run drains debounced batches and invokes the callback, serializing
// batches one at a time: a batch that arrives while the previous callback
// is still running waits for it to finish rather than running concurrently,
// so a long-running reindex never overlaps with another.
func (q *ChangeQueue) Run(ctx context.Context) {
	defer close(q.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case events, ok := <-q.debouncer.Output():
			if !ok {
				return
			}
			if len(events) == 0 {
				continue
			}
			q.runCallback(ctx, events)
		}
	}
}

func (q *ChangeQueue) runCallback(ctx context.Context, events []FileEvent) {
	q.mu.Lock()
	q.running = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}()

	var changed, removed []string
	for _, e := range events {
		switch e.Operation {
		case OpDelete:
			removed = append(removed, e.Path)
		default:
			changed = append(changed, e.Path)
		}
	}
	if len(changed) == 0 && len(removed) == 0 {
		return
	}
	q.log.Debug("processing change batch", "changed", len(changed), "removed", len(removed))
	q.callback(ctx, changed, removed)
}

// Shutdown stops accepting new events, waits for any in-flight callback to
// finish, and returns once the queue is fully drained.
func (q *ChangeQueue) Shutdown() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	q.debouncer.Stop()
	<-q.doneCh
}

// Pending reports whether a callback is currently running.
func (q *ChangeQueue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}
