package daemon

import (
	"context"
	"path/filepath"
	"time"

	"github.com/codesearch/ragex/internal/checksum"
	"github.com/codesearch/ragex/internal/ragexerr"
	"github.com/codesearch/ragex/internal/watcher"
)

// continuousIndexer owns the watcher and the debounced change queue for
// one workspace: filesystem events are checksummed, queued, coalesced
// over the debounce window, and applied through the indexer under the
// daemon's index mutex.
type continuousIndexer struct {
	d      *Daemon
	watch  *watcher.HybridWatcher
	queue  *watcher.ChangeQueue
	cancel context.CancelFunc
	done   chan struct{}
}

func (d *Daemon) handleContinuousIndex(args []string) Response {
	if d.storeErr != nil {
		return Fail(d.storeErr)
	}
	if len(args) > 0 {
		requested := filepath.Clean(args[0])
		if requested != d.identity.WorkspacePath {
			return Fail(ragexerr.InvalidInput("daemon serves a different workspace", nil))
		}
	}

	d.watchMu.Lock()
	defer d.watchMu.Unlock()
	if d.continuous != nil {
		return OK("continuous indexing already running", nil)
	}

	ci, err := startContinuous(d)
	if err != nil {
		return Fail(err)
	}
	d.continuous = ci
	return OK("continuous indexing started", nil)
}

func startContinuous(d *Daemon) (*continuousIndexer, error) {
	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	if err != nil {
		return nil, ragexerr.IOError("create filesystem watcher", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ci := &continuousIndexer{d: d, watch: w, cancel: cancel, done: make(chan struct{})}

	window := time.Duration(d.cfg.Watch.DebounceWindowSeconds) * time.Second
	ci.queue = watcher.NewChangeQueue(window, ci.applyBatch, d.log)

	if err := w.Start(ctx, d.cfg.WorkspacePath); err != nil {
		cancel()
		return nil, ragexerr.IOError("start filesystem watcher", err)
	}

	go ci.queue.Run(ctx)
	go ci.forward(ctx)
	d.log.Info("continuous indexing started", "workspace", d.cfg.WorkspacePath, "debounce", window)
	return ci, nil
}

// forward feeds watcher event batches into the change queue. Only source
// files the extractor understands are enqueued, and adds/modifies are
// checksummed up front: an event whose file vanished before it could be
// hashed is dropped and left for the next full scan.
func (ci *continuousIndexer) forward(ctx context.Context) {
	defer close(ci.done)
	for {
		select {
		case <-ctx.Done():
			return
		case events, ok := <-ci.watch.Events():
			if !ok {
				return
			}
			for _, ev := range events {
				ci.handleEvent(ctx, ev)
			}
		case err, ok := <-ci.watch.Errors():
			if !ok {
				return
			}
			ci.d.log.Warn("watcher error", "error", err)
		}
	}
}

func (ci *continuousIndexer) handleEvent(ctx context.Context, ev watcher.FileEvent) {
	abs := ev.Path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(ci.d.cfg.WorkspacePath, ev.Path)
	}

	switch ev.Operation {
	case watcher.OpGitignoreChange, watcher.OpConfigChange:
		// Rule changes reconcile through a full diff pass: newly-ignored
		// files surface as removed, newly-unignored ones as added.
		ci.d.log.Info("ignore rules changed, scheduling reconcile", "path", abs)
		go ci.reconcile(ctx)
		return
	case watcher.OpDelete:
		ci.queue.RemoveFile(abs)
		return
	case watcher.OpRename:
		if ev.OldPath != "" {
			old := ev.OldPath
			if !filepath.IsAbs(old) {
				old = filepath.Join(ci.d.cfg.WorkspacePath, ev.OldPath)
			}
			ci.queue.RemoveFile(old)
		}
	}

	if _, ok := ci.d.extractor.LanguageForPath(abs); !ok {
		return
	}
	if _, err := checksum.Checksum(abs); err != nil {
		ci.d.log.Debug("dropping event for unreadable file", "path", abs, "error", err)
		return
	}
	ci.queue.AddFile(abs)
}

// applyBatch is the debounced callback: it takes the index mutex so a
// batch never overlaps a client-requested index run.
func (ci *continuousIndexer) applyBatch(ctx context.Context, changed, removed []string) {
	d := ci.d
	d.indexMu.Lock() // waits behind any client-requested index run
	defer d.indexMu.Unlock()

	d.state.Store(int32(StateIndexing))
	defer d.state.CompareAndSwap(int32(StateIndexing), int32(StateReady))

	ci.logMoves(ctx, changed, removed)

	for _, path := range removed {
		if err := d.indexer.ApplyChange(ctx, path, true); err != nil {
			d.log.Warn("remove from index failed", "path", path, "error", err)
		}
	}
	for _, path := range changed {
		if err := d.indexer.ApplyChange(ctx, path, false); err != nil {
			d.log.Warn("reindex failed", "path", path, "error", err)
		}
	}
	d.saveMetadata(ctx)
	d.log.Info("change batch applied", "changed", len(changed), "removed", len(removed))
}

// logMoves detects renames inside one batch: an added path whose checksum
// matches a removed path's stored checksum is a move. The records are
// still replaced (symbol ids embed the file path), but the pairing is
// logged for traceability.
func (ci *continuousIndexer) logMoves(ctx context.Context, changed, removed []string) {
	if len(changed) == 0 || len(removed) == 0 {
		return
	}
	removedSet := make(map[string]bool, len(removed))
	for _, r := range removed {
		removedSet[r] = true
	}
	for _, c := range changed {
		sum, err := checksum.Checksum(c)
		if err != nil {
			continue
		}
		prior, err := ci.d.store.FilesByChecksum(ctx, sum)
		if err != nil {
			continue
		}
		for _, p := range prior {
			if removedSet[p] {
				ci.d.log.Info("detected file move", "from", p, "to", c)
			}
		}
	}
}

// reconcile runs an incremental update after ignore rules changed.
func (ci *continuousIndexer) reconcile(ctx context.Context) {
	d := ci.d
	d.indexMu.Lock()
	defer d.indexMu.Unlock()
	if _, _, err := d.decide(ctx, false, nil); err != nil {
		d.log.Warn("reconcile after ignore change failed", "error", err)
	}
}

func (ci *continuousIndexer) stop() {
	ci.cancel()
	_ = ci.watch.Stop()
	ci.queue.Shutdown()
	<-ci.done
}
