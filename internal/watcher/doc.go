// Package watcher feeds the continuous-indexing pipeline: it watches a
// workspace for filesystem events, coalesces bursts, and queues debounced
// batches for the indexer.
//
// Three layers build on each other. HybridWatcher produces raw events,
// preferring fsnotify and falling back to polling where inotify is
// unavailable (network mounts, some container volumes); it filters
// through the workspace's ignore engine and flags .mcpignore and config
// edits as their own operations. Debouncer coalesces per-path event runs
// (create+modify collapses to create, create+delete cancels out) over a
// short window. ChangeQueue adds the long debounce window the indexer
// wants, serializing batches so a running reindex is never overlapped.
//
// A typical consumer wires the layers like the daemon does:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Start(ctx, workspace); err != nil {
//	    return err
//	}
//	for batch := range w.Events() {
//	    for _, event := range batch {
//	        // enqueue into a ChangeQueue keyed by event.Operation
//	    }
//	}
package watcher
