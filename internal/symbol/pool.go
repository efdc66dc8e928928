package symbol

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// minWorkers and maxWorkers bound the extraction worker pool.
const (
	minWorkers = 1
	maxWorkers = 16
)

// targetBatchSeconds is the per-batch parse-time target the batching
// heuristic aims for.
const targetBatchSeconds = 1.0

// bytesPerSecondEstimate is a rough parse-throughput estimate used only to
// size batches; it need not be precise, just stable enough to keep batches
// from growing unbounded on large files.
const bytesPerSecondEstimate = 2_000_000

// FileResult pairs one file's path with its extracted symbols or error.
type FileResult struct {
	Path    string
	Symbols []*Symbol
	Err     error
}

// workerCount auto-selects the pool size from CPU count, bounded [1, 16].
func workerCount() int {
	n := runtime.NumCPU()
	if n < minWorkers {
		return minWorkers
	}
	if n > maxWorkers {
		return maxWorkers
	}
	return n
}

// ExtractAll runs Extract across every path in files using a bounded worker
// pool, sized from available cores. Files are grouped into size-based
// batches aimed at ~1s of estimated parse time each, then dispatched across
// the pool; per-file failures never abort the overall run.
func (e *Extractor) ExtractAll(ctx context.Context, files []string, includeDocsAndComments bool) []FileResult {
	batches := batchBySize(files, bytesPerSecondEstimate*targetBatchSeconds)

	results := make([]FileResult, len(files))
	index := make(map[string]int, len(files))
	for i, f := range files {
		index[f] = i
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount())

	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			for _, path := range batch {
				select {
				case <-gctx.Done():
					return nil
				default:
				}
				syms, err := e.Extract(gctx, path, includeDocsAndComments)
				if err != nil {
					slog.Warn("symbol extraction failed", slog.String("path", path), slog.String("error", err.Error()))
				}
				results[index[path]] = FileResult{Path: path, Symbols: syms, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// batchBySize groups files so each batch's total estimated size stays near
// targetBytesPerBatch, largest files first so a single oversized file gets
// its own batch rather than stalling a shared one.
func batchBySize(files []string, targetBytesPerBatch float64) [][]string {
	type sized struct {
		path string
		size int64
	}
	entries := make([]sized, 0, len(files))
	for _, f := range files {
		info, err := os.Stat(f)
		var size int64
		if err == nil {
			size = info.Size()
		}
		entries = append(entries, sized{path: f, size: size})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].size > entries[j].size })

	var batches [][]string
	var current []string
	var currentSize int64
	for _, e := range entries {
		if currentSize > 0 && float64(currentSize+e.size) > targetBytesPerBatch {
			batches = append(batches, current)
			current = nil
			currentSize = 0
		}
		current = append(current, e.path)
		currentSize += e.size
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
