// Package index orchestrates a project's full and incremental indexing
// runs: ignore-filtered scan, checksum diffing, structural
// symbol extraction, embedding, and persistence into the vector store.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/codesearch/ragex/internal/checksum"
	"github.com/codesearch/ragex/internal/embed"
	"github.com/codesearch/ragex/internal/ragexerr"
	"github.com/codesearch/ragex/internal/store"
	"github.com/codesearch/ragex/internal/symbol"
)

// IgnoreEngine is the subset of internal/ignore.Engine the indexer needs.
type IgnoreEngine interface {
	ShouldIgnore(path string, isDir bool) bool
}

// ProgressEvent reports indexing progress for CLI/daemon display.
type ProgressEvent struct {
	Phase          string // "scan" | "extract" | "embed" | "store"
	FilesTotal     int
	FilesProcessed int
	SymbolsTotal   int
}

// ProgressFunc receives ProgressEvents; nil is valid (no progress reporting).
type ProgressFunc func(ProgressEvent)

// Result summarizes one indexing run.
type Result struct {
	FilesScanned   int
	FilesAdded     int
	FilesModified  int
	FilesRemoved   int
	SymbolsIndexed int
	Duration       time.Duration
}

// Indexer drives a project's indexing pipeline: C1 (ignore) -> C2
// (checksum) -> C3 (symbol extraction) -> C4 (embed) -> C5 (store).
type Indexer struct {
	root     string
	ignore   IgnoreEngine
	sums     *checksum.Checksummer
	extract  *symbol.Extractor
	embedder embed.Embedder
	store    *store.Store

	maxFileSizeBytes int64
	log              *slog.Logger
}

// New builds an Indexer over an already-opened store and embedder.
func New(root string, ignore IgnoreEngine, sums *checksum.Checksummer, extract *symbol.Extractor, embedder embed.Embedder, st *store.Store, maxFileSizeBytes int64, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{
		root:             root,
		ignore:           ignore,
		sums:             sums,
		extract:          extract,
		embedder:         embedder,
		store:            st,
		maxFileSizeBytes: maxFileSizeBytes,
		log:              log,
	}
}

// FullIndex resets the store and indexes every tracked file from scratch
//.
func (ix *Indexer) FullIndex(ctx context.Context, progress ProgressFunc) (Result, error) {
	if err := ix.store.Reset(ctx); err != nil {
		return Result{}, ragexerr.IOError("reset store for full index", err)
	}
	current, err := ix.sums.Scan(ix.root, ix.ignore)
	if err != nil {
		return Result{}, ragexerr.IOError("scan workspace", err)
	}
	files := make([]string, 0, len(current))
	for f := range current {
		files = append(files, f)
	}
	return ix.indexFiles(ctx, files, nil, progress)
}

// IncrementalUpdate diffs the current workspace state against what the
// store already holds and reindexes only what changed.
func (ix *Indexer) IncrementalUpdate(ctx context.Context, progress ProgressFunc) (Result, error) {
	stored, err := ix.store.FileChecksums(ctx)
	if err != nil {
		return Result{}, ragexerr.IOError("load stored checksums", err)
	}
	current, err := ix.sums.Scan(ix.root, ix.ignore)
	if err != nil {
		return Result{}, ragexerr.IOError("scan workspace", err)
	}

	added, removed, modified := checksum.Diff(current, stored)

	for _, f := range removed {
		if _, err := ix.store.DeleteByFile(ctx, f); err != nil {
			return Result{}, ragexerr.IOError(fmt.Sprintf("delete removed file %s", f), err)
		}
	}

	toIndex := append(append([]string{}, added...), modified...)
	result, err := ix.indexFiles(ctx, toIndex, modified, progress)
	if err != nil {
		return result, err
	}
	result.FilesAdded = len(added)
	result.FilesModified = len(modified)
	result.FilesRemoved = len(removed)
	return result, nil
}

// ApplyChange indexes or removes a single file, the unit of work the change
// queue (C7) hands the indexer after its debounce window closes.
func (ix *Indexer) ApplyChange(ctx context.Context, hostPath string, removed bool) error {
	if removed {
		_, err := ix.store.DeleteByFile(ctx, hostPath)
		return err
	}
	if _, err := ix.store.DeleteByFile(ctx, hostPath); err != nil {
		return ragexerr.IOError("delete stale records before reindex", err)
	}
	_, err := ix.indexFiles(ctx, []string{hostPath}, []string{hostPath}, nil)
	return err
}

// indexFiles extracts symbols, embeds them, and writes them to the store
// for exactly the given files. modifiedFiles (a subset of files, or nil)
// get a DeleteByFile pass first so stale symbols from a shrunk file don't
// linger.
func (ix *Indexer) indexFiles(ctx context.Context, files []string, modifiedFiles []string, progress ProgressFunc) (Result, error) {
	start := time.Now()
	report(progress, ProgressEvent{Phase: "scan", FilesTotal: len(files)})

	for _, f := range modifiedFiles {
		if _, err := ix.store.DeleteByFile(ctx, f); err != nil {
			return Result{}, ragexerr.IOError(fmt.Sprintf("delete stale records for %s", f), err)
		}
	}

	extractable := make([]string, 0, len(files))
	for _, f := range files {
		if ix.withinSizeLimit(f) {
			extractable = append(extractable, f)
		} else {
			ix.log.Warn("skipping oversized file", "file", f, "limit_bytes", ix.maxFileSizeBytes)
		}
	}

	report(progress, ProgressEvent{Phase: "extract", FilesTotal: len(extractable)})
	fileResults := ix.extract.ExtractAll(ctx, extractable, true)

	var symbols []*symbol.Symbol
	for i, fr := range fileResults {
		if fr.Err != nil {
			ix.log.Warn("symbol extraction failed", "file", fr.Path, "error", fr.Err)
			continue
		}
		symbols = append(symbols, fr.Symbols...)
		report(progress, ProgressEvent{Phase: "extract", FilesTotal: len(fileResults), FilesProcessed: i + 1, SymbolsTotal: len(symbols)})
	}

	if len(symbols) == 0 {
		return Result{FilesScanned: len(files), Duration: time.Since(start)}, nil
	}

	texts := make([]string, len(symbols))
	for i, s := range symbols {
		texts[i] = embed.BuildSymbolContext(s)
	}

	report(progress, ProgressEvent{Phase: "embed", SymbolsTotal: len(symbols)})
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Result{}, ragexerr.Internal("embed symbols", err)
	}
	if len(vectors) != len(symbols) {
		return Result{}, ragexerr.Internal("embedder returned mismatched vector count", nil)
	}

	records := make([]*store.VectorRecord, len(symbols))
	for i, s := range symbols {
		records[i] = &store.VectorRecord{
			SymbolID: s.ID,
			Vector:   vectors[i],
			Metadata: store.RecordMetadata{
				Name:         s.Name,
				Kind:         string(s.Kind),
				File:         s.File,
				Language:     s.Language,
				StartLine:    s.StartLine,
				EndLine:      s.EndLine,
				Parent:       s.Parent,
				Signature:    s.Signature,
				Docstring:    s.Docstring,
				FileChecksum: s.FileChecksum,
			},
			Document: s.CodeSnippet,
		}
	}

	report(progress, ProgressEvent{Phase: "store", SymbolsTotal: len(records)})
	if err := ix.store.Add(ctx, records); err != nil {
		return Result{}, ragexerr.IOError("write symbols to store", err)
	}
	if err := ix.store.Flush(); err != nil {
		return Result{}, ragexerr.IOError("flush vector store", err)
	}

	return Result{
		FilesScanned:   len(files),
		SymbolsIndexed: len(records),
		Duration:       time.Since(start),
	}, nil
}

func (ix *Indexer) withinSizeLimit(path string) bool {
	if ix.maxFileSizeBytes <= 0 {
		return true
	}
	info, err := os.Stat(path)
	if err != nil {
		return true // let extraction surface the error
	}
	return info.Size() <= ix.maxFileSizeBytes
}

func report(fn ProgressFunc, ev ProgressEvent) {
	if fn != nil {
		fn(ev)
	}
}
