package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codesearch/ragex/internal/checksum"
	"github.com/codesearch/ragex/internal/config"
	"github.com/codesearch/ragex/internal/embed"
	"github.com/codesearch/ragex/internal/ignore"
	"github.com/codesearch/ragex/internal/index"
	"github.com/codesearch/ragex/internal/project"
	"github.com/codesearch/ragex/internal/ragexerr"
	"github.com/codesearch/ragex/internal/rerank"
	"github.com/codesearch/ragex/internal/scanner"
	"github.com/codesearch/ragex/internal/search"
	"github.com/codesearch/ragex/internal/store"
	"github.com/codesearch/ragex/internal/symbol"
)

// State is the daemon lifecycle state.
type State int32

const (
	StateInit State = iota
	StateLoading
	StateReady
	StateIndexing
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateIndexing:
		return "indexing"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Daemon owns one instance of every subsystem for a single project and
// routes RPC commands to them. All mutable state hangs off this struct;
// nothing reads process-wide globals except the socket path default.
type Daemon struct {
	cfg      *config.Config
	identity project.Identity
	dataRoot string
	log      *slog.Logger

	ignoreEngine *ignore.Engine
	sums         *checksum.Checksummer
	extractor    *symbol.Extractor
	embedder     embed.Embedder
	store        *store.Store
	indexer      *index.Indexer
	searcher     *search.Service

	// storeErr holds a fatal per-project configuration_mismatch (stored
	// dimension != embedder dimension). The daemon stays up but refuses
	// search and index commands until the project is rebuilt.
	storeErr error

	state    atomic.Int32
	started  time.Time
	commands atomic.Int64

	indexMu sync.Mutex

	watchMu    sync.Mutex
	continuous *continuousIndexer
}

// New wires up every subsystem for the project at cfg.WorkspacePath,
// transitioning Init -> Loading -> Ready. Grammars, the embedder, and the
// store are loaded eagerly so request latency has no cold-start variance.
func New(ctx context.Context, cfg *config.Config, dataRoot string, log *slog.Logger) (*Daemon, error) {
	if log == nil {
		log = slog.Default()
	}
	d := &Daemon{cfg: cfg, dataRoot: dataRoot, log: log, started: time.Now()}
	d.state.Store(int32(StateLoading))

	id, err := project.New(cfg.UserID, cfg.WorkspacePath)
	if err != nil {
		return nil, ragexerr.ConfigMismatch("resolve project identity", err)
	}
	d.identity = id
	log = log.With("project_id", id.ID)
	d.log = log

	extraExclude := append([]string{}, cfg.Paths.ExtraExclude...)
	extraExclude = append(extraExclude, d.submoduleExcludes()...)

	d.ignoreEngine, err = ignore.New(cfg.WorkspacePath, cfg.Paths.DisableDefaults, extraExclude)
	if err != nil {
		return nil, ragexerr.IOError("load ignore files", err)
	}

	d.sums, err = checksum.New(cfg.WorkspacePath)
	if err != nil {
		return nil, err
	}

	d.extractor = symbol.NewExtractor()

	d.embedder, err = embed.NewEmbedderFromConfig(ctx, cfg.Embeddings)
	if err != nil {
		return nil, ragexerr.ConfigMismatch("initialize embedder", err)
	}

	d.openStore()

	d.indexer = index.New(
		cfg.WorkspacePath, d.ignoreEngine, d.sums, d.extractor, d.embedder,
		d.store, cfg.Paths.MaxFileSizeBytes, log,
	)
	d.searcher = search.New(
		cfg.WorkspacePath, d.store, d.embedder, rerank.New(cfg.Rerank),
		d.ignoreEngine, cfg.Regex, log,
	)

	d.state.Store(int32(StateReady))
	log.Info("daemon ready", "workspace", cfg.WorkspacePath)
	return d, nil
}

// openStore opens the project's vector store, retaining a dimension
// mismatch as a fatal per-project error instead of failing daemon startup:
// the daemon must keep serving so clients receive the remediation message.
func (d *Daemon) openStore() {
	storeDir := d.identity.StoreDir(d.dataRoot)
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		d.storeErr = ragexerr.IOError("create store directory", err)
		return
	}

	if meta, ok, err := project.LoadMetadata(d.identity, d.dataRoot); err == nil && ok {
		if meta.EmbeddingDimensions != 0 && meta.EmbeddingDimensions != d.embedder.Dimensions() {
			mismatch := store.ErrDimensionMismatch{Expected: meta.EmbeddingDimensions, Got: d.embedder.Dimensions()}
			d.storeErr = ragexerr.ConfigMismatch(mismatch.Error(), mismatch).
				WithSuggestion(fmt.Sprintf("rebuild the project: ragex index %s --force", d.cfg.WorkspacePath))
			return
		}
	}

	hnsw := store.VectorStoreConfig{
		M:              d.cfg.HNSW.M,
		EfConstruction: d.cfg.HNSW.ConstructionEF,
		EfSearch:       d.cfg.HNSW.SearchEF,
	}
	st, err := store.Open(storeDir, d.embedder.Dimensions(), d.embedder.ModelName(), hnsw)
	if err != nil {
		var mismatch store.ErrDimensionMismatch
		if errors.As(err, &mismatch) {
			d.storeErr = ragexerr.ConfigMismatch(mismatch.Error(), mismatch).
				WithSuggestion(fmt.Sprintf("rebuild the project: ragex index %s --force", d.cfg.WorkspacePath))
			return
		}
		d.storeErr = ragexerr.IOError("open vector store", err)
		return
	}
	d.store = st
}

// submoduleExcludes reports uninitialized git submodules as ignore
// patterns so scans skip their empty directories; each one is logged with
// a warning (the content only appears after `git submodule update`).
func (d *Daemon) submoduleExcludes() []string {
	subs, err := scanner.DiscoverSubmodules(d.cfg.WorkspacePath, d.cfg.Submodules)
	if err != nil {
		d.log.Warn("submodule discovery failed", "error", err)
		return nil
	}
	var patterns []string
	for _, s := range subs {
		if s.Initialized {
			d.log.Debug("including initialized submodule", "name", s.Name, "path", s.Path)
			continue
		}
		d.log.Warn("skipping uninitialized submodule", "name", s.Name, "path", s.Path)
		patterns = append(patterns, "/"+strings.TrimPrefix(s.Path, "/")+"/")
	}
	return patterns
}

// State reports the current lifecycle state.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

// Handle routes one request. Every command is safe to call concurrently;
// indexing itself is serialized by indexMu.
func (d *Daemon) Handle(ctx context.Context, req Request) Response {
	d.commands.Add(1)

	if s := d.State(); s == StateDraining || s == StateClosed {
		return Fail(ragexerr.Busy("daemon is shutting down"))
	}

	switch req.Command {
	case CmdPing:
		return OK("pong", nil)
	case CmdStatus:
		return d.handleStatus()
	case CmdSearch:
		return d.handleSearch(ctx, req.Args)
	case CmdIndex:
		return d.handleIndex(ctx, req.Args)
	case CmdContinuousIndex:
		return d.handleContinuousIndex(req.Args)
	case CmdInit:
		return d.handleInit()
	case CmdLs:
		return HandleLs(d.dataRoot, d.cfg.UserID, req.Args)
	case CmdRm:
		return HandleRm(d.dataRoot, d.cfg.UserID, req.Args)
	case CmdRegister, CmdUnregister:
		return HandleRegister(req.Command, req.Args)
	default:
		return Fail(ragexerr.InvalidInput(fmt.Sprintf("unknown command %q", req.Command), nil))
	}
}

// StatusData is the payload of the `status` command.
type StatusData struct {
	ProjectID     string `json:"project_id"`
	WorkspacePath string `json:"workspace_path"`
	State         string `json:"state"`
	Ready         bool   `json:"ready"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	CommandCount  int64  `json:"command_count"`
	EmbedderModel string `json:"embedder_model"`
	Dimensions    int    `json:"dimensions"`
	Watching      bool   `json:"watching"`
	FilesIndexed  int    `json:"files_indexed"`
	TotalSymbols  int    `json:"total_symbols"`
	StoreError    string `json:"store_error,omitempty"`
}

func (d *Daemon) handleStatus() Response {
	data := StatusData{
		ProjectID:     d.identity.ID,
		WorkspacePath: d.cfg.WorkspacePath,
		State:         d.State().String(),
		Ready:         d.State() == StateReady || d.State() == StateIndexing,
		UptimeSeconds: int64(time.Since(d.started).Seconds()),
		CommandCount:  d.commands.Load(),
		EmbedderModel: d.embedder.ModelName(),
		Dimensions:    d.embedder.Dimensions(),
		Watching:      d.watching(),
	}
	if d.storeErr != nil {
		data.StoreError = d.storeErr.Error()
	}
	if d.store != nil {
		if stats, err := d.store.Statistics(context.Background()); err == nil {
			data.FilesIndexed = stats.UniqueFiles
			data.TotalSymbols = stats.TotalSymbols
		}
	}
	return OK(fmt.Sprintf("%s %s uptime=%ds commands=%d", data.ProjectID, data.State, data.UptimeSeconds, data.CommandCount), data)
}

func (d *Daemon) handleSearch(ctx context.Context, args []string) Response {
	if d.storeErr != nil {
		return Fail(d.storeErr)
	}

	parsed, err := ParseSearchArgs(args)
	if err != nil {
		return Fail(err)
	}
	if parsed.IndexDir != "" {
		requested := filepath.Clean(parsed.IndexDir)
		if requested != d.identity.StoreDir(d.dataRoot) {
			return Fail(ragexerr.InvalidInput(fmt.Sprintf("this daemon's index lives at %s, not %s", d.identity.StoreDir(d.dataRoot), requested), nil))
		}
	}

	resp, err := d.searcher.Search(ctx, parsed.Query, search.Options{
		Mode:          parsed.Mode,
		Limit:         parsed.Limit,
		MinSimilarity: parsed.MinSimilarity,
	})
	if err != nil {
		return Fail(err)
	}

	// A search during a running index serves results from the store as it
	// stands, flagged in the response rather than returning empty.
	if d.State() == StateIndexing {
		resp.Warning = "indexing in progress; results may be incomplete"
	}

	var out Response
	if parsed.JSON {
		blob, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return Fail(ragexerr.Internal("encode search results", err))
		}
		out = OK(string(blob), resp)
	} else {
		out = OK(formatSearchText(resp), resp)
	}
	return out
}

// IndexData is the payload of the `index` command.
type IndexData struct {
	Full           bool              `json:"full"`
	FilesScanned   int               `json:"files_scanned"`
	FilesAdded     int               `json:"files_added"`
	FilesModified  int               `json:"files_modified"`
	FilesRemoved   int               `json:"files_removed"`
	SymbolsIndexed int               `json:"symbols_indexed"`
	DurationMS     int64             `json:"duration_ms"`
	Stats          *store.Statistics `json:"stats,omitempty"`
}

func (d *Daemon) handleIndex(ctx context.Context, args []string) Response {
	if d.storeErr != nil {
		return Fail(d.storeErr)
	}

	parsed, err := ParseIndexArgs(args)
	if err != nil {
		return Fail(err)
	}
	if parsed.WorkspacePath != "" {
		requested := filepath.Clean(parsed.WorkspacePath)
		if requested != d.identity.WorkspacePath {
			return Fail(ragexerr.InvalidInput(fmt.Sprintf("daemon serves %s, not %s", d.identity.WorkspacePath, requested), nil))
		}
	}

	if !d.indexMu.TryLock() {
		return Fail(ragexerr.Busy("an indexing operation is already running"))
	}
	defer d.indexMu.Unlock()

	result, full, err := d.decide(ctx, parsed.Force, nil)
	if err != nil {
		return Fail(err)
	}

	data := IndexData{
		Full:           full,
		FilesScanned:   result.FilesScanned,
		FilesAdded:     result.FilesAdded,
		FilesModified:  result.FilesModified,
		FilesRemoved:   result.FilesRemoved,
		SymbolsIndexed: result.SymbolsIndexed,
		DurationMS:     result.Duration.Milliseconds(),
	}
	if parsed.Stats {
		if stats, err := d.store.Statistics(ctx); err == nil {
			data.Stats = &stats
		}
	}

	mode := "incremental"
	if full {
		mode = "full"
	}
	stdout := fmt.Sprintf("indexed %d files (%s), %d symbols in %dms",
		result.FilesScanned, mode, result.SymbolsIndexed, data.DurationMS)
	return OK(stdout, data)
}

// IndexWithProgress runs one index pass with a progress callback, for
// CLI-driven runs that render a live progress display. It takes the same
// mutex as the RPC index path.
func (d *Daemon) IndexWithProgress(ctx context.Context, force bool, progress index.ProgressFunc) (index.Result, bool, error) {
	if d.storeErr != nil {
		return index.Result{}, false, d.storeErr
	}
	if !d.indexMu.TryLock() {
		return index.Result{}, false, ragexerr.Busy("an indexing operation is already running")
	}
	defer d.indexMu.Unlock()
	return d.decide(ctx, force, progress)
}

// Statistics exposes the store's aggregate counts for `index --stats` and
// `status` rendering.
func (d *Daemon) Statistics(ctx context.Context) (store.Statistics, error) {
	if d.store == nil {
		return store.Statistics{}, d.storeErr
	}
	return d.store.Statistics(ctx)
}

// Embedder reports the daemon's embedder model and dimension.
func (d *Daemon) Embedder() (model string, dimensions int) {
	return d.embedder.ModelName(), d.embedder.Dimensions()
}

// decide picks the indexing strategy: full index when forced or no collection
// exists, incremental otherwise, no-op when nothing changed. Callers hold
// indexMu.
func (d *Daemon) decide(ctx context.Context, force bool, progress index.ProgressFunc) (index.Result, bool, error) {
	d.state.Store(int32(StateIndexing))
	defer d.state.CompareAndSwap(int32(StateIndexing), int32(StateReady))

	stored, err := d.store.FileChecksums(ctx)
	if err != nil {
		return index.Result{}, false, err
	}

	full := force || len(stored) == 0
	var result index.Result
	if full {
		result, err = d.indexer.FullIndex(ctx, progress)
	} else {
		result, err = d.indexer.IncrementalUpdate(ctx, progress)
	}
	if err != nil {
		return result, full, err
	}

	d.saveMetadata(ctx)
	return result, full, nil
}

// saveMetadata refreshes project_info.json after a successful index run.
func (d *Daemon) saveMetadata(ctx context.Context) {
	meta, ok, err := project.LoadMetadata(d.identity, d.dataRoot)
	if err != nil || !ok {
		meta = project.NewMetadata(d.identity, d.embedder.ModelName(), d.embedder.Dimensions(), time.Now())
	}
	meta.LastIndexedAt = time.Now()
	if stats, err := d.store.Statistics(ctx); err == nil {
		meta.FilesIndexed = stats.UniqueFiles
	}
	if err := meta.Save(d.identity, d.dataRoot); err != nil {
		d.log.Warn("save project metadata failed", "error", err)
	}
	if err := os.WriteFile(d.identity.LegacyModelPath(d.dataRoot), []byte(d.embedder.ModelName()+"\n"), 0o644); err != nil {
		d.log.Debug("write legacy model file failed", "error", err)
	}
}

func (d *Daemon) handleInit() Response {
	path := filepath.Join(d.cfg.WorkspacePath, ignore.IgnoreFileName)
	if _, err := os.Stat(path); err == nil {
		return OK(fmt.Sprintf("%s already exists", path), nil)
	}
	if err := os.WriteFile(path, []byte(ignore.DefaultTemplate), 0o644); err != nil {
		return Fail(ragexerr.IOError(fmt.Sprintf("write %s", path), err))
	}
	d.ignoreEngine.NotifyFileChanged(path)
	return OK(fmt.Sprintf("created %s", path), nil)
}

// Shutdown drains the daemon: Ready/Indexing -> Draining -> Closed. A
// running index gets a grace period before the store is closed anyway.
func (d *Daemon) Shutdown(grace time.Duration) {
	d.state.Store(int32(StateDraining))

	d.watchMu.Lock()
	if d.continuous != nil {
		d.continuous.stop()
		d.continuous = nil
	}
	d.watchMu.Unlock()

	acquired := make(chan struct{})
	go func() {
		d.indexMu.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		d.indexMu.Unlock()
	case <-time.After(grace):
		d.log.Warn("shutdown grace period elapsed with index still running")
	}

	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.log.Warn("close store failed", "error", err)
		}
	}
	if d.embedder != nil {
		_ = d.embedder.Close()
	}
	d.state.Store(int32(StateClosed))
}

func (d *Daemon) watching() bool {
	d.watchMu.Lock()
	defer d.watchMu.Unlock()
	return d.continuous != nil
}

// formatSearchText renders results as the human-readable stdout variant.
func formatSearchText(resp *search.Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s\n", resp.Mode)
	if resp.Warning != "" {
		fmt.Fprintf(&b, "warning: %s\n", resp.Warning)
	}
	for _, h := range resp.Semantic {
		fmt.Fprintf(&b, "%s:%d  %s %s  score=%.3f (base %.3f)\n", h.File, h.Line, h.Kind, h.Name, h.RerankedScore, h.BaseScore)
	}
	for _, h := range resp.Lexical {
		fmt.Fprintf(&b, "%s:%d:%d: %s\n", h.File, h.LineNumber, h.Column, h.LineText)
	}
	if resp.Total() == 0 {
		b.WriteString(resp.Guidance)
		b.WriteString("\n")
	}
	return b.String()
}
