// Package ignore implements the hierarchical ignore engine: a
// gitignore-syntax matcher over `.mcpignore` files discovered throughout a
// workspace, with a default exclusion set, hot reload, and a path-decision
// cache that invalidates precisely on the ignore files it depends on.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codesearch/ragex/internal/gitignore"
)

// IgnoreFileName is the ignore-file name recognized throughout a workspace.
const IgnoreFileName = ".mcpignore"

// decisionCacheSize bounds the LRU path->decision cache.
const decisionCacheSize = 10000

// MaxIgnoreFileBytes is the size cap on a single ignore file.
const MaxIgnoreFileBytes = 1 << 20 // 1 MiB

// MaxPatternsPerFile truncates a pathological ignore file.
const MaxPatternsPerFile = 10000

// ValidationError describes one malformed or rejected line in an ignore file.
type ValidationError struct {
	Line    int
	Pattern string
	Message string
}

// FileReport is returned by ValidateAll per ignore file.
type FileReport struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []string
}

// ignoreFile tracks one loaded `.mcpignore`: its compiled matcher plus the
// validation state collected while loading it.
type ignoreFile struct {
	path      string // absolute path to the ignore file
	dir       string // absolute path to its containing directory (the rule base)
	matcher   *gitignore.Matcher
	errors    []ValidationError
	warnings  []string
	mu        sync.RWMutex
}

// Engine is the hierarchical ignore matcher: default exclusions at the
// root plus every .mcpignore on the path to a queried file.
// It is safe for concurrent use; mutating operations (notify, add, remove)
// serialize on mu, reads consult the decision cache without taking it.
type Engine struct {
	root string // absolute workspace root

	mu    sync.RWMutex
	files map[string]*ignoreFile // ignore file path -> compiled rules, ordered by dir depth at match time

	defaultMatcher *gitignore.Matcher // built-in exclusions, always applied at root
	disableDefault bool

	decisions *lru.Cache[string, cachedDecision]
	// deps maps an ignore file path to the set of cached decision keys that
	// consulted it, so NotifyFileChanged can evict precisely: invalidation
	// is a set sweep, not a pattern traversal.
	deps map[string]map[string]struct{}
}

type cachedDecision struct {
	ignored bool
}

// New creates an Engine rooted at workspaceRoot. It performs the initial
// recursive discovery of `.mcpignore` files.
func New(workspaceRoot string, disableDefaults bool, extraPatterns []string) (*Engine, error) {
	abs, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, cachedDecision](decisionCacheSize)
	if err != nil {
		return nil, err
	}

	def := gitignore.New()
	if !disableDefaults {
		for _, p := range DefaultExcludes {
			def.AddPattern(p)
		}
	}
	for _, p := range extraPatterns {
		def.AddPattern(p)
	}

	e := &Engine{
		root:           abs,
		files:          make(map[string]*ignoreFile),
		defaultMatcher: def,
		disableDefault: disableDefaults,
		decisions:      cache,
		deps:           make(map[string]map[string]struct{}),
	}

	if err := e.discover(); err != nil {
		return nil, err
	}
	return e, nil
}

// discover walks the workspace root looking for .mcpignore files. Errors
// walking a subtree are swallowed per the "never abort loading" rule for
// ignore-file problems; only a root-walk failure is returned.
func (e *Engine) discover() error {
	return filepath.Walk(e.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == e.root {
				return err
			}
			return nil // skip unreadable entries, don't abort the walk
		}
		if info.IsDir() {
			return nil
		}
		if info.Name() == IgnoreFileName {
			e.load(path)
		}
		return nil
	})
}

// load (re)compiles one ignore file, scoped to its containing directory, and
// records validation state. Malformed lines are skipped, never fatal.
func (e *Engine) load(path string) {
	dir := filepath.Dir(path)
	rel, err := filepath.Rel(e.root, dir)
	if err != nil {
		rel = ""
	}
	if rel == "." {
		rel = ""
	}
	rel = filepath.ToSlash(rel)

	f := &ignoreFile{path: path, dir: dir, matcher: gitignore.New()}

	info, statErr := os.Stat(path)
	if statErr != nil {
		f.errors = append(f.errors, ValidationError{Message: "cannot stat ignore file: " + statErr.Error()})
	} else if info.Size() > MaxIgnoreFileBytes {
		f.errors = append(f.errors, ValidationError{Message: "ignore file exceeds 1MiB, rejected"})
	} else {
		fh, openErr := os.Open(path)
		if openErr != nil {
			f.errors = append(f.errors, ValidationError{Message: "cannot open ignore file: " + openErr.Error()})
		} else {
			defer fh.Close()
			scanner := bufio.NewScanner(fh)
			lineNo := 0
			patternCount := 0
			for scanner.Scan() {
				lineNo++
				line := scanner.Text()
				trimmed := strings.TrimSpace(line)
				if trimmed == "" || strings.HasPrefix(trimmed, "#") {
					continue
				}
				if patternCount >= MaxPatternsPerFile {
					f.warnings = append(f.warnings, "pattern count exceeds 10000, remaining patterns truncated")
					break
				}
				f.matcher.AddPatternWithBase(line, rel)
				patternCount++
			}
		}
	}

	e.mu.Lock()
	e.files[path] = f
	e.mu.Unlock()
}

// NotifyFileChanged invalidates and reloads the ignore file at path, then
// evicts every cached decision that depended on it.
func (e *Engine) NotifyFileChanged(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		e.mu.Lock()
		delete(e.files, path)
		e.mu.Unlock()
	} else {
		e.load(path)
	}
	e.evictDependents(path)
}

func (e *Engine) evictDependents(ignoreFilePath string) {
	e.mu.Lock()
	keys := e.deps[ignoreFilePath]
	delete(e.deps, ignoreFilePath)
	e.mu.Unlock()

	for key := range keys {
		e.decisions.Remove(key)
	}
}

// orderedFiles returns ignore files whose directory is an ancestor of path,
// shallowest first, so deeper rules are applied last (and so override).
func (e *Engine) orderedFiles(path string) []*ignoreFile {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var matched []*ignoreFile
	for _, f := range e.files {
		if f.dir == e.root || strings.HasPrefix(path, f.dir+string(filepath.Separator)) || path == f.dir {
			matched = append(matched, f)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return len(matched[i].dir) < len(matched[j].dir)
	})
	return matched
}

// ShouldIgnore reports whether path (absolute, under the workspace root)
// should be excluded from indexing. isDir indicates whether path names a
// directory (directory-only patterns need this to match correctly).
func (e *Engine) ShouldIgnore(path string, isDir bool) bool {
	relKey, err := filepath.Rel(e.root, path)
	if err != nil {
		relKey = path
	}
	relKey = filepath.ToSlash(relKey)

	cacheKey := relKey
	if isDir {
		cacheKey += "/"
	}
	if d, ok := e.decisions.Get(cacheKey); ok {
		return d.ignored
	}

	// Build one combined matcher: default exclusions first, then every
	// relevant ignore file shallowest-to-deepest, so later rules (deeper
	// ignore files, and later lines within one file) can re-include what
	// an earlier rule excluded, deeper files override shallower ones.
	combined := gitignore.New()
	combined.AppendFrom(e.defaultMatcher)

	var touched []string
	for _, f := range e.orderedFiles(path) {
		f.mu.RLock()
		combined.AppendFrom(f.matcher)
		f.mu.RUnlock()
		touched = append(touched, f.path)
	}

	ignored := combined.Match(relKey, isDir)

	e.decisions.Add(cacheKey, cachedDecision{ignored: ignored})

	e.mu.Lock()
	for _, fp := range touched {
		if e.deps[fp] == nil {
			e.deps[fp] = make(map[string]struct{})
		}
		e.deps[fp][cacheKey] = struct{}{}
	}
	e.mu.Unlock()

	return ignored
}

// PatternsFor returns the patterns that apply to path, root first, in the
// precedence order, root first.
func (e *Engine) PatternsFor(path string) []string {
	var out []string
	out = append(out, e.defaultMatcher.Patterns()...)
	for _, f := range e.orderedFiles(path) {
		f.mu.RLock()
		out = append(out, f.matcher.Patterns()...)
		f.mu.RUnlock()
	}
	return out
}

// ValidateAll returns the per-ignore-file validation report.
func (e *Engine) ValidateAll() map[string]FileReport {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]FileReport, len(e.files))
	for path, f := range e.files {
		f.mu.RLock()
		out[path] = FileReport{
			Valid:    len(f.errors) == 0,
			Errors:   append([]ValidationError(nil), f.errors...),
			Warnings: append([]string(nil), f.warnings...),
		}
		f.mu.RUnlock()
	}
	return out
}
