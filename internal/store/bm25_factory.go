package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// BM25Backend selects the keyword-index implementation.
type BM25Backend string

const (
	// BM25BackendSQLite is the default: FTS5 with WAL mode, safe for the
	// daemon's concurrent readers.
	BM25BackendSQLite BM25Backend = "sqlite"

	// BM25BackendBleve uses bleve v2 over BoltDB; its exclusive file lock
	// limits it to one process.
	BM25BackendBleve BM25Backend = "bleve"
)

// NewBM25IndexWithBackend creates a BM25Index at basePath (extension is
// appended per backend: .db for SQLite, .bleve for bleve). An empty
// basePath builds an in-memory index for tests; an empty backend means
// SQLite.
func NewBM25IndexWithBackend(basePath string, config BM25Config, backend string) (BM25Index, error) {
	switch backend {
	case string(BM25BackendSQLite), "":
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteBM25Index(path, config)

	case string(BM25BackendBleve):
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveBM25Index(path, config)

	default:
		return nil, fmt.Errorf("unknown BM25 backend: %s (valid options: sqlite, bleve)", backend)
	}
}

// DetectBM25Backend reports which backend built the index at basePath, or
// "" when none exists; lets a reopened project keep its original backend.
func DetectBM25Backend(basePath string) BM25Backend {
	if fileExists(basePath + ".db") {
		return BM25BackendSQLite
	}
	if dirExists(basePath + ".bleve") {
		return BM25BackendBleve
	}
	return ""
}

// GetBM25IndexPath resolves the on-disk path for a backend under dataDir.
func GetBM25IndexPath(dataDir string, backend string) string {
	basePath := filepath.Join(dataDir, "bm25")
	if backend == string(BM25BackendBleve) {
		return basePath + ".bleve"
	}
	return basePath + ".db"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
