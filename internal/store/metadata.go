package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO), same choice as sqlite_bm25.go
)

// SQLiteMetadataIndex persists VectorRecord metadata and document text keyed
// by symbol id. It is the source of truth FileChecksums and FilesByChecksum
// are reconstructed from. Uses the same WAL-mode SQLite opening idiom as
// sqlite_bm25.go, for a plain metadata table instead of an FTS5 index.
type SQLiteMetadataIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

const metadataSchema = `
CREATE TABLE IF NOT EXISTS symbols (
	symbol_id     TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	kind          TEXT NOT NULL,
	file          TEXT NOT NULL,
	language      TEXT NOT NULL,
	start_line    INTEGER NOT NULL,
	end_line      INTEGER NOT NULL,
	parent        TEXT NOT NULL DEFAULT '',
	signature     TEXT NOT NULL DEFAULT '',
	docstring     TEXT NOT NULL DEFAULT '',
	file_checksum TEXT NOT NULL,
	document      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file);
CREATE INDEX IF NOT EXISTS idx_symbols_checksum ON symbols(file_checksum);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
`

// NewSQLiteMetadataIndex opens (creating if absent) the metadata database at
// path. An empty path opens an in-memory database, useful for tests.
func NewSQLiteMetadataIndex(path string) (*SQLiteMetadataIndex, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create metadata dir: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// The driver ignores the DSN's journal options (see sqlite_bm25.go), so
	// the pragmas are executed.
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000", "PRAGMA synchronous = NORMAL"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set metadata pragma: %w", err)
		}
	}

	if _, err := db.Exec(metadataSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create metadata schema: %w", err)
	}

	return &SQLiteMetadataIndex{db: db, path: path}, nil
}

// Upsert inserts or replaces the metadata+document rows for records.
func (m *SQLiteMetadataIndex) Upsert(ctx context.Context, records []*VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbols (symbol_id, name, kind, file, language, start_line, end_line, parent, signature, docstring, file_checksum, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol_id) DO UPDATE SET
			name=excluded.name, kind=excluded.kind, file=excluded.file, language=excluded.language,
			start_line=excluded.start_line, end_line=excluded.end_line, parent=excluded.parent,
			signature=excluded.signature, docstring=excluded.docstring,
			file_checksum=excluded.file_checksum, document=excluded.document
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		md := r.Metadata
		if _, err := stmt.ExecContext(ctx, r.SymbolID, md.Name, md.Kind, md.File, md.Language,
			md.StartLine, md.EndLine, md.Parent, md.Signature, md.Docstring, md.FileChecksum, r.Document); err != nil {
			return fmt.Errorf("upsert symbol %s: %w", r.SymbolID, err)
		}
	}

	return tx.Commit()
}

// DeleteIDs removes rows by symbol id.
func (m *SQLiteMetadataIndex) DeleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM symbols WHERE symbol_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete symbol %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// IDsByFile returns the symbol ids stored for host_path file.
func (m *SQLiteMetadataIndex) IDsByFile(ctx context.Context, file string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.QueryContext(ctx, `SELECT symbol_id FROM symbols WHERE file = ?`, file)
	if err != nil {
		return nil, fmt.Errorf("query by file: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Get fetches one record's metadata and document by symbol id.
func (m *SQLiteMetadataIndex) Get(ctx context.Context, id string) (RecordMetadata, string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var md RecordMetadata
	var doc string
	row := m.db.QueryRowContext(ctx, `
		SELECT name, kind, file, language, start_line, end_line, parent, signature, docstring, file_checksum, document
		FROM symbols WHERE symbol_id = ?`, id)
	err := row.Scan(&md.Name, &md.Kind, &md.File, &md.Language, &md.StartLine, &md.EndLine,
		&md.Parent, &md.Signature, &md.Docstring, &md.FileChecksum, &doc)
	if err == sql.ErrNoRows {
		return RecordMetadata{}, "", false, nil
	}
	if err != nil {
		return RecordMetadata{}, "", false, fmt.Errorf("get symbol %s: %w", id, err)
	}
	return md, doc, true, nil
}

// FileChecksums reconstructs the host_path -> checksum map from stored
// metadata.
func (m *SQLiteMetadataIndex) FileChecksums(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.QueryContext(ctx, `SELECT DISTINCT file, file_checksum FROM symbols`)
	if err != nil {
		return nil, fmt.Errorf("query file checksums: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var file, checksum string
		if err := rows.Scan(&file, &checksum); err != nil {
			return nil, err
		}
		out[file] = checksum
	}
	return out, rows.Err()
}

// FilesByChecksum returns every host_path currently stored with checksum
//.
func (m *SQLiteMetadataIndex) FilesByChecksum(ctx context.Context, checksum string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.QueryContext(ctx, `SELECT DISTINCT file FROM symbols WHERE file_checksum = ?`, checksum)
	if err != nil {
		return nil, fmt.Errorf("query files by checksum: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Statistics aggregates counts for the store's statistics() contract.
func (m *SQLiteMetadataIndex) Statistics(ctx context.Context) (Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Statistics{ByKind: map[string]int{}, ByLanguage: map[string]int{}}

	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbols`).Scan(&stats.TotalSymbols); err != nil {
		return stats, fmt.Errorf("count symbols: %w", err)
	}
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT file) FROM symbols`).Scan(&stats.UniqueFiles); err != nil {
		return stats, fmt.Errorf("count files: %w", err)
	}

	kindRows, err := m.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM symbols GROUP BY kind`)
	if err != nil {
		return stats, fmt.Errorf("group by kind: %w", err)
	}
	for kindRows.Next() {
		var kind string
		var n int
		if err := kindRows.Scan(&kind, &n); err != nil {
			_ = kindRows.Close()
			return stats, err
		}
		stats.ByKind[kind] = n
	}
	_ = kindRows.Close()

	langRows, err := m.db.QueryContext(ctx, `SELECT language, COUNT(*) FROM symbols GROUP BY language`)
	if err != nil {
		return stats, fmt.Errorf("group by language: %w", err)
	}
	for langRows.Next() {
		var lang string
		var n int
		if err := langRows.Scan(&lang, &n); err != nil {
			_ = langRows.Close()
			return stats, err
		}
		stats.ByLanguage[lang] = n
	}
	_ = langRows.Close()

	if m.path != "" {
		if info, err := os.Stat(m.path); err == nil {
			stats.SizeBytes = info.Size()
		}
	}

	return stats, nil
}

// Clear removes every row.
func (m *SQLiteMetadataIndex) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.db.ExecContext(ctx, `DELETE FROM symbols`)
	return err
}

// Close releases the underlying database handle.
func (m *SQLiteMetadataIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}
