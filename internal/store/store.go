package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// maxAddBatch bounds a single underlying Add call.
const maxAddBatch = 5000

// Store is the persistent vector store: an ANN
// index over symbol embeddings, a BM25 keyword index over the same
// documents, and a metadata/document table, combined behind one facade that
// validates the embedder dimension and drives checksum-based incremental
// indexing.
type Store struct {
	mu sync.RWMutex

	dir    string
	vector VectorStore
	bm25   BM25Index
	meta   *SQLiteMetadataIndex

	dimensions int
	modelName  string
}

// Open opens or creates the vector store rooted at dir (typically a
// project's chroma_db directory) for an embedder
// of the given dimension and model name. It is fatal (ErrDimensionMismatch)
// if a pre-existing store's stamped dimension differs from dimensions.
func Open(dir string, dimensions int, modelName string, hnswCfg VectorStoreConfig) (*Store, error) {
	hnswCfg.Dimensions = dimensions

	vectorPath := filepath.Join(dir, "vectors.gob")
	if existing, err := ReadHNSWStoreDimensions(vectorPath); err == nil && existing != 0 && existing != dimensions {
		return nil, ErrDimensionMismatch{Expected: existing, Got: dimensions}
	}

	vs, err := NewHNSWStore(hnswCfg)
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	if err := vs.Load(vectorPath); err != nil {
		// HNSWStore.Load returns an error for a missing file; Open ignores
		// any Load error and keeps the store as Load left it, so a fresh
		// project starts empty.
		_ = err
	}

	bm25, err := NewBM25IndexWithBackend(filepath.Join(dir, "bm25"), DefaultBM25Config(), string(BM25BackendSQLite))
	if err != nil {
		return nil, fmt.Errorf("open bm25 index: %w", err)
	}

	meta, err := NewSQLiteMetadataIndex(filepath.Join(dir, "metadata.db"))
	if err != nil {
		return nil, fmt.Errorf("open metadata index: %w", err)
	}

	return &Store{
		dir:        dir,
		vector:     vs,
		bm25:       bm25,
		meta:       meta,
		dimensions: dimensions,
		modelName:  modelName,
	}, nil
}

// Add upserts records by symbol_id, splitting internally at maxAddBatch
//.
func (s *Store) Add(ctx context.Context, records []*VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for start := 0; start < len(records); start += maxAddBatch {
		end := start + maxAddBatch
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		ids := make([]string, len(batch))
		vecs := make([][]float32, len(batch))
		docs := make([]*Document, len(batch))
		for i, r := range batch {
			if len(r.Vector) != s.dimensions {
				return ErrDimensionMismatch{Expected: s.dimensions, Got: len(r.Vector)}
			}
			ids[i] = r.SymbolID
			vecs[i] = r.Vector
			docs[i] = &Document{ID: r.SymbolID, Content: r.Document}
		}

		if err := s.vector.Add(ctx, ids, vecs); err != nil {
			return fmt.Errorf("add vectors: %w", err)
		}
		if err := s.bm25.Index(ctx, docs); err != nil {
			return fmt.Errorf("add bm25 documents: %w", err)
		}
		if err := s.meta.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("add metadata: %w", err)
		}
	}
	return nil
}

// Search performs cosine-distance nearest-neighbor search over k results,
// optionally filtered by where.Language.
func (s *Store) Search(ctx context.Context, query []float32, k int, where *Where) ([]SearchHit, error) {
	if len(query) != s.dimensions {
		return nil, ErrDimensionMismatch{Expected: s.dimensions, Got: len(query)}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Over-fetch when a post-filter is active so k survivors are still likely.
	fetchK := k
	if where != nil && where.Language != "" {
		fetchK = k * 4
		if fetchK < k+20 {
			fetchK = k + 20
		}
	}

	results, err := s.vector.Search(ctx, query, fetchK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		md, doc, ok, err := s.meta.Get(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("load metadata for %s: %w", r.ID, err)
		}
		if !ok {
			continue
		}
		if where != nil && where.Language != "" && md.Language != where.Language {
			continue
		}
		hits = append(hits, SearchHit{SymbolID: r.ID, Distance: r.Distance, Metadata: md, Document: doc})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// DeleteByFile removes every record whose metadata.file equals path,
// returning the number of records removed.
func (s *Store) DeleteByFile(ctx context.Context, hostPath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.meta.IDsByFile(ctx, hostPath)
	if err != nil {
		return 0, fmt.Errorf("list ids for file: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.vector.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.bm25.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete bm25 documents: %w", err)
	}
	if err := s.meta.DeleteIDs(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete metadata: %w", err)
	}
	return len(ids), nil
}

// FileChecksums reconstructs host_path -> checksum from stored metadata
//, the source the indexer diffs against for incremental work.
func (s *Store) FileChecksums(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.FileChecksums(ctx)
}

// FilesByChecksum enables move detection.
func (s *Store) FilesByChecksum(ctx context.Context, checksum string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.FilesByChecksum(ctx, checksum)
}

// Statistics returns aggregate counts over the stored symbols.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.Statistics(ctx)
}

// SearchSymbolsByName performs a cheap metadata lookup by BM25 over symbol
// documents, the "symbol mode consults vector store metadata" path named as
// one of two possible routes; ragex lets the search
// service try this before falling back to the regex backend (see
// internal/search service.go).
func (s *Store) SearchSymbolsByName(ctx context.Context, name string, limit int) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.bm25.Search(ctx, name, limit)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}
	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		md, doc, ok, err := s.meta.Get(ctx, r.DocID)
		if err != nil || !ok {
			continue
		}
		hits = append(hits, SearchHit{SymbolID: r.DocID, Metadata: md, Document: doc})
	}
	return hits, nil
}

// Dimensions reports the dimension this store was opened with.
func (s *Store) Dimensions() int { return s.dimensions }

// ModelName reports the embedder model name this store was opened with.
func (s *Store) ModelName() string { return s.modelName }

// Reset clears every record from the store.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.vector.AllIDs() {
		_ = s.vector.Delete(ctx, []string{id})
	}
	allBM25IDs, _ := s.bm25.AllIDs()
	if len(allBM25IDs) > 0 {
		_ = s.bm25.Delete(ctx, allBM25IDs)
	}
	return s.meta.Clear(ctx)
}

// Flush persists the vector graph to disk; the metadata/BM25 stores are
// already durable per-write (SQLite).
func (s *Store) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vector.Save(filepath.Join(s.dir, "vectors.gob"))
}

// Close flushes and releases every underlying resource.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vector.Save(filepath.Join(s.dir, "vectors.gob")); err != nil {
		_ = err // best-effort; closing proceeds regardless
	}
	errV := s.vector.Close()
	errB := s.bm25.Close()
	errM := s.meta.Close()
	if errV != nil {
		return errV
	}
	if errB != nil {
		return errB
	}
	return errM
}
