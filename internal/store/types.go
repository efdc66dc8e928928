// Package store provides the persistent vector store: a
// pure-Go HNSW ANN index, a SQLite FTS5 BM25 keyword index, and a SQLite
// metadata/document table keyed by symbol id, combined behind one Store
// facade that enforces embedder-dimension validation and checksum-driven
// incremental updates.
package store

import (
	"context"
	"fmt"
	"time"
)

// RecordMetadata is the subset of a Symbol's fields stored alongside its
// vector.
// CodeSnippet itself is stored separately as the record's Document.
type RecordMetadata struct {
	Name         string
	Kind         string
	File         string
	Language     string
	StartLine    int
	EndLine      int
	Parent       string
	Signature    string
	Docstring    string
	FileChecksum string
}

// VectorRecord is the unit stored by the vector store.
type VectorRecord struct {
	SymbolID string
	Vector   []float32
	Metadata RecordMetadata
	Document string // Symbol.CodeSnippet
}

// SearchHit is one result of Store.Search: a symbol_id, its cosine
// distance from the query, its metadata, and its document text.
type SearchHit struct {
	SymbolID string
	Distance float32 // 1 - cosine_similarity
	Metadata RecordMetadata
	Document string
}

// Where is an optional metadata filter for Store.Search (currently only
// Language is used by the search service's semantic backend).
type Where struct {
	Language string
}

// Statistics summarizes the store's contents.
type Statistics struct {
	TotalSymbols int
	UniqueFiles  int
	ByKind       map[string]int
	ByLanguage   map[string]int
	SizeBytes    int64
}

// ErrDimensionMismatch is returned when a pre-existing collection's stored
// dimension does not match the configured embedder's dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("Embedding dimension mismatch: collection=%dd, model=%dd", e.Expected, e.Got)
}

// Document represents a document to be indexed in BM25.
type Document struct {
	ID      string // symbol id
	Content string // text content
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the BM25 index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides keyword search using BM25 algorithm.
type BM25Index interface {
	// Index adds documents to the index
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents from index
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns all document IDs in the index (for consistency checks)
	AllIDs() ([]string, error)

	// Stats returns index statistics
	Stats() *IndexStats

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the BM25 index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2)
	K1 float64

	// B is the length normalization parameter (default: 0.75)
	B float64

	// StopWords is a list of words to filter out during tokenization
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 2)
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords contains programming keywords to filter out.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // symbol id
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension, stamped with the collection.
	Dimensions int

	// Quantization names a vector precision: "f32", "f16", "i8" (default:
	// "f16"). HNSWStore does not apply it; vectors stay float32 whatever
	// its value.
	Quantization string

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW graph fanout (default: 16)
	M int

	// EfConstruction is HNSW build-time search width (default: 128).
	// HNSWStore does not apply it to the graph.
	EfConstruction int

	// EfSearch is HNSW query-time search width; must be >= k for a query
	// — raised internally when smaller.
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Quantization:   "f16",
		Metric:         "cos",
		M:              16,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides semantic search using HNSW algorithm.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks)
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// IndexInfo contains comprehensive information about an index, as
// assembled by GatherIndexInfo.
type IndexInfo struct {
	Location    string // per-project data directory
	ProjectRoot string // project root directory

	IndexModel      string
	IndexBackend    string
	IndexDimensions int

	TotalSymbols   int
	UniqueFiles    int
	IndexSizeBytes int64
	BM25SizeBytes  int64
	VectorSizeBytes int64

	CreatedAt time.Time
	UpdatedAt time.Time

	CurrentModel      string
	CurrentBackend    string
	CurrentDimensions int
	Compatible        bool
}

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1
