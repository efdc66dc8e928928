package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetadataIndex(t *testing.T) *SQLiteMetadataIndex {
	t.Helper()
	idx, err := NewSQLiteMetadataIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func sampleRecord(id, file string) *VectorRecord {
	return &VectorRecord{
		SymbolID: id,
		Vector:   []float32{0.1, 0.2, 0.3},
		Metadata: RecordMetadata{
			Name:         "doThing",
			Kind:         "function",
			File:         file,
			Language:     "python",
			StartLine:    1,
			EndLine:      10,
			FileChecksum: "abc123",
		},
		Document: "def doThing(): pass",
	}
}

func TestSQLiteMetadataIndex_UpsertAndGet(t *testing.T) {
	idx := newTestMetadataIndex(t)
	ctx := context.Background()

	rec := sampleRecord("sym1", "a.py")
	require.NoError(t, idx.Upsert(ctx, []*VectorRecord{rec}))

	md, doc, ok, err := idx.Get(ctx, "sym1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doThing", md.Name)
	assert.Equal(t, "a.py", md.File)
	assert.Equal(t, "def doThing(): pass", doc)
}

func TestSQLiteMetadataIndex_UpsertReplaces(t *testing.T) {
	idx := newTestMetadataIndex(t)
	ctx := context.Background()

	rec := sampleRecord("sym1", "a.py")
	require.NoError(t, idx.Upsert(ctx, []*VectorRecord{rec}))

	rec.Metadata.FileChecksum = "def456"
	require.NoError(t, idx.Upsert(ctx, []*VectorRecord{rec}))

	md, _, ok, err := idx.Get(ctx, "sym1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "def456", md.FileChecksum)
}

func TestSQLiteMetadataIndex_GetMissing(t *testing.T) {
	idx := newTestMetadataIndex(t)
	_, _, ok, err := idx.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteMetadataIndex_DeleteIDs(t *testing.T) {
	idx := newTestMetadataIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []*VectorRecord{sampleRecord("sym1", "a.py"), sampleRecord("sym2", "b.py")}))
	require.NoError(t, idx.DeleteIDs(ctx, []string{"sym1"}))

	_, _, ok, err := idx.Get(ctx, "sym1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, ok, err = idx.Get(ctx, "sym2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteMetadataIndex_IDsByFile(t *testing.T) {
	idx := newTestMetadataIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []*VectorRecord{
		sampleRecord("sym1", "a.py"),
		sampleRecord("sym2", "a.py"),
		sampleRecord("sym3", "b.py"),
	}))

	ids, err := idx.IDsByFile(ctx, "a.py")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sym1", "sym2"}, ids)
}

func TestSQLiteMetadataIndex_FileChecksums(t *testing.T) {
	idx := newTestMetadataIndex(t)
	ctx := context.Background()

	a := sampleRecord("sym1", "a.py")
	a.Metadata.FileChecksum = "hashA"
	b := sampleRecord("sym2", "b.py")
	b.Metadata.FileChecksum = "hashB"
	require.NoError(t, idx.Upsert(ctx, []*VectorRecord{a, b}))

	sums, err := idx.FileChecksums(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hashA", sums["a.py"])
	assert.Equal(t, "hashB", sums["b.py"])
}

func TestSQLiteMetadataIndex_FilesByChecksum(t *testing.T) {
	idx := newTestMetadataIndex(t)
	ctx := context.Background()

	a := sampleRecord("sym1", "a.py")
	a.Metadata.FileChecksum = "same"
	b := sampleRecord("sym2", "b.py")
	b.Metadata.FileChecksum = "same"
	require.NoError(t, idx.Upsert(ctx, []*VectorRecord{a, b}))

	files, err := idx.FilesByChecksum(ctx, "same")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.py", "b.py"}, files)
}

func TestSQLiteMetadataIndex_Statistics(t *testing.T) {
	idx := newTestMetadataIndex(t)
	ctx := context.Background()

	a := sampleRecord("sym1", "a.py")
	a.Metadata.Kind = "function"
	a.Metadata.Language = "python"
	b := sampleRecord("sym2", "b.ts")
	b.Metadata.Kind = "class"
	b.Metadata.Language = "typescript"
	require.NoError(t, idx.Upsert(ctx, []*VectorRecord{a, b}))

	stats, err := idx.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSymbols)
	assert.Equal(t, 2, stats.UniqueFiles)
	assert.Equal(t, 1, stats.ByKind["function"])
	assert.Equal(t, 1, stats.ByKind["class"])
	assert.Equal(t, 1, stats.ByLanguage["python"])
}

func TestSQLiteMetadataIndex_Clear(t *testing.T) {
	idx := newTestMetadataIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []*VectorRecord{sampleRecord("sym1", "a.py")}))
	require.NoError(t, idx.Clear(ctx))

	stats, err := idx.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalSymbols)
}
