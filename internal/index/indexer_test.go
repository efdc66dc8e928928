package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesearch/ragex/internal/checksum"
	"github.com/codesearch/ragex/internal/embed"
	"github.com/codesearch/ragex/internal/ignore"
	"github.com/codesearch/ragex/internal/store"
	"github.com/codesearch/ragex/internal/symbol"
)

func newTestIndexer(t *testing.T, root string) *Indexer {
	t.Helper()

	eng, err := ignore.New(root, false, nil)
	require.NoError(t, err)

	sums, err := checksum.New(root)
	require.NoError(t, err)

	embedder := embed.NewStaticEmbedder(0)
	st, err := store.Open(t.TempDir(), embedder.Dimensions(), embedder.ModelName(), store.DefaultVectorStoreConfig(embedder.Dimensions()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return New(root, eng, sums, symbol.NewExtractor(), embedder, st, 5*1024*1024, nil)
}

func writeFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const samplePy = `def greet(name):
    """Say hello."""
    return "hello " + name
`

func TestIndexer_FullIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", samplePy)

	ix := newTestIndexer(t, root)
	result, err := ix.FullIndex(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesScanned)
	assert.Greater(t, result.SymbolsIndexed, 0)

	stats, err := ix.store.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.SymbolsIndexed, stats.TotalSymbols)
}

func TestIndexer_IncrementalUpdate_NoChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", samplePy)

	ix := newTestIndexer(t, root)
	ctx := context.Background()
	_, err := ix.FullIndex(ctx, nil)
	require.NoError(t, err)

	result, err := ix.IncrementalUpdate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.FilesAdded)
	assert.Equal(t, 0, result.FilesModified)
	assert.Equal(t, 0, result.FilesRemoved)
}

func TestIndexer_IncrementalUpdate_DetectsModification(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", samplePy)

	ix := newTestIndexer(t, root)
	ctx := context.Background()
	_, err := ix.FullIndex(ctx, nil)
	require.NoError(t, err)

	writeFile(t, root, "a.py", samplePy+"\ndef extra():\n    pass\n")

	result, err := ix.IncrementalUpdate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesModified)
	assert.Greater(t, result.SymbolsIndexed, 0)
}

func TestIndexer_IncrementalUpdate_DetectsRemoval(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "a.py", samplePy)

	ix := newTestIndexer(t, root)
	ctx := context.Background()
	_, err := ix.FullIndex(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	result, err := ix.IncrementalUpdate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesRemoved)

	stats, err := ix.store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalSymbols)
}

func TestIndexer_ApplyChange_Removed(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "a.py", samplePy)

	ix := newTestIndexer(t, root)
	ctx := context.Background()
	_, err := ix.FullIndex(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, ix.ApplyChange(ctx, path, true))

	stats, err := ix.store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalSymbols)
}

func TestIndexer_ProgressCallback(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", samplePy)

	ix := newTestIndexer(t, root)
	var phases []string
	_, err := ix.FullIndex(context.Background(), func(ev ProgressEvent) {
		phases = append(phases, ev.Phase)
	})
	require.NoError(t, err)
	assert.Contains(t, phases, "extract")
	assert.Contains(t, phases, "store")
}
