package project

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMetadata_Missing(t *testing.T) {
	root := t.TempDir()
	id, err := New("alice", t.TempDir())
	require.NoError(t, err)

	m, ok, err := LoadMetadata(id, root)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Metadata{}, m)
}

func TestMetadata_SaveAndLoad(t *testing.T) {
	root := t.TempDir()
	id, err := New("alice", t.TempDir())
	require.NoError(t, err)

	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	m := NewMetadata(id, "static-768", 768, now)
	require.NoError(t, m.Save(id, root))

	loaded, ok, err := LoadMetadata(id, root)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id.ID, loaded.ProjectID)
	assert.Equal(t, "static-768", loaded.EmbeddingModelName)
	assert.Equal(t, 768, loaded.EmbeddingDimensions)
	assert.True(t, now.Equal(loaded.CreatedAt))
}

func TestMetadata_SaveOverwritesAtomically(t *testing.T) {
	root := t.TempDir()
	id, err := New("alice", t.TempDir())
	require.NoError(t, err)

	m := NewMetadata(id, "static-768", 768, time.Now())
	require.NoError(t, m.Save(id, root))

	updated := m.WithIndexProgress(time.Now(), 42)
	require.NoError(t, updated.Save(id, root))

	loaded, ok, err := LoadMetadata(id, root)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, loaded.FilesIndexed)
}

func TestMetadata_DimensionMismatch(t *testing.T) {
	m := Metadata{EmbeddingDimensions: 768}
	assert.True(t, m.DimensionMismatch(384))
	assert.False(t, m.DimensionMismatch(768))

	fresh := Metadata{}
	assert.False(t, fresh.DimensionMismatch(768))
}
