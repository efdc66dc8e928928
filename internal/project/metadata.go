package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Metadata is the ProjectMetadata record owned by the daemon:
// project identity, the embedder it was built with, and indexing progress.
// It is the source of truth the daemon and `ragex status` read to detect an embedder-model change before reusing an existing store.
type Metadata struct {
	ProjectID          string    `json:"project_id"`
	WorkspacePath      string    `json:"workspace_path"`
	ProjectName        string    `json:"project_name"`
	EmbeddingModelName string    `json:"embedding_model_name"`
	EmbeddingDimensions int      `json:"embedding_dimensions"`
	CreatedAt          time.Time `json:"created_at"`
	LastIndexedAt      time.Time `json:"last_indexed_at"`
	FilesIndexed       int       `json:"files_indexed"`
}

// NewMetadata builds a fresh Metadata record for a just-created project.
func NewMetadata(id Identity, modelName string, dimensions int, now time.Time) Metadata {
	return Metadata{
		ProjectID:           id.ID,
		WorkspacePath:       id.WorkspacePath,
		ProjectName:         filepath.Base(id.WorkspacePath),
		EmbeddingModelName:  modelName,
		EmbeddingDimensions: dimensions,
		CreatedAt:           now,
	}
}

// LoadMetadata reads project_info.json from root for id. A missing file is
// reported as (Metadata{}, false, nil) so callers can distinguish "never
// indexed" from a read failure.
func LoadMetadata(id Identity, root string) (Metadata, bool, error) {
	path := id.MetadataPath(root)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, fmt.Errorf("read project metadata: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, false, fmt.Errorf("parse project metadata %s: %w", path, err)
	}
	return m, true, nil
}

// Save writes m to root's project_info.json atomically: write to a temp
// file in the same directory, then rename over the destination.
func (m Metadata) Save(id Identity, root string) error {
	dir := id.DataDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project data dir: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project metadata: %w", err)
	}

	path := id.MetadataPath(root)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write project metadata: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("save project metadata: %w", err)
	}
	return nil
}

// WithIndexProgress returns a copy of m with last_indexed_at and
// files_indexed updated, the way the indexer stamps metadata after a run.
func (m Metadata) WithIndexProgress(now time.Time, filesIndexed int) Metadata {
	m.LastIndexedAt = now
	m.FilesIndexed = filesIndexed
	return m
}

// DimensionMismatch reports whether dimensions differs from the stored
// embedding_dimensions, the trigger for the configuration_mismatch
// error (existing project re-opened with an incompatible embedder).
func (m Metadata) DimensionMismatch(dimensions int) bool {
	return m.EmbeddingDimensions != 0 && m.EmbeddingDimensions != dimensions
}
