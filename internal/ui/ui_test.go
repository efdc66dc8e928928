package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageFromPhase(t *testing.T) {
	tests := []struct {
		phase string
		want  Stage
	}{
		{"scan", StageScanning},
		{"checksum", StageScanning},
		{"extract", StageExtracting},
		{"embed", StageEmbedding},
		{"store", StageStoring},
		{"bogus", StageScanning},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StageFromPhase(tt.phase), "phase %q", tt.phase)
	}
}

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(Config{Output: &buf})
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok, "buffer output should select the plain renderer")
}

func TestPlainRenderer_ProgressAndComplete(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf})
	require.NoError(t, r.Start(context.Background()))

	r.UpdateProgress(ProgressEvent{Stage: StageExtracting, Total: 10})
	r.UpdateProgress(ProgressEvent{Stage: StageExtracting, Current: 10, Total: 10})
	r.AddError(ErrorEvent{File: "bad.py", Err: errors.New("parse failed"), IsWarn: true})
	r.Complete(CompletionStats{
		Files:    10,
		Symbols:  42,
		Duration: 1500 * time.Millisecond,
		Warnings: 1,
		Embedder: EmbedderInfo{Model: "static-768", Dimensions: 768},
	})
	require.NoError(t, r.Stop())

	out := buf.String()
	assert.Contains(t, out, "[EXTRACT] 10 files")
	assert.Contains(t, out, "[EXTRACT] 10/10")
	assert.Contains(t, out, "WARN: bad.py: parse failed")
	assert.Contains(t, out, "Complete: 10 files, 42 symbols")
	assert.Contains(t, out, "(0 errors, 1 warnings)")
	assert.Contains(t, out, "static-768 (768 dims)")
}

func TestStageStrings(t *testing.T) {
	assert.Equal(t, "Embedding", StageEmbedding.String())
	assert.Equal(t, "EMBED", StageEmbedding.Icon())
	assert.Equal(t, "DONE", StageComplete.Icon())
}
