// Package ui renders indexing progress and command output for the CLI:
// a bubbletea TUI on interactive terminals, plain text on pipes and CI.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is one phase of the indexing pipeline.
type Stage int

const (
	StageScanning Stage = iota
	StageExtracting
	StageEmbedding
	StageStoring
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageExtracting:
		return "Extracting"
	case StageEmbedding:
		return "Embedding"
	case StageStoring:
		return "Storing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageExtracting:
		return "EXTRACT"
	case StageEmbedding:
		return "EMBED"
	case StageStoring:
		return "STORE"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// StageFromPhase maps the indexer's progress phase strings onto stages.
func StageFromPhase(phase string) Stage {
	switch phase {
	case "scan", "checksum":
		return StageScanning
	case "extract":
		return StageExtracting
	case "embed":
		return StageEmbedding
	case "store":
		return StageStoring
	default:
		return StageScanning
	}
}

// ProgressEvent is a progress update for display.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Symbols int
	Message string
}

// ErrorEvent is a per-file error or warning surfaced during indexing.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// EmbedderInfo describes the embedder backend for the completion summary.
type EmbedderInfo struct {
	Model      string
	Dimensions int
}

// CompletionStats is the final indexing summary.
type CompletionStats struct {
	Files    int
	Symbols  int
	Duration time.Duration
	Errors   int
	Warnings int
	Embedder EmbedderInfo
}

// Renderer is the progress display contract shared by TUI and plain modes.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures the renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Workspace  string
}

// NewRenderer picks the display mode: TUI on an interactive terminal,
// plain text for pipes, CI, or when forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor honors the NO_COLOR convention.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI reports whether the process runs under a CI system.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
