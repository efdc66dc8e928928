package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FormatBytes renders a byte count for human display (B, KB, MB or GB,
// one decimal above bytes).
func FormatBytes(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	case n < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/(1024*1024*1024))
	}
}

// FormatTime renders a timestamp for human display, or "unknown" for a zero
// time (a project that was never indexed).
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}

// containsAny reports whether s contains any of substrings.
func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// inferBackendFromModel guesses an embedder backend from its model name, for
// display when the daemon isn't running to ask the live embedder directly.
func inferBackendFromModel(model string) string {
	switch {
	case model == "static" || strings.HasPrefix(model, "static"):
		return "static"
	case strings.HasPrefix(model, "/"), containsAny(model, []string{"mlx-community/", "mlx-"}):
		return "mlx"
	default:
		return "ollama"
	}
}

// getDirSize sums file sizes under root, returning 0 for a missing path.
func getDirSize(root string) int64 {
	var total int64
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort size, skip unreadable entries
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// GatherIndexInfo assembles an IndexInfo report: where the index lives, what it was built with, and whether the current embedder is
// compatible with what's stored.
func GatherIndexInfo(ctx context.Context, s *Store, location, projectRoot, currentModel, currentBackend string, currentDimensions int) (IndexInfo, error) {
	stats, err := s.Statistics(ctx)
	if err != nil {
		return IndexInfo{}, fmt.Errorf("gather statistics: %w", err)
	}

	info := IndexInfo{
		Location:          location,
		ProjectRoot:       projectRoot,
		IndexModel:        s.ModelName(),
		IndexBackend:      inferBackendFromModel(s.ModelName()),
		IndexDimensions:   s.Dimensions(),
		TotalSymbols:      stats.TotalSymbols,
		UniqueFiles:       stats.UniqueFiles,
		VectorSizeBytes:   getDirSize(filepath.Join(location, "chroma_db")),
		CurrentModel:      currentModel,
		CurrentBackend:    currentBackend,
		CurrentDimensions: currentDimensions,
		Compatible:        currentDimensions == s.Dimensions(),
	}
	info.IndexSizeBytes = info.VectorSizeBytes
	return info, nil
}
