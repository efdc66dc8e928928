package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesearch/ragex/internal/config"
	"github.com/codesearch/ragex/internal/daemon"
	"github.com/codesearch/ragex/internal/index"
	"github.com/codesearch/ragex/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var (
		force   bool
		verbose bool
		stats   bool
		noTUI   bool
	)

	cmd := &cobra.Command{
		Use:   "index [workspace]",
		Short: "Index the workspace (full or incremental)",
		Long: `Index scans the workspace, extracts symbols, embeds them, and writes
the vector store. Without --force only changed files are reprocessed;
with no existing collection a full index runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				flags.workspace = args[0]
			}

			cfg, _, err := loadProjectConfig()
			if err != nil {
				return err
			}

			// A running daemon owns the store; route through it.
			if client := projectClient(cfg); client != nil {
				rpcArgs := buildIndexArgs(args, force, verbose, stats)
				resp, err := client.Do(cmd.Context(), daemon.Request{Command: daemon.CmdIndex, Args: rpcArgs})
				if err != nil {
					return err
				}
				return renderResponse(resp)
			}

			return runLocalIndex(cmd.Context(), cfg, force, stats, noTUI || verbose)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "rebuild the index from scratch")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "line-oriented progress output")
	cmd.Flags().BoolVar(&stats, "stats", false, "print per-kind and per-language counts")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "disable the progress display")
	return cmd
}

func buildIndexArgs(args []string, force, verbose, stats bool) []string {
	out := append([]string{}, args...)
	if force {
		out = append(out, "--force")
	}
	if verbose {
		out = append(out, "--verbose")
	}
	if stats {
		out = append(out, "--stats")
	}
	return out
}

// runLocalIndex builds a short-lived daemon and drives one index pass with
// a progress renderer.
func runLocalIndex(ctx context.Context, cfg *config.Config, force, stats, forcePlain bool) error {
	d, err := daemon.New(ctx, cfg, resolveDataRoot(cfg), nil)
	if err != nil {
		return err
	}
	defer d.Shutdown(5 * time.Second)

	renderer := ui.NewRenderer(ui.Config{
		Output:     os.Stdout,
		ForcePlain: forcePlain,
		NoColor:    ui.DetectNoColor(),
		Workspace:  cfg.WorkspacePath,
	})
	if err := renderer.Start(ctx); err != nil {
		renderer = ui.NewPlainRenderer(ui.Config{Output: os.Stdout})
	}

	progress := func(ev index.ProgressEvent) {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageFromPhase(ev.Phase),
			Current: ev.FilesProcessed,
			Total:   ev.FilesTotal,
			Symbols: ev.SymbolsTotal,
		})
	}

	start := time.Now()
	result, _, err := d.IndexWithProgress(ctx, force, progress)
	if err != nil {
		_ = renderer.Stop()
		return err
	}

	model, dims := d.Embedder()
	renderer.Complete(ui.CompletionStats{
		Files:    result.FilesScanned,
		Symbols:  result.SymbolsIndexed,
		Duration: time.Since(start),
		Embedder: ui.EmbedderInfo{Model: model, Dimensions: dims},
	})
	if err := renderer.Stop(); err != nil {
		return err
	}

	if stats {
		s, err := d.Statistics(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nsymbols by kind:\n")
		for kind, n := range s.ByKind {
			fmt.Printf("  %-12s %d\n", kind, n)
		}
		fmt.Printf("symbols by language:\n")
		for lang, n := range s.ByLanguage {
			fmt.Printf("  %-12s %d\n", lang, n)
		}
	}
	return nil
}
