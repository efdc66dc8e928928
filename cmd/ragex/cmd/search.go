package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesearch/ragex/internal/daemon"
)

func newSearchCmd() *cobra.Command {
	var (
		regexMode     bool
		semanticMode  bool
		symbolMode    bool
		limit         int
		minSimilarity float64
		asJSON        bool
		indexDir      string
	)

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search the workspace (regex, symbol, or semantic)",
		Long: `Search routes the query by shape unless a mode flag forces one:
env-var and import queries go semantic, regex metacharacters go regex,
identifier shapes go symbol, natural language goes semantic.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rpcArgs := append([]string{}, args...)
			if regexMode {
				rpcArgs = append(rpcArgs, "--regex")
			}
			if semanticMode {
				rpcArgs = append(rpcArgs, "--semantic")
			}
			if symbolMode {
				rpcArgs = append(rpcArgs, "--symbol")
			}
			if limit > 0 {
				rpcArgs = append(rpcArgs, "--limit", fmt.Sprint(limit))
			}
			if minSimilarity > 0 {
				rpcArgs = append(rpcArgs, "--min-similarity", fmt.Sprint(minSimilarity))
			}
			if asJSON {
				rpcArgs = append(rpcArgs, "--json")
			}
			if indexDir != "" {
				rpcArgs = append(rpcArgs, "--index-dir", indexDir)
			}

			resp, err := roundTrip(cmd.Context(), daemon.Request{Command: daemon.CmdSearch, Args: rpcArgs})
			if err != nil {
				return err
			}
			return renderResponse(resp)
		},
	}

	cmd.Flags().BoolVar(&regexMode, "regex", false, "force regex mode")
	cmd.Flags().BoolVar(&semanticMode, "semantic", false, "force semantic mode")
	cmd.Flags().BoolVar(&symbolMode, "symbol", false, "force symbol mode")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (1-200, default 50)")
	cmd.Flags().Float64Var(&minSimilarity, "min-similarity", 0, "minimum cosine similarity for semantic hits")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of human text")
	cmd.Flags().StringVar(&indexDir, "index-dir", "", "override the index directory")
	return cmd
}

// roundTrip sends the request to a running daemon, or serves it from a
// short-lived in-process daemon when none is listening.
func roundTrip(ctx context.Context, req daemon.Request) (*daemon.Response, error) {
	cfg, _, err := loadProjectConfig()
	if err != nil {
		return nil, err
	}

	if client := projectClient(cfg); client != nil {
		return client.Do(ctx, req)
	}

	d, err := daemon.New(ctx, cfg, resolveDataRoot(cfg), nil)
	if err != nil {
		return nil, err
	}
	defer d.Shutdown(5 * time.Second)

	resp := d.Handle(ctx, req)
	return &resp, nil
}

// renderResponse prints a daemon response the way a shell expects:
// stdout to stdout, stderr to stderr, error mapped to the exit code.
func renderResponse(resp *daemon.Response) error {
	if resp.Stdout != "" {
		fmt.Print(resp.Stdout)
		if resp.Stdout[len(resp.Stdout)-1] != '\n' {
			fmt.Println()
		}
	}
	if resp.Stderr != "" {
		fmt.Fprintln(os.Stderr, resp.Stderr)
	}
	return respToError(resp)
}
