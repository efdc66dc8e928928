package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesearch/ragex/internal/config"
	"github.com/codesearch/ragex/internal/project"
	"github.com/codesearch/ragex/internal/ui"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and index status for this workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadProjectConfig()
			if err != nil {
				return err
			}
			styles := ui.GetStyles(!ui.IsTTY(os.Stdout) || ui.DetectNoColor())

			client := projectClient(cfg)
			if client == nil {
				fmt.Println(styles.Warning.Render("daemon: not running"))
				return printStoredStatus(cfg, styles)
			}

			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println(styles.Header.Render("ragex daemon"))
			fmt.Printf("  %s %s\n", styles.Label.Render("project:"), status.ProjectID)
			fmt.Printf("  %s %s\n", styles.Label.Render("workspace:"), status.WorkspacePath)
			fmt.Printf("  %s %s\n", styles.Label.Render("state:"), status.State)
			fmt.Printf("  %s %s\n", styles.Label.Render("uptime:"), (time.Duration(status.UptimeSeconds) * time.Second).String())
			fmt.Printf("  %s %d\n", styles.Label.Render("commands:"), status.CommandCount)
			fmt.Printf("  %s %s (%dd)\n", styles.Label.Render("embedder:"), status.EmbedderModel, status.Dimensions)
			fmt.Printf("  %s %d files, %d symbols\n", styles.Label.Render("indexed:"), status.FilesIndexed, status.TotalSymbols)
			fmt.Printf("  %s %v\n", styles.Label.Render("watching:"), status.Watching)
			if status.StoreError != "" {
				fmt.Println(styles.Error.Render("  store error: " + status.StoreError))
			}
			return nil
		},
	}
}

// printStoredStatus reports what the persisted project metadata says when
// no daemon is up.
func printStoredStatus(cfg *config.Config, styles ui.Styles) error {
	id, err := project.New(cfg.UserID, cfg.WorkspacePath)
	if err != nil {
		return err
	}
	meta, ok, err := project.LoadMetadata(id, resolveDataRoot(cfg))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println(styles.Label.Render("project: never indexed (run `ragex index`)"))
		return nil
	}
	fmt.Printf("%s %s\n", styles.Label.Render("project:"), meta.ProjectID)
	fmt.Printf("%s %s (%dd)\n", styles.Label.Render("embedder:"), meta.EmbeddingModelName, meta.EmbeddingDimensions)
	fmt.Printf("%s %d files at %s\n", styles.Label.Render("indexed:"), meta.FilesIndexed, meta.LastIndexedAt.Format(time.RFC3339))
	return nil
}
