// Package cmd provides the CLI commands for ragex.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesearch/ragex/internal/config"
	"github.com/codesearch/ragex/internal/daemon"
	"github.com/codesearch/ragex/internal/logging"
	"github.com/codesearch/ragex/internal/project"
	"github.com/codesearch/ragex/internal/ragexerr"
	"github.com/codesearch/ragex/pkg/version"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	workspace string
	dataRoot  string
	debug     bool

	loggingCleanup func()
}

var flags rootFlags

// NewRootCmd creates the root command for the ragex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragex",
		Short: "Per-project code search: regex, symbol, and semantic",
		Long: `ragex indexes a workspace into symbols and embeddings and serves
ranked code search over a local socket. Modes: regex (literal), symbol
(identifier), semantic (vector similarity), or auto-detected per query.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("ragex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flags.workspace, "workspace", "", "workspace root (default: $WORKSPACE_PATH, else cwd)")
	cmd.PersistentFlags().StringVar(&flags.dataRoot, "data-root", "", "per-user data root (default: $RAGEX_CHROMA_PERSIST_DIR, else /data)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if flags.loggingCleanup != nil {
			flags.loggingCleanup()
		}
	}

	cmd.AddCommand(
		newSearchCmd(),
		newIndexCmd(),
		newStatusCmd(),
		newInitCmd(),
		newLsCmd(),
		newRmCmd(),
		newRegisterCmd(),
		newUnregisterCmd(),
		newDaemonCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the CLI and returns the process exit code, honoring the
// admin-command codes (0 success, 1 error, 2 no matches).
func Execute() int {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		return ragexerr.ExitCode(err)
	}
	return 0
}

// exitError carries an explicit exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// respToError converts a failed daemon response into an exitError so
// Execute maps it onto the right process exit code.
func respToError(resp *daemon.Response) error {
	if resp.Success {
		return nil
	}
	code := resp.Returncode
	if code == 0 {
		code = 1
	}
	return &exitError{code: code, msg: resp.Error}
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if flags.debug {
		cfg = logging.DebugConfig()
	}
	if lvl := os.Getenv("RAGEX_LOG_LEVEL"); lvl != "" {
		cfg.Level = lvl
	}
	_, cleanup, err := logging.Setup(cfg)
	if err != nil {
		// Logging must never block the command itself.
		return nil
	}
	flags.loggingCleanup = cleanup
	return nil
}

// resolveWorkspace picks the workspace root: --workspace flag, then
// WORKSPACE_PATH, then the current directory.
func resolveWorkspace() (string, error) {
	ws := flags.workspace
	if ws == "" {
		ws = os.Getenv("WORKSPACE_PATH")
	}
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		ws = cwd
	}
	return filepath.Abs(ws)
}

// resolveDataRoot picks the per-user data root.
func resolveDataRoot(cfg *config.Config) string {
	if flags.dataRoot != "" {
		return flags.dataRoot
	}
	if cfg != nil && cfg.Paths.PersistDir != "" {
		return cfg.Paths.PersistDir
	}
	return daemon.DefaultDataRoot
}

// loadProjectConfig loads configuration for the resolved workspace. The
// core requires WORKSPACE_PATH for its persistent path namespace; the CLI
// is the outer layer that establishes it.
func loadProjectConfig() (*config.Config, string, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, "", err
	}
	if os.Getenv("WORKSPACE_PATH") == "" {
		if err := os.Setenv("WORKSPACE_PATH", ws); err != nil {
			return nil, "", fmt.Errorf("set WORKSPACE_PATH: %w", err)
		}
	}
	cfg, err := config.Load(ws)
	if err != nil {
		return nil, "", err
	}
	if cfg.UserID == "" {
		cfg.UserID = currentUser()
	}
	return cfg, ws, nil
}

func currentUser() string {
	if v := os.Getenv("DOCKER_USER_ID"); v != "" {
		return v
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "unknown"
}

// projectClient returns a Client for the project's socket when a daemon
// is running, or nil when the CLI should fall back to a one-shot
// in-process run.
func projectClient(cfg *config.Config) *daemon.Client {
	id, err := project.New(cfg.UserID, cfg.WorkspacePath)
	if err != nil {
		return nil
	}
	socket := id.SocketPath(resolveDataRoot(cfg))
	client := daemon.NewClient(socket, 30*time.Second)
	if !client.IsRunning() {
		fallback := daemon.NewClient(daemon.DefaultSocketPath, 30*time.Second)
		if fallback.IsRunning() {
			return fallback
		}
		return nil
	}
	return client
}
