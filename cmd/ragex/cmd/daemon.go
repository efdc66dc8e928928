package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codesearch/ragex/internal/daemon"
	"github.com/codesearch/ragex/internal/logging"
	"github.com/codesearch/ragex/internal/preflight"
	"github.com/codesearch/ragex/internal/project"
)

func newDaemonCmd() *cobra.Command {
	var (
		stop      bool
		skipCheck bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the project daemon in the foreground",
		Long: `Daemon loads the grammars, embedder, and vector store for this
workspace, begins watching for changes, and serves the socket protocol
until SIGTERM/SIGINT. One daemon per project; a second start fails on
the project lock.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadProjectConfig()
			if err != nil {
				return err
			}

			id, err := project.New(cfg.UserID, cfg.WorkspacePath)
			if err != nil {
				return err
			}
			dcfg := daemon.DefaultConfig(id, resolveDataRoot(cfg))

			if stop {
				pid := daemon.NewPIDFile(dcfg.PIDPath)
				if !pid.IsRunning() {
					fmt.Println("daemon not running")
					return nil
				}
				if err := pid.Signal(syscall.SIGTERM); err != nil {
					return err
				}
				fmt.Println("sent SIGTERM to daemon")
				return nil
			}

			if !skipCheck {
				checker := preflight.New(preflight.WithVerbose(flags.debug))
				results := checker.RunAll(cmd.Context(), cfg.WorkspacePath)
				checker.PrintResults(results)
				if checker.HasCriticalFailures(results) {
					return fmt.Errorf("preflight checks failed; fix the issues above or rerun with --skip-check")
				}
			}

			log, cleanup, err := logging.Setup(daemonLogConfig())
			if err == nil {
				defer cleanup()
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return daemon.Run(ctx, cfg, dcfg, log)
		},
	}

	cmd.Flags().BoolVar(&stop, "stop", false, "signal the running daemon to shut down")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "skip preflight system checks")
	return cmd
}

func daemonLogConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if flags.debug {
		cfg = logging.DebugConfig()
	}
	// The daemon's stderr is usually a service log already; keep the
	// structured records in the rotating file only.
	cfg.WriteToStderr = false
	return cfg
}
