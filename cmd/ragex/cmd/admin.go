package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codesearch/ragex/internal/daemon"
	"github.com/codesearch/ragex/internal/ignore"
)

// Admin commands run in-process against the data root: they need no
// workspace daemon.

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default ignore file into the workspace",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ws, err := resolveWorkspace()
			if err != nil {
				return err
			}
			path := filepath.Join(ws, ignore.IgnoreFileName)
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("%s already exists\n", path)
				return nil
			}
			if err := os.WriteFile(path, []byte(ignore.DefaultTemplate), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Printf("created %s\n", path)
			return nil
		},
	}
}

func newLsCmd() *cobra.Command {
	var long, all, human bool

	cmd := &cobra.Command{
		Use:   "ls [glob]",
		Short: "List indexed projects belonging to the current user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rpcArgs := append([]string{}, args...)
			if long {
				rpcArgs = append(rpcArgs, "-l")
			}
			if all {
				rpcArgs = append(rpcArgs, "-a")
			}
			if human {
				rpcArgs = append(rpcArgs, "-h")
			}
			resp := daemon.HandleLs(resolveDataRoot(nil), currentUser(), rpcArgs)
			return renderResponse(&resp)
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "long listing")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include every user's projects")
	cmd.Flags().BoolVarP(&human, "human", "H", false, "human-readable sizes")
	return cmd
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <project-id-or-glob>",
		Short: "Delete a project's data directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			resp := daemon.HandleRm(resolveDataRoot(nil), currentUser(), args)
			return renderResponse(&resp)
		},
	}
}

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register [target]",
		Short: "Print the shell command that registers ragex with an assistant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			resp := daemon.HandleRegister(daemon.CmdRegister, args)
			return renderResponse(&resp)
		},
	}
}

func newUnregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister [target]",
		Short: "Print the shell command that removes the registration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			resp := daemon.HandleRegister(daemon.CmdUnregister, args)
			return renderResponse(&resp)
		},
	}
}
