// Package main implements ctrlcdemo, a polled work loop that stops cleanly on
// Ctrl-C, a stop file, a control-socket request, or a termination signal.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"tools.zach/dev/ctrlc/internal/config"
	"tools.zach/dev/ctrlc/internal/control"
	"tools.zach/dev/ctrlc/internal/paths"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via -ldflags "-X main.version=...". Without
// it, resolveVersion falls back to the VCS info embedded by the toolchain.
var version = "dev"

// resolveVersion returns [version] when set by ldflags, otherwise a
// "dev+<hash>" tag built from the embedded VCS revision.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// Commands
// ///////////////////////////////////////////////

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          paths.BinaryName,
		Short:        "Polled work loop that stops cleanly on Ctrl-C",
		Version:      resolveVersion(),
		SilenceUsage: true,
	}
	root.PersistentFlags().String("data-dir", paths.Default().Root, "directory holding config.toml and runtime files")

	root.AddCommand(
		runCmd(),
		quitCmd(),
		statusCmd(),
		initCmd(),
	)
	return root
}

// dataDir reads the persistent --data-dir flag.
func dataDir(cmd *cobra.Command) paths.DataDir {
	root, _ := cmd.Flags().GetString("data-dir")
	return paths.DataDir{Root: root}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the work loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptions{
				DataDir:        dataDir(cmd),
				MaxSteps:       -1,
				InterruptAfter: -1,
				Stderr:         cmd.ErrOrStderr(),
			}
			if cmd.Flags().Changed("max-steps") {
				opts.MaxSteps, _ = cmd.Flags().GetInt("max-steps")
			}
			if cmd.Flags().Changed("interrupt-after") {
				opts.InterruptAfter, _ = cmd.Flags().GetInt("interrupt-after")
			}

			res, err := executeRun(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stopped: %s after %d steps\n", res.Reason, res.Steps)
			return exitStatus(res)
		},
	}
	cmd.Flags().Int("max-steps", 0, "stop after this many steps (0 = run until stopped; overrides config)")
	cmd.Flags().Int("interrupt-after", 0, "raise a real interrupt after this many steps (0 = never; overrides config)")
	return cmd
}

func quitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "Ask the running instance to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := controlAddress(dataDir(cmd))
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := control.SendQuit(ctx, addr); err != nil {
				return fmt.Errorf("no running instance answered: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "quit requested")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether an instance is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := dataDir(cmd)
			alive, pid := checkStalePID(d)
			if !alive {
				fmt.Fprintln(cmd.OutOrStdout(), "not running")
				return nil
			}
			addr, err := controlAddress(d)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			defer cancel()
			if err := control.Ping(ctx, addr); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "running (pid %d), control endpoint unreachable: %v\n", pid, err)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "running (pid %d)\n", pid)
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the data directory and a default config.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := dataDir(cmd)
			if err := d.Ensure(); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			created, err := config.WriteDefault(d.Config())
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", d.Config())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", d.Config())
			}
			return nil
		},
	}
}

// controlAddress resolves the control endpoint from the config in d.
func controlAddress(d paths.DataDir) (string, error) {
	cfg, err := config.Load(d.Root)
	if err != nil {
		return "", err
	}
	if cfg.Control.Address != "" {
		return cfg.Control.Address, nil
	}
	return control.DefaultAddress(d), nil
}
