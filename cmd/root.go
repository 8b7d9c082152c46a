// Package cmd wires Squire's command-line surface: task submission, the
// worker-dispatching run daemon, manual reconciliation, and the Steward
// pipeline, per spec §6's external-interfaces table. Adapted from the
// teacher's cobra + viper cmd/root.go, narrowed from its onboard/scan/ui
// vulnerability-scanning surface to Squire/Steward's task-dispatch surface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/squireai/squire/internal/logging"

	_ "github.com/squireai/squire/internal/backend/cluster"
	_ "github.com/squireai/squire/internal/backend/container"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "squire",
	Short: "Dispatch natural-language coding directives to ephemeral workers",
	Long: `Squire dispatches natural-language coding directives to ephemeral,
isolated workers and tracks their lifecycle from pending through to a merged
pull request.

Get started:
  squire task create    Submit a new coding directive
  squire task list       List tasks and their status
  squire run              Start the run daemon (webhook ingress + reconciler)
  squire reconcile        Run one reconciliation pass against the backend
  squire steward           Run or watch the Steward pipeline
  squire doctor            Verify backend, repo-host, and LLM connectivity`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.squire/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		taskCmd,
		runCmd,
		reconcileCmd,
		stewardCmd,
		configCmd,
		doctorCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logging.Init(false, level)
}
