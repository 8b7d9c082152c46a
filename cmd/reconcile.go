package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/reconciler"
	"github.com/squireai/squire/internal/task"
)

var (
	reconcileRemoveOrphans bool
	reconcileDryRun        bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation pass against the backend",
	Long: `Compares the Task Store's view of running tasks against the worker
backend's live state, marking tasks completed/failed where they diverge and
optionally removing orphaned workers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := config.LoadSquire(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := backend.Install(cfg); err != nil {
			return fmt.Errorf("installing backend: %w", err)
		}
		store, err := task.NewFileStore(cfg.TasksDir)
		if err != nil {
			return fmt.Errorf("opening task store: %w", err)
		}

		result, err := reconciler.Reconcile(ctx, store, backend.Current(), reconciler.Options{
			RemoveOrphanedWorkers: reconcileRemoveOrphans,
			DryRun:                reconcileDryRun,
		})
		if err != nil {
			return fmt.Errorf("reconciling: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, "reconcile error:", e)
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileRemoveOrphans, "remove-orphans", false,
		"remove live workers with no corresponding task record")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false,
		"report what would change without writing or removing anything")
}
