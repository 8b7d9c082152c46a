package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/metrics"
	"github.com/squireai/squire/internal/task"
	"github.com/squireai/squire/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Submit and inspect coding directives",
}

var (
	taskRepo       string
	taskBranch     string
	taskBaseBranch string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create <prompt>",
	Short: "Submit a new coding directive and start a worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := config.LoadSquire(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if taskRepo == "" {
			return fmt.Errorf("--repo is required")
		}
		if err := backend.Install(cfg); err != nil {
			return fmt.Errorf("installing backend: %w", err)
		}

		store, err := task.NewFileStore(cfg.TasksDir)
		if err != nil {
			return fmt.Errorf("opening task store: %w", err)
		}

		t, err := store.Create(ctx, task.CreateInput{
			Repo:       taskRepo,
			Prompt:     args[0],
			Branch:     taskBranch,
			BaseBranch: taskBaseBranch,
		})
		if err != nil {
			return fmt.Errorf("creating task: %w", err)
		}

		workerID, err := backend.Current().Start(ctx, backend.StartRequest{
			Task:          t,
			RepoHostToken: cfg.RepoHostToken,
			Model:         cfg.Model,
			Image:         cfg.WorkerImage,
			Verbose:       verbose,
			Config:        backend.DefaultWorkerConfig(),
		})
		if err != nil {
			if _, _, updErr := store.Update(ctx, t.ID, map[string]any{"status": string(models.StatusFailed), "error": err.Error()}); updErr != nil {
				return updErr
			}
			return fmt.Errorf("starting worker: %w", err)
		}
		if _, _, err := store.Update(ctx, t.ID, map[string]any{"status": string(models.StatusRunning), "workerId": workerID}); err != nil {
			return err
		}
		metrics.Default().TasksRunning.Inc()
		go backend.Supervise(context.Background(), backend.Current(), store, t, workerID, backend.DefaultWorkerConfig(), nil)

		fmt.Printf("task %s started (worker %s)\n", t.ID, workerID)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		cfg, err := config.LoadSquire(cfgFile)
		if err != nil {
			return err
		}
		store, err := task.NewFileStore(cfg.TasksDir)
		if err != nil {
			return err
		}
		tasks, err := store.List(context.Background(), models.TaskStatus(status))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	},
}

var taskGetCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Print one task's full record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadSquire(cfgFile)
		if err != nil {
			return err
		}
		store, err := task.NewFileStore(cfg.TasksDir)
		if err != nil {
			return err
		}
		t, found, err := store.Get(context.Background(), args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("task %s not found", args[0])
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	},
}

var taskLogsCmd = &cobra.Command{
	Use:   "logs <task-id>",
	Short: "Print a worker's combined stdout/stderr stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tail, _ := cmd.Flags().GetInt("tail")
		ctx := context.Background()
		cfg, err := config.LoadSquire(cfgFile)
		if err != nil {
			return err
		}
		if err := backend.Install(cfg); err != nil {
			return err
		}
		store, err := task.NewFileStore(cfg.TasksDir)
		if err != nil {
			return err
		}
		t, found, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if !found || t.WorkerID == "" {
			return fmt.Errorf("task %s has no associated worker", args[0])
		}
		logs, err := backend.Current().Logs(ctx, t.WorkerID, tail)
		if err != nil {
			return err
		}
		fmt.Print(logs)
		return nil
	},
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskRepo, "repo", "", "target repository (owner/name)")
	taskCreateCmd.Flags().StringVar(&taskBranch, "branch", "", "branch name (default: squire/<task-id>)")
	taskCreateCmd.Flags().StringVar(&taskBaseBranch, "base-branch", "", "base branch (default: main)")

	taskListCmd.Flags().String("status", "", "filter by status (pending, running, completed, failed)")
	taskLogsCmd.Flags().Int("tail", 0, "number of trailing lines (0 = all)")

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskGetCmd, taskLogsCmd)
}
