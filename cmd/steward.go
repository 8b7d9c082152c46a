package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/squireai/squire/internal/admission"
	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/llm"
	"github.com/squireai/squire/internal/steward"
	"github.com/squireai/squire/internal/task"
)

var stewardStatePath string

var stewardCmd = &cobra.Command{
	Use:   "steward",
	Short: "Run or watch the Steward pipeline",
	Long: `Steward ingests repo-host signals (PRs, CI, issues, bot reviews),
synthesizes new task directives via an LLM, and dispatches them to Squire.`,
}

var stewardRunOnceCmd = &cobra.Command{
	Use:   "run-once",
	Short: "Run a single Steward cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline()
		if err != nil {
			return err
		}
		result, err := p.RunOnce(context.Background())
		if err != nil {
			return fmt.Errorf("running steward cycle: %w", err)
		}
		fmt.Print(result.Report)
		return nil
	},
}

var stewardWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the Steward pipeline on its configured schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline()
		if err != nil {
			return err
		}
		return p.RunWatch(context.Background())
	},
}

func buildPipeline() (*steward.Pipeline, error) {
	stCfg, err := config.LoadSteward()
	if err != nil {
		return nil, fmt.Errorf("loading steward config: %w", err)
	}
	sqCfg, err := config.LoadSquire(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading squire config: %w", err)
	}
	if err := backend.Install(sqCfg); err != nil {
		return nil, fmt.Errorf("installing backend: %w", err)
	}
	store, err := task.NewFileStore(sqCfg.TasksDir)
	if err != nil {
		return nil, fmt.Errorf("opening task store: %w", err)
	}

	model := stCfg.LLM.Model
	if model == "" {
		model = sqCfg.Model
	}
	provider, err := llm.New(model)
	if err != nil {
		return nil, fmt.Errorf("resolving LLM provider %q: %w", model, err)
	}

	statePath := stewardStatePath
	if statePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		statePath = filepath.Join(home, config.DefaultConfigDir, "steward-state.json")
	}

	return &steward.Pipeline{
		Config:        stCfg,
		Store:         store,
		Backend:       backend.Current(),
		Admission:     admission.New(store, backend.Current()),
		Provider:      provider,
		RepoHostToken: sqCfg.RepoHostToken,
		StatePath:     statePath,
		WorkerConfig:  backend.DefaultWorkerConfig(),
		BotUsers:      sqCfg.Webhook.ReviewBotUsers,
		DryRun:        stewardDryRun,
	}, nil
}

var stewardDryRun bool

func init() {
	stewardCmd.PersistentFlags().StringVar(&stewardStatePath, "state", "", "steward state file path (default: ~/.squire/steward-state.json)")
	stewardCmd.PersistentFlags().BoolVar(&stewardDryRun, "dry-run", false, "collect and analyze but skip auto-merge and dispatch")
	stewardCmd.AddCommand(stewardRunOnceCmd, stewardWatchCmd)
}
