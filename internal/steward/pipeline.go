package steward

import (
	"context"
	"fmt"
	"time"

	"github.com/squireai/squire/internal/admission"
	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/llm"
	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/repository"
	"github.com/squireai/squire/internal/task"
	"github.com/squireai/squire/models"
)

// Pipeline wires the five stages of §4.6's cycle to their concrete
// dependencies: the Task Store, the installed worker Backend, the
// admission controller, the LLM provider chain, and the repo-host
// credentials used for both signal collection and auto-merge.
type Pipeline struct {
	Config        *config.StewardConfig
	Store         task.Store
	Backend       backend.Backend
	Admission     *admission.Controller
	Provider      llm.Provider
	RepoHostToken string
	GitHubHost    string
	GitLabHost    string
	StatePath     string
	WorkerConfig  backend.WorkerConfig

	// BotUsers names the review-bot logins whose comments are treated as
	// automated findings by Collect and AutoMerge.
	BotUsers []string

	// DryRun runs Collect/Analyze but skips AutoMerge and Dispatch's actual
	// mutations, reporting what would have happened instead.
	DryRun bool
}

// CycleResult summarizes one completed pipeline cycle.
type CycleResult struct {
	Signals    int
	Merges     []MergeResult
	Proposed   []models.ProposedTask
	Dispatched []DispatchOutcome
	Monitored  []MonitorEntry
	Report     string
}

// RunOnce executes a single five-stage cycle and persists the resulting
// Steward state.
func (p *Pipeline) RunOnce(ctx context.Context) (*CycleResult, error) {
	logger := logging.L(ctx, "steward.pipeline")

	state, err := LoadState(p.StatePath)
	if err != nil {
		return nil, fmt.Errorf("loading steward state: %w", err)
	}

	signals, err := Collect(ctx, p.Config.Signals, p.BotUsers, p.GitHubHost, p.GitLabHost, p.RepoHostToken)
	if err != nil {
		return nil, fmt.Errorf("collect stage: %w", err)
	}

	var merges []MergeResult
	if p.Config.AutoMerge.Enabled && !p.DryRun {
		merges = AutoMerge(ctx, signals, p.resolveHost, p.Config.AutoMerge.MinConfidence)
	}

	goals, err := LoadGoals(p.Config.Goals)
	if err != nil {
		return nil, fmt.Errorf("loading goals: %w", err)
	}
	activeTasks, err := p.activeAndRecentTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active tasks: %w", err)
	}
	proposed, err := Analyze(ctx, p.Provider, goals, signals, state, activeTasks)
	if err != nil {
		return nil, fmt.Errorf("analyze stage: %w", err)
	}

	var dispatched []DispatchOutcome
	if !p.DryRun {
		dispatched, err = Dispatch(ctx, proposed, p.Config.Execution.Squire, p.Store, p.Admission, p.Backend, p.RepoHostToken, p.WorkerConfig, state)
		if err != nil {
			return nil, fmt.Errorf("dispatch stage: %w", err)
		}
	} else {
		for _, t := range proposed {
			dispatched = append(dispatched, DispatchOutcome{Task: t, Skipped: "dry run"})
		}
	}

	var monitored []MonitorEntry
	if !p.DryRun {
		monitored, err = Monitor(ctx, p.Store, state, dispatched)
		if err != nil {
			return nil, fmt.Errorf("monitor stage: %w", err)
		}
		now := nowFunc()
		state.LastRun = &now
		if err := SaveState(p.StatePath, state); err != nil {
			return nil, fmt.Errorf("saving steward state: %w", err)
		}
	}

	report := Report(monitored)
	logger.Info("pipeline cycle complete", "signals", len(signals), "proposed", len(proposed), "dispatched", len(dispatched))

	return &CycleResult{
		Signals:    len(signals),
		Merges:     merges,
		Proposed:   proposed,
		Dispatched: dispatched,
		Monitored:  monitored,
		Report:     report,
	}, nil
}

// RunWatch runs the pipeline on the schedule named by p.Config.Schedule
// until ctx is cancelled, per §4.6's "once or at a fixed interval" rule.
func (p *Pipeline) RunWatch(ctx context.Context) error {
	return Watch(ctx, p.Config.Schedule, func(ctx context.Context) error {
		_, err := p.RunOnce(ctx)
		return err
	})
}

// resolveHost returns the RepoHost owning repo, based on which Signals
// config section lists it.
func (p *Pipeline) resolveHost(repo string) repository.RepoHost {
	for _, r := range p.Config.Signals.GitHub.Repos {
		if r == repo {
			host, err := repository.NewGitHub(p.RepoHostToken, p.GitHubHost)
			if err != nil {
				return nil
			}
			return host
		}
	}
	for _, r := range p.Config.Signals.GitLab.Repos {
		if r == repo {
			host, err := repository.NewGitLab(p.RepoHostToken, p.GitLabHost)
			if err != nil {
				return nil
			}
			return host
		}
	}
	return nil
}

// activeAndRecentTasks lists running tasks plus the most recently completed
// and failed ones, for the Analyze stage's task-snapshot context.
func (p *Pipeline) activeAndRecentTasks(ctx context.Context) ([]*models.Task, error) {
	running, err := p.Store.List(ctx, models.StatusRunning)
	if err != nil {
		return nil, err
	}
	pending, err := p.Store.List(ctx, models.StatusPending)
	if err != nil {
		return nil, err
	}
	completed, err := p.Store.List(ctx, models.StatusCompleted)
	if err != nil {
		return nil, err
	}
	failed, err := p.Store.List(ctx, models.StatusFailed)
	if err != nil {
		return nil, err
	}

	out := append([]*models.Task{}, running...)
	out = append(out, pending...)
	out = append(out, capTasks(completed, 10)...)
	out = append(out, capTasks(failed, 10)...)
	return out, nil
}

func capTasks(tasks []*models.Task, n int) []*models.Task {
	if len(tasks) <= n {
		return tasks
	}
	return tasks[:n]
}

// nowFunc is a seam for tests; production code always calls time.Now.
var nowFunc = time.Now
