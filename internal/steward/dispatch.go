package steward

import (
	"context"
	"fmt"

	"github.com/squireai/squire/internal/admission"
	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/metrics"
	"github.com/squireai/squire/internal/task"
	"github.com/squireai/squire/models"
)

// DispatchOutcome records one proposed task's dispatch result.
type DispatchOutcome struct {
	Task    models.ProposedTask
	TaskID  string
	Skipped string // reason, empty if dispatched
}

// Dispatch runs the pipeline's fourth stage: compute available global
// slots, walk proposed tasks in order validating each one's repo against
// the allowed set and the per-repo cap, and persist accepted tasks to both
// the Task Store (starting a worker) and Steward state.
func Dispatch(ctx context.Context, proposed []models.ProposedTask, cfg config.SquireExecConfig, store task.Store, adm *admission.Controller, b backend.Backend, repoHostToken string, workerCfg backend.WorkerConfig, state *models.StewardState) ([]DispatchOutcome, error) {
	logger := logging.L(ctx, "steward.dispatch")

	st, err := adm.CanStart(ctx, cfg.MaxConcurrent)
	if err != nil {
		return nil, fmt.Errorf("checking admission slots: %w", err)
	}
	slots := cfg.MaxConcurrent - st.Running
	if slots < 0 {
		slots = 0
	}

	allowed := allowedRepos(cfg)
	var outcomes []DispatchOutcome

	for _, p := range proposed {
		if slots <= 0 {
			outcomes = append(outcomes, DispatchOutcome{Task: p, Skipped: "no available slots"})
			continue
		}

		repo := p.Repo
		if !allowed[repo] {
			logger.Warn("proposed task names a repo outside the allowed set, falling back to default repo",
				"proposedRepo", repo, "defaultRepo", cfg.DefaultRepo)
			repo = cfg.DefaultRepo
		}
		if repo == "" {
			outcomes = append(outcomes, DispatchOutcome{Task: p, Skipped: "no default repo configured"})
			continue
		}

		repoStatus, err := adm.CanStartForRepo(ctx, repo, cfg.MaxConcurrent, cfg.MaxPerRepo)
		if err != nil {
			return nil, fmt.Errorf("checking per-repo admission for %s: %w", repo, err)
		}
		if !repoStatus.Allowed {
			outcomes = append(outcomes, DispatchOutcome{Task: p, Skipped: fmt.Sprintf("per-repo cap reached for %s", repo)})
			continue
		}

		t, err := store.Create(ctx, task.CreateInput{Repo: repo, Prompt: p.Prompt})
		if err != nil {
			return nil, fmt.Errorf("creating task for %s: %w", repo, err)
		}

		workerID, err := b.Start(ctx, backend.StartRequest{
			Task:          t,
			RepoHostToken: repoHostToken,
			Model:         cfg.Model,
			Config:        workerCfg,
		})
		if err != nil {
			if _, _, updErr := store.Update(ctx, t.ID, map[string]any{"status": string(models.StatusFailed), "error": err.Error()}); updErr != nil {
				return nil, updErr
			}
			outcomes = append(outcomes, DispatchOutcome{Task: p, TaskID: t.ID, Skipped: fmt.Sprintf("start failed: %v", err)})
			continue
		}
		if _, _, err := store.Update(ctx, t.ID, map[string]any{"status": string(models.StatusRunning), "workerId": workerID}); err != nil {
			return nil, err
		}
		metrics.Default().TasksRunning.Inc()
		go backend.Supervise(context.WithoutCancel(ctx), b, store, t, workerID, workerCfg, nil)

		RecordDispatch(state, t.ID, repo, p.Prompt)
		slots--
		outcomes = append(outcomes, DispatchOutcome{Task: p, TaskID: t.ID})
	}
	return outcomes, nil
}

// allowedRepos builds the dispatch-eligible repo set: the default repo plus
// the configured repos. Repos watched for signals are not included unless
// they are also configured.
func allowedRepos(cfg config.SquireExecConfig) map[string]bool {
	set := make(map[string]bool, len(cfg.Repos)+1)
	if cfg.DefaultRepo != "" {
		set[cfg.DefaultRepo] = true
	}
	for _, r := range cfg.Repos {
		set[r] = true
	}
	return set
}
