// Package admission implements the global and per-repo concurrency gate
// (C6) that sits in front of Backend.Start, per spec §4.3. Grounded on
// internal/agent/orchestrator.go's workerStates-map concurrency bookkeeping
// and its poll-until-ready worker-pool gating, generalized from an in-memory
// scanner-pool semaphore to a task-store-backed slot count (see DESIGN.md's
// C6 entry).
package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/task"
	"github.com/squireai/squire/models"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxWait       = 5 * time.Minute
)

// TimeoutError is returned by WaitForSlot when no slot opens up within the
// wait window.
type TimeoutError struct {
	Waited time.Duration
	Max    int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("admission: no slot available after %s (max concurrent: %d)", e.Waited, e.Max)
}

// Status reports the current slot usage.
type Status struct {
	Allowed   bool
	Running   int
	Max       int
	RepoCount int
}

// Controller gates worker starts against a global cap and, where requested,
// a per-repo cap.
type Controller struct {
	store   task.Store
	backend backend.Backend
}

// New builds a Controller reading live state from store and backend.
func New(store task.Store, b backend.Backend) *Controller {
	return &Controller{store: store, backend: b}
}

// CountRunning returns the number of tasks currently in the running status,
// opportunistically dropping from the count any task whose worker no longer
// exists on the backend — a crashed worker that the reconciler (C7) hasn't
// yet swept shouldn't hold a slot open, per §4.3.
func (c *Controller) CountRunning(ctx context.Context) (int, error) {
	tasks, err := c.store.List(ctx, models.StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("listing running tasks: %w", err)
	}
	if c.backend == nil {
		return len(tasks), nil
	}
	n := 0
	for _, t := range tasks {
		if t.WorkerID == "" {
			continue
		}
		running, err := c.backend.IsRunning(ctx, t.WorkerID)
		if err != nil || running {
			n++
		}
	}
	return n, nil
}

// CountRunningForRepo returns the number of running tasks for repo.
func (c *Controller) CountRunningForRepo(ctx context.Context, repo string) (int, error) {
	tasks, err := c.store.List(ctx, models.StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("listing running tasks: %w", err)
	}
	n := 0
	for _, t := range tasks {
		if t.Repo == repo {
			n++
		}
	}
	return n, nil
}

// CanStart reports whether the global cap has room.
func (c *Controller) CanStart(ctx context.Context, maxConcurrent int) (Status, error) {
	running, err := c.CountRunning(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Allowed: running < maxConcurrent, Running: running, Max: maxConcurrent}, nil
}

// CanStartForRepo reports whether both the global cap and repo's per-repo
// cap (0 meaning unlimited) have room.
func (c *Controller) CanStartForRepo(ctx context.Context, repo string, maxConcurrent, maxPerRepo int) (Status, error) {
	st, err := c.CanStart(ctx, maxConcurrent)
	if err != nil {
		return Status{}, err
	}
	if !st.Allowed {
		return st, nil
	}
	if maxPerRepo <= 0 {
		return st, nil
	}
	repoCount, err := c.CountRunningForRepo(ctx, repo)
	if err != nil {
		return Status{}, err
	}
	st.RepoCount = repoCount
	st.Allowed = repoCount < maxPerRepo
	return st, nil
}

// WaitForSlot polls CanStart every pollInterval (default 5s) until a global
// slot opens or maxWait (default 5m) elapses, returning a *TimeoutError on
// expiry, per §4.3/§7.
func (c *Controller) WaitForSlot(ctx context.Context, maxConcurrent int) error {
	return c.waitFor(ctx, func() (bool, error) {
		st, err := c.CanStart(ctx, maxConcurrent)
		return st.Allowed, err
	}, maxConcurrent)
}

// WaitForRepoSlot is WaitForSlot with the additional per-repo cap applied.
func (c *Controller) WaitForRepoSlot(ctx context.Context, repo string, maxConcurrent, maxPerRepo int) error {
	return c.waitFor(ctx, func() (bool, error) {
		st, err := c.CanStartForRepo(ctx, repo, maxConcurrent, maxPerRepo)
		return st.Allowed, err
	}, maxConcurrent)
}

func (c *Controller) waitFor(ctx context.Context, check func() (bool, error), max int) error {
	logger := logging.L(ctx, "admission")
	start := time.Now()
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	for {
		ok, err := check()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Since(start) >= defaultMaxWait {
			return &TimeoutError{Waited: time.Since(start), Max: max}
		}
		logger.Debug("waiting for admission slot", "waited", time.Since(start))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
