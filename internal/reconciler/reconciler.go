// Package reconciler implements the Reconciler (C7): reconciling the Task
// Store's view of "running" tasks against the Worker Backend's live worker
// state, per spec §4.4. Grounded on internal/agent/orchestrator.go's
// startup recovery query (a blanket "running" -> "pending" reset on crash
// recovery), generalized here to the spec's per-task, per-worker-state
// four-case table (see DESIGN.md's C7 entry).
package reconciler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/task"
	"github.com/squireai/squire/models"
)

// Options configures a reconciliation pass.
type Options struct {
	// RemoveOrphanedWorkers removes workers with no corresponding task record.
	RemoveOrphanedWorkers bool
	// DryRun reports what would change without writing or removing anything.
	DryRun bool
}

// Result summarizes one reconciliation pass, per §8's testable properties.
type Result struct {
	TasksReconciled        int
	TasksMarkedFailed      int
	TasksMarkedCompleted   int
	OrphanedWorkersRemoved int
	Errors                 []error
}

var ranOnce atomic.Bool

// NeedsReconciliation reports whether Reconcile has not yet run in this
// process, a read-only predicate the CLI/daemon startup path uses to decide
// whether to reconcile before serving, per §4.4.
func NeedsReconciliation() bool {
	return !ranOnce.Load()
}

// ResetReconcileFlag clears the run-once flag; exists solely to support
// tests, per §4.4.
func ResetReconcileFlag() {
	ranOnce.Store(false)
}

// Reconcile runs one reconciliation pass over store against b, applying the
// four-case table:
//   - no live worker for a running task          -> mark failed
//   - live worker still running                  -> no-op
//   - live worker exited 0                        -> mark completed
//   - live worker exited non-zero                 -> mark failed
//
// and, when opts.RemoveOrphanedWorkers is set, removes any live worker with
// no corresponding task record at all.
func Reconcile(ctx context.Context, store task.Store, b backend.Backend, opts Options) (Result, error) {
	logger := logging.L(ctx, "reconciler")
	var result Result

	runningTasks, err := store.List(ctx, models.StatusRunning)
	if err != nil {
		return result, fmt.Errorf("listing running tasks: %w", err)
	}

	workers, err := b.List(ctx)
	if err != nil {
		return result, fmt.Errorf("listing workers: %w", err)
	}
	byWorkerID := make(map[string]models.WorkerTaskInfo, len(workers))
	seenTaskIDs := make(map[string]bool, len(workers))
	for _, w := range workers {
		byWorkerID[w.WorkerID] = w
		if w.TaskID != "" {
			seenTaskIDs[w.TaskID] = true
		}
	}

	for _, t := range runningTasks {
		result.TasksReconciled++

		w, ok := byWorkerID[t.WorkerID]
		switch {
		case t.WorkerID == "" || !ok:
			logger.Info("running task has no live worker, marking failed", "taskId", t.ID)
			if !opts.DryRun {
				if _, _, err := store.Update(ctx, t.ID, map[string]any{
					"status":      string(models.StatusFailed),
					"error":       "worker no longer exists",
					"completedAt": time.Now().UTC(),
				}); err != nil {
					result.Errors = append(result.Errors, err)
					continue
				}
			}
			result.TasksMarkedFailed++

		case w.Running:
			// live and running: no-op

		case w.ExitCode != nil && *w.ExitCode == 0:
			logger.Info("running task's worker exited 0, marking completed", "taskId", t.ID)
			if !opts.DryRun {
				if _, _, err := store.Update(ctx, t.ID, map[string]any{
					"status":      string(models.StatusCompleted),
					"completedAt": time.Now().UTC(),
				}); err != nil {
					result.Errors = append(result.Errors, err)
					continue
				}
			}
			result.TasksMarkedCompleted++

		default:
			code := -1
			if w.ExitCode != nil {
				code = *w.ExitCode
			}
			logger.Info("running task's worker exited non-zero, marking failed", "taskId", t.ID, "exitCode", code)
			if !opts.DryRun {
				if _, _, err := store.Update(ctx, t.ID, map[string]any{
					"status":      string(models.StatusFailed),
					"error":       fmt.Sprintf("worker exited with code %d", code),
					"completedAt": time.Now().UTC(),
				}); err != nil {
					result.Errors = append(result.Errors, err)
					continue
				}
			}
			result.TasksMarkedFailed++
		}
	}

	if opts.RemoveOrphanedWorkers {
		for _, w := range workers {
			if w.TaskID != "" {
				if _, found, err := store.Get(ctx, w.TaskID); err == nil && found {
					continue
				}
			}
			logger.Info("removing orphaned worker", "workerId", w.WorkerID, "taskId", w.TaskID)
			if !opts.DryRun {
				if err := b.Remove(ctx, w.WorkerID); err != nil {
					result.Errors = append(result.Errors, err)
					continue
				}
			}
			result.OrphanedWorkersRemoved++
		}
	}

	ranOnce.Store(true)
	return result, nil
}
