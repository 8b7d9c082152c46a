package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/metrics"
	"github.com/squireai/squire/internal/task"
	"github.com/squireai/squire/models"
)

// LogPreserver copies a worker's logs to disk before it is removed, used
// when WorkerConfig.PreserveLogsOnFailure is set.
type LogPreserver func(ctx context.Context, taskID, logs string) error

// Supervise runs the background supervisor for one worker, per spec §4.2.6:
// it polls b.IsRunning on b.SupervisorInterval() until the worker stops or
// timeoutMinutes elapses, then transitions the task to its terminal status.
// Each supervised worker is an independent goroutine with no shared mutable
// state, per §9's "Supervisors" design note.
func Supervise(ctx context.Context, b Backend, store task.Store, t *models.Task, workerID string, cfg WorkerConfig, preserve LogPreserver) {
	logger := logging.L(ctx, "supervisor").With("taskId", t.ID, "workerId", workerID, "backend", b.Name())
	ticker := time.NewTicker(b.SupervisorInterval())
	defer ticker.Stop()

	deadline := time.Now().Add(time.Duration(cfg.TimeoutMinutes) * time.Minute)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			logger.Warn("worker exceeded timeout, stopping")
			_ = b.Stop(ctx, workerID)
			if cfg.PreserveLogsOnFailure && preserve != nil {
				if logs, err := b.Logs(ctx, workerID, 0); err == nil {
					_ = preserve(ctx, t.ID, logs)
				}
			}
			failTask(ctx, store, t.ID, fmt.Sprintf("Task timed out after %d minutes", cfg.TimeoutMinutes))
			return
		}

		running, err := b.IsRunning(ctx, workerID)
		if err != nil {
			logger.Error("supervisor polling error", "error", err)
			failTask(ctx, store, t.ID, "monitoring error: "+err.Error())
			return
		}
		if running {
			continue
		}

		code, ok, err := b.ExitCode(ctx, workerID)
		if err != nil {
			logger.Error("reading exit code failed", "error", err)
			failTask(ctx, store, t.ID, "monitoring error: "+err.Error())
			return
		}
		if !ok {
			// worker stopped but exit code not yet available; poll once more
			continue
		}

		if code == 0 {
			completeTask(ctx, store, t.ID)
			metrics.Default().TasksCompleted.WithLabelValues("completed").Inc()
			if t.StartedAt != nil {
				metrics.Default().TaskDuration.Observe(time.Since(*t.StartedAt).Seconds())
			}
		} else {
			if cfg.PreserveLogsOnFailure && preserve != nil {
				if logs, err := b.Logs(ctx, workerID, 0); err == nil {
					_ = preserve(ctx, t.ID, logs)
				}
			}
			failTask(ctx, store, t.ID, fmt.Sprintf("worker exited with code %d", code))
			metrics.Default().TasksCompleted.WithLabelValues("failed").Inc()
		}
		metrics.Default().TasksRunning.Dec()
		return
	}
}

func completeTask(ctx context.Context, store task.Store, id string) {
	now := time.Now().UTC()
	if _, _, err := store.Update(ctx, id, map[string]any{
		"status":      string(models.StatusCompleted),
		"completedAt": now,
	}); err != nil {
		logging.L(ctx, "supervisor").Error("failed to mark task completed", "taskId", id, "error", err)
	}
}

func failTask(ctx context.Context, store task.Store, id, reason string) {
	now := time.Now().UTC()
	if _, _, err := store.Update(ctx, id, map[string]any{
		"status":      string(models.StatusFailed),
		"error":       reason,
		"completedAt": now,
	}); err != nil {
		logging.L(ctx, "supervisor").Error("failed to mark task failed", "taskId", id, "error", err)
	}
}
