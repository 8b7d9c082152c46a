// Package steward implements the Steward pipeline (C9) and its persisted
// state (C10): a companion orchestrator that ingests repo-host signals and
// synthesizes new task directives via an LLM.
package steward

import (
	"fmt"
	"os"
	"time"

	"github.com/squireai/squire/internal/atomicfile"
	"github.com/squireai/squire/models"
)

// LoadState reads the Steward state snapshot at path. A missing file is not
// an error: it returns a fresh, empty state, since the first pipeline cycle
// on a new installation has no history yet.
func LoadState(path string) (*models.StewardState, error) {
	var state models.StewardState
	if err := atomicfile.ReadJSON(path, &state); err != nil {
		if os.IsNotExist(err) {
			return &models.StewardState{}, nil
		}
		return nil, fmt.Errorf("loading steward state from %s: %w", path, err)
	}
	return &state, nil
}

// SaveState atomically persists state to path.
func SaveState(path string, state *models.StewardState) error {
	if err := atomicfile.WriteJSON(path, state); err != nil {
		return fmt.Errorf("saving steward state to %s: %w", path, err)
	}
	return nil
}

// RecordDispatch appends a new dispatched-task record to state.
func RecordDispatch(state *models.StewardState, taskID, repo, prompt string) {
	state.Tasks = append(state.Tasks, models.StewardTaskRecord{
		TaskID:       taskID,
		Repo:         repo,
		Prompt:       prompt,
		Status:       models.StewardDispatched,
		DispatchedAt: time.Now(),
	})
}

// MarkCompleted transitions a previously-dispatched task record to
// completed, recording its resulting PR URL if known. No-op if taskID is
// not found, since a task may have been dispatched before Steward's own
// state file existed.
func MarkCompleted(state *models.StewardState, taskID, prURL string) {
	now := time.Now()
	for i := range state.Tasks {
		if state.Tasks[i].TaskID == taskID {
			state.Tasks[i].Status = models.StewardCompleted
			state.Tasks[i].CompletedAt = &now
			state.Tasks[i].PRUrl = prURL
			return
		}
	}
}

// MarkFailed transitions a previously-dispatched task record to failed.
func MarkFailed(state *models.StewardState, taskID string) {
	now := time.Now()
	for i := range state.Tasks {
		if state.Tasks[i].TaskID == taskID {
			state.Tasks[i].Status = models.StewardFailed
			state.Tasks[i].CompletedAt = &now
			return
		}
	}
}

// HasDispatchedForRepo reports whether state already has a
// dispatched-or-completed task record tracking prompt for repo, so Analyze
// can skip proposing duplicate work for a signal it already acted on.
func HasDispatchedForRepo(state *models.StewardState, repo, prompt string) bool {
	for _, t := range state.Tasks {
		if t.Repo == repo && t.Prompt == prompt && t.Status != models.StewardFailed {
			return true
		}
	}
	return false
}
