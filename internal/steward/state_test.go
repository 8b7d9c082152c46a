package steward

import (
	"path/filepath"
	"testing"

	"github.com/squireai/squire/models"
)

func TestLoadStateMissingFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if len(state.Tasks) != 0 {
		t.Fatalf("expected empty state, got %d tasks", len(state.Tasks))
	}
}

func TestSaveAndLoadStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state := &models.StewardState{}
	RecordDispatch(state, "task-1", "acme/widgets", "fix the bug")

	if err := SaveState(path, state); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if len(loaded.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(loaded.Tasks))
	}
	if loaded.Tasks[0].Status != models.StewardDispatched {
		t.Errorf("Status = %q, want dispatched", loaded.Tasks[0].Status)
	}
}

func TestMarkCompletedUpdatesMatchingRecord(t *testing.T) {
	state := &models.StewardState{}
	RecordDispatch(state, "task-1", "acme/widgets", "fix the bug")
	MarkCompleted(state, "task-1", "https://example.com/pr/1")

	if state.Tasks[0].Status != models.StewardCompleted {
		t.Errorf("Status = %q, want completed", state.Tasks[0].Status)
	}
	if state.Tasks[0].PRUrl != "https://example.com/pr/1" {
		t.Errorf("PRUrl = %q", state.Tasks[0].PRUrl)
	}
	if state.Tasks[0].CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestHasDispatchedForRepoIgnoresFailed(t *testing.T) {
	state := &models.StewardState{}
	RecordDispatch(state, "task-1", "acme/widgets", "fix the bug")
	MarkFailed(state, "task-1")

	if HasDispatchedForRepo(state, "acme/widgets", "fix the bug") {
		t.Error("expected failed task not to count as already dispatched")
	}
}
