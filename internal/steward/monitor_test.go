package steward

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/squireai/squire/internal/task"
	"github.com/squireai/squire/models"
)

func TestMonitorProjectsCompletedAndMarksState(t *testing.T) {
	store, err := task.NewFileStore(filepath.Join(t.TempDir(), "tasks"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	tk, err := store.Create(ctx, task.CreateInput{Repo: "acme/widgets", Prompt: "fix the bug"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := store.Update(ctx, tk.ID, map[string]any{
		"status": string(models.StatusCompleted),
		"prUrl":  "https://example.com/pr/7",
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	state := &models.StewardState{}
	RecordDispatch(state, tk.ID, "acme/widgets", "fix the bug")

	entries, err := Monitor(ctx, store, state, []DispatchOutcome{{Task: models.ProposedTask{Repo: "acme/widgets"}, TaskID: tk.ID}})
	if err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Status != ProjectedCompleted {
		t.Errorf("Status = %q, want completed", entries[0].Status)
	}
	if entries[0].PRUrl != "https://example.com/pr/7" {
		t.Errorf("PRUrl = %q", entries[0].PRUrl)
	}
	if state.Tasks[0].Status != models.StewardCompleted {
		t.Errorf("state not updated: Status = %q", state.Tasks[0].Status)
	}
}

func TestMonitorSkipsOutcomesWithoutTaskID(t *testing.T) {
	store, err := task.NewFileStore(filepath.Join(t.TempDir(), "tasks"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	entries, err := Monitor(context.Background(), store, &models.StewardState{}, []DispatchOutcome{{Skipped: "no available slots"}})
	if err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries for skipped outcomes, got %d", len(entries))
	}
}

func TestReportGroupsByStatus(t *testing.T) {
	out := Report([]MonitorEntry{
		{TaskID: "t1", Repo: "acme/widgets", Status: ProjectedCompleted, PRUrl: "https://example.com/pr/1"},
		{TaskID: "t2", Repo: "acme/widgets", Status: ProjectedFailed},
	})
	if out == "" {
		t.Fatal("expected non-empty report")
	}
}
