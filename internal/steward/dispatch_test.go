package steward

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/squireai/squire/internal/admission"
	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/task"
	"github.com/squireai/squire/models"
)

// fakeBackend is a minimal in-memory backend.Backend for exercising Dispatch
// without a real container or cluster runtime.
type fakeBackend struct {
	started []backend.StartRequest
}

func (f *fakeBackend) Start(ctx context.Context, req backend.StartRequest) (string, error) {
	f.started = append(f.started, req)
	return "worker-" + req.Task.ID, nil
}
func (f *fakeBackend) Logs(ctx context.Context, workerID string, tail int) (string, error) {
	return "", nil
}
func (f *fakeBackend) IsRunning(ctx context.Context, workerID string) (bool, error) { return true, nil }
func (f *fakeBackend) ExitCode(ctx context.Context, workerID string) (int, bool, error) {
	return 0, false, nil
}
func (f *fakeBackend) Stop(ctx context.Context, workerID string) error   { return nil }
func (f *fakeBackend) Remove(ctx context.Context, workerID string) error { return nil }
func (f *fakeBackend) List(ctx context.Context) ([]models.WorkerTaskInfo, error) {
	return nil, nil
}
func (f *fakeBackend) SupervisorInterval() time.Duration { return time.Hour }
func (f *fakeBackend) Name() string                      { return "fake" }

func newDispatchFixtures(t *testing.T) (task.Store, *admission.Controller, *fakeBackend) {
	t.Helper()
	store, err := task.NewFileStore(filepath.Join(t.TempDir(), "tasks"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	b := &fakeBackend{}
	return store, admission.New(store, b), b
}

func TestDispatchFallsBackToDefaultRepoForDisallowedRepo(t *testing.T) {
	store, adm, b := newDispatchFixtures(t)
	cfg := config.SquireExecConfig{DefaultRepo: "acme/widgets", MaxConcurrent: 5, MaxPerRepo: 2}
	state := &models.StewardState{}

	outcomes, err := Dispatch(context.Background(),
		[]models.ProposedTask{{Prompt: "fix the flaky test", Priority: models.PriorityMedium, Repo: "intruder/repo"}},
		cfg, store, adm, b, "token", backend.DefaultWorkerConfig(), state)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Skipped != "" {
		t.Fatalf("expected one dispatched outcome, got %+v", outcomes)
	}
	if len(b.started) != 1 {
		t.Fatalf("expected backend.Start to be called once, got %d", len(b.started))
	}
	if b.started[0].Task.Repo != "acme/widgets" {
		t.Errorf("Task.Repo = %q, want fallback to default repo", b.started[0].Task.Repo)
	}
	if len(state.Tasks) != 1 {
		t.Fatalf("expected RecordDispatch to add a state entry, got %d", len(state.Tasks))
	}
}

func TestDispatchSkipsWhenNoSlotsAvailable(t *testing.T) {
	store, adm, b := newDispatchFixtures(t)
	cfg := config.SquireExecConfig{DefaultRepo: "acme/widgets", MaxConcurrent: 0, MaxPerRepo: 2}
	state := &models.StewardState{}

	outcomes, err := Dispatch(context.Background(),
		[]models.ProposedTask{{Prompt: "fix the flaky test", Priority: models.PriorityMedium, Repo: "acme/widgets"}},
		cfg, store, adm, b, "token", backend.DefaultWorkerConfig(), state)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Skipped != "no available slots" {
		t.Fatalf("expected a no-slots skip, got %+v", outcomes)
	}
	if len(b.started) != 0 {
		t.Fatalf("expected backend.Start not to be called, got %d calls", len(b.started))
	}
}
