package steward

import (
	"context"
	"testing"

	"github.com/squireai/squire/internal/repository"
	"github.com/squireai/squire/models"
)

type fakeHost struct {
	merged []string
	err    error
}

func (f *fakeHost) Name() string      { return "fake" }
func (f *fakeHost) AuthToken() string { return "" }
func (f *fakeHost) ListOpenPRs(ctx context.Context, owner, repo string) ([]models.Signal, error) {
	return nil, nil
}
func (f *fakeHost) ListFailedChecks(ctx context.Context, owner, repo string) ([]models.Signal, error) {
	return nil, nil
}
func (f *fakeHost) ListOpenIssues(ctx context.Context, owner, repo string) ([]models.Signal, error) {
	return nil, nil
}
func (f *fakeHost) ListBotReviews(ctx context.Context, owner, repo string, botUsers []string) ([]models.Signal, error) {
	return nil, nil
}
func (f *fakeHost) MergePR(ctx context.Context, owner, repo string, number int) error {
	if f.err != nil {
		return f.err
	}
	f.merged = append(f.merged, owner+"/"+repo)
	return nil
}

func confidencePtr(n int) *int { return &n }

func TestAutoMergeFiltersByConfidence(t *testing.T) {
	host := &fakeHost{}
	signals := []models.Signal{
		{Type: "bot-review", ReviewConfidence: confidencePtr(3), Data: map[string]any{"repo": "acme/widgets", "prNumber": 1}},
		{Type: "bot-review", ReviewConfidence: confidencePtr(5), Data: map[string]any{"repo": "acme/widgets", "prNumber": 2}},
	}
	results := AutoMerge(context.Background(), signals, func(string) repository.RepoHost { return host }, 5)
	if len(results) != 1 || !results[0].Merged {
		t.Fatalf("expected exactly 1 merge, got %+v", results)
	}
	if results[0].PRNumber != 2 {
		t.Errorf("PRNumber = %d, want 2", results[0].PRNumber)
	}
}

func TestAutoMergeDedupesSamePR(t *testing.T) {
	host := &fakeHost{}
	signals := []models.Signal{
		{Type: "bot-review", ReviewConfidence: confidencePtr(5), Data: map[string]any{"repo": "acme/widgets", "prNumber": 1}},
		{Type: "bot-review", ReviewConfidence: confidencePtr(5), Data: map[string]any{"repo": "acme/widgets", "prNumber": 1}},
	}
	AutoMerge(context.Background(), signals, func(string) repository.RepoHost { return host }, 5)
	if len(host.merged) != 1 {
		t.Fatalf("expected 1 merge call, got %d", len(host.merged))
	}
}
