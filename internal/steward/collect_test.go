package steward

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/models"
)

// countingHost records which list methods were invoked, so tests can assert
// collectFromHost only calls the watched kinds.
type countingHost struct {
	fakeHost
	prCalls, ciCalls, issueCalls, reviewCalls int
}

func (c *countingHost) ListOpenPRs(ctx context.Context, owner, repo string) ([]models.Signal, error) {
	c.prCalls++
	return []models.Signal{{Type: "pull-request"}}, nil
}
func (c *countingHost) ListFailedChecks(ctx context.Context, owner, repo string) ([]models.Signal, error) {
	c.ciCalls++
	return nil, nil
}
func (c *countingHost) ListOpenIssues(ctx context.Context, owner, repo string) ([]models.Signal, error) {
	c.issueCalls++
	return nil, nil
}
func (c *countingHost) ListBotReviews(ctx context.Context, owner, repo string, botUsers []string) ([]models.Signal, error) {
	c.reviewCalls++
	return nil, nil
}

func TestCollectFromHostOnlyCallsWatchedKinds(t *testing.T) {
	host := &countingHost{}
	watch := config.RepoHostWatch{Repos: []string{"acme/widgets"}, Watch: []string{"prs", "issues"}}

	signals, err := collectFromHost(context.Background(), host, watch, nil)
	if err != nil {
		t.Fatalf("collectFromHost: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	if host.prCalls != 1 || host.issueCalls != 1 {
		t.Errorf("expected prs and issues to be called, got prCalls=%d issueCalls=%d", host.prCalls, host.issueCalls)
	}
	if host.ciCalls != 0 || host.reviewCalls != 0 {
		t.Errorf("expected ci and reviews not to be called, got ciCalls=%d reviewCalls=%d", host.ciCalls, host.reviewCalls)
	}
}

func TestCollectFromHostSkipsMalformedRepo(t *testing.T) {
	host := &countingHost{}
	watch := config.RepoHostWatch{Repos: []string{"not-a-repo"}, Watch: []string{"prs"}}

	signals, err := collectFromHost(context.Background(), host, watch, nil)
	if err != nil {
		t.Fatalf("collectFromHost: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("expected no signals for a malformed repo entry, got %d", len(signals))
	}
	if host.prCalls != 0 {
		t.Errorf("expected ListOpenPRs not to be called for a malformed repo, got %d calls", host.prCalls)
	}
}

func TestSplitOwnerRepo(t *testing.T) {
	cases := map[string]bool{
		"acme/widgets": true,
		"acme/":        false,
		"/widgets":     false,
		"nodelimiter":  false,
	}
	for repo, wantOK := range cases {
		_, _, ok := splitOwnerRepo(repo)
		if ok != wantOK {
			t.Errorf("splitOwnerRepo(%q) ok = %v, want %v", repo, ok, wantOK)
		}
	}
}

func TestCollectReadsFileSignals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("build is flaky"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	signals, err := Collect(context.Background(), config.SignalsConfig{Files: []string{path}}, nil, "", "", "")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(signals) != 1 || signals[0].Type != "file" {
		t.Fatalf("expected 1 file signal, got %+v", signals)
	}
}

func TestCollectSkipsUnreadableFileSignal(t *testing.T) {
	signals, err := Collect(context.Background(), config.SignalsConfig{Files: []string{filepath.Join(t.TempDir(), "missing.txt")}}, nil, "", "", "")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("expected no signals for an unreadable file, got %d", len(signals))
	}
}
