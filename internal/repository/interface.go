// Package repository adapts the teacher's multi-operation RepoProvider
// (ListRepos/GetRepo/ForkRepo/CreatePR/SearchRepos) down to the narrower
// surface the Steward Collect stage and auto-merge path actually need:
// per-repo signal enumeration and a single merge call. Squire/Steward never
// forks, searches, or opens pull requests itself — the coding agent inside
// a worker does that — so those teacher operations have no home here (see
// DESIGN.md's internal/repository entry).
package repository

import (
	"context"
	"fmt"

	"github.com/squireai/squire/models"
)

// RepoHost abstracts signal enumeration and merging against a Git hosting
// platform, for the Steward Collect and Auto-merge stages (§4.6).
type RepoHost interface {
	// Name identifies the provider (e.g. "github", "gitlab").
	Name() string

	// AuthToken returns the credential used for API calls.
	AuthToken() string

	// ListOpenPRs returns one Signal per open pull request.
	ListOpenPRs(ctx context.Context, owner, repo string) ([]models.Signal, error)

	// ListFailedChecks returns one Signal per recently failed CI run.
	ListFailedChecks(ctx context.Context, owner, repo string) ([]models.Signal, error)

	// ListOpenIssues returns one Signal per open issue.
	ListOpenIssues(ctx context.Context, owner, repo string) ([]models.Signal, error)

	// ListBotReviews returns one Signal per review/comment left by an
	// account in botUsers, across all open pull requests.
	ListBotReviews(ctx context.Context, owner, repo string, botUsers []string) ([]models.Signal, error)

	// MergePR merges the given pull/merge request.
	MergePR(ctx context.Context, owner, repo string, number int) error
}

// New returns the RepoHost for the given provider name ("github" or
// "gitlab"), authenticated with token against host (empty host means the
// provider's public SaaS instance).
func New(provider, token, host string) (RepoHost, error) {
	switch provider {
	case "github":
		return NewGitHub(token, host)
	case "gitlab":
		return NewGitLab(token, host)
	default:
		return nil, fmt.Errorf("unsupported repo-host provider %q (supported: github, gitlab)", provider)
	}
}
