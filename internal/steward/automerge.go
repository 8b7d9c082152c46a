package steward

import (
	"context"
	"fmt"

	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/repository"
	"github.com/squireai/squire/models"
)

// MergeResult records the outcome of one attempted auto-merge.
type MergeResult struct {
	Repo     string
	PRNumber int
	Merged   bool
	Error    string
}

// prKey identifies one unique (repo, prNumber) pair so duplicate bot-review
// signals on the same PR only trigger one merge attempt.
type prKey struct {
	repo   string
	number int
}

// HostResolver returns the RepoHost that owns repo (an "owner/name" string),
// or nil if no configured host covers it.
type HostResolver func(repo string) repository.RepoHost

// AutoMerge runs the pipeline's optional second stage: signals whose
// ReviewConfidence is at or above minConfidence are grouped by unique PR and
// merged via the repo's resolved host, one attempt per PR regardless of how
// many qualifying signals reference it.
func AutoMerge(ctx context.Context, signals []models.Signal, resolveHost HostResolver, minConfidence int) []MergeResult {
	logger := logging.L(ctx, "steward.automerge")

	seen := make(map[prKey]bool)
	var results []MergeResult

	for _, sig := range signals {
		if sig.ReviewConfidence == nil || *sig.ReviewConfidence < minConfidence {
			continue
		}
		data, ok := sig.Data.(map[string]any)
		if !ok {
			continue
		}
		repo, _ := data["repo"].(string)
		number := intFromAny(data["prNumber"])
		if repo == "" || number == 0 {
			continue
		}
		key := prKey{repo: repo, number: number}
		if seen[key] {
			continue
		}
		seen[key] = true

		owner, name, ok := splitOwnerRepo(repo)
		if !ok {
			results = append(results, MergeResult{Repo: repo, PRNumber: number, Error: fmt.Sprintf("malformed repo %q", repo)})
			continue
		}
		host := resolveHost(repo)
		if host == nil {
			results = append(results, MergeResult{Repo: repo, PRNumber: number, Error: "no configured host for repo"})
			continue
		}
		if err := host.MergePR(ctx, owner, name, number); err != nil {
			logger.Warn("auto-merge failed", "repo", repo, "pr", number, "error", err)
			results = append(results, MergeResult{Repo: repo, PRNumber: number, Error: err.Error()})
			continue
		}
		logger.Info("auto-merged PR", "repo", repo, "pr", number, "confidence", *sig.ReviewConfidence)
		results = append(results, MergeResult{Repo: repo, PRNumber: number, Merged: true})
	}
	return results
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
