package repository

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/squireai/squire/models"
)

// GitHubProvider implements RepoHost for GitHub and GitHub Enterprise,
// narrowed from internal/repository/github.go's full RepoProvider.
type GitHubProvider struct {
	client *gogithub.Client
	token  string
	host   string
}

// NewGitHub creates a GitHubProvider. host is the Enterprise hostname, or
// empty for github.com.
func NewGitHub(token, host string) (*GitHubProvider, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	if host != "" && host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", host)
		upload := fmt.Sprintf("https://%s/api/uploads/", host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	return &GitHubProvider{client: client, token: token, host: host}, nil
}

func (g *GitHubProvider) Name() string      { return "github" }
func (g *GitHubProvider) AuthToken() string { return g.token }

func (g *GitHubProvider) ListOpenPRs(ctx context.Context, owner, repo string) ([]models.Signal, error) {
	prs, _, err := g.client.PullRequests.List(ctx, owner, repo, &gogithub.PullRequestListOptions{
		State:       "open",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("listing open PRs on %s/%s: %w", owner, repo, err)
	}
	signals := make([]models.Signal, 0, len(prs))
	for _, pr := range prs {
		signals = append(signals, models.Signal{
			Source: models.SignalSourceRepoHost,
			Type:   "pull-request",
			Data: map[string]any{
				"repo":   owner + "/" + repo,
				"number": pr.GetNumber(),
				"title":  pr.GetTitle(),
				"url":    pr.GetHTMLURL(),
				"author": pr.GetUser().GetLogin(),
			},
			Timestamp: pr.GetUpdatedAt().Time,
		})
	}
	return signals, nil
}

func (g *GitHubProvider) ListFailedChecks(ctx context.Context, owner, repo string) ([]models.Signal, error) {
	runs, _, err := g.client.Actions.ListRepositoryWorkflowRuns(ctx, owner, repo, &gogithub.ListWorkflowRunsOptions{
		Status:      "completed",
		ListOptions: gogithub.ListOptions{PerPage: 50},
	})
	if err != nil {
		return nil, fmt.Errorf("listing workflow runs on %s/%s: %w", owner, repo, err)
	}
	var signals []models.Signal
	for _, run := range runs.WorkflowRuns {
		if run.GetConclusion() != "failure" && run.GetConclusion() != "timed_out" {
			continue
		}
		signals = append(signals, models.Signal{
			Source: models.SignalSourceRepoHost,
			Type:   "ci-failure",
			Data: map[string]any{
				"repo":       owner + "/" + repo,
				"checkName":  run.GetName(),
				"url":        run.GetHTMLURL(),
				"conclusion": run.GetConclusion(),
				"branch":     run.GetHeadBranch(),
			},
			Timestamp: run.GetUpdatedAt().Time,
		})
	}
	return signals, nil
}

func (g *GitHubProvider) ListOpenIssues(ctx context.Context, owner, repo string) ([]models.Signal, error) {
	issues, _, err := g.client.Issues.ListByRepo(ctx, owner, repo, &gogithub.IssueListByRepoOptions{
		State:       "open",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("listing open issues on %s/%s: %w", owner, repo, err)
	}
	signals := make([]models.Signal, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		signals = append(signals, models.Signal{
			Source: models.SignalSourceRepoHost,
			Type:   "issue",
			Data: map[string]any{
				"repo":   owner + "/" + repo,
				"number": issue.GetNumber(),
				"title":  issue.GetTitle(),
				"body":   issue.GetBody(),
				"url":    issue.GetHTMLURL(),
			},
			Timestamp: issue.GetUpdatedAt().Time,
		})
	}
	return signals, nil
}

func (g *GitHubProvider) ListBotReviews(ctx context.Context, owner, repo string, botUsers []string) ([]models.Signal, error) {
	bots := make(map[string]bool, len(botUsers))
	for _, u := range botUsers {
		bots[u] = true
	}

	prs, _, err := g.client.PullRequests.List(ctx, owner, repo, &gogithub.PullRequestListOptions{
		State:       "open",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("listing open PRs on %s/%s: %w", owner, repo, err)
	}

	var signals []models.Signal
	for _, pr := range prs {
		reviews, _, err := g.client.PullRequests.ListReviews(ctx, owner, repo, pr.GetNumber(), &gogithub.ListOptions{PerPage: 100})
		if err != nil {
			return nil, fmt.Errorf("listing reviews on %s/%s#%d: %w", owner, repo, pr.GetNumber(), err)
		}
		for _, review := range reviews {
			login := review.GetUser().GetLogin()
			if !bots[login] {
				continue
			}
			finding := ParseBotReviewBody(review.GetBody())
			signals = append(signals, models.Signal{
				Source: models.SignalSourceRepoHost,
				Type:   "bot-review",
				Data: map[string]any{
					"repo":     owner + "/" + repo,
					"prNumber": pr.GetNumber(),
					"prUrl":    pr.GetHTMLURL(),
					"reviewer": login,
					"body":     review.GetBody(),
					"finding":  finding,
				},
				Timestamp:        review.GetSubmittedAt().Time,
				ReviewConfidence: finding.Confidence,
			})
		}
	}
	return signals, nil
}

func (g *GitHubProvider) MergePR(ctx context.Context, owner, repo string, number int) error {
	_, _, err := g.client.PullRequests.Merge(ctx, owner, repo, number, "", &gogithub.PullRequestOptions{
		MergeMethod: "squash",
	})
	if err != nil {
		return fmt.Errorf("merging %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}
