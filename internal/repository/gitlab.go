package repository

import (
	"context"
	"fmt"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/squireai/squire/models"
)

// timeOrZero dereferences a possibly-nil *time.Time, returning the zero
// value when absent.
func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// GitLabProvider implements RepoHost for GitLab (cloud and self-hosted),
// narrowed from internal/repository/gitlab.go's full RepoProvider.
type GitLabProvider struct {
	client *gitlab.Client
	token  string
	host   string
}

// NewGitLab creates a GitLabProvider. host is the self-hosted hostname, or
// empty for gitlab.com.
func NewGitLab(token, host string) (*GitLabProvider, error) {
	opts := []gitlab.ClientOptionFunc{}
	if host != "" && host != "gitlab.com" {
		base := fmt.Sprintf("https://%s/api/v4/", host)
		opts = append(opts, gitlab.WithBaseURL(base))
	}
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}
	return &GitLabProvider{client: client, token: token, host: host}, nil
}

func (g *GitLabProvider) Name() string      { return "gitlab" }
func (g *GitLabProvider) AuthToken() string { return g.token }

func (g *GitLabProvider) ListOpenPRs(ctx context.Context, owner, repo string) ([]models.Signal, error) {
	pid := owner + "/" + repo
	state := "opened"
	mrs, _, err := g.client.MergeRequests.ListProjectMergeRequests(pid, &gitlab.ListProjectMergeRequestsOptions{
		State:       &state,
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing open MRs on %s: %w", pid, err)
	}
	signals := make([]models.Signal, 0, len(mrs))
	for _, mr := range mrs {
		signals = append(signals, models.Signal{
			Source: models.SignalSourceRepoHost,
			Type:   "pull-request",
			Data: map[string]any{
				"repo":   pid,
				"number": mr.IID,
				"title":  mr.Title,
				"url":    mr.WebURL,
				"author": mr.Author.Username,
			},
			Timestamp: timeOrZero(mr.UpdatedAt),
		})
	}
	return signals, nil
}

func (g *GitLabProvider) ListFailedChecks(ctx context.Context, owner, repo string) ([]models.Signal, error) {
	pid := owner + "/" + repo
	scope := "finished"
	pipelines, _, err := g.client.Pipelines.ListProjectPipelines(pid, &gitlab.ListProjectPipelinesOptions{
		Scope:       &scope,
		ListOptions: gitlab.ListOptions{PerPage: 50},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing pipelines on %s: %w", pid, err)
	}
	var signals []models.Signal
	for _, p := range pipelines {
		if p.Status != "failed" {
			continue
		}
		signals = append(signals, models.Signal{
			Source: models.SignalSourceRepoHost,
			Type:   "ci-failure",
			Data: map[string]any{
				"repo":       pid,
				"checkName":  fmt.Sprintf("pipeline-%d", p.ID),
				"url":        p.WebURL,
				"conclusion": p.Status,
				"branch":     p.Ref,
			},
			Timestamp: timeOrZero(p.UpdatedAt),
		})
	}
	return signals, nil
}

func (g *GitLabProvider) ListOpenIssues(ctx context.Context, owner, repo string) ([]models.Signal, error) {
	pid := owner + "/" + repo
	state := "opened"
	issues, _, err := g.client.Issues.ListProjectIssues(pid, &gitlab.ListProjectIssuesOptions{
		State:       &state,
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing open issues on %s: %w", pid, err)
	}
	signals := make([]models.Signal, 0, len(issues))
	for _, issue := range issues {
		signals = append(signals, models.Signal{
			Source: models.SignalSourceRepoHost,
			Type:   "issue",
			Data: map[string]any{
				"repo":   pid,
				"number": issue.IID,
				"title":  issue.Title,
				"body":   issue.Description,
				"url":    issue.WebURL,
			},
			Timestamp: timeOrZero(issue.UpdatedAt),
		})
	}
	return signals, nil
}

func (g *GitLabProvider) ListBotReviews(ctx context.Context, owner, repo string, botUsers []string) ([]models.Signal, error) {
	bots := make(map[string]bool, len(botUsers))
	for _, u := range botUsers {
		bots[u] = true
	}

	pid := owner + "/" + repo
	state := "opened"
	mrs, _, err := g.client.MergeRequests.ListProjectMergeRequests(pid, &gitlab.ListProjectMergeRequestsOptions{
		State:       &state,
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing open MRs on %s: %w", pid, err)
	}

	var signals []models.Signal
	for _, mr := range mrs {
		notes, _, err := g.client.Notes.ListMergeRequestNotes(pid, mr.IID, &gitlab.ListMergeRequestNotesOptions{
			PerPage: 100,
		}, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing notes on %s!%d: %w", pid, mr.IID, err)
		}
		for _, note := range notes {
			if note.Author.Username == "" || !bots[note.Author.Username] {
				continue
			}
			finding := ParseBotReviewBody(note.Body)
			signals = append(signals, models.Signal{
				Source: models.SignalSourceRepoHost,
				Type:   "bot-review",
				Data: map[string]any{
					"repo":     pid,
					"prNumber": mr.IID,
					"prUrl":    mr.WebURL,
					"reviewer": note.Author.Username,
					"body":     note.Body,
					"finding":  finding,
				},
				Timestamp:        timeOrZero(note.UpdatedAt),
				ReviewConfidence: finding.Confidence,
			})
		}
	}
	return signals, nil
}

func (g *GitLabProvider) MergePR(ctx context.Context, owner, repo string, number int) error {
	pid := owner + "/" + repo
	_, _, err := g.client.MergeRequests.AcceptMergeRequest(pid, number, &gitlab.AcceptMergeRequestOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("merging %s!%d: %w", pid, number, err)
	}
	return nil
}
