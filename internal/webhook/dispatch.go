package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/metrics"
	"github.com/squireai/squire/internal/task"
	"github.com/squireai/squire/models"
)

// dispatch routes a schema-validated payload by kind to its handler, per
// spec §4.5's event-handling table.
func (h *Handler) dispatch(ctx context.Context, kind string, doc map[string]any) error {
	switch kind {
	case "pull-request":
		return h.handlePullRequest(ctx, doc)
	case "issue-comment":
		return h.handleIssueComment(ctx, doc)
	case "pull-request-review":
		return h.handlePullRequestReview(ctx, doc)
	case "pull-request-review-comment":
		return h.handleReviewComment(ctx, doc)
	case "check-run":
		return h.handleCheckRun(ctx, doc)
	default:
		return nil
	}
}

// findByPRUrl locates the task whose prUrl equals url, per §4.5's
// correlation rule for PR/comment/review events.
func (h *Handler) findByPRUrl(ctx context.Context, url string) (*models.Task, error) {
	tasks, err := h.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.PRUrl == url {
			return t, nil
		}
	}
	return nil, nil
}

// findByRepoAndPR locates the task matching (repo, prNumber), the check-run
// correlation rule of §4.5 ("reconstructed into a URL" collapses, since the
// stored task already carries both fields, to a direct field match).
func (h *Handler) findByRepoAndPR(ctx context.Context, repo string, prNumber int) (*models.Task, error) {
	tasks, err := h.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Repo == repo && t.PRNumber == prNumber {
			return t, nil
		}
	}
	return nil, nil
}

func (h *Handler) handlePullRequest(ctx context.Context, doc map[string]any) error {
	url := optionalString(doc, "pull_request.html_url")
	t, err := h.findByPRUrl(ctx, url)
	if err != nil || t == nil {
		return err
	}
	if optionalString(doc, "action") != "closed" {
		return nil
	}
	now := time.Now().UTC()
	if optionalBool(doc, "merged") {
		_, _, err = h.store.Update(ctx, t.ID, map[string]any{"prMerged": true, "prMergedAt": now})
	} else {
		_, _, err = h.store.Update(ctx, t.ID, map[string]any{"prClosed": true, "prClosedAt": now})
	}
	return err
}

func (h *Handler) handleIssueComment(ctx context.Context, doc map[string]any) error {
	url := optionalString(doc, "issue.html_url")
	t, err := h.findByPRUrl(ctx, url)
	if err != nil || t == nil {
		return err
	}
	// No direct mutation; logged as the callback site spec §4.5 names.
	logging.Audit(ctx, "webhook", "issue-comment", map[string]any{
		"taskId": t.ID,
		"author": optionalString(doc, "comment.user.login"),
	})
	return nil
}

func (h *Handler) isReviewBot(login string) bool {
	for _, u := range h.cfg.ReviewBotUsers {
		if u == login {
			return true
		}
	}
	return false
}

func (h *Handler) handlePullRequestReview(ctx context.Context, doc map[string]any) error {
	action := optionalString(doc, "action")
	if action != "submitted" {
		return nil
	}
	state := optionalString(doc, "review.state")
	if state != "changes_requested" && state != "commented" {
		return nil
	}
	reviewer := optionalString(doc, "review.user.login")
	if !h.isReviewBot(reviewer) {
		return nil
	}
	url := optionalString(doc, "pull_request.html_url")
	t, err := h.findByPRUrl(ctx, url)
	if err != nil || t == nil {
		return err
	}
	body := optionalString(doc, "review.body")
	return h.autoFixReview(ctx, t, reviewer, body)
}

func (h *Handler) handleReviewComment(ctx context.Context, doc map[string]any) error {
	author := optionalString(doc, "comment.user.login")
	if !h.isReviewBot(author) {
		return nil
	}
	url := optionalString(doc, "pull_request.html_url")
	t, err := h.findByPRUrl(ctx, url)
	if err != nil || t == nil {
		return err
	}
	body := optionalString(doc, "comment.body")
	path := optionalString(doc, "comment.path")
	line := optionalInt(doc, "comment.line")
	inline := fmt.Sprintf("File: %s\nLine: %d\nIssue: %s", path, line, body)
	return h.autoFixReview(ctx, t, author, inline)
}

func (h *Handler) handleCheckRun(ctx context.Context, doc map[string]any) error {
	if optionalString(doc, "action") != "completed" {
		return nil
	}
	conclusion := optionalString(doc, "check_run.conclusion")
	if conclusion != "failure" && conclusion != "timed_out" {
		return nil
	}
	repo := optionalString(doc, "repository.full_name")
	name := optionalString(doc, "check_run.name")
	summary := optionalString(doc, "check_run.output.summary")
	text := optionalString(doc, "check_run.output.text")
	logs := summary + "\n\n" + text

	prs, _ := lookupPath(doc, "check_run.pull_requests")
	list, _ := prs.([]any)
	for _, raw := range list {
		pr, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		num := optionalInt(pr, "number")
		t, err := h.findByRepoAndPR(ctx, repo, num)
		if err != nil {
			return err
		}
		if t == nil {
			continue
		}
		now := time.Now().UTC()
		if _, _, err := h.store.Update(ctx, t.ID, map[string]any{
			"ciFailed":      true,
			"ciFailedAt":    now,
			"ciFailedCheck": name,
		}); err != nil {
			return err
		}
		if err := h.autoFixCI(ctx, t, name, logs); err != nil {
			return err
		}
	}
	return nil
}

// autoFixCI synthesizes and dispatches a same-branch follow-up task when CI
// fails and none is already in flight, per §4.5's auto-fix-ci policy.
func (h *Handler) autoFixCI(ctx context.Context, parent *models.Task, checkName, logs string) error {
	if parent.CIFixTaskID != "" {
		if child, found, err := h.store.Get(ctx, parent.CIFixTaskID); err == nil && found {
			if !child.Status.IsTerminal() {
				return nil // duplicate-suppression: a fix is already in flight
			}
		}
	}
	prompt := fmt.Sprintf("CI check %q failed on branch %s. Fix it.\n\n%s", checkName, parent.Branch, logs)
	child, err := h.store.Create(ctx, task.CreateInput{
		Repo:       parent.Repo,
		Prompt:     prompt,
		Branch:     parent.Branch,
		BaseBranch: parent.BaseBranch,
	})
	if err != nil {
		return fmt.Errorf("creating auto-fix-ci task: %w", err)
	}
	if _, _, err := h.store.Update(ctx, child.ID, map[string]any{"parentTaskId": parent.ID}); err != nil {
		return err
	}
	if _, _, err := h.store.Update(ctx, parent.ID, map[string]any{"ciFixTaskId": child.ID}); err != nil {
		return err
	}
	return h.dispatchChild(ctx, child)
}

// autoFixReview synthesizes and dispatches a follow-up task addressing a bot
// review, per §4.5's auto-fix-reviews policy.
func (h *Handler) autoFixReview(ctx context.Context, parent *models.Task, reviewer, content string) error {
	if parent.ReviewFixTaskID != "" {
		if child, found, err := h.store.Get(ctx, parent.ReviewFixTaskID); err == nil && found {
			if !child.Status.IsTerminal() {
				return nil
			}
		}
	}
	prompt := fmt.Sprintf("Address review feedback from %s on branch %s:\n\n%s", reviewer, parent.Branch, content)
	child, err := h.store.Create(ctx, task.CreateInput{
		Repo:       parent.Repo,
		Prompt:     prompt,
		Branch:     parent.Branch,
		BaseBranch: parent.BaseBranch,
	})
	if err != nil {
		return fmt.Errorf("creating auto-fix-reviews task: %w", err)
	}
	now := time.Now().UTC()
	if _, _, err := h.store.Update(ctx, child.ID, map[string]any{"parentTaskId": parent.ID}); err != nil {
		return err
	}
	if _, _, err := h.store.Update(ctx, parent.ID, map[string]any{
		"reviewFixTaskId": child.ID,
		"reviewFixedAt":   now,
	}); err != nil {
		return err
	}
	return h.dispatchChild(ctx, child)
}

func (h *Handler) dispatchChild(ctx context.Context, child *models.Task) error {
	workerID, err := h.backend.Start(ctx, backend.StartRequest{
		Task:          child,
		RepoHostToken: h.token,
		Model:         h.model,
		Image:         h.image,
		Config:        h.workers,
	})
	if err != nil {
		_, _, updErr := h.store.Update(ctx, child.ID, map[string]any{
			"status": string(models.StatusFailed),
			"error":  err.Error(),
		})
		if updErr != nil {
			return updErr
		}
		return err
	}
	now := time.Now().UTC()
	updated, _, err := h.store.Update(ctx, child.ID, map[string]any{
		"status":    string(models.StatusRunning),
		"workerId":  workerID,
		"startedAt": now,
	})
	if err != nil {
		return err
	}
	metrics.Default().TasksRunning.Inc()
	go backend.Supervise(context.WithoutCancel(ctx), h.backend, h.store, updated, workerID, h.workers, nil)
	return nil
}
