package steward

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/squireai/squire/internal/llm"
	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/models"
)

const (
	minPromptLen = 10
	maxPromptLen = 2000
)

// Analyze runs the pipeline's third stage: build a single prompt from the
// loaded goals, a one-line-per-signal summary, and task snapshots, then ask
// provider for a JSON array of proposed tasks. An unparseable or schema-
// invalid response is not fatal: it is logged and treated as an empty
// proposal list so the cycle proceeds, per §7's error-handling table.
func Analyze(ctx context.Context, provider llm.Provider, goals string, signals []models.Signal, state *models.StewardState, activeTasks []*models.Task) ([]models.ProposedTask, error) {
	prompt := buildAnalyzePrompt(goals, signals, state, activeTasks)
	raw, err := provider.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("analyze stage: %w", err)
	}
	tasks, err := ParseProposedTasks(raw)
	if err != nil {
		logging.L(ctx, "steward.analyze").Warn("LLM response unparseable, proceeding with no proposed tasks", "error", err)
		return nil, nil
	}
	return tasks, nil
}

func buildAnalyzePrompt(goals string, signals []models.Signal, state *models.StewardState, activeTasks []*models.Task) string {
	var b strings.Builder
	b.WriteString("You are Steward, an automation planner. Given the goals, recent signals, and ")
	b.WriteString("current task activity below, propose new coding task directives.\n\n")
	b.WriteString("Respond with ONLY a JSON array of objects shaped like:\n")
	b.WriteString(`[{"prompt": "...", "priority": "high|medium|low", "depends_on": ["..."], "repo": "owner/name"}]`)
	b.WriteString("\n\n## Goals\n")
	if strings.TrimSpace(goals) == "" {
		b.WriteString("(none configured)\n")
	} else {
		b.WriteString(goals)
		b.WriteString("\n")
	}

	b.WriteString("\n## Signals\n")
	if len(signals) == 0 {
		b.WriteString("(none)\n")
	}
	for _, s := range signals {
		b.WriteString("- ")
		b.WriteString(summarizeSignal(s))
		b.WriteString("\n")
	}

	b.WriteString("\n## Active and recent tasks\n")
	if len(activeTasks) == 0 && (state == nil || len(state.Tasks) == 0) {
		b.WriteString("(none)\n")
	}
	for _, t := range activeTasks {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", t.Status, t.Repo, truncate(t.Prompt, 120))
	}
	if state != nil {
		for _, rec := range state.Tasks {
			fmt.Fprintf(&b, "- [steward:%s] %s: %s\n", rec.Status, rec.Repo, truncate(rec.Prompt, 120))
		}
	}

	return b.String()
}

func summarizeSignal(s models.Signal) string {
	data, _ := s.Data.(map[string]any)
	repo, _ := data["repo"].(string)
	switch s.Type {
	case "pull-request":
		title, _ := data["title"].(string)
		return fmt.Sprintf("[pull-request] %s: %s", repo, title)
	case "ci-failure":
		check, _ := data["checkName"].(string)
		return fmt.Sprintf("[ci-failure] %s: %s failed", repo, check)
	case "issue":
		title, _ := data["title"].(string)
		return fmt.Sprintf("[issue] %s: %s", repo, title)
	case "bot-review":
		finding, _ := data["finding"].(models.BotReviewFinding)
		return fmt.Sprintf("[bot-review] %s: %s:%d %s (confidence %v)", repo, finding.File, finding.Line, finding.Description, s.ReviewConfidence)
	case "file":
		path, _ := data["path"].(string)
		return fmt.Sprintf("[file] %s", path)
	default:
		return fmt.Sprintf("[%s] %s", s.Type, repo)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ParseProposedTasks parses an LLM's raw completion as a JSON array of
// proposed tasks, tolerating a fenced-code wrapper and a {tasks: [...]}
// envelope, then schema-validates each element.
func ParseProposedTasks(raw string) ([]models.ProposedTask, error) {
	body := stripFence(raw)

	var tasks []models.ProposedTask
	if err := json.Unmarshal([]byte(body), &tasks); err != nil {
		var envelope struct {
			Tasks []models.ProposedTask `json:"tasks"`
		}
		if err2 := json.Unmarshal([]byte(body), &envelope); err2 != nil {
			return nil, fmt.Errorf("parsing proposed tasks JSON: %w", err)
		}
		tasks = envelope.Tasks
	}

	valid := make([]models.ProposedTask, 0, len(tasks))
	for i, t := range tasks {
		if err := validateProposedTask(t); err != nil {
			return nil, fmt.Errorf("proposed task %d: %w", i, err)
		}
		valid = append(valid, t)
	}
	return valid, nil
}

func validateProposedTask(t models.ProposedTask) error {
	if l := len(t.Prompt); l < minPromptLen || l > maxPromptLen {
		return fmt.Errorf("prompt length %d out of range [%d,%d]", l, minPromptLen, maxPromptLen)
	}
	switch t.Priority {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
	default:
		return fmt.Errorf("invalid priority %q", t.Priority)
	}
	for _, dep := range t.DependsOn {
		if strings.TrimSpace(dep) == "" {
			return fmt.Errorf("empty depends_on entry")
		}
	}
	return nil
}

// stripFence removes a leading/trailing ```...``` or ```json...``` wrapper,
// if present, and trims surrounding whitespace.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(s[:nl])
		if firstLine == "" || strings.EqualFold(firstLine, "json") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
