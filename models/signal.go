package models

import "time"

// SignalSource identifies where a Steward Signal originated.
type SignalSource string

const (
	SignalSourceRepoHost  SignalSource = "repo-host"
	SignalSourceAnalytics SignalSource = "analytics"
	SignalSourceFile      SignalSource = "file"
)

// Signal is one external observation collected by the Steward pipeline's
// Collect stage: an open PR, a failed CI run, an open issue, or a bot
// review comment.
type Signal struct {
	Source           SignalSource `json:"source"`
	Type             string       `json:"type"`
	Data             any          `json:"data"`
	Timestamp        time.Time    `json:"timestamp"`
	ReviewConfidence *int         `json:"reviewConfidence,omitempty"` // 0-5
}

// Priority is the dispatch priority an LLM-synthesized task is tagged with.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ProposedTask is one element of the Analyze stage's parsed LLM response.
// Repo is the task's target repository; an empty or disallowed Repo falls
// back to the dispatch stage's configured default repo.
type ProposedTask struct {
	Prompt    string   `json:"prompt"`
	Priority  Priority `json:"priority"`
	DependsOn []string `json:"depends_on"`
	Repo      string   `json:"repo,omitempty"`
}

// BotReviewFinding is the structured result of parsing a bot code-review
// comment body for File:/Line:/Issue:/Confidence Score: fields.
type BotReviewFinding struct {
	File        string
	Line        int
	Description string
	Confidence  *int // 0-5, nil if absent
}
