package models

import "time"

// StewardTaskStatus tracks a dispatched task from Steward's own point of
// view, independent of (but normally converging with) the Task Store's
// TaskStatus.
type StewardTaskStatus string

const (
	StewardDispatched StewardTaskStatus = "dispatched"
	StewardCompleted  StewardTaskStatus = "completed"
	StewardFailed     StewardTaskStatus = "failed"
)

// StewardTaskRecord is one entry of Steward's lightweight task-history
// snapshot (C10), used by the Analyze stage to avoid proposing duplicate
// work for tasks it already dispatched.
type StewardTaskRecord struct {
	TaskID      string            `json:"taskId"`
	Repo        string            `json:"repo"`
	Prompt      string            `json:"prompt"`
	Status      StewardTaskStatus `json:"status"`
	DispatchedAt time.Time        `json:"dispatchedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	PRUrl       string            `json:"prUrl,omitempty"`
}

// StewardState is the single self-describing document persisted between
// pipeline cycles.
type StewardState struct {
	Tasks   []StewardTaskRecord `json:"tasks"`
	LastRun *time.Time          `json:"lastRun,omitempty"`
}
