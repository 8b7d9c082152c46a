package steward

import (
	"context"
	"fmt"
	"strings"

	"github.com/squireai/squire/internal/task"
	"github.com/squireai/squire/models"
)

// ProjectedStatus is a just-dispatched task's status as seen from the Task
// Store at report time, collapsed to the four outcomes §4.6's Monitor &
// report stage names.
type ProjectedStatus string

const (
	ProjectedRunning   ProjectedStatus = "running"
	ProjectedCompleted ProjectedStatus = "completed"
	ProjectedFailed    ProjectedStatus = "failed"
	ProjectedUnknown   ProjectedStatus = "unknown"
)

// MonitorEntry is one just-dispatched task's reported outcome.
type MonitorEntry struct {
	TaskID string
	Repo   string
	Status ProjectedStatus
	PRUrl  string
}

// Monitor runs the pipeline's fifth stage: for each just-dispatched task, re-
// read its status from store, project it to one of the four outcomes, and
// update state with any terminal result.
func Monitor(ctx context.Context, store task.Store, state *models.StewardState, dispatched []DispatchOutcome) ([]MonitorEntry, error) {
	var entries []MonitorEntry
	for _, d := range dispatched {
		if d.TaskID == "" {
			continue
		}
		t, found, err := store.Get(ctx, d.TaskID)
		if err != nil {
			return nil, fmt.Errorf("reading back task %s: %w", d.TaskID, err)
		}
		entry := MonitorEntry{TaskID: d.TaskID, Repo: d.Task.Repo}
		if !found {
			entry.Status = ProjectedUnknown
			entries = append(entries, entry)
			continue
		}
		entry.Repo = t.Repo
		entry.PRUrl = t.PRUrl
		switch t.Status {
		case models.StatusRunning, models.StatusPending:
			entry.Status = ProjectedRunning
		case models.StatusCompleted:
			entry.Status = ProjectedCompleted
			MarkCompleted(state, d.TaskID, t.PRUrl)
		case models.StatusFailed:
			entry.Status = ProjectedFailed
			MarkFailed(state, d.TaskID)
		default:
			entry.Status = ProjectedUnknown
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Report formats entries as a grouped console summary of dispatched vs
// failed tasks, per §4.6's "print a grouped console report" requirement.
func Report(entries []MonitorEntry) string {
	var b strings.Builder
	var running, completed, failed, unknown []MonitorEntry
	for _, e := range entries {
		switch e.Status {
		case ProjectedRunning:
			running = append(running, e)
		case ProjectedCompleted:
			completed = append(completed, e)
		case ProjectedFailed:
			failed = append(failed, e)
		default:
			unknown = append(unknown, e)
		}
	}

	fmt.Fprintf(&b, "Steward cycle: %d dispatched, %d running, %d completed, %d failed, %d unknown\n",
		len(entries), len(running), len(completed), len(failed), len(unknown))
	for _, group := range []struct {
		label   string
		entries []MonitorEntry
	}{
		{"Running", running},
		{"Completed", completed},
		{"Failed", failed},
		{"Unknown", unknown},
	} {
		if len(group.entries) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", group.label)
		for _, e := range group.entries {
			fmt.Fprintf(&b, "  - %s (%s)", e.TaskID, e.Repo)
			if e.PRUrl != "" {
				fmt.Fprintf(&b, " -> %s", e.PRUrl)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
