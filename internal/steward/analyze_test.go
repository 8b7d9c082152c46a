package steward

import "testing"

func TestParseProposedTasksPlainArray(t *testing.T) {
	raw := `[{"prompt": "add input validation to the signup form", "priority": "high", "depends_on": []}]`
	tasks, err := ParseProposedTasks(raw)
	if err != nil {
		t.Fatalf("ParseProposedTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Priority != "high" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestParseProposedTasksFencedCodeBlock(t *testing.T) {
	raw := "```json\n[{\"prompt\": \"add input validation to the signup form\", \"priority\": \"low\", \"depends_on\": []}]\n```"
	tasks, err := ParseProposedTasks(raw)
	if err != nil {
		t.Fatalf("ParseProposedTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Priority != "low" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestParseProposedTasksEnvelope(t *testing.T) {
	raw := `{"tasks": [{"prompt": "add input validation to the signup form", "priority": "medium", "depends_on": ["other-task"]}]}`
	tasks, err := ParseProposedTasks(raw)
	if err != nil {
		t.Fatalf("ParseProposedTasks: %v", err)
	}
	if len(tasks) != 1 || len(tasks[0].DependsOn) != 1 {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestParseProposedTasksRejectsShortPrompt(t *testing.T) {
	raw := `[{"prompt": "too short", "priority": "high", "depends_on": []}]`
	if _, err := ParseProposedTasks(raw); err == nil {
		t.Fatal("expected error for under-length prompt")
	}
}

func TestParseProposedTasksRejectsBadPriority(t *testing.T) {
	raw := `[{"prompt": "add input validation to the signup form", "priority": "urgent", "depends_on": []}]`
	if _, err := ParseProposedTasks(raw); err == nil {
		t.Fatal("expected error for invalid priority")
	}
}

func TestParseProposedTasksInvalidJSON(t *testing.T) {
	if _, err := ParseProposedTasks("not json at all"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
