package steward

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/squireai/squire/internal/config"
)

func TestLoadGoalsJoinsTextAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goals.md")
	if err := os.WriteFile(path, []byte("Keep dependencies up to date.\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	goals, err := LoadGoals([]config.GoalRef{
		{Text: "Prioritize security fixes."},
		{Path: path},
	})
	if err != nil {
		t.Fatalf("LoadGoals: %v", err)
	}
	want := "Prioritize security fixes.\n\nKeep dependencies up to date."
	if goals != want {
		t.Errorf("LoadGoals = %q, want %q", goals, want)
	}
}

func TestLoadGoalsMissingFileErrors(t *testing.T) {
	_, err := LoadGoals([]config.GoalRef{{Path: filepath.Join(t.TempDir(), "missing.md")}})
	if err == nil {
		t.Fatal("expected an error for a missing goals file")
	}
}

func TestLoadGoalsEmptyRefsReturnsEmptyString(t *testing.T) {
	goals, err := LoadGoals(nil)
	if err != nil {
		t.Fatalf("LoadGoals: %v", err)
	}
	if goals != "" {
		t.Errorf("LoadGoals = %q, want empty", goals)
	}
}
