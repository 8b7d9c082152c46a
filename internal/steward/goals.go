package steward

import (
	"fmt"
	"os"
	"strings"

	"github.com/squireai/squire/internal/config"
)

// LoadGoals resolves each configured GoalRef to text: Text is used verbatim,
// Path is read from disk. Results are joined with a blank line between them
// so the Analyze stage can embed them as a single block in its prompt.
func LoadGoals(refs []config.GoalRef) (string, error) {
	var parts []string
	for _, ref := range refs {
		switch {
		case strings.TrimSpace(ref.Text) != "":
			parts = append(parts, strings.TrimSpace(ref.Text))
		case strings.TrimSpace(ref.Path) != "":
			data, err := os.ReadFile(ref.Path)
			if err != nil {
				return "", fmt.Errorf("reading goals file %s: %w", ref.Path, err)
			}
			parts = append(parts, strings.TrimSpace(string(data)))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
