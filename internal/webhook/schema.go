package webhook

import "fmt"

// SchemaError names the offending JSON path of a failed validation, per
// spec §4.5's "400 with a message naming the offending path".
type SchemaError struct {
	Path string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("webhook payload missing or invalid field %q", e.Path)
}

// requirePath walks a dotted path through nested map[string]any and asserts
// the terminal value exists and is not a "zero" JSON value (empty string,
// nil, or missing key). Numbers and booleans of any value satisfy presence.
func requirePath(doc map[string]any, path string) error {
	if _, err := lookupPath(doc, path); err != nil {
		return err
	}
	return nil
}

func lookupPath(doc map[string]any, path string) (any, error) {
	cur := any(doc)
	parts := splitPath(path)
	for i, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, &SchemaError{Path: path}
		}
		v, present := m[p]
		if !present {
			return nil, &SchemaError{Path: path}
		}
		if i == len(parts)-1 {
			if s, ok := v.(string); ok && s == "" {
				return nil, &SchemaError{Path: path}
			}
			if v == nil {
				return nil, &SchemaError{Path: path}
			}
		}
		cur = v
	}
	return cur, nil
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			out = append(out, path[start:i])
			start = i + 1
		}
	}
	out = append(out, path[start:])
	return out
}

// optionalString reads a dotted path, returning "" if any segment is absent.
func optionalString(doc map[string]any, path string) string {
	v, err := lookupPath(doc, path)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func optionalBool(doc map[string]any, path string) bool {
	v, err := lookupPath(doc, path)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

func optionalInt(doc map[string]any, path string) int {
	v, err := lookupPath(doc, path)
	if err != nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// requiredFields maps each recognized event kind to the dotted JSON paths
// spec §6's event-schema table requires, beyond the blanket "action" field.
var requiredFields = map[string][]string{
	"pull-request": {
		"pull_request.html_url",
		"pull_request.number",
	},
	"issue-comment": {
		"issue.html_url",
		"issue.number",
		"comment.body",
		"comment.user.login",
	},
	"pull-request-review": {
		"pull_request.html_url",
		"pull_request.number",
		"review.user.login",
		"review.state",
	},
	"pull-request-review-comment": {
		"pull_request.html_url",
		"pull_request.number",
		"comment.body",
		"comment.user.login",
	},
	"check-run": {
		"check_run.name",
		"repository.full_name",
	},
}

// validateSchema enforces "action" plus the per-kind required paths. Unknown
// kinds are not validated here — the caller accepts them as a no-op per
// §4.5.
func validateSchema(kind string, doc map[string]any) error {
	if err := requirePath(doc, "action"); err != nil {
		return err
	}
	for _, path := range requiredFields[kind] {
		if err := requirePath(doc, path); err != nil {
			return err
		}
	}
	return nil
}
