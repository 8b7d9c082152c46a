package repository

import "testing"

func TestParseBotReviewBodyFullFields(t *testing.T) {
	body := "File: internal/foo.go\nLine: 42\nIssue: missing nil check\nConfidence Score: 4/5\n"
	f := ParseBotReviewBody(body)
	if f.File != "internal/foo.go" {
		t.Errorf("File = %q, want %q", f.File, "internal/foo.go")
	}
	if f.Line != 42 {
		t.Errorf("Line = %d, want 42", f.Line)
	}
	if f.Description != "missing nil check" {
		t.Errorf("Description = %q, want %q", f.Description, "missing nil check")
	}
	if f.Confidence == nil || *f.Confidence != 4 {
		t.Fatalf("Confidence = %v, want 4", f.Confidence)
	}
}

func TestParseBotReviewBodyConfidenceRounding(t *testing.T) {
	// round(5*3/4) = round(3.75) = 4
	f := ParseBotReviewBody("Confidence Score: 3/4")
	if f.Confidence == nil || *f.Confidence != 4 {
		t.Fatalf("Confidence = %v, want 4", f.Confidence)
	}
}

func TestParseBotReviewBodyNoConfidence(t *testing.T) {
	f := ParseBotReviewBody("File: a.go\nLine: 1\nIssue: something\n")
	if f.Confidence != nil {
		t.Fatalf("expected nil confidence, got %v", *f.Confidence)
	}
}
