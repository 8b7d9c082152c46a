package llm

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	name      string
	responses []string
	errs      []error
	calls     int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("fakeProvider: out of scripted responses")
}

func TestChainFallsBackOnRetriableError(t *testing.T) {
	primary := &fakeProvider{name: "primary", errs: []error{errors.New("status 503 service unavailable")}}
	fallback := &fakeProvider{name: "fallback", responses: []string{"ok from fallback"}}
	chain := NewChain(primary, fallback)

	out, err := chain.Complete(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok from fallback" {
		t.Fatalf("expected fallback response, got %q", out)
	}
}

func TestChainStopsOnNonRetriableError(t *testing.T) {
	primary := &fakeProvider{name: "primary", errs: []error{errors.New("status 400 bad request")}}
	fallback := &fakeProvider{name: "fallback", responses: []string{"should not be reached"}}
	chain := NewChain(primary, fallback)

	_, err := chain.Complete(context.Background(), "do the thing")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if fallback.calls != 0 {
		t.Fatalf("expected fallback not to be tried, got %d calls", fallback.calls)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	b := newCircuitBreaker()
	for i := 0; i < failureThreshold; i++ {
		if !b.allow() {
			t.Fatalf("breaker should still allow calls before threshold (iteration %d)", i)
		}
		b.recordFailure()
	}
	if b.allow() {
		t.Fatal("expected breaker to be open after reaching failure threshold")
	}
}

func TestCircuitBreakerClosesOnSuccess(t *testing.T) {
	b := newCircuitBreaker()
	b.recordFailure()
	b.recordFailure()
	b.recordSuccess()
	if b.state != "closed" || b.failures != 0 {
		t.Fatalf("expected breaker reset to closed/0 failures, got state=%s failures=%d", b.state, b.failures)
	}
}

func TestIsRetriableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("status 429 too many requests"), true},
		{errors.New("status 503 service unavailable"), true},
		{errors.New("request timeout"), true},
		{errors.New("connection refused"), true},
		{errors.New("status 400 bad request"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := isRetriableError(c.err); got != c.want {
			t.Errorf("isRetriableError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestIsAuthError(t *testing.T) {
	if !isAuthError(errors.New("status 401 unauthorized")) {
		t.Fatal("expected 401 to be classified as an auth error")
	}
	if isAuthError(errors.New("status 500 internal server error")) {
		t.Fatal("did not expect 500 to be classified as an auth error")
	}
}

func TestModelSpec(t *testing.T) {
	cases := []struct {
		model        string
		wantProvider string
		wantID       string
	}{
		{"opencode/glm-4.7-free", "opencode", "glm-4.7-free"},
		{"openai/gpt-4o", "openai", "gpt-4o"},
		{"bare-model-id", defaultProvider, "bare-model-id"},
	}
	for _, c := range cases {
		p, id := modelSpec(c.model)
		if p != c.wantProvider || id != c.wantID {
			t.Errorf("modelSpec(%q) = (%q, %q), want (%q, %q)", c.model, p, id, c.wantProvider, c.wantID)
		}
	}
}
