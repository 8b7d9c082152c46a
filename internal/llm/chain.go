package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/squireai/squire/internal/logging"
)

// circuitBreaker tracks per-provider health, adapted from internal/ai/chain.go's
// closed/open/half-open state machine but narrowed to guard a single
// Complete call instead of three triage/fix/describe methods.
type circuitBreaker struct {
	mu           sync.Mutex
	failures     int
	lastFailedAt time.Time
	state        string // "closed", "open", "half-open"
}

const (
	failureThreshold = 3
	resetTimeout     = 2 * time.Minute
)

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{state: "closed"}
}

func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case "open":
		if time.Since(b.lastFailedAt) > resetTimeout {
			b.state = "half-open"
			return true
		}
		return false
	default:
		return true
	}
}

func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = "closed"
}

func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailedAt = time.Now()
	if b.failures >= failureThreshold {
		b.state = "open"
	}
}

// isRetriableError mirrors internal/ai/chain.go's string-matched error
// classification: 429s, 5xx, and transport-level timeouts are worth a
// fallback to the next provider; 4xx auth/validation failures are not.
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "status 429"):
		return true
	case strings.Contains(msg, "status 5"):
		return true
	case strings.Contains(msg, "timeout"):
		return true
	case strings.Contains(msg, "connection refused"):
		return true
	case strings.Contains(msg, "status 4"):
		return false
	}
	return true
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "status 401") || strings.Contains(msg, "status 403")
}

// Chain tries each provider in order, skipping any whose circuit breaker is
// open, and falls back to the next on a retriable error. Grounded on
// internal/ai/chain.go's ChainProvider.
type Chain struct {
	providers []Provider
	breakers  map[string]*circuitBreaker
}

// NewChain builds a fallback chain. The first provider is primary; the rest
// are fallbacks tried in order on a retriable failure.
func NewChain(providers ...Provider) *Chain {
	breakers := make(map[string]*circuitBreaker, len(providers))
	for _, p := range providers {
		breakers[p.Name()] = newCircuitBreaker()
	}
	return &Chain{providers: providers, breakers: breakers}
}

func (c *Chain) Name() string {
	if len(c.providers) == 0 {
		return "chain"
	}
	return "chain(" + c.providers[0].Name() + ")"
}

func (c *Chain) IsAvailable(ctx context.Context) bool {
	for _, p := range c.providers {
		if p.IsAvailable(ctx) {
			return true
		}
	}
	return false
}

func (c *Chain) Complete(ctx context.Context, prompt string) (string, error) {
	var errs []error
	for _, p := range c.providers {
		b := c.breakers[p.Name()]
		if b != nil && !b.allow() {
			continue
		}
		out, err := p.Complete(ctx, prompt)
		if err == nil {
			if b != nil {
				b.recordSuccess()
			}
			return out, nil
		}
		if b != nil {
			b.recordFailure()
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if isAuthError(err) {
			logging.L(ctx, "llm").Warn("provider auth error, trying next", "provider", p.Name())
			continue
		}
		if !isRetriableError(err) {
			return "", fmt.Errorf("%s: %w", p.Name(), err)
		}
		logging.L(ctx, "llm").Warn("provider failed, falling back", "provider", p.Name(), "error", err)
	}
	if len(errs) == 0 {
		return "", errors.New("llm: no providers configured")
	}
	return "", errors.Join(errs...)
}
