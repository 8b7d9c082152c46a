package backend

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// transientMarkers is the fixed set of substrings from spec §4.2.4 whose
// presence in a start error's message marks it as transient.
var transientMarkers = []string{
	"connection refused",
	"name-not-found",
	"timed-out",
	"socket hang up",
	"network error",
	"no such container",
	"is restarting",
	"OOM killed",
}

// IsTransient reports whether err's message contains any of the markers
// spec §4.2.4 designates as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

const maxBackoff = 60 * time.Second

// Backoff returns the exponential-backoff-with-jitter delay for the given
// zero-based retry attempt, capped at 60s and jittered ±20%, per §4.2.4.
func Backoff(attempt int) time.Duration {
	base := time.Second * time.Duration(1<<uint(attempt))
	if base > maxBackoff {
		base = maxBackoff
	}
	jitter := 0.8 + rand.Float64()*0.4 // [0.8, 1.2)
	return time.Duration(float64(base) * jitter)
}

// RetryStart runs attempt repeatedly, retrying on transient errors with
// Backoff delays, up to maxRetries additional attempts after the first. It
// invokes onRetry before each retry sleep so the caller can persist
// retryCount/lastRetryAt before the next attempt, per §4.2.4/§8 S2.
func RetryStart(ctx context.Context, maxRetries int, attempt func(try int) (string, error), onRetry func(try int, err error)) (string, error) {
	var lastErr error
	for try := 0; try <= maxRetries; try++ {
		id, err := attempt(try)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if !IsTransient(err) || try == maxRetries {
			return "", err
		}
		if onRetry != nil {
			onRetry(try+1, err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(Backoff(try)):
		}
	}
	return "", lastErr
}
