package retry

import (
	"context"
	"fmt"
	"time"

	ierrors "git.home.luguber.info/inful/inflight/internal/errors"
)

// BackoffMode selects how the delay grows between retry attempts.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffLinear      BackoffMode = "linear"
	BackoffExponential BackoffMode = "exponential"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode       BackoffMode   // fixed|linear|exponential
	Initial    time.Duration // base delay
	Max        time.Duration // cap for growth
	MaxRetries int           // maximum retry attempts after the first failure
}

// DefaultPolicy returns a sensible default policy (linear, 1s initial, 30s cap, 2 retries).
func DefaultPolicy() Policy {
	return Policy{Mode: BackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// NewPolicy builds a policy from raw fields; zero/invalid values fall back to defaults.
func NewPolicy(mode BackoffMode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	if mode != "" {
		switch mode {
		case BackoffFixed, BackoffLinear, BackoffExponential:
			p.Mode = mode
		default:
			// unknown -> keep default
		}
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the backoff delay for the given retry attempt number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case BackoffFixed:
		return p.Initial
	case BackoffExponential:
		d := p.Initial * (1 << (retryCount - 1))
		if d > p.Max {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// Do runs fn and retries it according to the policy while the returned error
// is marked retryable. Non-retryable errors and context cancellation stop
// retries immediately; the last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var last error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(p.Delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if !ierrors.IsRetryable(last) {
			return last
		}
	}
	return last
}
