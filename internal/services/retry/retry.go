// Package retry runs model calls under a bounded exponential backoff policy
// shared by the OpenRouter and GenAI clients.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Policy bounds how often and how long a call is retried. Attempts counts
// the first call, so the default of two allows a single retry.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Sleep replaces the timer wait when set; tests use it to record delays.
	Sleep func(time.Duration)
}

// Default returns two attempts with a 1s base delay capped at 10s.
func Default() Policy {
	return Policy{Attempts: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}

// Decision is a classifier's verdict on a failed attempt.
type Decision struct {
	Retry bool
	// After replaces the computed backoff, for example from Retry-After.
	After time.Duration
}

// Do runs call until it succeeds, classify declines a retry, the attempts
// run out or ctx ends. Exhausting more than one attempt wraps the last error
// as "<op>: failed after N attempts".
func (p Policy) Do(ctx context.Context, op string, call func(context.Context) error, classify func(error) Decision) error {
	attempts := p.attempts()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = call(ctx)
		if err == nil {
			return nil
		}
		// A per-request timeout also matches DeadlineExceeded; only the
		// caller's context ends the loop.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return err
		}
		decision := classify(err)
		if !decision.Retry {
			return err
		}
		if attempt == attempts {
			break
		}
		delay := p.Backoff(attempt)
		if decision.After > 0 {
			delay = p.limit(decision.After)
		}
		if waitErr := p.wait(ctx, delay); waitErr != nil {
			return waitErr
		}
	}
	if attempts == 1 {
		return err
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, err)
}

// Backoff returns the delay after the given failed attempt: BaseDelay,
// doubling per attempt, capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
		delay *= 2
	}
	return p.limit(delay)
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return 1
	}
	return p.Attempts
}

func (p Policy) limit(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p Policy) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.Sleep != nil {
		p.Sleep(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TransientStatus reports whether an HTTP status is worth retrying:
// request timeout, rate limiting and server errors.
func TransientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

// IsTimeout reports whether err is a network timeout. *url.Error satisfies
// net.Error, so client timeouts are covered too, as are per-request
// deadlines that surface as context.DeadlineExceeded.
func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
