package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dharter89/GAAP/internal/services/retry"
)

// statusError is a non-2xx reply from the completions endpoint.
type statusError struct {
	Op         string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func newStatusError(op string, resp *http.Response, body []byte) *statusError {
	return &statusError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       snippet(string(body)),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Body)
}

// emptyContentError reports a 2xx reply without any completion text.
type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Refusal, e.Snippet)
}

// StatusCode returns the HTTP status carried by err, or 0 when err did not
// come from a non-2xx response.
func StatusCode(err error) int {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// classify retries empty completions, transient statuses and timeouts.
func classify(err error) retry.Decision {
	var empty *emptyContentError
	if errors.As(err, &empty) {
		return retry.Decision{Retry: true}
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return retry.Decision{Retry: retry.TransientStatus(statusErr.StatusCode), After: statusErr.RetryAfter}
	}
	return retry.Decision{Retry: retry.IsTimeout(err)}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}
