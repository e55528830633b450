package transport

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/librarian/pkg/constants"
)

// Backoff returns the wait before retrying after a retryable status on the
// given 1-based attempt. A 429 honours a positive integer Retry-After (in
// seconds) and otherwise waits 2^attempt seconds capped at 60; a 5xx waits
// 2^(attempt-1) seconds capped at 30.
func Backoff(status, attempt int, retryAfter string) time.Duration {
	if status == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return capped(attempt, constants.MaxRateLimitBackoff)
	}
	return capped(attempt-1, constants.MaxServerErrorBackoff)
}

func capped(exp int, ceiling time.Duration) time.Duration {
	if exp < 0 {
		exp = 0
	}
	if exp > 30 {
		return ceiling
	}
	d := time.Duration(1<<exp) * time.Second
	if d > ceiling {
		return ceiling
	}
	return d
}
