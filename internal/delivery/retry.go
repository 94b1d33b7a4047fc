package delivery

import (
	"math/rand"
	"strings"
	"time"
)

// Policy bounds the retry state machine: how often to retry and how long to
// wait between attempts.
type Policy struct {
	MaxAttempts int
	Backoff     []time.Duration
	JitterPct   float64
}

// Delay returns the backoff before the given (1-based) attempt is retried.
// Attempts past the end of the schedule reuse its last entry, so the curve is
// monotonically non-decreasing.
func (p Policy) Delay(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Backoff) {
		idx = len(p.Backoff) - 1
	}
	base := p.Backoff[idx]
	// jitter: +/- JitterPct
	j := 1 + (rand.Float64()*2-1)*p.JitterPct
	if j < 0.1 {
		j = 0.1
	}
	return time.Duration(float64(base) * j)
}

// ClassifyFailure buckets a failed attempt for retry metrics.
func ClassifyFailure(doErr error, status int) string {
	if doErr != nil {
		errLower := strings.ToLower(doErr.Error())
		if strings.Contains(errLower, "timeout") || strings.Contains(errLower, "deadline exceeded") {
			return "timeout"
		}
		if strings.Contains(errLower, "connection refused") {
			return "connection_refused"
		}
		if strings.Contains(errLower, "no such host") || strings.Contains(errLower, "dns") {
			return "dns_error"
		}
		return "network"
	}
	if status >= 500 {
		return "http_5xx"
	}
	if status == 429 {
		return "http_429"
	}
	if status >= 400 {
		return "http_4xx"
	}
	return "other"
}
