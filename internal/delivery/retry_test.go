package delivery

import (
	"errors"
	"testing"
	"time"
)

func TestPolicyDelayFollowsSchedule(t *testing.T) {
	p := Policy{
		MaxAttempts: 6,
		Backoff:     []time.Duration{time.Second, 4 * time.Second, 16 * time.Second},
		JitterPct:   0, // deterministic
	}

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{name: "first attempt", attempt: 1, expected: time.Second},
		{name: "second attempt", attempt: 2, expected: 4 * time.Second},
		{name: "third attempt", attempt: 3, expected: 16 * time.Second},
		{name: "past schedule clamps to last", attempt: 10, expected: 16 * time.Second},
		{name: "zero attempt clamps to first", attempt: 0, expected: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Delay(tt.attempt); got != tt.expected {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestPolicyDelayJitterBounds(t *testing.T) {
	p := Policy{
		MaxAttempts: 6,
		Backoff:     []time.Duration{10 * time.Second},
		JitterPct:   0.25,
	}

	for i := 0; i < 100; i++ {
		d := p.Delay(1)
		if d < 7500*time.Millisecond || d > 12500*time.Millisecond {
			t.Fatalf("jittered delay %v outside +/-25%% of 10s", d)
		}
	}
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		expected string
	}{
		{name: "client timeout", err: errors.New("Client.Timeout exceeded while awaiting headers"), expected: "timeout"},
		{name: "context deadline", err: errors.New("context deadline exceeded"), expected: "timeout"},
		{name: "refused", err: errors.New("dial tcp 127.0.0.1:9: connect: connection refused"), expected: "connection_refused"},
		{name: "dns", err: errors.New("lookup nohost.example: no such host"), expected: "dns_error"},
		{name: "other network", err: errors.New("EOF"), expected: "network"},
		{name: "server error", status: 503, expected: "http_5xx"},
		{name: "rate limited", status: 429, expected: "http_429"},
		{name: "client error", status: 404, expected: "http_4xx"},
		{name: "unclassified", status: 301, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyFailure(tt.err, tt.status); got != tt.expected {
				t.Errorf("ClassifyFailure(%v, %d) = %q, want %q", tt.err, tt.status, got, tt.expected)
			}
		})
	}
}
