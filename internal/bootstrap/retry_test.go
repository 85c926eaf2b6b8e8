package bootstrap

import (
	"errors"
	"testing"
	"time"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		msg  string
		want string
	}{
		{"HTTP 429 Too Many Requests", "RATE_LIMIT"},
		{"context deadline exceeded", "TIMEOUT"},
		{"dial tcp: i/o timeout", "TIMEOUT"},
		{"read tcp: connection reset by peer", "TRANSPORT"},
		{"dial tcp 127.0.0.1:80: connect: connection refused", "TRANSPORT"},
		{"lookup mdolab.engin.umich.edu: no such host", "TRANSPORT"},
		{"resource temporarily unavailable", "UNAVAILABLE"},
		{"unexpected status 503", "SERVER_5XX"},
		{"exit status 1", "OTHER"},
	}
	for _, tc := range cases {
		if got := classifyError(errors.New(tc.msg)); got != tc.want {
			t.Errorf("classifyError(%q) = %s, want %s", tc.msg, got, tc.want)
		}
	}
	if got := classifyError(nil); got != "" {
		t.Errorf("classifyError(nil) = %q, want empty", got)
	}
}

func TestIsRetryableClass(t *testing.T) {
	for _, class := range []string{"RATE_LIMIT", "TIMEOUT", "TRANSPORT", "UNAVAILABLE", "SERVER_5XX"} {
		if !isRetryableClass(class) {
			t.Errorf("%s should be retryable", class)
		}
	}
	for _, class := range []string{"OTHER", "CHECKPOINT", ""} {
		if isRetryableClass(class) {
			t.Errorf("%s should not be retryable", class)
		}
	}
}

func TestRetryBackoffGrowsAndCaps(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := retryBackoff(attempt)
		if d <= 0 {
			t.Fatalf("attempt %d: non-positive backoff %v", attempt, d)
		}
		// Jitter is bounded at ±20%, so the cap holds with slack.
		if d > 24*time.Second+time.Second {
			t.Fatalf("attempt %d: backoff %v exceeds cap", attempt, d)
		}
		if attempt <= 4 && d < prev/2 {
			t.Fatalf("attempt %d: backoff %v shrank from %v", attempt, d, prev)
		}
		prev = d
	}
}
