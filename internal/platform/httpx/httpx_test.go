package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"
)

type statusErr struct {
	code int
}

func (e *statusErr) Error() string       { return fmt.Sprintf("upstream status %d", e.code) }
func (e *statusErr) HTTPStatusCode() int { return e.code }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{http.StatusTooManyRequests, true},
		{500, true},
		{503, true},
		{599, true},
		{600, false},
		{400, false},
		{404, false},
		{422, false},
		{408, false},
		{200, false},
	}
	for _, tc := range cases {
		if got := IsRetryableHTTPStatus(tc.code); got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d): want=%v got=%v", tc.code, tc.want, got)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate limited", &statusErr{code: 429}, true},
		{"server error", &statusErr{code: 502}, true},
		{"bad request", &statusErr{code: 400}, false},
		{"unprocessable", &statusErr{code: 422}, false},
		{"wrapped status", fmt.Errorf("call: %w", &statusErr{code: 500}), true},
		{"net timeout", timeoutErr{}, true},
		{"transport", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("connection refused")}, true},
		{"plain", errors.New("bad payload"), false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	p := RetryPolicy{MaxRetries: 10, InitialBackoff: time.Second, MaxBackoff: 10 * time.Second}
	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for attempt, w := range want {
		if got := p.Backoff(attempt); got != w {
			t.Fatalf("Backoff(%d): want=%v got=%v", attempt, w, got)
		}
	}
	prev := time.Duration(0)
	for attempt := 0; attempt < 20; attempt++ {
		d := p.Backoff(attempt)
		if d < prev {
			t.Fatalf("Backoff(%d) decreased: prev=%v got=%v", attempt, prev, d)
		}
		if d > p.MaxBackoff {
			t.Fatalf("Backoff(%d) above cap: got=%v", attempt, d)
		}
		prev = d
	}
}

func TestJitteredStaysInBand(t *testing.T) {
	p := RetryPolicy{Jitter: 0.25}
	base := 2 * time.Second
	low := time.Duration(float64(base) * 0.75)
	high := time.Duration(float64(base) * 1.25)
	for i := 0; i < 500; i++ {
		d := p.Jittered(base)
		if d < low || d > high {
			t.Fatalf("Jittered out of band: want=[%v,%v] got=%v", low, high, d)
		}
	}
}

func TestJitteredFloorsAtPositiveMinimum(t *testing.T) {
	p := RetryPolicy{Jitter: 0.25}
	if got := p.Jittered(0); got != minDelay {
		t.Fatalf("Jittered(0): want=%v got=%v", minDelay, got)
	}
	if got := p.Delay(0); got < minDelay {
		t.Fatalf("Delay(0) below floor: got=%v", got)
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "3")
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 3*time.Second {
		t.Fatalf("retry-after honored: want=%v got=%v", 3*time.Second, got)
	}
	resp.Header.Set("Retry-After", "120")
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("retry-after capped: want=%v got=%v", 10*time.Second, got)
	}
	resp.Header.Del("Retry-After")
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != time.Second {
		t.Fatalf("fallback: want=%v got=%v", time.Second, got)
	}
	if got := RetryAfterDuration(nil, time.Second, 0); got != time.Second {
		t.Fatalf("nil response: want=%v got=%v", time.Second, got)
	}
}
