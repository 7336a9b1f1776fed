package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPStatusCoder is implemented by transport errors that carry an
// HTTP-equivalent status code.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// minDelay keeps jittered backoff strictly positive so a zero initial
// backoff cannot turn the retry loop into a busy spin.
const minDelay = 10 * time.Millisecond

// RetryPolicy controls the retry loop around upstream model calls. The
// zero value never retries; use DefaultRetryPolicy for the server defaults.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt, so a
	// call makes at most MaxRetries+1 attempts.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Jitter is the half-width j of the multiplicative band [1-j, 1+j]
	// applied to every computed delay.
	Jitter float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     4,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Jitter:         0.25,
	}
}

// Backoff returns the undithered delay before retry number attempt
// (0-based): min(MaxBackoff, InitialBackoff << attempt).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.InitialBackoff <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	d := p.InitialBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Jittered spreads d across the multiplicative band [1-j, 1+j] and floors
// the result so concurrent retries do not synchronize.
func (p RetryPolicy) Jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return minDelay
	}
	j := p.Jitter
	if j <= 0 {
		return d
	}
	if j > 1 {
		j = 1
	}
	low := d.Seconds() * (1 - j)
	high := d.Seconds() * (1 + j)
	v := time.Duration((low + rand.Float64()*(high-low)) * float64(time.Second))
	if v < minDelay {
		v = minDelay
	}
	return v
}

// Delay is the full per-retry delay: exponential backoff with jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.Jittered(p.Backoff(attempt))
}

// IsRetryableHTTPStatus reports whether a status code signals a transient
// upstream condition: 429 or any 5xx.
func IsRetryableHTTPStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryableError classifies a failed attempt. Retryable failures are
// network/connectivity errors (including timeouts) and transport errors
// whose HTTP-equivalent status is 429 or 5xx. Context cancellation is
// never retryable: the caller is gone.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// url.Error that is not a net.Error still means the request never
	// produced an HTTP response (DNS, connection refused, broken pipe).
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// RetryAfterDuration returns the server-directed delay from a Retry-After
// header when present, otherwise fallback, capped at max.
func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleepFor = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}
