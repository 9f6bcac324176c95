// Package reliability classifies transient upstream failures and
// computes retry pacing for them.
package reliability

import "time"

// IsRetryableHTTPStatus reports whether an upstream HTTP status is
// worth retrying. A zero status means the request never completed
// (transport error or timeout) and is treated as retryable.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 0, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
