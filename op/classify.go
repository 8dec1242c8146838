package op

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// DefaultRetryAfter is the retry hint used when a provider supplies no
// Retry-After value, or one that cannot be parsed.
const DefaultRetryAfter = 60 * time.Second

// rateLimitPattern matches the messages upstream providers use for
// rate-limit rejections.
var rateLimitPattern = regexp.MustCompile(`(?i)rate[ _-]?limit|too many requests|quota exceeded`)

// statusCarrier is the error shape most provider SDKs expose for the
// HTTP status of a failed call.
type statusCarrier interface {
	StatusCode() int
}

// IsRateLimit reports whether err looks like an upstream rate-limit
// rejection: a typed Failure tagged KindRateLimited, an HTTP 429 status,
// or a rate-limit message pattern. Pure function, no state.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}

	var f *Failure
	if errors.As(err, &f) {
		return f.Kind == KindRateLimited || f.Status == http.StatusTooManyRequests
	}

	var sc statusCarrier
	if errors.As(err, &sc) && sc.StatusCode() == http.StatusTooManyRequests {
		return true
	}

	return rateLimitPattern.MatchString(err.Error())
}

// Classify wraps an arbitrary provider error in a typed Failure.
// Errors that are already a *Failure are returned unchanged.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	failure := &Failure{Kind: KindOf(err), Err: err}

	var sc statusCarrier
	if errors.As(err, &sc) {
		failure.Status = sc.StatusCode()
	}

	return failure
}

// RetryAfterHint parses a Retry-After style value (delta-seconds or an
// HTTP date) into a suggested retry delay. Absent or unparsable values
// fall back to DefaultRetryAfter. The result is informational for
// callers and telemetry; it never feeds the breaker cooldown.
func RetryAfterHint(v string) time.Duration {
	if v == "" {
		return DefaultRetryAfter
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return DefaultRetryAfter
		}
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return DefaultRetryAfter
	}

	return DefaultRetryAfter
}
