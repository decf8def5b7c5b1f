package registry

import (
	"context"
	"errors"
	"time"

	backoff "github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"
)

// Prober is the error-carrying form of an existence check. Checkers built
// on it collapse the error into a boolean at the edge; the retry layer
// needs the typed error to decide whether another attempt is worth it.
type Prober interface {
	// Probe returns nil when the candidate exists, or a typed error
	// (NotFoundError, AuthError, NetworkError) describing the miss.
	Probe(ctx context.Context, candidate string) error
}

// RetryChecker wraps a Prober with retries.
//
// Retry policy per error type:
//   - NotFoundError: no retry (permanent)
//   - AuthError: retry once after backoff
//   - NetworkError / other: retry with exponential backoff (up to 3 total attempts)
type RetryChecker struct {
	inner Prober
}

// NewRetryChecker creates a retrying checker around a prober.
func NewRetryChecker(inner Prober) *RetryChecker {
	return &RetryChecker{inner: inner}
}

// Exists implements Checker.
func (r *RetryChecker) Exists(ctx context.Context, candidate string) bool {
	var authRetried bool

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := r.inner.Probe(ctx, candidate)
		if err == nil {
			return struct{}{}, nil
		}

		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return struct{}{}, backoff.Permanent(err)
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			if authRetried {
				return struct{}{}, backoff.Permanent(err)
			}
			authRetried = true
			return struct{}{}, err
		}

		return struct{}{}, err
	},
		backoff.WithBackOff(newProbeBackoff()),
		backoff.WithMaxTries(3),       // 1 original + 2 retries
		backoff.WithMaxElapsedTime(0), // rely on context for overall timeout
	)
	if err != nil {
		log.WithField("candidate", candidate).WithError(err).Debug("existence check exhausted")
		return false
	}
	return true
}

func newProbeBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.Multiplier = 2.0
	return b
}
