// Package retry wraps cenkalti/backoff/v5 with the exponential-backoff and
// transient-error classification policy used across the memory core's
// store adapters, generalizing the hand-rolled retry loop the teacher used
// for its Qdrant gRPC client.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy configures a retry loop's backoff curve and attempt budget.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxTries        uint
}

// DefaultPolicy matches the teacher's qdrant client defaults: a one-second
// starting interval growing by backoff's default 1.5x multiplier (with its
// default jitter) up to 30s, bounded at 5 attempts and 2 minutes.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
		MaxTries:        5,
	}
}

// Classifier reports whether an error is transient and worth retrying.
// Returning false stops the retry loop immediately via backoff.Permanent.
type Classifier func(error) bool

// Do runs operation under the policy, retrying transient errors with
// exponential backoff until success, a permanent error, MaxTries is
// exhausted, or ctx is cancelled.
func Do(ctx context.Context, policy Policy, classify Classifier, operation func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		opErr := operation()
		if opErr == nil {
			return struct{}{}, nil
		}
		if classify != nil && !classify(opErr) {
			return struct{}{}, backoff.Permanent(opErr)
		}
		return struct{}{}, opErr
	},
		backoff.WithBackOff(exponentialBackOff(policy)),
		backoff.WithMaxTries(policy.MaxTries),
		backoff.WithMaxElapsedTime(policy.MaxElapsedTime),
	)
	return err
}

func exponentialBackOff(p Policy) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	return b
}
