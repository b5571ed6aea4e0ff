package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Default retry configuration.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 10 * time.Second
	DefaultMultiplier   = 2.0
)

// RetryPolicy bounds delivery retries. MaxAttempts counts total attempts,
// so 1 means no retry at all.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy returns the standard bounded policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
	}
}

// Dispatcher wraps a Notifier with bounded retries and exponential backoff.
type Dispatcher struct {
	notifier Notifier
	policy   RetryPolicy
}

// NewDispatcher creates a dispatcher around the given transport.
func NewDispatcher(n Notifier, p RetryPolicy) *Dispatcher {
	return &Dispatcher{notifier: n, policy: p}
}

// Send attempts delivery up to MaxAttempts times, sleeping with exponential
// backoff capped at MaxDelay between attempts. The sleep honors ctx
// cancellation. Permanent errors stop retrying immediately. Exhaustion
// returns ErrDeliveryFailed wrapping the last transport error.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	delay := d.policy.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrDeliveryFailed, ctx.Err())
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * d.policy.Multiplier)
			if delay > d.policy.MaxDelay {
				delay = d.policy.MaxDelay
			}
		}

		err := d.notifier.Send(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrPermanent) {
			break
		}
	}

	return fmt.Errorf("%w: %v", ErrDeliveryFailed, lastErr)
}
