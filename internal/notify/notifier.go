package notify

import (
	"context"
	"errors"
)

// Message is one outbound notification, already rendered.
type Message struct {
	Text string
}

// Notifier delivers one message over a single attempt. Retries belong to
// the Dispatcher.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

var (
	// ErrDeliveryFailed wraps the last transport error once retries are
	// exhausted. Non-fatal: the alert is dropped, the cycle continues.
	ErrDeliveryFailed = errors.New("notification delivery failed")

	// ErrPermanent marks transport failures retrying cannot fix, such as
	// a malformed request or bad credentials.
	ErrPermanent = errors.New("permanent delivery error")
)
