package messaging

import "fmt"

// PublishError is returned after retry and circuit-breaker exhaustion, or
// immediately for non-retryable failures such as payload serialization. For
// critical events it propagates to the caller so the saga step is known to
// have not completed.
type PublishError struct {
	EventType string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.EventType, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// DeliveryError is a consumer-side processing fault. Permanent errors
// (deserialization, payload conversion) bypass the retry budget and go
// straight to the dead-letter channel.
type DeliveryError struct {
	EventType string
	Permanent bool
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s: %v", e.EventType, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// NewPermanentDeliveryError marks a fault that retrying can never fix.
func NewPermanentDeliveryError(eventType string, err error) *DeliveryError {
	return &DeliveryError{EventType: eventType, Permanent: true, Err: err}
}
