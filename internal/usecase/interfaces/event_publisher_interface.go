package interfaces

import (
	"context"

	"mecanica_billing/internal/domain/events"
)

// IEventPublisher abstracts the outbound saga event channel.
//
// Publish is fire-and-forget: delivery completion is logged asynchronously
// and the call never blocks on the broker. PublishSync blocks until the
// broker acknowledges the write and must be used for saga-critical events
// (approval, compensation) so the caller knows the step was durably emitted.

type IEventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
	PublishSync(ctx context.Context, event events.Event) error
}
