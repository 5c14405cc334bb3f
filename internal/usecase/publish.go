package usecase

import (
	"context"

	"mecanica_billing/internal/domain/events"
	"mecanica_billing/internal/usecase/interfaces"
)

// publishEvent routes an outbound event by its delivery class: critical
// events block until the broker acknowledged them, routine events are
// fire-and-forget with completion logged by the publisher.
func publishEvent(ctx context.Context, publisher interfaces.IEventPublisher, e events.Event) error {
	if e.Critical() {
		return publisher.PublishSync(ctx, e)
	}
	return publisher.Publish(ctx, e)
}
