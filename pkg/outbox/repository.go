package outbox

import "context"

// Repository persists outbox events. SaveAll runs inside the caller's
// transaction; the rest serve the background drain loop.
type Repository interface {
	// SaveAll stores a batch of events atomically with the session in ctx.
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns undelivered events that still have retry
	// budget, oldest first.
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished stamps an event as delivered.
	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry bumps the retry count and records the delivery error.
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error
}
