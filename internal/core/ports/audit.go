package ports

import (
	"context"

	"github.com/bibliora/library-system/internal/core/domain"
)

// AuditPublisher is the fire-and-forget audit sink. Implementations must not
// block the caller on delivery; failures are logged downstream, never
// propagated back into the mutation that triggered the event.
type AuditPublisher interface {
	Publish(event domain.AuditEvent)
}

// AuditStore persists audit events. The async pipeline drains into it.
type AuditStore interface {
	InsertEvent(ctx context.Context, event *domain.AuditEvent) error
}
