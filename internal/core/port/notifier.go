package port

import (
	"context"

	"github.com/swistakmatt/2fa-app/internal/core/domain"
)

// Notifier is the outbound message-sending capability. The core does not
// know about transport details; delivery failures are reported back and
// treated as soft errors by the login flow.
type Notifier interface {
	SendCode(ctx context.Context, event domain.CodeIssuedEvent) error
}

// EventPublisher fans out domain events to downstream consumers.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
}
