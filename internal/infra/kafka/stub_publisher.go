package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/swistakmatt/2fa-app/internal/core/domain"
	"github.com/swistakmatt/2fa-app/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// SendCode logs twofa.code.issued events. The plaintext code is printed so
// developers can complete the flow without a mailer running.
func (p *StubPublisher) SendCode(_ context.Context, event domain.CodeIssuedEvent) error {
	payload := map[string]any{
		"event_id":   event.EventID,
		"email":      event.MaskedEmail,
		"code":       event.Code,
		"reason":     event.Reason,
		"expires_at": event.ExpiresAt,
	}
	p.logEvent("twofa.code.issued", event.UserID, event.IssuedAt, payload)
	return nil
}

// PublishUserRegistered logs twofa.user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	payload := map[string]any{
		"event_id":      event.EventID,
		"email":         event.Email,
		"status":        event.Status,
		"registered_at": event.RegisteredAt,
		"metadata":      event.Metadata,
	}
	p.logEvent("twofa.user.registered", event.UserID, event.RegisteredAt, payload)
	return nil
}

var (
	_ port.Notifier       = (*StubPublisher)(nil)
	_ port.EventPublisher = (*StubPublisher)(nil)
)
