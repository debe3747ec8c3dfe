package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/swistakmatt/2fa-app/internal/core/domain"
	"github.com/swistakmatt/2fa-app/internal/core/port"
)

const (
	topicCodeIssued     = "code.issued"
	topicUserRegistered = "user.registered"
)

// Publisher sends domain events to Kafka. Verification codes are delivered by
// a downstream mailer that consumes the code.issued topic; the service itself
// never talks SMTP.
type Publisher struct {
	producer *Producer
	logger   *zap.Logger
}

// NewPublisher constructs a Kafka-backed publisher on top of the async producer.
func NewPublisher(producer *Producer, logger *zap.Logger) *Publisher {
	return &Publisher{producer: producer, logger: logger}
}

// SendCode enqueues a code.issued event carrying the verification code for
// the mailer. Only the masked address is logged.
func (p *Publisher) SendCode(ctx context.Context, event domain.CodeIssuedEvent) error {
	if err := p.publish(ctx, topicCodeIssued, event.UserID, event); err != nil {
		return err
	}

	p.logger.Info("verification code dispatched",
		zap.String("event_id", event.EventID),
		zap.String("user_id", event.UserID),
		zap.String("email", event.MaskedEmail),
		zap.String("reason", event.Reason),
	)
	return nil
}

// PublishUserRegistered enqueues a user.registered event.
func (p *Publisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	if err := p.publish(ctx, topicUserRegistered, event.UserID, event); err != nil {
		return err
	}

	p.logger.Info("user registered event published",
		zap.String("event_id", event.EventID),
		zap.String("user_id", event.UserID),
	)
	return nil
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	select {
	case p.producer.Producer().Input() <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s event: %w", eventType, ctx.Err())
	}
}

var (
	_ port.Notifier       = (*Publisher)(nil)
	_ port.EventPublisher = (*Publisher)(nil)
)
