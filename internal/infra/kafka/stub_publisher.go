package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bmyhack/omms-api/internal/core/domain"
	"github.com/bmyhack/omms-api/internal/core/port"
)

// StubPublisher logs audit events instead of sending them to Kafka.
// Useful for development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly audit publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) PublishAudit(_ context.Context, event domain.AuditEvent) error {
	at := event.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub audit event",
		zap.String("action", event.Action),
		zap.String("entity_type", event.EntityType),
		zap.Int64("entity_id", event.EntityID),
		zap.Int64("actor_id", event.ActorID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("details", event.Details),
	)
	return nil
}

var _ port.AuditPublisher = (*StubPublisher)(nil)
