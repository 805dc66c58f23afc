package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bmyhack/omms-api/internal/core/domain"
	"github.com/bmyhack/omms-api/internal/core/port"
	"github.com/bmyhack/omms-api/internal/infra/config"
)

const schemaVersion = "1.0"

// AuditPublisher implements port.AuditPublisher using Kafka.
type AuditPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewAuditPublisher constructs a Kafka-backed audit publisher.
func NewAuditPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *AuditPublisher {
	return &AuditPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type auditEnvelope struct {
	EventID    string           `json:"event_id"`
	EventType  string           `json:"event_type"`
	Action     string           `json:"action"`
	EntityType string           `json:"entity_type"`
	EntityID   int64            `json:"entity_id"`
	ActorID    int64            `json:"actor_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Version    string           `json:"version"`
	Details    map[string]any   `json:"details,omitempty"`
	Metadata   envelopeMetadata `json:"metadata,omitempty"`
}

// PublishAudit enqueues the event on the async producer. Delivery failures
// are reported through the producer error handler, not to the caller.
func (p *AuditPublisher) PublishAudit(ctx context.Context, event domain.AuditEvent) error {
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := event.EventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	eventType := fmt.Sprintf("audit.%s.%s", event.EntityType, event.Action)
	envelope := auditEnvelope{
		EventID:    id,
		EventType:  eventType,
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		ActorID:    event.ActorID,
		Timestamp:  ts.UTC(),
		Version:    schemaVersion,
		Details:    event.Details,
		Metadata:   metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal audit envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.AuditPublisher = (*AuditPublisher)(nil)
