package port

import (
	"context"

	"github.com/bmyhack/omms-api/internal/core/domain"
)

// AuditPublisher emits audit events for administrative mutations.
// Implementations must not block the request path on broker failures.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, event domain.AuditEvent) error
}
