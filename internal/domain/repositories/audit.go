package repositories

import (
	"context"
	"time"

	"github.com/devilmonastery/idlink/internal/domain/entities"
)

// AuditRepository defines the interface for audit trail data access
type AuditRepository interface {
	// Create a new audit event
	Create(ctx context.Context, event *entities.AuditEvent) error

	// ListByEmail returns the most recent events for an account, newest first
	ListByEmail(ctx context.Context, email string, limit int) ([]*entities.AuditEvent, error)

	// DeleteBefore removes events older than the cutoff (cleanup job)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
