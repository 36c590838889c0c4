package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
	"github.com/devilmonastery/idlink/internal/pkg/idgen"
	"github.com/devilmonastery/idlink/internal/pkg/metrics"
)

// AuditRepository implements repositories.AuditRepository
type AuditRepository struct {
	db  sqlx.ExtContext
	log *slog.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db sqlx.ExtContext) repositories.AuditRepository {
	return &AuditRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "audit")),
	}
}

const auditColumns = `id, action, email, provider, ip_address, user_agent, success, reason, metadata, created_at`

// auditEventRow represents an audit event as stored in the database
type auditEventRow struct {
	ID        string         `db:"id"`
	Action    string         `db:"action"`
	Email     sql.NullString `db:"email"`
	Provider  sql.NullString `db:"provider"`
	IPAddress sql.NullString `db:"ip_address"`
	UserAgent sql.NullString `db:"user_agent"`
	Success   bool           `db:"success"`
	Reason    sql.NullString `db:"reason"`
	Metadata  string         `db:"metadata"`
	CreatedAt time.Time      `db:"created_at"`
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// toEntity converts an auditEventRow to a domain entity
func (r *auditEventRow) toEntity() (*entities.AuditEvent, error) {
	event := &entities.AuditEvent{
		ID:        r.ID,
		Action:    entities.AuditAction(r.Action),
		Email:     stringPtr(r.Email),
		Provider:  stringPtr(r.Provider),
		IPAddress: stringPtr(r.IPAddress),
		UserAgent: stringPtr(r.UserAgent),
		Success:   r.Success,
		Reason:    stringPtr(r.Reason),
		CreatedAt: r.CreatedAt,
	}

	if err := event.UnmarshalMetadataFromJSON(r.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return event, nil
}

// auditEventRowFromEntity converts a domain entity to an auditEventRow
func auditEventRowFromEntity(event *entities.AuditEvent) (*auditEventRow, error) {
	metadata, err := event.MarshalMetadataToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return &auditEventRow{
		ID:        event.ID,
		Action:    string(event.Action),
		Email:     nullString(event.Email),
		Provider:  nullString(event.Provider),
		IPAddress: nullString(event.IPAddress),
		UserAgent: nullString(event.UserAgent),
		Success:   event.Success,
		Reason:    nullString(event.Reason),
		Metadata:  metadata,
		CreatedAt: event.CreatedAt,
	}, nil
}

// Create creates a new audit event
func (r *AuditRepository) Create(ctx context.Context, event *entities.AuditEvent) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("audit", "create", time.Since(start), err)
	}()

	if event.ID == "" {
		event.ID = idgen.GenerateID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	r.log.Debug("creating audit event",
		slog.String("action", string(event.Action)),
		slog.Any("email", event.Email),
		slog.Bool("success", event.Success))

	row, err := auditEventRowFromEntity(event)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_events (` + auditColumns + `)
		VALUES (:id, :action, :email, :provider, :ip_address, :user_agent, :success, :reason, :metadata, :created_at)`

	_, err = sqlx.NamedExecContext(ctx, r.db, query, row)
	if err != nil {
		return fmt.Errorf("failed to create audit event: %w", err)
	}

	return nil
}

// ListByEmail returns the most recent events for an account, newest first
func (r *AuditRepository) ListByEmail(ctx context.Context, email string, limit int) ([]*entities.AuditEvent, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("audit", "list_by_email", time.Since(start), err)
	}()

	if limit <= 0 {
		limit = 20
	}

	query := r.db.Rebind(`SELECT ` + auditColumns + ` FROM audit_events
		WHERE email = ? ORDER BY created_at DESC, id DESC LIMIT ?`)

	var rows []auditEventRow
	err = sqlx.SelectContext(ctx, r.db, &rows, query, email, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}

	events := make([]*entities.AuditEvent, 0, len(rows))
	for i := range rows {
		event, convErr := rows[i].toEntity()
		if convErr != nil {
			err = convErr
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// DeleteBefore deletes old audit events (cleanup job)
func (r *AuditRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("audit", "cleanup", time.Since(start), err)
	}()

	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM audit_events WHERE created_at < ?`), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

var _ repositories.AuditRepository = (*AuditRepository)(nil)
