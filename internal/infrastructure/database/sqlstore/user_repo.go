package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
	"github.com/devilmonastery/idlink/internal/pkg/idgen"
	"github.com/devilmonastery/idlink/internal/pkg/metrics"
)

// UserRepository implements the UserRepository interface over sqlx
type UserRepository struct {
	db  sqlx.ExtContext
	log *slog.Logger
}

// NewUserRepository creates a new user repository bound to a DB or Tx
func NewUserRepository(db sqlx.ExtContext) repositories.UserRepository {
	return &UserRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "user")),
	}
}

// userRow represents a user as stored in the database
type userRow struct {
	ID          string         `db:"id"`
	Email       string         `db:"email"`
	DisplayName string         `db:"display_name"`
	AvatarURL   sql.NullString `db:"avatar_url"`
	Bio         sql.NullString `db:"bio"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

const userColumns = `id, email, display_name, avatar_url, bio, created_at, updated_at`

// toEntity converts a userRow to a domain entity
func (r *userRow) toEntity() *entities.User {
	user := &entities.User{
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if r.AvatarURL.Valid {
		user.AvatarURL = &r.AvatarURL.String
	}

	if r.Bio.Valid {
		user.Bio = &r.Bio.String
	}

	return user
}

// userRowFromEntity converts a domain entity to a userRow
func userRowFromEntity(user *entities.User) *userRow {
	row := &userRow{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}

	if user.AvatarURL != nil {
		row.AvatarURL = sql.NullString{String: *user.AvatarURL, Valid: true}
	}

	if user.Bio != nil {
		row.Bio = sql.NullString{String: *user.Bio, Valid: true}
	}

	return row
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "create", time.Since(start), err)
	}()

	if user.ID == "" {
		user.ID = idgen.GenerateID()
	}

	r.log.Debug("creating user",
		slog.String("id", user.ID),
		slog.String("email", user.Email))

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `INSERT INTO users (
			id, email, display_name, avatar_url, bio, created_at, updated_at
		) VALUES (
			:id, :email, :display_name, :avatar_url, :bio, :created_at, :updated_at
		)`

	_, err = sqlx.NamedExecContext(ctx, r.db, query, userRowFromEntity(user))
	if err != nil {
		err = translateError(err)
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return err
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "get_by_id", time.Since(start), err)
	}()

	var row userRow
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)

	err = sqlx.GetContext(ctx, r.db, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = repositories.ErrUserNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return row.toEntity(), nil
}

// GetByEmail retrieves a user by their email address
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "get_by_email", time.Since(start), err)
	}()

	var row userRow
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)

	err = sqlx.GetContext(ctx, r.db, &row, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = repositories.ErrUserNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return row.toEntity(), nil
}

// Update an existing user's display name, avatar and bio
func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "update", time.Since(start), err)
	}()

	r.log.Debug("updating user",
		slog.String("id", user.ID),
		slog.String("email", user.Email))

	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users SET
			display_name = :display_name,
			avatar_url = :avatar_url,
			bio = :bio,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := sqlx.NamedExecContext(ctx, r.db, query, userRowFromEntity(user))
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrUserNotFound
		return err
	}

	return nil
}

// List users with pagination and optional search
func (r *UserRepository) List(ctx context.Context, opts repositories.ListUsersOptions) ([]*entities.User, int64, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "list", time.Since(start), err)
	}()

	where := ""
	var args []interface{}
	if opts.Search != "" {
		where = ` WHERE LOWER(email) LIKE ? OR LOWER(display_name) LIKE ?`
		pattern := "%" + strings.ToLower(opts.Search) + "%"
		args = append(args, pattern, pattern)
	}

	var total int64
	err = sqlx.GetContext(ctx, r.db, &total, r.db.Rebind(`SELECT COUNT(*) FROM users`+where), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY created_at, id LIMIT ? OFFSET ?`)
	args = append(args, limit, opts.Offset)

	var rows []userRow
	err = sqlx.SelectContext(ctx, r.db, &rows, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*entities.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].toEntity())
	}
	return users, total, nil
}

var _ repositories.UserRepository = (*UserRepository)(nil)
