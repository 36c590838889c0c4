package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/idlink/internal/domain/repositories"
)

// UnitOfWork opens transactions whose repositories share one *sqlx.Tx
type UnitOfWork struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewUnitOfWork creates a UnitOfWork over the given database
func NewUnitOfWork(db *sqlx.DB) *UnitOfWork {
	return &UnitOfWork{
		db:  db,
		log: slog.Default().With(slog.String("component", "unit_of_work")),
	}
}

// Begin starts a new transaction
func (u *UnitOfWork) Begin(ctx context.Context) (repositories.Transaction, error) {
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &transaction{
		tx:  tx,
		log: u.log,
		repos: &repositories.Repositories{
			Users: NewUserRepository(tx),
			Links: NewProviderLinkRepository(tx),
		},
	}, nil
}

// Repositories returns repositories that run outside any transaction
func (u *UnitOfWork) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users: NewUserRepository(u.db),
		Links: NewProviderLinkRepository(u.db),
	}
}

type transaction struct {
	tx        *sqlx.Tx
	log       *slog.Logger
	repos     *repositories.Repositories
	hooks     []func()
	committed bool
}

func (t *transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translateError(err))
	}
	t.committed = true

	for _, hook := range t.hooks {
		t.runHook(hook)
	}
	t.hooks = nil
	return nil
}

// runHook isolates the committed transaction from a panicking hook
func (t *transaction) runHook(hook func()) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("after-commit hook panicked", slog.Any("panic", r))
		}
	}()
	hook()
}

func (t *transaction) Rollback() error {
	if t.committed {
		return nil
	}
	t.hooks = nil
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

func (t *transaction) GetRepositories() *repositories.Repositories {
	return t.repos
}

func (t *transaction) AfterCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

var _ repositories.UnitOfWork = (*UnitOfWork)(nil)
