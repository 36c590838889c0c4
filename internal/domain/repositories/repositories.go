package repositories

import (
	"context"
)

// Repositories is a collection of all repository interfaces
type Repositories struct {
	Users UserRepository
	Links ProviderLinkRepository
}

// UnitOfWork defines transaction management for repositories
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// Repositories returns repositories that run outside any transaction
	Repositories() *Repositories
}

// Transaction defines transaction operations
type Transaction interface {
	// Commit commits the transaction, then runs AfterCommit hooks
	Commit() error

	// Rollback rolls back the transaction; it is a no-op after Commit
	Rollback() error

	// GetRepositories returns repositories bound to this transaction
	GetRepositories() *Repositories

	// AfterCommit registers fn to run once the transaction commits successfully
	AfterCommit(fn func())
}

// HealthChecker defines health check interface for repositories
type HealthChecker interface {
	// HealthCheck performs a health check on the repository
	HealthCheck(ctx context.Context) error
}
