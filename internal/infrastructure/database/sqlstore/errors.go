package sqlstore

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/devilmonastery/idlink/internal/domain/repositories"
)

// PostgreSQL unique_violation
const pgUniqueViolation = "23505"

// Constraint names from the migrations
const (
	usersEmailKey          = "users_email_key"
	providerLinkSubjectKey = "provider_links_provider_subject_key"
)

// translateError maps driver unique violations onto repository sentinels.
// Other errors are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return duplicateFor(pqErr.Constraint, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return duplicateFor(pgErr.ConstraintName, err)
	}

	// SQLite reports columns rather than constraint names:
	// "UNIQUE constraint failed: users.email"
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		msg := liteErr.Error()
		switch {
		case strings.Contains(msg, "users.email"):
			return repositories.ErrDuplicateEmail
		case strings.Contains(msg, "provider_links.provider"):
			return repositories.ErrDuplicateLink
		}
	}

	return err
}

func duplicateFor(constraint string, err error) error {
	switch constraint {
	case usersEmailKey:
		return repositories.ErrDuplicateEmail
	case providerLinkSubjectKey:
		return repositories.ErrDuplicateLink
	}
	return err
}
