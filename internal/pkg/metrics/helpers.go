package metrics

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/devilmonastery/idlink/internal/domain/repositories"
)

// RecordDBOperation records database operation metrics consistently
// repo: repository name (e.g., "user", "provider_link")
// operation: operation name (e.g., "create", "get_by_email", "update")
// duration: time taken for the operation
// err: error from the operation (nil if successful)
func RecordDBOperation(repo, operation string, duration time.Duration, err error) {
	DBDuration.WithLabelValues(repo, operation).Observe(float64(duration.Milliseconds()))

	status := "success"
	if err != nil {
		status = "error"
		DBErrors.WithLabelValues(repo, operation, classifyDBError(err)).Inc()
	}
	DBOperations.WithLabelValues(repo, operation, status).Inc()
}

// RecordEmailLookup records the result of a secondary email lookup
// result: "resolved", "unavailable", or "fetch_failed"
func RecordEmailLookup(provider, result string) {
	EmailLookups.WithLabelValues(provider, result).Inc()
}

// RecordHTTPRequest records a handled HTTP request
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(float64(duration.Milliseconds()))
}

// classifyDBError categorizes database errors for metrics. Repository sentinels and
// context errors are checked first; driver messages are matched as a fallback.
func classifyDBError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, repositories.ErrDuplicateEmail), errors.Is(err, repositories.ErrDuplicateLink):
		return "duplicate"
	case errors.Is(err, repositories.ErrUserNotFound), errors.Is(err, repositories.ErrLinkNotFound),
		errors.Is(err, sql.ErrNoRows):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "duplicate key"):
		return "duplicate"
	case strings.Contains(msg, "foreign key"):
		return "foreign_key"
	case strings.Contains(msg, "deadlock"), strings.Contains(msg, "database is locked"):
		return "locked"
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "bad connection"):
		return "connection"
	default:
		return "other"
	}
}
