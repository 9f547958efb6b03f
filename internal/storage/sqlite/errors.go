package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/leynos/ghillie/internal/faults"
	"github.com/leynos/ghillie/internal/storage"
)

// Sentinel errors for common database conditions
var (
	// ErrNotFound indicates the requested resource was not found in the database
	ErrNotFound = storage.ErrNotFound

	// ErrConflict indicates a unique constraint violation or conflicting state
	ErrConflict = errors.New("conflict")
)

// wrapDBError wraps a database error with operation context.
// It converts sql.ErrNoRows to ErrNotFound for consistent error handling.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return faults.Wrap(fmt.Errorf("%s: %w", op, err), faults.CategoryDatabase)
}

// IsUniqueConstraintError checks if an error is a UNIQUE constraint violation.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: UNIQUE")
}

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
