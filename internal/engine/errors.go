package engine

import (
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// StoreError represents a classified storage engine failure.
//
// Every error the engine and its collaborators surface carries a code so
// callers can branch on category instead of matching message text:
//   - Malformed queries are programmer errors and are not retried.
//   - Constraint violations are surfaced for business-logic handling.
//   - Quota and snapshot errors degrade persistence but never crash the
//     handle.
//   - Unmapped identifiers abort the current import batch.
//   - Search timeouts mean even the fallback scan exceeded its budget.
type StoreError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Table names the affected table, when known.
	Table string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, when one exists.
	Err error
}

// ErrorCode categorizes storage engine errors.
type ErrorCode string

const (
	// ErrCodeQueryMalformed indicates a malformed statement or predicate.
	ErrCodeQueryMalformed ErrorCode = "QUERY_MALFORMED"

	// ErrCodeConstraint indicates a unique or foreign key violation.
	ErrCodeConstraint ErrorCode = "CONSTRAINT_VIOLATION"

	// ErrCodeQuotaExceeded indicates the snapshot store is out of capacity.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeSnapshotCorrupt indicates a snapshot failed to deserialize.
	ErrCodeSnapshotCorrupt ErrorCode = "SNAPSHOT_CORRUPT"

	// ErrCodeUnmappedIdentifier indicates a bulk import value with no
	// canonical translation.
	ErrCodeUnmappedIdentifier ErrorCode = "UNMAPPED_IDENTIFIER"

	// ErrCodeSearchTimeout indicates the full-text search and its fallback
	// both exceeded their time budget.
	ErrCodeSearchTimeout ErrorCode = "SEARCH_TIMEOUT"
)

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, e.Message, e.Table)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewQueryError creates a StoreError for a malformed statement.
func NewQueryError(table string, cause error) *StoreError {
	return &StoreError{
		Code:    ErrCodeQueryMalformed,
		Message: cause.Error(),
		Table:   table,
		Err:     cause,
	}
}

// NewConstraintError creates a StoreError for a unique/FK violation.
func NewConstraintError(table string, cause error) *StoreError {
	return &StoreError{
		Code:    ErrCodeConstraint,
		Message: cause.Error(),
		Table:   table,
		Err:     cause,
	}
}

// NewQuotaError creates a StoreError for a snapshot store capacity failure.
func NewQuotaError(sizeBytes, quotaBytes int64) *StoreError {
	return &StoreError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("snapshot of %d bytes exceeds quota of %d bytes", sizeBytes, quotaBytes),
		Details: map[string]string{
			"size":  fmt.Sprintf("%d", sizeBytes),
			"quota": fmt.Sprintf("%d", quotaBytes),
		},
	}
}

// NewCorruptSnapshotError creates a StoreError for an undecodable snapshot.
func NewCorruptSnapshotError(key string, cause error) *StoreError {
	return &StoreError{
		Code:    ErrCodeSnapshotCorrupt,
		Message: fmt.Sprintf("snapshot %q failed to deserialize: %v", key, cause),
		Details: map[string]string{"key": key},
		Err:     cause,
	}
}

// NewUnmappedIdentifierError creates a StoreError for an untranslatable
// source identifier hit during bulk import.
func NewUnmappedIdentifierError(kind, value string) *StoreError {
	return &StoreError{
		Code:    ErrCodeUnmappedIdentifier,
		Message: fmt.Sprintf("no canonical mapping for %s %q", kind, value),
		Details: map[string]string{"kind": kind, "value": value},
	}
}

// NewSearchTimeoutError creates a StoreError for a search whose fallback
// scan also exceeded its budget.
func NewSearchTimeoutError(query string, budget time.Duration) *StoreError {
	return &StoreError{
		Code:    ErrCodeSearchTimeout,
		Message: fmt.Sprintf("search %q exceeded %s budget including fallback", query, budget),
		Details: map[string]string{"query": query, "budget": budget.String()},
	}
}

// IsQueryError reports whether err is a malformed-query error.
func IsQueryError(err error) bool { return hasCode(err, ErrCodeQueryMalformed) }

// IsConstraintError reports whether err is a constraint violation.
func IsConstraintError(err error) bool { return hasCode(err, ErrCodeConstraint) }

// IsQuotaError reports whether err is a snapshot capacity failure.
func IsQuotaError(err error) bool { return hasCode(err, ErrCodeQuotaExceeded) }

// IsCorruptSnapshotError reports whether err is a snapshot decode failure.
func IsCorruptSnapshotError(err error) bool { return hasCode(err, ErrCodeSnapshotCorrupt) }

// IsUnmappedIdentifierError reports whether err is an untranslatable
// identifier failure.
func IsUnmappedIdentifierError(err error) bool { return hasCode(err, ErrCodeUnmappedIdentifier) }

// IsSearchTimeoutError reports whether err is a search budget failure.
func IsSearchTimeoutError(err error) bool { return hasCode(err, ErrCodeSearchTimeout) }

// hasCode matches wrapped StoreErrors by code via errors.As.
func hasCode(err error, code ErrorCode) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// classify maps a raw SQLite error to the engine taxonomy. Constraint
// violations and SQL errors (syntax, unknown table/column) get codes; other
// failures pass through wrapped.
func classify(table string, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code {
		case sqlite3.ErrConstraint:
			return NewConstraintError(table, err)
		case sqlite3.ErrError:
			// Generic SQL error: bad syntax, unknown table or column.
			return NewQueryError(table, err)
		}
	}
	if table == "" {
		return fmt.Errorf("execute: %w", err)
	}
	return fmt.Errorf("table %s: %w", table, err)
}
