package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zeebo/errs"
	"gorm.io/gorm"
)

var (
	// ErrNotFound marks the absence of an entity where existence was required.
	ErrNotFound = errs.Class("not found")
	// ErrConnectivity marks a durable store that could not be reached or failed a statement.
	ErrConnectivity = errs.Class("durable store unavailable")
	// ErrSchema marks an expected table or column missing from the durable store.
	ErrSchema = errs.Class("durable store schema")
	// ErrCredential marks a failed credential mint. It is logged, never returned to requests.
	ErrCredential = errs.Class("credential")
)

// postgres SQLSTATEs for undefined_table, undefined_column and invalid_schema_name.
var schemaCodes = map[string]bool{
	"42P01": true,
	"42703": true,
	"3F000": true,
}

// classify maps a driver error onto the store taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound.Wrap(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if schemaCodes[pgErr.Code] {
			return ErrSchema.Wrap(err)
		}
		return ErrConnectivity.Wrap(err)
	}
	msg := err.Error()
	if strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column") || strings.Contains(msg, "unknown database") {
		return ErrSchema.Wrap(err)
	}
	return ErrConnectivity.Wrap(err)
}

// IsDurableFailure reports whether err came from the durable mirror of a write.
func IsDurableFailure(err error) bool {
	return ErrConnectivity.Has(err) || ErrSchema.Has(err)
}
