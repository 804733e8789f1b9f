package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound                = errors.New("record not found")
	ErrDuplicateReference      = errors.New("reference number already taken")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

const (
	referenceConstraint   = "applications_reference_number_key"
	idempotencyConstraint = "applications_idempotency_key_key"
)

// uniqueViolation returns the violated constraint name, or "" when err is
// not a unique violation.
func uniqueViolation(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName
	}
	return ""
}
