package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrStaleVersion     = errors.New("record was modified concurrently")
	ErrOverlap          = errors.New("active session overlaps for tutor")
	ErrMissingReference = errors.New("referenced tutor or student does not exist")
)

const (
	pgExclusionViolation  = "23P01"
	pgForeignKeyViolation = "23503"
)

// translatePgError maps constraint violations onto repository sentinels.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgExclusionViolation:
		return ErrOverlap
	case pgForeignKeyViolation:
		return ErrMissingReference
	}
	return err
}
