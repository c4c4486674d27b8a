package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Domain error taxonomy. Handlers match these with errors.Is and map them
// to HTTP codes; none of them ever leaves partial state behind because all
// checks run before the first write inside the transaction.
var (
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid state")
	ErrBudgetExceeded  = errors.New("budget exceeded")
	ErrAmountMismatch  = errors.New("amount mismatch")
	ErrAlreadyPaid     = errors.New("invoice already paid")
	ErrAlreadyResolved = errors.New("dispute already resolved")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
)

func forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func invalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func budgetExceededf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBudgetExceeded, fmt.Sprintf(format, args...))
}

// pgUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// mapStoreErr converts storage failures into the domain taxonomy:
// missing rows become ErrNotFound, unique-index races become ErrConflict.
// Everything else passes through untouched.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}
