package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/arunvm123/ticketinventory/model"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes that mean "someone else touched the row, try again".
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

// mapError classifies a driver error into the model error taxonomy.
// Errors that are already classified pass through untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if model.IsKnown(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", model.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%w: %s", model.ErrConflict, pgErr.Message)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", model.ErrDuplicateName, pgErr.ConstraintName)
		}
	}

	return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
}
