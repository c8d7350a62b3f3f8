package dbx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spacetask/spacetask/internal/common"
)

// PostgreSQL SQLSTATE codes we react to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeInvalidTextRep       = "22P02"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

// Classify maps driver-level failures onto the sentinel errors of package
// common while keeping the original error in the chain. Errors it does not
// recognise are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", common.ErrConflict, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", common.ErrAlreadyExists, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %w", common.ErrConflict, err)
	case codeCheckViolation, codeInvalidTextRep:
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeQueryCanceled:
		return fmt.Errorf("%w: %w", common.ErrConflict, err)
	}
	return err
}

// IsRetryable reports whether err is a contention failure the caller may
// retry after re-reading state.
func IsRetryable(err error) bool {
	return errors.Is(err, common.ErrConflict)
}
