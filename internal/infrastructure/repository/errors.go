package repository

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
)

// notFound converts a pgx no-rows result into the domain's not-found error
// and wraps everything else as internal.
func notFound(err error, resource string) error {
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.NewNotFoundError(resource)
	}
	return errors.NewInternalError("query failed").WithCause(err)
}
