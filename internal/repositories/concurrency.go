package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"

	"github.com/poofware/backoffice-service/internal/utils"
)

// EntityWithVersion is a pointer to a model embedding models.Versioned.
// The zero value (nil) means "not found".
type EntityWithVersion interface {
	comparable
	GetID() string
	GetRowVersion() int64
	SetRowVersion(int64)
}

type UpdateIfVersionFunc[T EntityWithVersion] func(
	ctx context.Context,
	entity T,
	expectedVersion int64,
) (pgconn.CommandTag, error)

type GetByIDFunc[T EntityWithVersion] func(
	ctx context.Context,
	id uuid.UUID,
) (T, error)

// ErrEntityNotFound is returned by WithRetry when the entity disappears.
var ErrEntityNotFound = errors.New("entity_not_found")

// WithRetry reloads, mutates and conditionally writes the entity until the
// write lands on the version it read. A mutate error aborts the loop and is
// returned unchanged.
func WithRetry[T EntityWithVersion](
	ctx context.Context,
	maxRetries int,
	id uuid.UUID,
	getByID GetByIDFunc[T],
	updateIfVersion UpdateIfVersionFunc[T],
	mutate func(T) error,
) (T, error) {
	var zero T
	for attempt := 0; attempt < maxRetries; attempt++ {
		current, err := getByID(ctx, id)
		if err != nil {
			return zero, err
		}
		if current == zero {
			return zero, ErrEntityNotFound
		}

		oldVersion := current.GetRowVersion()

		if err := mutate(current); err != nil {
			return zero, err
		}

		tag, err := updateIfVersion(ctx, current, oldVersion)
		if err != nil {
			return zero, err
		}
		if tag.RowsAffected() == 1 {
			return current, nil
		}
		// lost the race; reload
	}
	return zero, fmt.Errorf("too much contention updating %s: %w", id, utils.ErrRowVersionConflict)
}

// isRetryableTxError reports serialization failures and deadlocks, both
// of which are safe to replay from the start of the transaction.
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
