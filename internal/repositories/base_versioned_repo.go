package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/poofware/backoffice-service/internal/constants"
)

// BaseVersionedRepo is embedded by the work order, crew and subscription
// repositories. selectByID must take the id as $1 and end in its WHERE clause
// so FOR UPDATE can be appended.
type BaseVersionedRepo[T EntityWithVersion] struct {
	db         DB
	selectByID string
	scan       func(row pgx.Row) (T, error)
}

func NewBaseRepo[T EntityWithVersion](
	db DB,
	selectByID string,
	scan func(pgx.Row) (T, error),
) *BaseVersionedRepo[T] {
	return &BaseVersionedRepo[T]{db: db, selectByID: selectByID, scan: scan}
}

func (b *BaseVersionedRepo[T]) GetByID(ctx context.Context, id uuid.UUID) (T, error) {
	row := b.db.QueryRow(ctx, b.selectByID, id)
	return b.scan(row)
}

// GetForUpdate row-locks the entity until the surrounding transaction ends.
// Outside a transaction the lock is released immediately.
func (b *BaseVersionedRepo[T]) GetForUpdate(ctx context.Context, id uuid.UUID) (T, error) {
	row := b.db.QueryRow(ctx, b.selectByID+" FOR UPDATE", id)
	return b.scan(row)
}

// UpdateWithRetry is for single-row writes made outside Store.WithTx.
func (b *BaseVersionedRepo[T]) UpdateWithRetry(
	ctx context.Context,
	id uuid.UUID,
	mutate func(T) error,
	updateIfVersion UpdateIfVersionFunc[T],
) (T, error) {
	return WithRetry(
		ctx,
		constants.MaxOptimisticRetries,
		id,
		b.GetByID,
		updateIfVersion,
		mutate,
	)
}
