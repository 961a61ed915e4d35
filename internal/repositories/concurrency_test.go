package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/utils"
)

// crewRow simulates a single versioned row that other writers may bump.
type crewRow struct {
	crew        *models.Crew
	bumpsBefore int // concurrent writes landing before each of our updates
	updates     int
}

func (r *crewRow) get(_ context.Context, id uuid.UUID) (*models.Crew, error) {
	if r.crew == nil || r.crew.ID != id {
		return nil, nil
	}
	return r.crew.Clone(), nil
}

func (r *crewRow) update(_ context.Context, c *models.Crew, expected int64) (pgconn.CommandTag, error) {
	r.updates++
	if r.bumpsBefore > 0 {
		r.bumpsBefore--
		r.crew.SetRowVersion(r.crew.RowVersion + 1)
	}
	if r.crew.RowVersion != expected {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	c.SetRowVersion(expected + 1)
	r.crew = c.Clone()
	return pgconn.CommandTag("UPDATE 1"), nil
}

func newCrewRow() *crewRow {
	c := &models.Crew{ID: uuid.New(), Name: "Cuadrilla Norte", Status: models.CrewStatusDesocupado}
	c.SetRowVersion(1)
	return &crewRow{crew: c}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	goOffline := func(c *models.Crew) error {
		c.Status = models.CrewStatusOffline
		return nil
	}

	t.Run("first attempt wins", func(t *testing.T) {
		row := newCrewRow()
		got, err := WithRetry(ctx, 3, row.crew.ID, row.get, row.update, goOffline)
		require.NoError(t, err)
		assert.Equal(t, models.CrewStatusOffline, got.Status)
		assert.EqualValues(t, 2, got.RowVersion)
		assert.Equal(t, 1, row.updates)
	})

	t.Run("retries after a concurrent write", func(t *testing.T) {
		row := newCrewRow()
		row.bumpsBefore = 2
		got, err := WithRetry(ctx, 3, row.crew.ID, row.get, row.update, goOffline)
		require.NoError(t, err)
		assert.EqualValues(t, 4, got.RowVersion)
		assert.Equal(t, 3, row.updates)
	})

	t.Run("gives up under contention", func(t *testing.T) {
		row := newCrewRow()
		row.bumpsBefore = 5
		_, err := WithRetry(ctx, 3, row.crew.ID, row.get, row.update, goOffline)
		require.ErrorIs(t, err, utils.ErrRowVersionConflict)
		assert.Equal(t, utils.KindConflict, utils.KindOf(err))
	})

	t.Run("missing entity", func(t *testing.T) {
		row := newCrewRow()
		_, err := WithRetry(ctx, 3, uuid.New(), row.get, row.update, goOffline)
		require.ErrorIs(t, err, ErrEntityNotFound)
		assert.Zero(t, row.updates)
	})

	t.Run("mutate error aborts unchanged", func(t *testing.T) {
		row := newCrewRow()
		boom := errors.New("crew has active orders")
		_, err := WithRetry(ctx, 3, row.crew.ID, row.get, row.update, func(*models.Crew) error { return boom })
		require.Same(t, boom, err)
		assert.Zero(t, row.updates)
		assert.Equal(t, models.CrewStatusDesocupado, row.crew.Status)
	})
}

func TestPgErrorClassification(t *testing.T) {
	serialization := fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})
	deadlock := &pgconn.PgError{Code: "40P01"}
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})

	assert.True(t, isRetryableTxError(serialization))
	assert.True(t, isRetryableTxError(deadlock))
	assert.False(t, isRetryableTxError(unique))
	assert.False(t, isRetryableTxError(errors.New("conn reset")))

	assert.True(t, isUniqueViolation(unique))
	assert.False(t, isUniqueViolation(serialization))
}
