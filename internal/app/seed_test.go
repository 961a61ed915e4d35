package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poofware/backoffice-service/internal/app"
	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/testhelpers"
)

func TestSeedAllTestDataIsIdempotent(t *testing.T) {
	env := testhelpers.NewEnv(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, app.SeedAllTestData(ctx, env.Store, env.Billing, env.Clock.Now()))
	}

	crews, err := env.Store.Repos().Crews.List(ctx)
	require.NoError(t, err)
	assert.Len(t, crews, 3)

	plans, err := env.Store.Repos().Plans.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, plans, 2)

	subs, err := env.Store.Repos().Subscriptions.List(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionActive, subs[0].Status)
	assert.NotNil(t, subs[0].PropertyID)
}
