package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/services"
	"github.com/poofware/backoffice-service/internal/testhelpers"
	"github.com/poofware/backoffice-service/internal/utils"
)

func event(seq int64, at time.Time, typ models.TimelineEventType, to *models.WorkOrderState) *models.TimelineEvent {
	return &models.TimelineEvent{ID: uuid.New(), Seq: seq, OccurredAt: at, Type: typ, ToState: to}
}

func TestAnalyzeTimeline(t *testing.T) {
	ar, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)
	at := func(day, hour int) time.Time {
		return time.Date(2025, time.March, day, hour, 0, 0, 0, ar).UTC()
	}
	pend := utils.Ptr(models.WorkOrderStatePendiente)
	prog := utils.Ptr(models.WorkOrderStateEnProgreso)
	done := utils.Ptr(models.WorkOrderStateFinalizada)

	t.Run("carries state across days without counting the night", func(t *testing.T) {
		events := []*models.TimelineEvent{
			event(6, at(12, 11), models.TimelineEventStateChanged, done),
			event(1, at(11, 9), models.TimelineEventCreated, pend),
			event(2, at(11, 10), models.TimelineEventStateChanged, prog),
			event(3, at(11, 12), models.TimelineEventProgressUpdated, nil),
			event(4, at(11, 13), models.TimelineEventNote, nil),
			event(5, at(12, 9), models.TimelineEventProgressUpdated, nil),
		}

		days, elapsed, busy := services.AnalyzeTimeline(events, ar)
		require.Len(t, days, 2)

		assert.Equal(t, "2025-03-11", days[0].Date)
		assert.Equal(t, int64(4*3600), days[0].ElapsedSeconds)
		assert.Equal(t, int64(3*3600), days[0].InProgressSeconds)
		assert.Equal(t, 0.75, days[0].ProductivityRatio)
		assert.Len(t, days[0].Events, 4)

		assert.Equal(t, "2025-03-12", days[1].Date)
		assert.Equal(t, int64(2*3600), days[1].ElapsedSeconds)
		assert.Equal(t, int64(2*3600), days[1].InProgressSeconds)
		assert.Equal(t, 1.0, days[1].ProductivityRatio)
		assert.Equal(t, ar, days[1].FirstEventAt.Location())

		assert.Equal(t, 6*time.Hour, elapsed)
		assert.Equal(t, 5*time.Hour, busy)
	})

	t.Run("groups by local date", func(t *testing.T) {
		// 20:00 and 22:00 in Buenos Aires fall on two UTC dates
		events := []*models.TimelineEvent{
			event(1, at(11, 20), models.TimelineEventCreated, pend),
			event(2, at(11, 22), models.TimelineEventNote, nil),
		}
		local, _, _ := services.AnalyzeTimeline(events, ar)
		assert.Len(t, local, 1)

		utc, _, _ := services.AnalyzeTimeline(events, time.UTC)
		assert.Len(t, utc, 2)
	})

	t.Run("ties are ordered by sequence", func(t *testing.T) {
		events := []*models.TimelineEvent{
			event(2, at(11, 10), models.TimelineEventStateChanged, prog),
			event(1, at(11, 10), models.TimelineEventCreated, pend),
			event(3, at(11, 11), models.TimelineEventNote, nil),
		}
		days, _, busy := services.AnalyzeTimeline(events, ar)
		require.Len(t, days, 1)
		assert.Equal(t, int64(1), days[0].Events[0].Seq)
		assert.Equal(t, time.Hour, busy)
	})

	t.Run("empty", func(t *testing.T) {
		days, elapsed, busy := services.AnalyzeTimeline(nil, nil)
		assert.NotNil(t, days)
		assert.Empty(t, days)
		assert.Zero(t, elapsed)
		assert.Zero(t, busy)
	})
}

func TestGetTimelineAnalysis(t *testing.T) {
	ctx := context.Background()
	env := testhelpers.NewEnv(t)
	crew := env.SeedCrew(t, "Cuadrilla Norte", "norte")
	w := newOrder(t, env)

	env.Clock.Advance(time.Hour)
	_, err := env.Orders.AssignCrew(ctx, w.ID, crew.ID, services.TransitionOptions{})
	require.NoError(t, err)
	env.Clock.Advance(time.Hour)
	_, err = env.Orders.Transition(ctx, w.ID, models.WorkOrderStateEnProgreso, services.TransitionOptions{})
	require.NoError(t, err)
	env.Clock.Advance(3 * time.Hour)
	_, err = env.Orders.UpdateProgress(ctx, w.ID, 100, services.TransitionOptions{})
	require.NoError(t, err)

	a, err := env.Orders.GetTimelineAnalysis(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "America/Argentina/Buenos_Aires", a.TimeZone)
	require.Len(t, a.Workdays, 1)
	assert.Equal(t, "2025-03-11", a.Workdays[0].Date)
	assert.Equal(t, int64(5*3600), a.TotalElapsedSeconds)
	assert.Equal(t, int64(3*3600), a.TotalInProgressSeconds)
	assert.Equal(t, 0.6, a.ProductivityRatio)

	tl, err := env.Orders.GetTimeline(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, tl.Events, 6)

	_, err = env.Orders.GetTimelineAnalysis(ctx, uuid.New())
	require.ErrorIs(t, err, utils.ErrWorkOrderNotFound)
}
