package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/repositories"
	"github.com/poofware/backoffice-service/internal/services"
	"github.com/poofware/backoffice-service/internal/testhelpers"
	"github.com/poofware/backoffice-service/internal/utils"
)

var errBoom = errors.New("boom")

func newOrder(t *testing.T, env *testhelpers.Env) *models.WorkOrder {
	t.Helper()
	customer := env.SeedCustomer(t)
	w, err := env.Orders.Create(context.Background(), testhelpers.NewOrderInput(customer.ID), nil)
	require.NoError(t, err)
	return w
}

// driveTo moves a fresh order through the lifecycle until it reaches target.
func driveTo(t *testing.T, env *testhelpers.Env, id, crewID uuid.UUID, target models.WorkOrderState) *models.WorkOrder {
	t.Helper()
	ctx := context.Background()
	path := map[models.WorkOrderState][]models.WorkOrderState{
		models.WorkOrderStatePendiente:  nil,
		models.WorkOrderStateAsignada:   {models.WorkOrderStateAsignada},
		models.WorkOrderStateEnCamino:   {models.WorkOrderStateAsignada, models.WorkOrderStateEnCamino},
		models.WorkOrderStateEnProgreso: {models.WorkOrderStateAsignada, models.WorkOrderStateEnProgreso},
		models.WorkOrderStateFinalizada: {models.WorkOrderStateAsignada, models.WorkOrderStateEnProgreso, models.WorkOrderStateFinalizada},
		models.WorkOrderStateCancelada:  {models.WorkOrderStateCancelada},
	}
	w := env.Store.WorkOrder(id)
	for _, st := range path[target] {
		var err error
		w, err = env.Orders.Transition(ctx, id, st, services.TransitionOptions{CrewID: &crewID})
		require.NoError(t, err, "moving to %s", st)
	}
	return w
}

func TestCreateWorkOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("plumbing intake opens a pending order", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		customer := env.SeedCustomer(t)

		w, err := env.Orders.Create(ctx, testhelpers.NewOrderInput(customer.ID), nil)
		require.NoError(t, err)

		assert.Equal(t, models.WorkOrderStatePendiente, w.State)
		assert.Equal(t, "plomería", w.ServiceCategory)
		assert.Equal(t, models.PriorityAlta, w.Priority)
		assert.Equal(t, 0, w.Progress)
		assert.Nil(t, w.CrewID)
		assert.Equal(t, int64(1), w.RowVersion)

		events := env.Store.Timeline(w.ID)
		require.Len(t, events, 1)
		assert.Equal(t, models.TimelineEventCreated, events[0].Type)
		assert.Equal(t, int64(1), events[0].Seq)
		require.NotNil(t, events[0].ToState)
		assert.Equal(t, models.WorkOrderStatePendiente, *events[0].ToState)
	})

	t.Run("defaults priority and channel", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		customer := env.SeedCustomer(t)
		in := testhelpers.NewOrderInput(customer.ID)
		in.Priority = ""
		in.Channel = " whatsapp "

		w, err := env.Orders.Create(ctx, in, nil)
		require.NoError(t, err)
		assert.Equal(t, models.PriorityMedia, w.Priority)
		assert.Equal(t, models.ChannelWhatsApp, w.Channel)

		in.Channel = ""
		w, err = env.Orders.Create(ctx, in, nil)
		require.NoError(t, err)
		assert.Equal(t, models.ChannelWeb, w.Channel)
	})

	t.Run("fills location from the property", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		customer := env.SeedCustomer(t)
		prop := env.SeedProperty(t, customer.ID)
		in := testhelpers.NewOrderInput(customer.ID)
		in.PropertyID = &prop.ID
		in.Address = ""

		w, err := env.Orders.Create(ctx, in, nil)
		require.NoError(t, err)
		assert.Equal(t, prop.Address, w.Address)
		require.True(t, w.HasCoordinates())
		assert.Equal(t, prop.Latitude, *w.Latitude)
		assert.Equal(t, prop.TimeZone, w.TimeZone)
	})

	t.Run("falls back to the default time zone", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		customer := env.SeedCustomer(t)

		w, err := env.Orders.Create(ctx, testhelpers.NewOrderInput(customer.ID), nil)
		require.NoError(t, err)
		assert.Equal(t, "America/Argentina/Buenos_Aires", w.TimeZone)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		customer := env.SeedCustomer(t)
		other := env.SeedCustomer(t)
		foreign := env.SeedProperty(t, other.ID)

		cases := []struct {
			name   string
			mutate func(*services.WorkOrderInput)
			want   error
		}{
			{"missing category", func(in *services.WorkOrderInput) { in.ServiceCategory = "  " }, utils.ErrInvalidInput},
			{"missing situation", func(in *services.WorkOrderInput) { in.Situation = "" }, utils.ErrInvalidInput},
			{"unknown priority", func(in *services.WorkOrderInput) { in.Priority = "URGENTISIMA" }, utils.ErrInvalidInput},
			{"half coordinates", func(in *services.WorkOrderInput) { in.Latitude = utils.Ptr(-34.6) }, utils.ErrInvalidInput},
			{"unknown customer", func(in *services.WorkOrderInput) { in.CustomerID = uuid.New() }, utils.ErrCustomerNotFound},
			{"unknown property", func(in *services.WorkOrderInput) { in.PropertyID = utils.Ptr(uuid.New()) }, utils.ErrPropertyNotFound},
			{"property of another customer", func(in *services.WorkOrderInput) { in.PropertyID = &foreign.ID }, utils.ErrInvalidInput},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				in := testhelpers.NewOrderInput(customer.ID)
				tc.mutate(&in)
				_, err := env.Orders.Create(ctx, in, nil)
				require.ErrorIs(t, err, tc.want)
			})
		}
		page, err := env.Orders.List(ctx, repositories.WorkOrderFilter{}, 0, 0)
		require.NoError(t, err)
		assert.Zero(t, page.Total)
	})
}

func TestCanTransition(t *testing.T) {
	legal := map[models.WorkOrderState][]models.WorkOrderState{
		models.WorkOrderStatePendiente:  {models.WorkOrderStateAsignada, models.WorkOrderStateCancelada},
		models.WorkOrderStateAsignada:   {models.WorkOrderStateEnCamino, models.WorkOrderStateEnProgreso, models.WorkOrderStatePendiente, models.WorkOrderStateCancelada},
		models.WorkOrderStateEnCamino:   {models.WorkOrderStateEnProgreso, models.WorkOrderStateCancelada},
		models.WorkOrderStateEnProgreso: {models.WorkOrderStateFinalizada, models.WorkOrderStateCancelada},
	}
	for _, from := range models.AllWorkOrderStates {
		for _, to := range models.AllWorkOrderStates {
			want := false
			for _, l := range legal[from] {
				if l == to {
					want = true
				}
			}
			assert.Equal(t, want, services.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("full lifecycle keeps the crew in step", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		crew := env.SeedCrew(t, "Cuadrilla Norte", "norte")
		w := newOrder(t, env)

		w, err := env.Orders.AssignCrew(ctx, w.ID, crew.ID, services.TransitionOptions{})
		require.NoError(t, err)
		assert.Equal(t, models.WorkOrderStateAsignada, w.State)
		require.NotNil(t, w.CrewID)
		assert.Equal(t, crew.ID, *w.CrewID)
		assert.Equal(t, models.CrewStatusOcupado, env.Store.Crew(crew.ID).Status)
		assert.Equal(t, 1, env.Store.Crew(crew.ID).ActiveOrderCount)

		_, err = env.Orders.Transition(ctx, w.ID, models.WorkOrderStateEnCamino, services.TransitionOptions{})
		require.NoError(t, err)
		assert.Equal(t, models.CrewStatusOcupado, env.Store.Crew(crew.ID).Status)

		_, err = env.Orders.Transition(ctx, w.ID, models.WorkOrderStateEnProgreso, services.TransitionOptions{})
		require.NoError(t, err)
		assert.Equal(t, models.CrewStatusEnTrabajo, env.Store.Crew(crew.ID).Status)

		w, err = env.Orders.Transition(ctx, w.ID, models.WorkOrderStateFinalizada, services.TransitionOptions{Note: utils.Ptr("listo")})
		require.NoError(t, err)
		assert.Equal(t, models.WorkOrderStateFinalizada, w.State)
		assert.Equal(t, 100, w.Progress)
		assert.NotNil(t, w.CompletedAt)

		c := env.Store.Crew(crew.ID)
		assert.Equal(t, models.CrewStatusDesocupado, c.Status)
		assert.Zero(t, c.ActiveOrderCount)

		types := []models.TimelineEventType{}
		for i, e := range env.Store.Timeline(w.ID) {
			assert.Equal(t, int64(i+1), e.Seq)
			types = append(types, e.Type)
		}
		assert.Equal(t, []models.TimelineEventType{
			models.TimelineEventCreated,
			models.TimelineEventStateChanged,
			models.TimelineEventAssigned,
			models.TimelineEventStateChanged,
			models.TimelineEventStateChanged,
			models.TimelineEventStateChanged,
		}, types)

		require.Len(t, env.Notifier.Completed(), 1)
		assert.Equal(t, w.ID, env.Notifier.Completed()[0].ID)
	})

	t.Run("illegal moves change nothing", func(t *testing.T) {
		cases := []struct {
			from, to models.WorkOrderState
		}{
			{models.WorkOrderStatePendiente, models.WorkOrderStateEnProgreso},
			{models.WorkOrderStatePendiente, models.WorkOrderStateFinalizada},
			{models.WorkOrderStateAsignada, models.WorkOrderStateFinalizada},
			{models.WorkOrderStateEnCamino, models.WorkOrderStateAsignada},
			{models.WorkOrderStateEnProgreso, models.WorkOrderStatePendiente},
			{models.WorkOrderStateFinalizada, models.WorkOrderStateCancelada},
			{models.WorkOrderStateCancelada, models.WorkOrderStatePendiente},
		}
		for _, tc := range cases {
			t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
				env := testhelpers.NewEnv(t)
				crew := env.SeedCrew(t, "Cuadrilla Sur", "sur")
				w := driveTo(t, env, newOrder(t, env).ID, crew.ID, tc.from)
				before := env.Store.Timeline(w.ID)

				_, err := env.Orders.Transition(ctx, w.ID, tc.to, services.TransitionOptions{CrewID: &crew.ID})
				require.ErrorIs(t, err, utils.ErrInvalidTransition)
				var te *utils.TransitionError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, tc.from, te.From)
				assert.Equal(t, tc.to, te.To)

				after := env.Store.WorkOrder(w.ID)
				assert.Equal(t, tc.from, after.State)
				assert.Equal(t, w.RowVersion, after.RowVersion)
				assert.Equal(t, before, env.Store.Timeline(w.ID))
			})
		}
	})

	t.Run("unknown target state", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		w := newOrder(t, env)
		_, err := env.Orders.Transition(ctx, w.ID, "PAUSADA", services.TransitionOptions{})
		require.ErrorIs(t, err, utils.ErrInvalidInput)
	})

	t.Run("unknown order", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		_, err := env.Orders.Transition(ctx, uuid.New(), models.WorkOrderStateCancelada, services.TransitionOptions{})
		require.ErrorIs(t, err, utils.ErrWorkOrderNotFound)
	})

	t.Run("assigning needs a crew", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		w := newOrder(t, env)
		_, err := env.Orders.Transition(ctx, w.ID, models.WorkOrderStateAsignada, services.TransitionOptions{})
		require.ErrorIs(t, err, utils.ErrCrewRequired)
		assert.Equal(t, models.WorkOrderStatePendiente, env.Store.WorkOrder(w.ID).State)
	})

	t.Run("offline crew is unavailable and the order stays pending", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		crew := env.SeedCrew(t, "Cuadrilla Oeste", "oeste", func(c *models.Crew) {
			c.Status = models.CrewStatusOffline
		})
		w := newOrder(t, env)

		_, err := env.Orders.AssignCrew(ctx, w.ID, crew.ID, services.TransitionOptions{})
		require.ErrorIs(t, err, utils.ErrCrewUnavailable)
		assert.Equal(t, utils.KindUnavailable, utils.KindOf(err))

		stored := env.Store.WorkOrder(w.ID)
		assert.Equal(t, models.WorkOrderStatePendiente, stored.State)
		assert.Nil(t, stored.CrewID)
		assert.Len(t, env.Store.Timeline(w.ID), 1)
		assert.Equal(t, models.CrewStatusOffline, env.Store.Crew(crew.ID).Status)
		assert.Zero(t, env.Store.Crew(crew.ID).ActiveOrderCount)
	})

	t.Run("revoking frees the crew", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		crew := env.SeedCrew(t, "Cuadrilla Este", "este")
		w := driveTo(t, env, newOrder(t, env).ID, crew.ID, models.WorkOrderStateAsignada)

		w, err := env.Orders.Transition(ctx, w.ID, models.WorkOrderStatePendiente, services.TransitionOptions{})
		require.NoError(t, err)
		assert.Nil(t, w.CrewID)
		assert.Equal(t, models.CrewStatusDesocupado, env.Store.Crew(crew.ID).Status)
	})

	t.Run("cancel keeps progress and frees the crew", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		crew := env.SeedCrew(t, "Cuadrilla Centro", "centro")
		w := driveTo(t, env, newOrder(t, env).ID, crew.ID, models.WorkOrderStateEnProgreso)
		_, err := env.Orders.UpdateProgress(ctx, w.ID, 40, services.TransitionOptions{})
		require.NoError(t, err)

		w, err = env.Orders.Transition(ctx, w.ID, models.WorkOrderStateCancelada, services.TransitionOptions{})
		require.NoError(t, err)
		assert.Equal(t, 40, w.Progress)
		assert.NotNil(t, w.CanceledAt)
		assert.Nil(t, w.CrewID)
		c := env.Store.Crew(crew.ID)
		assert.Equal(t, models.CrewStatusDesocupado, c.Status)
		assert.Zero(t, c.Progress)
		assert.Empty(t, env.Notifier.Completed())
	})

	t.Run("stale row version is a conflict", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		w := newOrder(t, env)
		_, err := env.Orders.Transition(ctx, w.ID, models.WorkOrderStateCancelada, services.TransitionOptions{
			ExpectedVersion: utils.Ptr(int64(7)),
		})
		require.ErrorIs(t, err, utils.ErrConflict)
		var conflict *utils.RowVersionConflictError
		require.ErrorAs(t, err, &conflict)
		current, ok := conflict.Current.(*models.WorkOrder)
		require.True(t, ok)
		assert.Equal(t, int64(1), current.RowVersion)
	})
}

func TestCrewReferenceCounting(t *testing.T) {
	ctx := context.Background()
	env := testhelpers.NewEnv(t)
	crew := env.SeedCrew(t, "Cuadrilla Norte", "norte")

	first := driveTo(t, env, newOrder(t, env).ID, crew.ID, models.WorkOrderStateAsignada)
	second := driveTo(t, env, newOrder(t, env).ID, crew.ID, models.WorkOrderStateEnProgreso)

	c := env.Store.Crew(crew.ID)
	assert.Equal(t, 2, c.ActiveOrderCount)
	assert.Equal(t, models.CrewStatusEnTrabajo, c.Status)

	_, err := env.Orders.Transition(ctx, second.ID, models.WorkOrderStateFinalizada, services.TransitionOptions{})
	require.NoError(t, err)
	c = env.Store.Crew(crew.ID)
	assert.Equal(t, 1, c.ActiveOrderCount)
	assert.Equal(t, models.CrewStatusOcupado, c.Status, "crew still holds the first order")

	_, err = env.Orders.Transition(ctx, first.ID, models.WorkOrderStateCancelada, services.TransitionOptions{})
	require.NoError(t, err)
	c = env.Store.Crew(crew.ID)
	assert.Zero(t, c.ActiveOrderCount)
	assert.Equal(t, models.CrewStatusDesocupado, c.Status)
}

func TestAssignCrew(t *testing.T) {
	ctx := context.Background()

	t.Run("same crew twice is a no-op", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		crew := env.SeedCrew(t, "Cuadrilla Norte", "norte")
		w := newOrder(t, env)

		first, err := env.Orders.AssignCrew(ctx, w.ID, crew.ID, services.TransitionOptions{})
		require.NoError(t, err)
		again, err := env.Orders.AssignCrew(ctx, w.ID, crew.ID, services.TransitionOptions{})
		require.NoError(t, err)

		assert.Equal(t, first.RowVersion, again.RowVersion)
		assert.Equal(t, 1, env.Store.Crew(crew.ID).ActiveOrderCount)
		assert.Equal(t, 1, env.Store.CountEvents(w.ID, models.TimelineEventAssigned))
	})

	t.Run("reassignment moves the reference", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		north := env.SeedCrew(t, "Cuadrilla Norte", "norte")
		south := env.SeedCrew(t, "Cuadrilla Sur", "sur")
		w := driveTo(t, env, newOrder(t, env).ID, north.ID, models.WorkOrderStateEnProgreso)

		w, err := env.Orders.AssignCrew(ctx, w.ID, south.ID, services.TransitionOptions{})
		require.NoError(t, err)
		assert.Equal(t, models.WorkOrderStateEnProgreso, w.State)
		assert.Equal(t, south.ID, *w.CrewID)

		assert.Equal(t, models.CrewStatusDesocupado, env.Store.Crew(north.ID).Status)
		assert.Equal(t, models.CrewStatusEnTrabajo, env.Store.Crew(south.ID).Status)
		assert.Equal(t, 2, env.Store.CountEvents(w.ID, models.TimelineEventAssigned))
	})

	t.Run("terminal orders cannot be assigned", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		crew := env.SeedCrew(t, "Cuadrilla Norte", "norte")
		w := driveTo(t, env, newOrder(t, env).ID, crew.ID, models.WorkOrderStateCancelada)

		_, err := env.Orders.AssignCrew(ctx, w.ID, crew.ID, services.TransitionOptions{})
		require.ErrorIs(t, err, utils.ErrTerminalState)
	})

	t.Run("unknown crew", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		w := newOrder(t, env)
		_, err := env.Orders.AssignCrew(ctx, w.ID, uuid.New(), services.TransitionOptions{})
		require.ErrorIs(t, err, utils.ErrCrewNotFound)
		assert.Equal(t, models.WorkOrderStatePendiente, env.Store.WorkOrder(w.ID).State)
	})

	t.Run("concurrent assignments with the same version: one wins", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		crews := []*models.Crew{
			env.SeedCrew(t, "Cuadrilla A", "norte"),
			env.SeedCrew(t, "Cuadrilla B", "norte"),
		}
		w := newOrder(t, env)

		var wg sync.WaitGroup
		errs := make([]error, len(crews))
		for i, c := range crews {
			wg.Add(1)
			go func(i int, crewID uuid.UUID) {
				defer wg.Done()
				_, errs[i] = env.Orders.AssignCrew(ctx, w.ID, crewID, services.TransitionOptions{
					ExpectedVersion: utils.Ptr(int64(1)),
				})
			}(i, c.ID)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, utils.ErrConflict)
		}
		assert.Equal(t, 1, wins)

		stored := env.Store.WorkOrder(w.ID)
		require.NotNil(t, stored.CrewID)
		total := 0
		for _, c := range crews {
			total += env.Store.Crew(c.ID).ActiveOrderCount
		}
		assert.Equal(t, 1, total)
		assert.Equal(t, 1, env.Store.Crew(*stored.CrewID).ActiveOrderCount)
		assert.Equal(t, 1, env.Store.CountEvents(w.ID, models.TimelineEventAssigned))
	})
}

func TestTransitionIsAtomic(t *testing.T) {
	ctx := context.Background()

	for _, op := range []string{testhelpers.OpTimelineAppend, testhelpers.OpCrewUpdate} {
		t.Run(op, func(t *testing.T) {
			env := testhelpers.NewEnv(t)
			crew := env.SeedCrew(t, "Cuadrilla Norte", "norte")
			w := newOrder(t, env)

			env.Store.FailNext(op, errBoom)
			_, err := env.Orders.AssignCrew(ctx, w.ID, crew.ID, services.TransitionOptions{})
			require.ErrorIs(t, err, errBoom)

			stored := env.Store.WorkOrder(w.ID)
			assert.Equal(t, models.WorkOrderStatePendiente, stored.State)
			assert.Nil(t, stored.CrewID)
			assert.Equal(t, int64(1), stored.RowVersion)
			c := env.Store.Crew(crew.ID)
			assert.Zero(t, c.ActiveOrderCount)
			assert.Equal(t, models.CrewStatusDesocupado, c.Status)
			assert.Len(t, env.Store.Timeline(w.ID), 1)

			// the next attempt goes through untouched by the failed one
			_, err = env.Orders.AssignCrew(ctx, w.ID, crew.ID, services.TransitionOptions{})
			require.NoError(t, err)
			assert.Equal(t, 1, env.Store.Crew(crew.ID).ActiveOrderCount)
		})
	}
}

func TestUpdateProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("out of range", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		w := newOrder(t, env)
		for _, p := range []int{-1, 101} {
			_, err := env.Orders.UpdateProgress(ctx, w.ID, p, services.TransitionOptions{})
			require.ErrorIs(t, err, utils.ErrOutOfRange)
		}
	})

	t.Run("repeating a value records nothing", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		crew := env.SeedCrew(t, "Cuadrilla Norte", "norte")
		w := driveTo(t, env, newOrder(t, env).ID, crew.ID, models.WorkOrderStateEnProgreso)

		first, err := env.Orders.UpdateProgress(ctx, w.ID, 50, services.TransitionOptions{})
		require.NoError(t, err)
		second, err := env.Orders.UpdateProgress(ctx, w.ID, 50, services.TransitionOptions{})
		require.NoError(t, err)

		assert.Equal(t, 50, second.Progress)
		assert.Equal(t, first.RowVersion, second.RowVersion)
		assert.Equal(t, 1, env.Store.CountEvents(w.ID, models.TimelineEventProgressUpdated))
		assert.Equal(t, 50, env.Store.Crew(crew.ID).Progress)
	})

	t.Run("reaching 100 finalizes", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		crew := env.SeedCrew(t, "Cuadrilla Norte", "norte")
		w := driveTo(t, env, newOrder(t, env).ID, crew.ID, models.WorkOrderStateEnProgreso)

		w, err := env.Orders.UpdateProgress(ctx, w.ID, 100, services.TransitionOptions{})
		require.NoError(t, err)
		assert.Equal(t, models.WorkOrderStateFinalizada, w.State)
		assert.Equal(t, 100, w.Progress)
		assert.Equal(t, models.CrewStatusDesocupado, env.Store.Crew(crew.ID).Status)
		assert.Len(t, env.Notifier.Completed(), 1)

		events := env.Store.Timeline(w.ID)
		last := events[len(events)-1]
		assert.Equal(t, models.TimelineEventStateChanged, last.Type)
		assert.Equal(t, models.TimelineEventProgressUpdated, events[len(events)-2].Type)
	})

	t.Run("100 outside EN_PROGRESO is a transition error", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		crew := env.SeedCrew(t, "Cuadrilla Norte", "norte")
		w := driveTo(t, env, newOrder(t, env).ID, crew.ID, models.WorkOrderStateAsignada)

		_, err := env.Orders.UpdateProgress(ctx, w.ID, 100, services.TransitionOptions{})
		require.ErrorIs(t, err, utils.ErrInvalidTransition)
		assert.Zero(t, env.Store.WorkOrder(w.ID).Progress)
	})

	t.Run("terminal orders reject progress", func(t *testing.T) {
		env := testhelpers.NewEnv(t)
		crew := env.SeedCrew(t, "Cuadrilla Norte", "norte")
		w := driveTo(t, env, newOrder(t, env).ID, crew.ID, models.WorkOrderStateFinalizada)

		_, err := env.Orders.UpdateProgress(ctx, w.ID, 20, services.TransitionOptions{})
		require.ErrorIs(t, err, utils.ErrTerminalState)
	})
}

func TestAddNote(t *testing.T) {
	ctx := context.Background()
	env := testhelpers.NewEnv(t)
	crew := env.SeedCrew(t, "Cuadrilla Norte", "norte")
	w := driveTo(t, env, newOrder(t, env).ID, crew.ID, models.WorkOrderStateFinalizada)
	actor := uuid.New()

	e, err := env.Orders.AddNote(ctx, w.ID, "  cliente conforme  ", &actor)
	require.NoError(t, err)
	assert.Equal(t, "cliente conforme", *e.Note)
	assert.Equal(t, models.TimelineEventNote, e.Type)
	assert.Equal(t, int64(len(env.Store.Timeline(w.ID))), e.Seq)
	assert.Equal(t, w.RowVersion, env.Store.WorkOrder(w.ID).RowVersion, "notes do not touch the order")

	_, err = env.Orders.AddNote(ctx, w.ID, "   ", nil)
	require.ErrorIs(t, err, utils.ErrInvalidInput)

	_, err = env.Orders.AddNote(ctx, uuid.New(), "hola", nil)
	require.ErrorIs(t, err, utils.ErrWorkOrderNotFound)
}

func TestListWorkOrders(t *testing.T) {
	ctx := context.Background()
	env := testhelpers.NewEnv(t)
	crew := env.SeedCrew(t, "Cuadrilla Norte", "norte")

	ids := []uuid.UUID{}
	for i := 0; i < 3; i++ {
		ids = append(ids, newOrder(t, env).ID)
		env.Clock.Advance(time.Minute)
	}
	driveTo(t, env, ids[0], crew.ID, models.WorkOrderStateAsignada)

	page, err := env.Orders.List(ctx, repositories.WorkOrderFilter{}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[2], page.Items[0].ID, "newest first")

	state := models.WorkOrderStateAsignada
	page, err = env.Orders.List(ctx, repositories.WorkOrderFilter{State: &state}, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ids[0], page.Items[0].ID)
	assert.Equal(t, 20, page.Take)

	page, err = env.Orders.List(ctx, repositories.WorkOrderFilter{CrewID: utils.Ptr(uuid.New())}, 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)

	_, err = env.Orders.Get(ctx, uuid.New())
	require.ErrorIs(t, err, utils.ErrWorkOrderNotFound)
}
