package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/poofware/backoffice-service/internal/controllers"
)

// Controllers groups every handler set the router exposes.
type Controllers struct {
	Health        *controllers.HealthController
	WorkOrders    *controllers.WorkOrdersController
	Crews         *controllers.CrewsController
	Subscriptions *controllers.SubscriptionsController
}

// NewRouter registers /health publicly and every /api/v1 route behind auth.
func NewRouter(c Controllers, auth mux.MiddlewareFunc) *mux.Router {
	router := mux.NewRouter()

	// Public
	router.HandleFunc(Health, c.Health.HealthCheckHandler).Methods(http.MethodGet)

	secured := router.NewRoute().Subrouter()
	secured.Use(auth)

	wo := c.WorkOrders
	secured.HandleFunc(WorkOrders, wo.ListWorkOrdersHandler).Methods(http.MethodGet)
	secured.HandleFunc(WorkOrders, wo.CreateWorkOrderHandler).Methods(http.MethodPost)
	secured.HandleFunc(WorkOrder, wo.GetWorkOrderHandler).Methods(http.MethodGet)
	secured.HandleFunc(WorkOrderState, wo.TransitionWorkOrderHandler).Methods(http.MethodPatch)
	secured.HandleFunc(WorkOrderCrew, wo.AssignCrewHandler).Methods(http.MethodPatch)
	secured.HandleFunc(WorkOrderProgress, wo.UpdateProgressHandler).Methods(http.MethodPatch)
	secured.HandleFunc(WorkOrderNotes, wo.AddNoteHandler).Methods(http.MethodPost)
	secured.HandleFunc(WorkOrderTimeline, wo.GetTimelineHandler).Methods(http.MethodGet)
	secured.HandleFunc(WorkOrderCrewSuggestions, wo.SuggestCrewsHandler).Methods(http.MethodGet)

	secured.HandleFunc(Crews, c.Crews.ListCrewsHandler).Methods(http.MethodGet)
	secured.HandleFunc(CrewAvailability, c.Crews.SetAvailabilityHandler).Methods(http.MethodPatch)

	subs := c.Subscriptions
	secured.HandleFunc(Plans, subs.ListPlansHandler).Methods(http.MethodGet)
	secured.HandleFunc(Subscriptions, subs.ListSubscriptionsHandler).Methods(http.MethodGet)
	secured.HandleFunc(Subscriptions, subs.CreateSubscriptionHandler).Methods(http.MethodPost)
	secured.HandleFunc(Subscription, subs.GetSubscriptionHandler).Methods(http.MethodGet)
	secured.HandleFunc(SubscriptionUpgrade, subs.UpgradeSubscriptionHandler).Methods(http.MethodPost)
	secured.HandleFunc(SubscriptionCancel, subs.CancelSubscriptionHandler).Methods(http.MethodPost)
	secured.HandleFunc(SubscriptionPause, subs.PauseSubscriptionHandler).Methods(http.MethodPost)
	secured.HandleFunc(SubscriptionResume, subs.ResumeSubscriptionHandler).Methods(http.MethodPost)
	secured.HandleFunc(SubscriptionCharge, subs.ChargeSubscriptionHandler).Methods(http.MethodPost)
	secured.HandleFunc(SubscriptionPayments, subs.ListPaymentsHandler).Methods(http.MethodGet)
	secured.HandleFunc(BillingRun, subs.RunBillingCycleHandler).Methods(http.MethodPost)

	return router
}
