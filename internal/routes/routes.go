package routes

const (
	// Health
	Health = "/health"

	// Work orders
	WorkOrders               = "/api/v1/work-orders"
	WorkOrder                = "/api/v1/work-orders/{id}"
	WorkOrderState           = "/api/v1/work-orders/{id}/state"
	WorkOrderCrew            = "/api/v1/work-orders/{id}/crew"
	WorkOrderProgress        = "/api/v1/work-orders/{id}/progress"
	WorkOrderNotes           = "/api/v1/work-orders/{id}/notes"
	WorkOrderTimeline        = "/api/v1/work-orders/{id}/timeline"
	WorkOrderCrewSuggestions = "/api/v1/work-orders/{id}/crew-suggestions"

	// Crews
	Crews            = "/api/v1/crews"
	CrewAvailability = "/api/v1/crews/{id}/availability"

	// Billing
	Plans                = "/api/v1/plans"
	Subscriptions        = "/api/v1/subscriptions"
	Subscription         = "/api/v1/subscriptions/{id}"
	SubscriptionUpgrade  = "/api/v1/subscriptions/{id}/upgrade"
	SubscriptionCancel   = "/api/v1/subscriptions/{id}/cancel"
	SubscriptionPause    = "/api/v1/subscriptions/{id}/pause"
	SubscriptionResume   = "/api/v1/subscriptions/{id}/resume"
	SubscriptionCharge   = "/api/v1/subscriptions/{id}/charge"
	SubscriptionPayments = "/api/v1/subscriptions/{id}/payments"
	BillingRun           = "/api/v1/billing/run"
)
