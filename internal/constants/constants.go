package constants

import (
	"time"
)

// Work orders
const (
	DefaultTimeZone        = "America/Argentina/Buenos_Aires"
	DefaultListTake        = 20
	MaxListTake            = 100
	MaxProgress            = 100
	RecurringWorkOrderHour = 9 // local hour recurring orders are scheduled at
	DefaultCrewSuggestions = 5
)

// Billing
const (
	DefaultCurrency = "ARS"
	// Billing days past 28 would skip short months.
	MaxBillingDay = 28
	// A PENDING payment untouched for this long is resent by the next charge.
	StalePendingPaymentAfter = 15 * time.Minute
	DefaultBillingCronSpec   = "0 6 * * *"
)

// Payment providers
const (
	PaymentProviderMercadoPago = "mercadopago"
	PaymentProviderStripe      = "stripe"
	PaymentProviderMock        = "mock"
)

// Store
const (
	MaxTxAttempts        = 3
	MaxOptimisticRetries = 3
)

// Notifications
const (
	NotificationTimeout = 20 * time.Second
	DefaultFromEmail    = "no-reply@backoffice.local"
	DefaultFromPhone    = "+10005550006"
)

// HTTP
const (
	CORSLowSecurityAllowedOriginLocalhost = "http://localhost:8080"
	ShutdownTimeout                       = 15 * time.Second
	ReadHeaderTimeout                     = 10 * time.Second
)
