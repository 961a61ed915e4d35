package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/requester"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"

	"github.com/poofware/backoffice-service/internal/config"
	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/utils"
)

// ChargeRequest is one charge attempt. IdempotencyKey is stable across
// replays of the same attempt so the provider cannot charge twice.
type ChargeRequest struct {
	IdempotencyKey    string
	Amount            decimal.Decimal
	Currency          string
	Description       string
	CustomerEmail     string
	GatewayCustomerID *string
	PaymentMethodID   *string
	ExternalReference string // payment id, stored by the provider with the charge
}

// GatewayResult is the provider's verdict. A decline is a result, not an
// error; errors mean the provider could not be reached or understood.
type GatewayResult struct {
	Approved          bool
	ProviderPaymentID string
	ProviderStatus    string
	DeclineReason     string
	Raw               []byte
}

type PaymentGateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*GatewayResult, error)
}

var ErrMissingMercadoPagoAccessToken = errors.New("missing MERCADOPAGO_ACCESS_TOKEN")
var ErrMissingStripeSecretKey = errors.New("missing STRIPE_SECRET_KEY")

// NewPaymentGateway builds the gateway selected by configuration.
func NewPaymentGateway(cfg *config.Config) (PaymentGateway, error) {
	switch cfg.EffectivePaymentProvider() {
	case constants.PaymentProviderMock:
		return NewMockGateway(), nil
	case constants.PaymentProviderStripe:
		return NewStripeGateway(cfg.StripeSecretKey)
	case constants.PaymentProviderMercadoPago:
		return NewMercadoPagoGateway(cfg.MercadoPagoAccessToken)
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}

// ----------------------------------------------------------------------
// Mercado Pago
// ----------------------------------------------------------------------

type MercadoPagoGateway struct {
	client payment.Client
}

func NewMercadoPagoGateway(accessToken string) (*MercadoPagoGateway, error) {
	return newMercadoPagoGateway(accessToken, nil)
}

// newMercadoPagoGateway sends through transport, or the SDK's default
// requester when it is nil.
func newMercadoPagoGateway(accessToken string, transport requester.Requester) (*MercadoPagoGateway, error) {
	if accessToken == "" {
		return nil, ErrMissingMercadoPagoAccessToken
	}
	base, err := mpconfig.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating mercado pago config: %w", err)
	}
	if transport == nil {
		transport = base.Requester
	}
	cfg, err := mpconfig.New(accessToken, mpconfig.WithHTTPClient(&idempotentRequester{next: transport}))
	if err != nil {
		return nil, fmt.Errorf("creating mercado pago config: %w", err)
	}
	utils.Logger.Info("Mercado Pago client initialized")
	return &MercadoPagoGateway{client: payment.NewClient(cfg)}, nil
}

type idempotencyKeyCtxKey struct{}

// idempotentRequester replaces the random X-Idempotency-Key the SDK puts on
// every POST with the key carried by the request context.
type idempotentRequester struct {
	next requester.Requester
}

func (r *idempotentRequester) Do(req *http.Request) (*http.Response, error) {
	if key, ok := req.Context().Value(idempotencyKeyCtxKey{}).(string); ok && key != "" {
		req.Header.Set("X-Idempotency-Key", key)
	}
	return r.next.Do(req)
}

func (g *MercadoPagoGateway) Name() string { return constants.PaymentProviderMercadoPago }

func (g *MercadoPagoGateway) Charge(ctx context.Context, req ChargeRequest) (*GatewayResult, error) {
	payer := map[string]any{"email": req.CustomerEmail}
	if req.GatewayCustomerID != nil {
		payer["id"] = *req.GatewayCustomerID
		payer["type"] = "customer"
	}
	body := map[string]any{
		"transaction_amount": req.Amount.InexactFloat64(),
		"description":        req.Description,
		"external_reference": req.ExternalReference,
		"payer":              payer,
	}
	if req.PaymentMethodID != nil {
		body["payment_method_id"] = *req.PaymentMethodID
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var mpReq payment.Request
	if err := json.Unmarshal(raw, &mpReq); err != nil {
		return nil, fmt.Errorf("building mercado pago request: %w", err)
	}

	ctx = context.WithValue(ctx, idempotencyKeyCtxKey{}, req.IdempotencyKey)
	resp, err := g.client.Create(ctx, mpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: mercado pago create: %v", utils.ErrExternalServiceFailure, err)
	}
	respRaw, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}

	out := &GatewayResult{
		Approved:          resp.Status == "approved",
		ProviderPaymentID: strconv.Itoa(resp.ID),
		ProviderStatus:    resp.Status,
		Raw:               respRaw,
	}
	if !out.Approved {
		out.DeclineReason = strings.TrimSpace(resp.Status + " " + resp.StatusDetail)
	}
	utils.Logger.WithFields(logrus.Fields{
		"providerPaymentID": out.ProviderPaymentID,
		"providerStatus":    out.ProviderStatus,
	}).Info("Mercado Pago charge answered")
	return out, nil
}

// ----------------------------------------------------------------------
// Stripe
// ----------------------------------------------------------------------

type StripeGateway struct {
	client *stripe.Client
}

func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	return newStripeGateway(secretKey)
}

func newStripeGateway(secretKey string, opts ...stripe.ClientOption) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, ErrMissingStripeSecretKey
	}
	utils.Logger.Info("Stripe client initialized")
	return &StripeGateway{client: stripe.NewClient(secretKey, opts...)}, nil
}

func (g *StripeGateway) Name() string { return constants.PaymentProviderStripe }

// Charge confirms an off-session PaymentIntent against the customer's saved
// payment method.
func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*GatewayResult, error) {
	if req.GatewayCustomerID == nil || req.PaymentMethodID == nil {
		return &GatewayResult{
			ProviderStatus: "requires_payment_method",
			DeclineReason:  "customer has no saved payment method",
		}, nil
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(req.Amount.Shift(2).Round(0).IntPart()),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Customer:      stripe.String(*req.GatewayCustomerID),
		PaymentMethod: stripe.String(*req.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
		Description:   stripe.String(req.Description),
	}
	params.AddMetadata("external_reference", req.ExternalReference)
	params.SetIdempotencyKey(req.IdempotencyKey)

	pi, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			out := &GatewayResult{
				ProviderStatus: string(stripeErr.Code),
				DeclineReason:  strings.TrimSpace(string(stripeErr.Code) + " " + stripeErr.Msg),
			}
			if stripeErr.PaymentIntent != nil {
				out.ProviderPaymentID = stripeErr.PaymentIntent.ID
			}
			return out, nil
		}
		return nil, fmt.Errorf("%w: stripe payment intent: %v", utils.ErrExternalServiceFailure, err)
	}

	var raw []byte
	if pi.LastResponse != nil && pi.LastResponse.RawJSON != nil {
		raw = pi.LastResponse.RawJSON
	} else if raw, err = json.Marshal(pi); err != nil {
		return nil, err
	}
	out := &GatewayResult{
		Approved:          pi.Status == stripe.PaymentIntentStatusSucceeded,
		ProviderPaymentID: pi.ID,
		ProviderStatus:    string(pi.Status),
		Raw:               raw,
	}
	if !out.Approved {
		out.DeclineReason = "payment intent " + string(pi.Status)
	}
	return out, nil
}

// ----------------------------------------------------------------------
// Mock
// ----------------------------------------------------------------------

// MockGateway approves every charge without contacting a provider.
type MockGateway struct{}

func NewMockGateway() *MockGateway {
	utils.Logger.Warn("Payment gateway mock mode enabled")
	return &MockGateway{}
}

func (g *MockGateway) Name() string { return constants.PaymentProviderMock }

func (g *MockGateway) Charge(_ context.Context, req ChargeRequest) (*GatewayResult, error) {
	now := time.Now().UTC()
	id := strconv.FormatInt(now.UnixNano(), 10)
	raw, err := json.Marshal(map[string]any{
		"id":                 id,
		"status":             "approved",
		"status_detail":      "accredited",
		"transaction_amount": req.Amount.String(),
		"currency_id":        req.Currency,
		"external_reference": req.ExternalReference,
		"date_approved":      now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return &GatewayResult{
		Approved:          true,
		ProviderPaymentID: id,
		ProviderStatus:    "approved",
		Raw:               raw,
	}, nil
}
