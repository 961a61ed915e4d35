package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/poofware/backoffice-service/internal/config"
	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/utils"
)

func testChargeRequest() ChargeRequest {
	return ChargeRequest{
		IdempotencyKey:    "sub-1:2025-03-11T12:00:00Z:0",
		Amount:            decimal.RequireFromString("5000.50"),
		Currency:          "ARS",
		Description:       "Mantenimiento Hogar 2025-03-11 - 2025-04-11",
		CustomerEmail:     "lucia@example.com",
		GatewayCustomerID: utils.Ptr("cus_1"),
		PaymentMethodID:   utils.Ptr("visa"),
		ExternalReference: "0b7e5c1e-4a55-4d5e-9b0a-6c1d2f3a4b5c",
	}
}

// ----------------------------------------------------------------------
// Mercado Pago
// ----------------------------------------------------------------------

type mpRequest struct {
	header http.Header
	body   map[string]any
}

type mpRecorder struct {
	mu       sync.Mutex
	requests []mpRequest
	response string
	status   int
	err      error
}

func (r *mpRecorder) Do(req *http.Request) (*http.Response, error) {
	raw, _ := io.ReadAll(req.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, mpRequest{header: req.Header.Clone(), body: body})
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewBufferString(r.response)),
	}, nil
}

func newTestMercadoPago(t *testing.T, rec *mpRecorder) *MercadoPagoGateway {
	t.Helper()
	g, err := newMercadoPagoGateway("TEST-token", rec)
	require.NoError(t, err)
	return g
}

func TestMercadoPagoCharge(t *testing.T) {
	ctx := context.Background()

	t.Run("approved charge maps the request", func(t *testing.T) {
		rec := &mpRecorder{status: http.StatusCreated, response: `{"id": 1319, "status": "approved", "status_detail": "accredited"}`}
		g := newTestMercadoPago(t, rec)
		req := testChargeRequest()

		res, err := g.Charge(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.Approved)
		assert.Equal(t, "1319", res.ProviderPaymentID)
		assert.Equal(t, "approved", res.ProviderStatus)
		assert.Empty(t, res.DeclineReason)
		assert.NotEmpty(t, res.Raw)

		require.Len(t, rec.requests, 1)
		sent := rec.requests[0]
		assert.Equal(t, "Bearer TEST-token", sent.header.Get("Authorization"))
		assert.Equal(t, req.IdempotencyKey, sent.header.Get("X-Idempotency-Key"))
		assert.Equal(t, req.ExternalReference, sent.body["external_reference"])
		assert.Equal(t, 5000.5, sent.body["transaction_amount"])
		assert.Equal(t, req.Description, sent.body["description"])
		assert.Equal(t, "visa", sent.body["payment_method_id"])
		payer, ok := sent.body["payer"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "lucia@example.com", payer["email"])
		assert.Equal(t, "cus_1", payer["id"])
		assert.Equal(t, "customer", payer["type"])
	})

	t.Run("a resent charge carries the same idempotency key", func(t *testing.T) {
		rec := &mpRecorder{status: http.StatusCreated, response: `{"id": 1319, "status": "approved"}`}
		g := newTestMercadoPago(t, rec)
		req := testChargeRequest()

		_, err := g.Charge(ctx, req)
		require.NoError(t, err)
		_, err = g.Charge(ctx, req)
		require.NoError(t, err)

		require.Len(t, rec.requests, 2)
		assert.Equal(t, req.IdempotencyKey, rec.requests[0].header.Get("X-Idempotency-Key"))
		assert.Equal(t, req.IdempotencyKey, rec.requests[1].header.Get("X-Idempotency-Key"))
		assert.NotEqual(t, rec.requests[0].header.Get("X-Request-Id"), rec.requests[1].header.Get("X-Request-Id"))
	})

	t.Run("a rejected charge is a decline", func(t *testing.T) {
		rec := &mpRecorder{status: http.StatusCreated, response: `{"id": 1320, "status": "rejected", "status_detail": "cc_rejected_insufficient_amount"}`}
		g := newTestMercadoPago(t, rec)

		res, err := g.Charge(ctx, testChargeRequest())
		require.NoError(t, err)
		assert.False(t, res.Approved)
		assert.Equal(t, "1320", res.ProviderPaymentID)
		assert.Equal(t, "rejected cc_rejected_insufficient_amount", res.DeclineReason)
	})

	t.Run("transport errors are external failures", func(t *testing.T) {
		rec := &mpRecorder{err: errors.New("connection reset")}
		g := newTestMercadoPago(t, rec)

		_, err := g.Charge(ctx, testChargeRequest())
		require.ErrorIs(t, err, utils.ErrExternalServiceFailure)
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("provider errors are external failures", func(t *testing.T) {
		rec := &mpRecorder{status: http.StatusBadRequest, response: `{"message": "invalid payer"}`}
		g := newTestMercadoPago(t, rec)

		_, err := g.Charge(ctx, testChargeRequest())
		require.ErrorIs(t, err, utils.ErrExternalServiceFailure)
	})
}

// ----------------------------------------------------------------------
// Stripe
// ----------------------------------------------------------------------

type stripeStub struct {
	mu     sync.Mutex
	paths  []string
	params []*stripe.PaymentIntentCreateParams
	status stripe.PaymentIntentStatus
	err    error
}

func (b *stripeStub) Call(method, path, key string, params stripe.ParamsContainer, v stripe.LastResponseSetter) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, method+" "+path)
	if p, ok := params.(*stripe.PaymentIntentCreateParams); ok {
		b.params = append(b.params, p)
	}
	if b.err != nil {
		return b.err
	}
	pi := v.(*stripe.PaymentIntent)
	pi.ID = "pi_123"
	pi.Status = b.status
	return nil
}

func (b *stripeStub) CallStreaming(string, string, string, stripe.ParamsContainer, stripe.StreamingLastResponseSetter) error {
	return errors.New("not implemented")
}

func (b *stripeStub) CallRaw(string, string, string, []byte, *stripe.Params, stripe.LastResponseSetter) error {
	return errors.New("not implemented")
}

func (b *stripeStub) CallMultipart(string, string, string, string, *bytes.Buffer, *stripe.Params, stripe.LastResponseSetter) error {
	return errors.New("not implemented")
}

func (b *stripeStub) SetMaxNetworkRetries(int64) {}

func newTestStripe(t *testing.T, stub *stripeStub) *StripeGateway {
	t.Helper()
	g, err := newStripeGateway("sk_test_123", stripe.WithBackends(&stripe.Backends{API: stub}))
	require.NoError(t, err)
	return g
}

func TestStripeCharge(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeded intent maps the request", func(t *testing.T) {
		stub := &stripeStub{status: stripe.PaymentIntentStatusSucceeded}
		g := newTestStripe(t, stub)
		req := testChargeRequest()

		res, err := g.Charge(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.Approved)
		assert.Equal(t, "pi_123", res.ProviderPaymentID)
		assert.Equal(t, "succeeded", res.ProviderStatus)
		assert.NotEmpty(t, res.Raw)

		require.Equal(t, []string{"POST /v1/payment_intents"}, stub.paths)
		p := stub.params[0]
		require.NotNil(t, p.IdempotencyKey)
		assert.Equal(t, req.IdempotencyKey, *p.IdempotencyKey)
		assert.Equal(t, int64(500050), *p.Amount)
		assert.Equal(t, "ars", *p.Currency)
		assert.Equal(t, "cus_1", *p.Customer)
		assert.Equal(t, "visa", *p.PaymentMethod)
		assert.True(t, *p.Confirm)
		assert.True(t, *p.OffSession)
		assert.Equal(t, req.ExternalReference, p.Metadata["external_reference"])
		assert.Equal(t, ctx, p.Context)
	})

	t.Run("an intent needing action is a decline", func(t *testing.T) {
		stub := &stripeStub{status: stripe.PaymentIntentStatusRequiresAction}
		g := newTestStripe(t, stub)

		res, err := g.Charge(ctx, testChargeRequest())
		require.NoError(t, err)
		assert.False(t, res.Approved)
		assert.Equal(t, "payment intent requires_action", res.DeclineReason)
	})

	t.Run("card errors are declines", func(t *testing.T) {
		stub := &stripeStub{err: &stripe.Error{
			Type:          stripe.ErrorTypeCard,
			Code:          stripe.ErrorCodeCardDeclined,
			Msg:           "Your card was declined.",
			PaymentIntent: &stripe.PaymentIntent{ID: "pi_declined"},
		}}
		g := newTestStripe(t, stub)

		res, err := g.Charge(ctx, testChargeRequest())
		require.NoError(t, err)
		assert.False(t, res.Approved)
		assert.Equal(t, "pi_declined", res.ProviderPaymentID)
		assert.Equal(t, "card_declined", res.ProviderStatus)
		assert.Equal(t, "card_declined Your card was declined.", res.DeclineReason)
	})

	t.Run("api errors are external failures", func(t *testing.T) {
		stub := &stripeStub{err: &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "upstream unavailable"}}
		g := newTestStripe(t, stub)

		_, err := g.Charge(ctx, testChargeRequest())
		require.ErrorIs(t, err, utils.ErrExternalServiceFailure)
	})

	t.Run("no saved payment method never reaches stripe", func(t *testing.T) {
		stub := &stripeStub{status: stripe.PaymentIntentStatusSucceeded}
		g := newTestStripe(t, stub)
		req := testChargeRequest()
		req.PaymentMethodID = nil

		res, err := g.Charge(ctx, req)
		require.NoError(t, err)
		assert.False(t, res.Approved)
		assert.Equal(t, "requires_payment_method", res.ProviderStatus)
		assert.Empty(t, stub.paths)
	})
}

// ----------------------------------------------------------------------
// Selection
// ----------------------------------------------------------------------

func TestNewPaymentGateway(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		want    string
		wantErr error
	}{
		{name: "mercado pago", cfg: config.Config{PaymentProvider: constants.PaymentProviderMercadoPago, MercadoPagoAccessToken: "TEST-token"}, want: constants.PaymentProviderMercadoPago},
		{name: "stripe", cfg: config.Config{PaymentProvider: constants.PaymentProviderStripe, StripeSecretKey: "sk_test_123"}, want: constants.PaymentProviderStripe},
		{name: "mock flag wins", cfg: config.Config{PaymentProvider: constants.PaymentProviderStripe, LDFlag_PaymentGatewayMock: true}, want: constants.PaymentProviderMock},
		{name: "mercado pago without token", cfg: config.Config{PaymentProvider: constants.PaymentProviderMercadoPago}, wantErr: ErrMissingMercadoPagoAccessToken},
		{name: "stripe without key", cfg: config.Config{PaymentProvider: constants.PaymentProviderStripe}, wantErr: ErrMissingStripeSecretKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := NewPaymentGateway(&tc.cfg)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, g.Name())
		})
	}

	_, err := NewPaymentGateway(&config.Config{PaymentProvider: "paypal"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paypal")
}

func TestMockGatewayReferencesThePayment(t *testing.T) {
	req := testChargeRequest()
	res, err := NewMockGateway().Charge(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Approved)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(res.Raw, &raw))
	assert.Equal(t, req.ExternalReference, raw["external_reference"])
}
