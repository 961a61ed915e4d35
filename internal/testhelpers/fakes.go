package testhelpers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/services"
)

// ----------------------------------------------------------------------
// Payment gateway
// ----------------------------------------------------------------------

type gatewayOutcome struct {
	approve bool
	reason  string
	err     error
}

// FakeGateway answers charges from a queue of scripted outcomes and approves
// once the queue is empty.
type FakeGateway struct {
	mu       sync.Mutex
	outcomes []gatewayOutcome
	requests []services.ChargeRequest

	// OnCharge, when set, runs before the outcome is returned.
	OnCharge func(req services.ChargeRequest)
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

func (g *FakeGateway) Name() string { return "fake" }

func (g *FakeGateway) Approve() *FakeGateway {
	return g.push(gatewayOutcome{approve: true})
}

func (g *FakeGateway) Decline(reason string) *FakeGateway {
	return g.push(gatewayOutcome{reason: reason})
}

func (g *FakeGateway) Fail(err error) *FakeGateway {
	return g.push(gatewayOutcome{err: err})
}

func (g *FakeGateway) push(o gatewayOutcome) *FakeGateway {
	g.mu.Lock()
	g.outcomes = append(g.outcomes, o)
	g.mu.Unlock()
	return g
}

func (g *FakeGateway) Charge(_ context.Context, req services.ChargeRequest) (*services.GatewayResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	out := gatewayOutcome{approve: true}
	if len(g.outcomes) > 0 {
		out = g.outcomes[0]
		g.outcomes = g.outcomes[1:]
	}
	hook := g.OnCharge
	n := len(g.requests)
	g.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if out.err != nil {
		return nil, out.err
	}
	status := "approved"
	if !out.approve {
		status = "rejected"
	}
	raw, _ := json.Marshal(map[string]any{
		"idempotency_key": req.IdempotencyKey,
		"status":          status,
		"attempt":         n,
	})
	return &services.GatewayResult{
		Approved:          out.approve,
		ProviderPaymentID: "fake-" + req.IdempotencyKey,
		ProviderStatus:    status,
		DeclineReason:     out.reason,
		Raw:               raw,
	}, nil
}

// Requests returns every charge request received so far.
func (g *FakeGateway) Requests() []services.ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]services.ChargeRequest(nil), g.requests...)
}

func (g *FakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// ----------------------------------------------------------------------
// Notifier
// ----------------------------------------------------------------------

type FailedCharge struct {
	Subscription *models.Subscription
	Payment      *models.Payment
}

// RecordingNotifier keeps every notification instead of sending it.
type RecordingNotifier struct {
	mu        sync.Mutex
	completed []*models.WorkOrder
	failed    []FailedCharge
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) WorkOrderCompleted(order *models.WorkOrder) {
	n.mu.Lock()
	n.completed = append(n.completed, order)
	n.mu.Unlock()
}

func (n *RecordingNotifier) ChargeFailed(sub *models.Subscription, payment *models.Payment) {
	n.mu.Lock()
	n.failed = append(n.failed, FailedCharge{Subscription: sub, Payment: payment})
	n.mu.Unlock()
}

func (n *RecordingNotifier) Completed() []*models.WorkOrder {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*models.WorkOrder(nil), n.completed...)
}

func (n *RecordingNotifier) FailedCharges() []FailedCharge {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]FailedCharge(nil), n.failed...)
}

// ----------------------------------------------------------------------
// Receipt archive
// ----------------------------------------------------------------------

// MemoryReceiptArchive stores receipts in a slice. Writes happen in the
// background, so tests read it with assert.Eventually.
type MemoryReceiptArchive struct {
	mu       sync.Mutex
	receipts []models.PaymentReceipt
}

func (a *MemoryReceiptArchive) Put(_ context.Context, r models.PaymentReceipt) error {
	a.mu.Lock()
	a.receipts = append(a.receipts, r)
	a.mu.Unlock()
	return nil
}

func (a *MemoryReceiptArchive) Receipts() []models.PaymentReceipt {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.PaymentReceipt(nil), a.receipts...)
}
