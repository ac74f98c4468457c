package payment

import (
	"context"
	"fmt"
	"sync"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev mode and tests. Newly
// initiated payments stay pending until a test scripts an answer via
// SetStatus or ConfirmAfter.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	intents map[string]*noopIntent
}

type noopIntent struct {
	amount       int64
	status       adapter.GatewayStatus
	confirmAfter int // confirm once this many queries have been made
	queries      int
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{intents: make(map[string]*noopIntent)}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) Initiate(ctx context.Context, userID string, amount int64, description string) (adapter.Initiation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	ref := fmt.Sprintf("noop-%d", g.seq)
	g.intents[ref] = &noopIntent{amount: amount, status: adapter.GatewayStatusPending}
	return adapter.Initiation{Reference: ref, RedirectURL: "https://example.test/pay/" + ref}, nil
}

func (g *NoopPaymentGateway) QueryStatus(ctx context.Context, reference string) (adapter.GatewayStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[reference]
	if !ok {
		return adapter.GatewayStatusNotFound, domain.ErrSessionNotFound
	}
	in.queries++
	if in.confirmAfter > 0 && in.queries >= in.confirmAfter {
		in.status = adapter.GatewayStatusConfirmed
	}
	return in.status, nil
}

// SetStatus scripts the answer returned by subsequent status queries.
func (g *NoopPaymentGateway) SetStatus(reference string, status adapter.GatewayStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[reference]; ok {
		in.status = status
	}
}

// ConfirmAfter makes the reference confirm once n status queries have landed.
func (g *NoopPaymentGateway) ConfirmAfter(reference string, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[reference]; ok {
		in.confirmAfter = n
	}
}
