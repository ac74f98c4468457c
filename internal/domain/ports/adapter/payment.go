package adapter

import "context"

// GatewayStatus is the normalized tri-state answer of a status query. The
// provider's own response shapes are confined to the gateway adapters.
type GatewayStatus string

const (
	GatewayStatusPending   GatewayStatus = "pending"
	GatewayStatusConfirmed GatewayStatus = "confirmed"
	GatewayStatusFailed    GatewayStatus = "failed"
	GatewayStatusNotFound  GatewayStatus = "not_found"
)

// Initiation is the provider handle for one payment attempt: a unique
// reference and a redirect URL where the user completes the payment.
type Initiation struct {
	Reference   string
	RedirectURL string
}

// PaymentGateway is the hex port for payment providers. The gateway is
// treated as untrusted, slow, and unreliable: QueryStatus may fail
// transiently (ErrGatewayUnavailable), which callers must treat as "still
// pending", never as a final failure. Once initiated a payment is
// fire-and-forget; there is no way to cancel it provider-side.
type PaymentGateway interface {
	Name() string

	// Initiate creates a payment intent on the provider side.
	Initiate(ctx context.Context, userID string, amount int64, description string) (Initiation, error)

	// QueryStatus asks the provider for the current state of a reference.
	// Returns ErrGatewayUnavailable on transport/provider outage and
	// ErrSessionNotFound when the provider does not know the reference.
	QueryStatus(ctx context.Context, reference string) (GatewayStatus, error)
}
