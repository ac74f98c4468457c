package model

import "time"

type SessionStatus string

const (
	SessionStatusInitiated SessionStatus = "initiated" // created on provider side; awaiting confirmation
	SessionStatusConfirmed SessionStatus = "confirmed" // verified OK at provider
	SessionStatusFailed    SessionStatus = "failed"    // provider reported failure or reference unknown
	SessionStatusExpired   SessionStatus = "expired"   // polling budget exhausted without a final answer
)

// IsTerminal reports whether the status can no longer change. Session status
// is monotonic: initiated -> {confirmed, failed, expired}, never reversible.
func (s SessionStatus) IsTerminal() bool { return s != SessionStatusInitiated }

type SessionPurpose string

const (
	PurposeWalletTopup       SessionPurpose = "wallet_topup"
	PurposeListingActivation SessionPurpose = "listing_activation"
)

// PaymentSession records one payment attempt against the external gateway.
// Reference is the provider's opaque handle, unique per initiation; a new
// submission always gets a new session, even for the same amount.
type PaymentSession struct {
	ID           string // UUID
	Reference    string // provider reference (authority)
	UserID       string
	Amount       int64 // minor currency units
	Currency     string
	Purpose      SessionPurpose
	ListingID    string // set when Purpose is listing_activation
	Status       SessionStatus
	RedirectURL  string // where the user completes payment; opaque to this core
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastPolledAt *time.Time
	Attempts     int // status queries made so far
}
