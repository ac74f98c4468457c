package model

import (
	"encoding/json"
	"time"
)

type ListingStatus string

const (
	ListingStatusDraft          ListingStatus = "draft"
	ListingStatusPendingPayment ListingStatus = "pending_payment"
	ListingStatusActive         ListingStatus = "active"
	ListingStatusRejected       ListingStatus = "rejected"
	ListingStatusSold           ListingStatus = "sold"
)

// Listing is a marketplace ad in any category. Payload carries the
// category-specific attributes and is opaque to the payments core. A listing
// stays a draft until a confirmed payment (or a free-plan submission)
// activates it; it may remain a draft indefinitely with no payment session.
type Listing struct {
	ID         string // UUID
	BusinessID string // owning business/user
	Category   string
	PlanID     string
	Payload    json.RawMessage
	IsDraft    bool
	Status     ListingStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CanActivate reports whether activation is a legal transition. Activation
// from draft or pending_payment is the only valid path; re-activating an
// already active listing is a no-op handled by the caller.
func (l *Listing) CanActivate() bool {
	return l.Status == ListingStatusDraft || l.Status == ListingStatusPendingPayment
}
