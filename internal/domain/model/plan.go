package model

import "marketplace-payments/internal/domain"

// Well-known plan identifiers. The catalog itself is config-driven; these
// constants only name the ids the rest of the code needs to reference.
const (
	PlanFree       = "free"
	PlanBasic      = "basic"
	PlanPremium    = "premium"
	PlanVIP        = "vip"
	PlanEnterprise = "enterprise"
)

// Plan is a purchasable pricing tier for activating or boosting a listing.
// Price is in minor currency units (kobo). Priority orders paid plans so the
// "highest" of a user's plans can be picked. Plans are immutable after load.
type Plan struct {
	ID       string
	Name     string
	Price    int64
	Priority int
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// IsFree reports whether submitting under this plan requires no payment.
func (p *Plan) IsFree() bool { return p.Price == 0 }

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, price int64, priority int) (*Plan, error) {
	if id == "" || name == "" || price < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{ID: id, Name: name, Price: price, Priority: priority}, nil
}
