package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/domain/ports/repository"
)

// Compile-time check
var _ ListingUseCase = (*listingUC)(nil)

// ListingUseCase owns the listing state machine:
// draft -> pending_payment -> active -> rejected/sold.
type ListingUseCase interface {
	// SaveDraft stores a new draft with an opaque category payload. Always
	// succeeds for valid input; no payment implication.
	SaveDraft(ctx context.Context, businessID, category, planID string, payload json.RawMessage) (*model.Listing, error)
	// Get returns a listing by id.
	Get(ctx context.Context, id string) (*model.Listing, error)
	// MarkPendingPayment moves a draft to pending_payment when a paid plan
	// submission creates a payment session. The tx handle lets the caller
	// bundle the move with the session write; nil runs it standalone.
	MarkPendingPayment(ctx context.Context, tx repository.Tx, id string) error
	// Activate makes the listing live. Idempotent: activating an already
	// active listing is a no-op. Fails with domain.ErrNotFound for unknown
	// ids and domain.ErrAlreadyFinalized when the listing is rejected or
	// sold; draft and pending_payment are the only valid source states.
	Activate(ctx context.Context, id string) error
	// MarkRejected and MarkSold are owner/admin transitions; active is not
	// the final state.
	MarkRejected(ctx context.Context, id string) error
	MarkSold(ctx context.Context, id string) error
	// ListByBusiness returns a business's listings for display.
	ListByBusiness(ctx context.Context, businessID string, limit int) ([]*model.Listing, error)
}

type listingUC struct {
	listings repository.ListingRepository
	log      *zerolog.Logger
}

func NewListingUseCase(listings repository.ListingRepository, logger *zerolog.Logger) *listingUC {
	return &listingUC{listings: listings, log: logger}
}

func (u *listingUC) SaveDraft(ctx context.Context, businessID, category, planID string, payload json.RawMessage) (*model.Listing, error) {
	if businessID == "" || category == "" {
		return nil, domain.ErrInvalidArgument
	}
	if planID == "" {
		planID = model.PlanFree
	}
	now := time.Now()
	l := &model.Listing{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		Category:   category,
		PlanID:     planID,
		Payload:    payload,
		IsDraft:    true,
		Status:     model.ListingStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := u.listings.Save(ctx, nil, l); err != nil {
		return nil, err
	}
	u.log.Debug().Str("listing_id", l.ID).Str("category", category).Msg("draft saved")
	return l, nil
}

func (u *listingUC) Get(ctx context.Context, id string) (*model.Listing, error) {
	return u.listings.FindByID(ctx, nil, id)
}

func (u *listingUC) MarkPendingPayment(ctx context.Context, tx repository.Tx, id string) error {
	l, err := u.listings.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	switch l.Status {
	case model.ListingStatusDraft:
		return u.listings.UpdateStatus(ctx, tx, id, model.ListingStatusPendingPayment, true)
	case model.ListingStatusPendingPayment:
		return nil // a retried submission; nothing to change
	default:
		return domain.ErrAlreadyFinalized
	}
}

func (u *listingUC) Activate(ctx context.Context, id string) error {
	l, err := u.listings.FindByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if l.Status == model.ListingStatusActive {
		u.log.Debug().Str("listing_id", id).Msg("activate: already active")
		return nil
	}
	if !l.CanActivate() {
		return domain.ErrAlreadyFinalized
	}
	if err := u.listings.UpdateStatus(ctx, nil, id, model.ListingStatusActive, false); err != nil {
		return err
	}
	u.log.Info().Str("listing_id", id).Str("plan", l.PlanID).Msg("listing activated")
	return nil
}

func (u *listingUC) MarkRejected(ctx context.Context, id string) error {
	return u.finalize(ctx, id, model.ListingStatusRejected)
}

func (u *listingUC) MarkSold(ctx context.Context, id string) error {
	return u.finalize(ctx, id, model.ListingStatusSold)
}

func (u *listingUC) finalize(ctx context.Context, id string, status model.ListingStatus) error {
	l, err := u.listings.FindByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if l.Status == status {
		return nil
	}
	return u.listings.UpdateStatus(ctx, nil, id, status, false)
}

func (u *listingUC) ListByBusiness(ctx context.Context, businessID string, limit int) ([]*model.Listing, error) {
	if businessID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 50
	}
	return u.listings.ListByBusiness(ctx, nil, businessID, limit)
}
