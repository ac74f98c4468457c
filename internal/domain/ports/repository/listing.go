package repository

import (
	"context"

	"marketplace-payments/internal/domain/model"
)

type ListingRepository interface {
	Save(ctx context.Context, tx Tx, l *model.Listing) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Listing, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.ListingStatus, isDraft bool) error
	ListByBusiness(ctx context.Context, tx Tx, businessID string, limit int) ([]*model.Listing, error)
}
