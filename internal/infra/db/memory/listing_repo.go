package memory

import (
	"context"
	"sync"
	"time"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/domain/ports/repository"
)

var _ repository.ListingRepository = (*ListingRepo)(nil)

type ListingRepo struct {
	mu   sync.RWMutex
	byID map[string]*model.Listing
}

func NewListingRepo() *ListingRepo {
	return &ListingRepo{byID: make(map[string]*model.Listing)}
}

func (r *ListingRepo) Save(ctx context.Context, tx repository.Tx, l *model.Listing) error {
	if l.ID == "" {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.byID[l.ID] = &cp
	return nil
}

func (r *ListingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *ListingRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.ListingStatus, isDraft bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.Status = status
	l.IsDraft = isDraft
	l.UpdatedAt = time.Now()
	return nil
}

func (r *ListingRepo) ListByBusiness(ctx context.Context, tx repository.Tx, businessID string, limit int) ([]*model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Listing
	for _, l := range r.byID {
		if l.BusinessID != businessID {
			continue
		}
		cp := *l
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
