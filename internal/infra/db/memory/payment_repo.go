package memory

import (
	"context"
	"sync"
	"time"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/domain/ports/repository"
)

var _ repository.PaymentSessionRepository = (*PaymentSessionRepo)(nil)

// PaymentSessionRepo is the in-memory session store for dev mode and tests.
type PaymentSessionRepo struct {
	mu    sync.RWMutex
	byRef map[string]*model.PaymentSession
}

func NewPaymentSessionRepo() *PaymentSessionRepo {
	return &PaymentSessionRepo{byRef: make(map[string]*model.PaymentSession)}
}

func (r *PaymentSessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.PaymentSession) error {
	if s.Reference == "" {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.byRef[s.Reference] = &cp
	return nil
}

func (r *PaymentSessionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.PaymentSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byRef[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *PaymentSessionRepo) UpdateStatusIfOpen(ctx context.Context, tx repository.Tx, reference string, newStatus model.SessionStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byRef[reference]
	if !ok {
		return false, domain.ErrNotFound
	}
	open := s.Status == model.SessionStatusInitiated ||
		(s.Status == model.SessionStatusExpired && newStatus == model.SessionStatusConfirmed)
	if !open {
		return false, nil
	}
	s.Status = newStatus
	s.UpdatedAt = time.Now()
	return true, nil
}

func (r *PaymentSessionRepo) RecordPoll(ctx context.Context, tx repository.Tx, reference string, attempts int, polledAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byRef[reference]
	if !ok {
		return domain.ErrNotFound
	}
	s.Attempts = attempts
	t := polledAt
	s.LastPolledAt = &t
	return nil
}

func (r *PaymentSessionRepo) ListInitiatedOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.PaymentSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.PaymentSession
	for _, s := range r.byRef {
		if s.Status != model.SessionStatusInitiated || s.CreatedAt.After(cutoff) {
			continue
		}
		cp := *s
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
