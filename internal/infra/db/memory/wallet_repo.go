package memory

import (
	"context"
	"sync"
	"time"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/domain/ports/repository"
)

var _ repository.WalletRepository = (*WalletRepo)(nil)

// WalletRepo is the in-memory wallet ledger used by dev mode and tests.
// Mutations to one account are serialized by a per-account mutex; different
// accounts never contend.
type WalletRepo struct {
	mu       sync.Mutex // guards the maps themselves
	accounts map[string]*account
}

type account struct {
	mu    sync.Mutex // serializes mutations for this account
	acct  model.WalletAccount
	txs   []*model.WalletTransaction
	byRef map[string]*model.WalletTransaction
}

func NewWalletRepo() *WalletRepo {
	return &WalletRepo{accounts: make(map[string]*account)}
}

// ensure creates the account on first use; accounts are never deleted.
func (r *WalletRepo) ensure(userID string) *account {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[userID]
	if !ok {
		now := time.Now()
		a = &account{
			acct:  model.WalletAccount{UserID: userID, CreatedAt: now, UpdatedAt: now},
			byRef: make(map[string]*model.WalletTransaction),
		}
		r.accounts[userID] = a
	}
	return a
}

func (r *WalletRepo) FindAccount(ctx context.Context, tx repository.Tx, userID string) (*model.WalletAccount, error) {
	a := r.ensure(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := a.acct
	return &cp, nil
}

func (r *WalletRepo) Balance(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	a := r.ensure(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acct.Balance, nil
}

func (r *WalletRepo) ApplyCredit(ctx context.Context, tx repository.Tx, t *model.WalletTransaction) (*model.WalletTransaction, error) {
	a := r.ensure(t.UserID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if t.Reference != "" {
		if prev, ok := a.byRef[t.Reference]; ok && prev.Status == model.TxStatusSuccess {
			cp := *prev
			return &cp, nil
		}
	}

	cp := *t
	a.txs = append(a.txs, &cp)
	if cp.Reference != "" {
		a.byRef[cp.Reference] = &cp
	}
	a.acct.Balance += cp.Amount
	a.acct.UpdatedAt = time.Now()
	out := cp
	return &out, nil
}

func (r *WalletRepo) ApplyDebit(ctx context.Context, tx repository.Tx, t *model.WalletTransaction) (*model.WalletTransaction, error) {
	a := r.ensure(t.UserID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if t.Amount > a.acct.Balance {
		return nil, domain.ErrInsufficientBalance
	}

	cp := *t
	a.txs = append(a.txs, &cp)
	a.acct.Balance -= cp.Amount
	a.acct.UpdatedAt = time.Now()
	out := cp
	return &out, nil
}

func (r *WalletRepo) ListTransactions(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.WalletTransaction, error) {
	a := r.ensure(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.txs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*model.WalletTransaction, 0, n)
	// newest first
	for i := len(a.txs) - 1; i >= 0 && len(out) < n; i-- {
		cp := *a.txs[i]
		out = append(out, &cp)
	}
	return out, nil
}
