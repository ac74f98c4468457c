package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/domain/ports/adapter"
	"marketplace-payments/internal/domain/ports/repository"
)

// ---- Mock WalletRepository ----

type MockWalletRepo struct {
	mu       sync.Mutex
	balances map[string]int64
	txs      []*model.WalletTransaction
	byRef    map[string]*model.WalletTransaction

	ApplyCreditFunc func(ctx context.Context, tx repository.Tx, t *model.WalletTransaction) (*model.WalletTransaction, error)
	ApplyDebitFunc  func(ctx context.Context, tx repository.Tx, t *model.WalletTransaction) (*model.WalletTransaction, error)
}

var _ repository.WalletRepository = (*MockWalletRepo)(nil)

func NewMockWalletRepo() *MockWalletRepo {
	return &MockWalletRepo{
		balances: make(map[string]int64),
		byRef:    make(map[string]*model.WalletTransaction),
	}
}

func (m *MockWalletRepo) FindAccount(ctx context.Context, tx repository.Tx, userID string) (*model.WalletAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = 0
	}
	return &model.WalletAccount{UserID: userID, Balance: m.balances[userID]}, nil
}

func (m *MockWalletRepo) Balance(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *MockWalletRepo) ApplyCredit(ctx context.Context, tx repository.Tx, t *model.WalletTransaction) (*model.WalletTransaction, error) {
	if m.ApplyCreditFunc != nil {
		return m.ApplyCreditFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Reference != "" {
		if prev, ok := m.byRef[t.Reference]; ok {
			cp := *prev
			return &cp, nil
		}
	}
	m.balances[t.UserID] += t.Amount
	cp := *t
	m.txs = append(m.txs, &cp)
	if t.Reference != "" {
		m.byRef[t.Reference] = &cp
	}
	out := cp
	return &out, nil
}

func (m *MockWalletRepo) ApplyDebit(ctx context.Context, tx repository.Tx, t *model.WalletTransaction) (*model.WalletTransaction, error) {
	if m.ApplyDebitFunc != nil {
		return m.ApplyDebitFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[t.UserID] < t.Amount {
		return nil, domain.ErrInsufficientBalance
	}
	m.balances[t.UserID] -= t.Amount
	cp := *t
	m.txs = append(m.txs, &cp)
	out := cp
	return &out, nil
}

func (m *MockWalletRepo) ListTransactions(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.WalletTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.WalletTransaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txs[i].UserID == userID {
			cp := *m.txs[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock PaymentSessionRepository ----

type MockSessionRepo struct {
	mu    sync.Mutex
	byRef map[string]*model.PaymentSession

	LastSaveTx repository.Tx

	SaveFunc               func(ctx context.Context, tx repository.Tx, s *model.PaymentSession) error
	UpdateStatusIfOpenFunc func(ctx context.Context, tx repository.Tx, reference string, newStatus model.SessionStatus) (bool, error)
}

var _ repository.PaymentSessionRepository = (*MockSessionRepo)(nil)

func NewMockSessionRepo() *MockSessionRepo {
	return &MockSessionRepo{byRef: make(map[string]*model.PaymentSession)}
}

func (m *MockSessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.PaymentSession) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastSaveTx = tx
	cp := *s
	m.byRef[s.Reference] = &cp
	return nil
}

func (m *MockSessionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byRef[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSessionRepo) UpdateStatusIfOpen(ctx context.Context, tx repository.Tx, reference string, newStatus model.SessionStatus) (bool, error) {
	if m.UpdateStatusIfOpenFunc != nil {
		return m.UpdateStatusIfOpenFunc(ctx, tx, reference, newStatus)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byRef[reference]
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

func (m *MockSessionRepo) RecordPoll(ctx context.Context, tx repository.Tx, reference string, attempts int, polledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byRef[reference]; ok {
		s.Attempts = attempts
		s.LastPolledAt = &polledAt
	}
	return nil
}

func (m *MockSessionRepo) ListInitiatedOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentSession
	for _, s := range m.byRef {
		if s.Status == model.SessionStatusInitiated && !s.CreatedAt.After(cutoff) && len(out) < limit {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock ListingRepository ----

type MockListingRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Listing

	LastUpdateTx repository.Tx
}

var _ repository.ListingRepository = (*MockListingRepo)(nil)

func NewMockListingRepo() *MockListingRepo {
	return &MockListingRepo{byID: make(map[string]*model.Listing)}
}

func (m *MockListingRepo) Save(ctx context.Context, tx repository.Tx, l *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.byID[l.ID] = &cp
	return nil
}

func (m *MockListingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MockListingRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.ListingStatus, isDraft bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastUpdateTx = tx
	l, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.Status = status
	l.IsDraft = isDraft
	l.UpdatedAt = time.Now()
	return nil
}

func (m *MockListingRepo) ListByBusiness(ctx context.Context, tx repository.Tx, businessID string, limit int) ([]*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Listing
	for _, l := range m.byID {
		if l.BusinessID == businessID && len(out) < limit {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock TransactionManager ----

// mockTxHandle is the opaque handle MockTxManager threads to its callback,
// so a test can assert that repository writes ran under the managed tx.
type mockTxHandle struct{}

type MockTxManager struct {
	mu    sync.Mutex
	Calls int

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	return fn(ctx, &mockTxHandle{})
}

// ---- Mock PaymentGateway (adapter) ----

type MockGateway struct {
	mu  sync.Mutex
	seq int

	InitiateFunc    func(ctx context.Context, userID string, amount int64, description string) (adapter.Initiation, error)
	QueryStatusFunc func(ctx context.Context, reference string) (adapter.GatewayStatus, error)
	Queries         int
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mockpay" }

func (m *MockGateway) Initiate(ctx context.Context, userID string, amount int64, description string) (adapter.Initiation, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, userID, amount, description)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ref := fmt.Sprintf("PAY-%d", m.seq)
	return adapter.Initiation{Reference: ref, RedirectURL: "https://pay.example/" + ref}, nil
}

func (m *MockGateway) QueryStatus(ctx context.Context, reference string) (adapter.GatewayStatus, error) {
	m.mu.Lock()
	m.Queries++
	m.mu.Unlock()
	if m.QueryStatusFunc != nil {
		return m.QueryStatusFunc(ctx, reference)
	}
	return adapter.GatewayStatusPending, nil
}

// ---- Mock ConfirmationWatcher ----

type MockWatcher struct {
	mu        sync.Mutex
	watched   map[string]bool
	cancelled []string

	WatchErr error
}

func NewMockWatcher() *MockWatcher {
	return &MockWatcher{watched: make(map[string]bool)}
}

func (m *MockWatcher) Watch(reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WatchErr != nil {
		return m.WatchErr
	}
	if m.watched[reference] {
		return domain.ErrAlreadyWatching
	}
	m.watched[reference] = true
	return nil
}

func (m *MockWatcher) Cancel(reference string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watched, reference)
	m.cancelled = append(m.cancelled, reference)
}

func (m *MockWatcher) Watching(reference string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watched[reference]
}

func (m *MockWatcher) Cancelled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string

	Locks   int
	Unlocks int
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", errors.New("locked")
	}
	tok := uuid.NewString()
	l.held[key] = tok
	l.Locks++
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return errors.New("unlock token mismatch")
	}
	delete(l.held, key)
	l.Unlocks++
	return nil
}

func (l *MockLocker) HeldCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
