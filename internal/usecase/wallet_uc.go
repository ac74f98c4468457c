package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/domain/ports/repository"
	"marketplace-payments/internal/infra/metrics"
)

// Compile-time check
var _ WalletUseCase = (*walletUC)(nil)

// WalletUseCase is the wallet ledger: the single shared mutable resource of
// the payments core. All mutations to one account are serialized; different
// accounts are fully independent.
type WalletUseCase interface {
	// Balance returns the current balance, creating the account on first use.
	Balance(ctx context.Context, userID string) (int64, error)
	// Credit adds funds and records a success transaction atomically.
	// Idempotent on reference: replaying a credit with the same reference
	// returns the original transaction and mutates the balance exactly once.
	Credit(ctx context.Context, userID string, amount int64, reference, description string) (*model.WalletTransaction, error)
	// Debit removes funds, failing with domain.ErrInsufficientBalance before
	// any mutation when amount exceeds the balance. Synchronous and
	// caller-driven, so no idempotency reference is needed.
	Debit(ctx context.Context, userID string, amount int64, description string) (*model.WalletTransaction, error)
	// ListTransactions returns the most recent ledger entries for display.
	ListTransactions(ctx context.Context, userID string, limit int) ([]*model.WalletTransaction, error)
}

// AccountLocker serializes wallet mutations per account across processes.
// The in-process and single-node cases are already covered by the
// repository's own atomicity; the locker only matters for multi-instance
// deployments. A nil locker disables it.
type AccountLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type walletUC struct {
	wallets repository.WalletRepository
	locker  AccountLocker
	log     *zerolog.Logger
}

func NewWalletUseCase(wallets repository.WalletRepository, locker AccountLocker, logger *zerolog.Logger) *walletUC {
	return &walletUC{wallets: wallets, locker: locker, log: logger}
}

const accountLockTTL = 5 * time.Second

func (u *walletUC) withAccountLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	if u.locker == nil {
		return fn(ctx)
	}
	key := "wallet:lock:" + userID
	token, err := u.locker.TryLock(ctx, key, accountLockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := u.locker.Unlock(ctx, key, token); err != nil {
			u.log.Warn().Err(err).Str("user_id", userID).Msg("wallet unlock failed")
		}
	}()
	return fn(ctx)
}

func (u *walletUC) Balance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.ErrInvalidArgument
	}
	return u.wallets.Balance(ctx, nil, userID)
}

func (u *walletUC) Credit(ctx context.Context, userID string, amount int64, reference, description string) (*model.WalletTransaction, error) {
	if userID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	t := &model.WalletTransaction{
		ID:          ulid.Make().String(),
		UserID:      userID,
		Amount:      amount,
		Direction:   model.TxDirectionCredit,
		Status:      model.TxStatusSuccess,
		Reference:   reference,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var applied *model.WalletTransaction
	err := u.withAccountLock(ctx, userID, func(ctx context.Context) error {
		var err error
		applied, err = u.wallets.ApplyCredit(ctx, nil, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	if applied.ID == t.ID {
		metrics.IncWalletTransaction(string(model.TxDirectionCredit), string(applied.Status))
		u.log.Info().Str("user_id", userID).Int64("amount", amount).Str("reference", reference).Msg("wallet credited")
	} else {
		u.log.Debug().Str("user_id", userID).Str("reference", reference).Msg("duplicate credit ignored")
	}
	return applied, nil
}

func (u *walletUC) Debit(ctx context.Context, userID string, amount int64, description string) (*model.WalletTransaction, error) {
	if userID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	t := &model.WalletTransaction{
		ID:          ulid.Make().String(),
		UserID:      userID,
		Amount:      amount,
		Direction:   model.TxDirectionDebit,
		Status:      model.TxStatusSuccess,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var applied *model.WalletTransaction
	err := u.withAccountLock(ctx, userID, func(ctx context.Context) error {
		var err error
		applied, err = u.wallets.ApplyDebit(ctx, nil, t)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			metrics.IncWalletRejection("insufficient_balance")
		}
		return nil, err
	}
	metrics.IncWalletTransaction(string(model.TxDirectionDebit), string(applied.Status))
	u.log.Info().Str("user_id", userID).Int64("amount", amount).Msg("wallet debited")
	return applied, nil
}

func (u *walletUC) ListTransactions(ctx context.Context, userID string, limit int) ([]*model.WalletTransaction, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 50
	}
	return u.wallets.ListTransactions(ctx, nil, userID, limit)
}
