package repository

import (
	"context"

	"marketplace-payments/internal/domain/model"
)

// WalletRepository owns account balances and the transaction ledger.
//
// ApplyCredit and ApplyDebit must mutate the balance and append the
// transaction atomically, serialized per account (row lock or equivalent).
// ApplyCredit is idempotent on the transaction's external Reference: if a
// success transaction with the same non-empty reference already exists, the
// existing transaction is returned unchanged and the balance is untouched.
// ApplyDebit returns domain.ErrInsufficientBalance before any mutation when
// the amount exceeds the balance. Both create the account on first use.
type WalletRepository interface {
	FindAccount(ctx context.Context, tx Tx, userID string) (*model.WalletAccount, error)
	Balance(ctx context.Context, tx Tx, userID string) (int64, error)
	ApplyCredit(ctx context.Context, tx Tx, t *model.WalletTransaction) (*model.WalletTransaction, error)
	ApplyDebit(ctx context.Context, tx Tx, t *model.WalletTransaction) (*model.WalletTransaction, error)
	ListTransactions(ctx context.Context, tx Tx, userID string, limit int) ([]*model.WalletTransaction, error)
}
