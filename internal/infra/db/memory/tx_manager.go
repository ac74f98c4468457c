package memory

import (
	"context"

	"github.com/jackc/pgx/v4"

	"marketplace-payments/internal/domain/ports/repository"
)

var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager satisfies repository.TransactionManager for the in-memory
// stores, which have no transaction concept. The callback runs with a nil
// handle and every write lands immediately.
type TxManager struct{}

func NewTxManager() *TxManager { return &TxManager{} }

func (m *TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}
