package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/domain/ports/repository"
)

var _ repository.WalletRepository = (*walletRepo)(nil)

// walletRepo keeps wallet invariants in SQL: the account row is locked FOR
// UPDATE for the duration of a mutation (single-writer-per-account), the
// balance check happens under that lock, and a partial unique index on the
// transaction reference makes replayed gateway credits collapse onto the
// original row.
type walletRepo struct{ pool *pgxpool.Pool }

func NewWalletRepo(pool *pgxpool.Pool) *walletRepo {
	return &walletRepo{pool: pool}
}

const uniqueViolation = "23505"

func (r *walletRepo) FindAccount(ctx context.Context, tx repository.Tx, userID string) (*model.WalletAccount, error) {
	if err := r.ensureAccount(ctx, tx, userID); err != nil {
		return nil, err
	}
	const q = `SELECT user_id, balance, created_at, updated_at FROM wallet_accounts WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	a := &model.WalletAccount{}
	if err := row.Scan(&a.UserID, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}

func (r *walletRepo) Balance(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	a, err := r.FindAccount(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

func (r *walletRepo) ensureAccount(ctx context.Context, tx repository.Tx, userID string) error {
	const q = `INSERT INTO wallet_accounts (user_id, balance, created_at, updated_at)
VALUES ($1, 0, NOW(), NOW()) ON CONFLICT (user_id) DO NOTHING;`
	if _, err := execSQL(ctx, r.pool, tx, q, userID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *walletRepo) ApplyCredit(ctx context.Context, tx repository.Tx, t *model.WalletTransaction) (*model.WalletTransaction, error) {
	var out *model.WalletTransaction
	err := r.inTx(ctx, tx, func(ctx context.Context, dbtx pgx.Tx) error {
		if err := r.lockAccount(ctx, dbtx, t.UserID); err != nil {
			return err
		}
		if t.Reference != "" {
			if prev, err := r.findByReference(ctx, dbtx, t.Reference); err == nil {
				out = prev // replayed confirmation; balance untouched
				return nil
			} else if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}
		if err := r.insertTransaction(ctx, dbtx, t); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				// Lost a race with a concurrent replay of the same reference.
				prev, ferr := r.findByReference(ctx, dbtx, t.Reference)
				if ferr != nil {
					return ferr
				}
				out = prev
				return nil
			}
			return err
		}
		const upd = `UPDATE wallet_accounts SET balance = balance + $2, updated_at = NOW() WHERE user_id = $1;`
		if _, err := dbtx.Exec(ctx, upd, t.UserID, t.Amount); err != nil {
			return domain.ErrOperationFailed
		}
		cp := *t
		out = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *walletRepo) ApplyDebit(ctx context.Context, tx repository.Tx, t *model.WalletTransaction) (*model.WalletTransaction, error) {
	var out *model.WalletTransaction
	err := r.inTx(ctx, tx, func(ctx context.Context, dbtx pgx.Tx) error {
		if err := r.lockAccount(ctx, dbtx, t.UserID); err != nil {
			return err
		}
		var balance int64
		const sel = `SELECT balance FROM wallet_accounts WHERE user_id=$1;`
		if err := dbtx.QueryRow(ctx, sel, t.UserID).Scan(&balance); err != nil {
			return domain.ErrReadDatabaseRow
		}
		if t.Amount > balance {
			return domain.ErrInsufficientBalance
		}
		if err := r.insertTransaction(ctx, dbtx, t); err != nil {
			return err
		}
		const upd = `UPDATE wallet_accounts SET balance = balance - $2, updated_at = NOW() WHERE user_id = $1;`
		if _, err := dbtx.Exec(ctx, upd, t.UserID, t.Amount); err != nil {
			return domain.ErrOperationFailed
		}
		cp := *t
		out = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *walletRepo) ListTransactions(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.WalletTransaction, error) {
	const q = `SELECT id, user_id, amount, direction, status, reference, description, created_at, updated_at
FROM wallet_transactions WHERE user_id=$1 ORDER BY id DESC LIMIT $2;`
	rows, err := pickRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.WalletTransaction
	for rows.Next() {
		t := &model.WalletTransaction{}
		var ref *string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Direction, &t.Status, &ref, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if ref != nil {
			t.Reference = *ref
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// inTx runs fn inside the passed transaction when one is threaded through,
// or opens a short-lived one otherwise. Ledger mutations always need a
// transaction: the row lock, the insert, and the balance update must land
// together.
func (r *walletRepo) inTx(ctx context.Context, tx repository.Tx, fn func(ctx context.Context, dbtx pgx.Tx) error) error {
	if dbtx, ok := tx.(pgx.Tx); ok {
		return fn(ctx, dbtx)
	}
	dbtx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.ErrOperationFailed
	}
	defer func() { _ = dbtx.Rollback(ctx) }()
	if err := fn(ctx, dbtx); err != nil {
		return err
	}
	return dbtx.Commit(ctx)
}

func (r *walletRepo) lockAccount(ctx context.Context, dbtx pgx.Tx, userID string) error {
	const ins = `INSERT INTO wallet_accounts (user_id, balance, created_at, updated_at)
VALUES ($1, 0, NOW(), NOW()) ON CONFLICT (user_id) DO NOTHING;`
	if _, err := dbtx.Exec(ctx, ins, userID); err != nil {
		return domain.ErrOperationFailed
	}
	const lock = `SELECT user_id FROM wallet_accounts WHERE user_id=$1 FOR UPDATE;`
	var id string
	if err := dbtx.QueryRow(ctx, lock, userID).Scan(&id); err != nil {
		return domain.ErrReadDatabaseRow
	}
	return nil
}

func (r *walletRepo) findByReference(ctx context.Context, dbtx pgx.Tx, reference string) (*model.WalletTransaction, error) {
	const q = `SELECT id, user_id, amount, direction, status, reference, description, created_at, updated_at
FROM wallet_transactions WHERE reference=$1 AND status='success' LIMIT 1;`
	t := &model.WalletTransaction{}
	var ref *string
	err := dbtx.QueryRow(ctx, q, reference).Scan(&t.ID, &t.UserID, &t.Amount, &t.Direction, &t.Status, &ref, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if ref != nil {
		t.Reference = *ref
	}
	return t, nil
}

func (r *walletRepo) insertTransaction(ctx context.Context, dbtx pgx.Tx, t *model.WalletTransaction) error {
	const q = `INSERT INTO wallet_transactions (id, user_id, amount, direction, status, reference, description, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9);`
	_, err := dbtx.Exec(ctx, q, t.ID, t.UserID, t.Amount, t.Direction, t.Status, t.Reference, t.Description, t.CreatedAt, t.UpdatedAt)
	return err
}
