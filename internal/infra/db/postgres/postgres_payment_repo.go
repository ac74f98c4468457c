package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/domain/ports/repository"
)

var _ repository.PaymentSessionRepository = (*paymentSessionRepo)(nil)

type paymentSessionRepo struct{ pool *pgxpool.Pool }

func NewPaymentSessionRepo(pool *pgxpool.Pool) *paymentSessionRepo {
	return &paymentSessionRepo{pool: pool}
}

func (r *paymentSessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.PaymentSession) error {
	const q = `
INSERT INTO payment_sessions (
  id, reference, user_id, amount, currency, purpose, listing_id, status,
  redirect_url, description, created_at, updated_at, last_polled_at, attempts
) VALUES (
  $1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (id) DO UPDATE SET
  status=$8, redirect_url=$9, updated_at=$12, last_polled_at=$13, attempts=$14;`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.Reference, s.UserID, s.Amount, s.Currency,
		s.Purpose, s.ListingID, s.Status, s.RedirectURL, s.Description,
		s.CreatedAt, s.UpdatedAt, s.LastPolledAt, s.Attempts)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentSessionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.PaymentSession, error) {
	const q = `SELECT id, reference, user_id, amount, currency, purpose, listing_id, status,
redirect_url, description, created_at, updated_at, last_polled_at, attempts
FROM payment_sessions WHERE reference=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, reference)
	if err != nil {
		return nil, err
	}
	s := &model.PaymentSession{}
	var listingID *string
	err = row.Scan(&s.ID, &s.Reference, &s.UserID, &s.Amount, &s.Currency, &s.Purpose, &listingID,
		&s.Status, &s.RedirectURL, &s.Description, &s.CreatedAt, &s.UpdatedAt, &s.LastPolledAt, &s.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if listingID != nil {
		s.ListingID = *listingID
	}
	return s, nil
}

// UpdateStatusIfOpen is the monotonic transition: only an initiated session
// moves, except that a late confirmation may override expired. The WHERE
// clause is what makes concurrent terminal deliveries collapse to one row
// change.
func (r *paymentSessionRepo) UpdateStatusIfOpen(ctx context.Context, tx repository.Tx, reference string, newStatus model.SessionStatus) (bool, error) {
	const q = `UPDATE payment_sessions SET status=$2, updated_at=NOW()
WHERE reference=$1 AND (status='initiated' OR (status='expired' AND $2='confirmed'));`
	tag, err := execSQL(ctx, r.pool, tx, q, reference, newStatus)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentSessionRepo) RecordPoll(ctx context.Context, tx repository.Tx, reference string, attempts int, polledAt time.Time) error {
	const q = `UPDATE payment_sessions SET attempts=$2, last_polled_at=$3 WHERE reference=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, reference, attempts, polledAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentSessionRepo) ListInitiatedOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.PaymentSession, error) {
	const q = `SELECT id, reference, user_id, amount, currency, purpose, listing_id, status,
redirect_url, description, created_at, updated_at, last_polled_at, attempts
FROM payment_sessions WHERE status='initiated' AND created_at <= $1
ORDER BY created_at ASC LIMIT $2;`
	rows, err := pickRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.PaymentSession
	for rows.Next() {
		s := &model.PaymentSession{}
		var listingID *string
		if err := rows.Scan(&s.ID, &s.Reference, &s.UserID, &s.Amount, &s.Currency, &s.Purpose, &listingID,
			&s.Status, &s.RedirectURL, &s.Description, &s.CreatedAt, &s.UpdatedAt, &s.LastPolledAt, &s.Attempts); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if listingID != nil {
			s.ListingID = *listingID
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
