package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/domain/ports/repository"
)

var _ repository.ListingRepository = (*listingRepo)(nil)

type listingRepo struct{ pool *pgxpool.Pool }

func NewListingRepo(pool *pgxpool.Pool) *listingRepo {
	return &listingRepo{pool: pool}
}

func (r *listingRepo) Save(ctx context.Context, tx repository.Tx, l *model.Listing) error {
	const q = `
INSERT INTO listings (id, business_id, category, plan_id, payload, is_draft, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  plan_id=$4, payload=$5, is_draft=$6, status=$7, updated_at=$9;`
	_, err := execSQL(ctx, r.pool, tx, q, l.ID, l.BusinessID, l.Category, l.PlanID,
		l.Payload, l.IsDraft, l.Status, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *listingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Listing, error) {
	const q = `SELECT id, business_id, category, plan_id, payload, is_draft, status, created_at, updated_at
FROM listings WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	l := &model.Listing{}
	err = row.Scan(&l.ID, &l.BusinessID, &l.Category, &l.PlanID, &l.Payload, &l.IsDraft, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return l, nil
}

func (r *listingRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.ListingStatus, isDraft bool) error {
	const q = `UPDATE listings SET status=$2, is_draft=$3, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, status, isDraft)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *listingRepo) ListByBusiness(ctx context.Context, tx repository.Tx, businessID string, limit int) ([]*model.Listing, error) {
	const q = `SELECT id, business_id, category, plan_id, payload, is_draft, status, created_at, updated_at
FROM listings WHERE business_id=$1 ORDER BY created_at DESC LIMIT $2;`
	rows, err := pickRows(ctx, r.pool, tx, q, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Listing
	for rows.Next() {
		l := &model.Listing{}
		if err := rows.Scan(&l.ID, &l.BusinessID, &l.Category, &l.PlanID, &l.Payload, &l.IsDraft, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
