package repository

import (
	"context"
	"time"

	"marketplace-payments/internal/domain/model"
)

// PaymentSessionRepository persists gateway payment sessions.
//
// UpdateStatusIfOpen performs the monotonic terminal transition: it moves the
// session to newStatus while the current status is still "initiated", plus
// the one sanctioned exception expired -> confirmed (a late confirmation
// arriving after the polling budget lapsed; the timeout never proved the
// payment dead). It reports whether the row changed; false means some other
// path already finalized the session. confirmed and failed are never
// reversed. This is what makes terminal application safe to replay.
type PaymentSessionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.PaymentSession) error
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.PaymentSession, error)
	UpdateStatusIfOpen(ctx context.Context, tx Tx, reference string, newStatus model.SessionStatus) (bool, error)
	RecordPoll(ctx context.Context, tx Tx, reference string, attempts int, polledAt time.Time) error
	ListInitiatedOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.PaymentSession, error)
}
