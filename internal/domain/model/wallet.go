package model

import "time"

type TxDirection string

const (
	TxDirectionCredit TxDirection = "credit"
	TxDirectionDebit  TxDirection = "debit"
)

type TxStatus string

const (
	TxStatusPending TxStatus = "pending"
	TxStatusSuccess TxStatus = "success"
	TxStatusFailed  TxStatus = "failed"
)

// WalletAccount holds a user's internal balance. Balance is in minor currency
// units and never goes negative; a debit that would do so is rejected before
// any mutation. Accounts are created on first use and never deleted.
type WalletAccount struct {
	UserID    string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WalletTransaction is one ledger entry. Reference carries the external
// gateway reference for gateway-originated top-ups and doubles as the
// idempotency key: a credit replayed with the same reference must not mutate
// the balance twice. Internal debits have no reference. Terminal transactions
// are immutable.
type WalletTransaction struct {
	ID          string // ULID; sorts by creation time
	UserID      string
	Amount      int64
	Direction   TxDirection
	Status      TxStatus
	Reference   string // external gateway reference; empty for internal debits
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (t *WalletTransaction) IsTerminal() bool {
	return t.Status == TxStatusSuccess || t.Status == TxStatusFailed
}
