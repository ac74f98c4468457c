package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/domain/ports/adapter"
	"marketplace-payments/internal/domain/ports/repository"
	"marketplace-payments/internal/infra/logging"
	"marketplace-payments/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentMethod selects how a submission is paid for.
type PaymentMethod string

const (
	MethodWallet  PaymentMethod = "wallet"
	MethodGateway PaymentMethod = "gateway"
)

// PollOutcome is the terminal result of watching one reference.
type PollOutcome string

const (
	OutcomeConfirmed PollOutcome = "confirmed"
	OutcomeFailed    PollOutcome = "failed"
	OutcomeTimedOut  PollOutcome = "timed_out"
)

// SubmissionStatus is the caller-visible result of Submit.
type SubmissionStatus string

const (
	// SubmissionActivated: the listing is live (free plan or wallet path).
	SubmissionActivated SubmissionStatus = "activated"
	// SubmissionPaymentRequired: the wallet balance does not cover the plan.
	// The caller must fund the wallet; there is no automatic fallback to the
	// gateway, which would surprise the user with an external charge.
	SubmissionPaymentRequired SubmissionStatus = "payment_required"
	// SubmissionAwaiting: a gateway session was created; the user completes
	// payment out-of-band and confirmation arrives asynchronously.
	SubmissionAwaiting SubmissionStatus = "awaiting_confirmation"
)

type SubmissionResult struct {
	Status      SubmissionStatus
	Listing     *model.Listing
	Session     *model.PaymentSession // set when Status is awaiting_confirmation
	Reference   string
	RedirectURL string
	Shortfall   int64 // set when Status is payment_required
}

// ConfirmationWatcher is what the orchestrator needs from the confirmation
// poller: start watching a reference, or stop. Terminal outcomes come back
// through HandleTerminal.
type ConfirmationWatcher interface {
	Watch(reference string) error
	Cancel(reference string)
}

// PaymentUseCase is the saga coordinator. It decides the wallet-vs-gateway
// path, drives the confirmation poller, applies wallet credits and listing
// activations on confirmed payments, and leaves everything recoverable on
// failure or timeout. It holds no unrecoverable state: after a restart,
// ResumePending re-watches every open session from scratch.
type PaymentUseCase interface {
	// Submit pays for and activates a listing draft under the given plan.
	Submit(ctx context.Context, userID, listingID, planID string, method PaymentMethod) (*SubmissionResult, error)
	// TopUp initiates a gateway session that credits the wallet once confirmed.
	TopUp(ctx context.Context, userID string, amount int64) (*model.PaymentSession, error)
	// HandleTerminal applies a poller outcome for a reference. Safe to replay.
	HandleTerminal(ctx context.Context, reference string, outcome PollOutcome) error
	// Recheck queries the gateway once, outside the polling budget. It can
	// finalize a session the poller gave up on, including a late confirm.
	Recheck(ctx context.Context, reference string) (*model.PaymentSession, error)
	// Abandon stops local polling for a reference. It does not and cannot
	// undo the external payment; a late confirmation is still applied.
	Abandon(ctx context.Context, reference string)
	// GetSession returns a session by reference for display.
	GetSession(ctx context.Context, reference string) (*model.PaymentSession, error)
	// ResumePending re-hands every open session to the watcher. Called at
	// startup and by the reconciler sweep.
	ResumePending(ctx context.Context, staleAfter time.Duration) (int, error)
}

type paymentUC struct {
	sessions repository.PaymentSessionRepository
	catalog  PlanCatalog
	wallet   WalletUseCase
	listings ListingUseCase
	gateway  adapter.PaymentGateway
	tm       repository.TransactionManager
	watcher  ConfirmationWatcher
	currency string
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	sessions repository.PaymentSessionRepository,
	catalog PlanCatalog,
	wallet WalletUseCase,
	listings ListingUseCase,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		sessions: sessions,
		catalog:  catalog,
		wallet:   wallet,
		listings: listings,
		gateway:  gateway,
		tm:       tm,
		currency: "NGN",
		log:      logger,
	}
}

// SetWatcher breaks the construction cycle between the orchestrator and the
// poller: the poller needs this use case as its terminal handler, and this
// use case needs the poller to start watches.
func (u *paymentUC) SetWatcher(w ConfirmationWatcher) { u.watcher = w }

func (u *paymentUC) Submit(ctx context.Context, userID, listingID, planID string, method PaymentMethod) (*SubmissionResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Submit")()
	if userID == "" || listingID == "" {
		return nil, domain.ErrInvalidArgument
	}
	listing, err := u.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	plan, err := u.catalog.Resolve(planID)
	if err != nil {
		return nil, err
	}

	// Settle duplicate and dead submissions before any money moves. An active
	// listing means this submission was already paid for; a finalized one can
	// never be activated, so charging for it would strand the money.
	if listing.Status == model.ListingStatusActive {
		metrics.IncSubmission(string(SubmissionActivated))
		return &SubmissionResult{Status: SubmissionActivated, Listing: listing}, nil
	}
	if !listing.CanActivate() {
		return nil, fmt.Errorf("listing %s is %s: %w", listing.ID, listing.Status, domain.ErrAlreadyFinalized)
	}

	// Free plan: no payment, no session; activate right away.
	if plan.IsFree() {
		if err := u.listings.Activate(ctx, listingID); err != nil {
			return nil, err
		}
		metrics.IncSubmission(string(SubmissionActivated))
		return &SubmissionResult{Status: SubmissionActivated, Listing: refreshed(ctx, u.listings, listing)}, nil
	}

	switch method {
	case MethodWallet:
		return u.submitViaWallet(ctx, userID, listing, plan)
	case MethodGateway:
		return u.submitViaGateway(ctx, userID, listing, plan)
	default:
		return nil, fmt.Errorf("payment method %q: %w", method, domain.ErrInvalidArgument)
	}
}

func (u *paymentUC) submitViaWallet(ctx context.Context, userID string, listing *model.Listing, plan *model.Plan) (*SubmissionResult, error) {
	desc := fmt.Sprintf("listing %s activation (%s plan)", listing.ID, plan.ID)
	_, err := u.wallet.Debit(ctx, userID, plan.Price, desc)
	if errors.Is(err, domain.ErrInsufficientBalance) {
		balance, berr := u.wallet.Balance(ctx, userID)
		if berr != nil {
			balance = 0
		}
		metrics.IncSubmission(string(SubmissionPaymentRequired))
		u.log.Info().Str("user_id", userID).Str("listing_id", listing.ID).
			Int64("price", plan.Price).Int64("balance", balance).Msg("submission needs wallet funding")
		return &SubmissionResult{
			Status:    SubmissionPaymentRequired,
			Listing:   listing,
			Shortfall: plan.Price - balance,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := u.listings.Activate(ctx, listing.ID); err != nil {
		// The debit went through but activation failed; surface the error so
		// the caller retries Activate, which is idempotent.
		return nil, err
	}
	metrics.IncSubmission(string(SubmissionActivated))
	return &SubmissionResult{Status: SubmissionActivated, Listing: refreshed(ctx, u.listings, listing)}, nil
}

func (u *paymentUC) submitViaGateway(ctx context.Context, userID string, listing *model.Listing, plan *model.Plan) (*SubmissionResult, error) {
	desc := fmt.Sprintf("listing %s activation (%s plan)", listing.ID, plan.ID)
	init, err := u.gateway.Initiate(ctx, userID, plan.Price, desc)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &model.PaymentSession{
		ID:          uuid.NewString(),
		Reference:   init.Reference,
		UserID:      userID,
		Amount:      plan.Price,
		Currency:    u.currency,
		Purpose:     model.PurposeListingActivation,
		ListingID:   listing.ID,
		Status:      model.SessionStatusInitiated,
		RedirectURL: init.RedirectURL,
		Description: desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// Persist the session and park the listing in one transaction before
	// starting the watch: a fast confirmation always finds both, and a crash
	// between the two writes leaves neither behind.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.sessions.Save(ctx, tx, s); err != nil {
			return err
		}
		return u.listings.MarkPendingPayment(ctx, tx, listing.ID)
	})
	if err != nil {
		return nil, err
	}
	if err := u.watcher.Watch(s.Reference); err != nil && !errors.Is(err, domain.ErrAlreadyWatching) {
		return nil, err
	}
	metrics.IncSession(string(model.SessionStatusInitiated))
	metrics.IncSubmission(string(SubmissionAwaiting))
	u.log.Info().Str("user_id", userID).Str("listing_id", listing.ID).
		Str("reference", s.Reference).Int64("amount", plan.Price).Msg("gateway session initiated")
	return &SubmissionResult{
		Status:      SubmissionAwaiting,
		Listing:     refreshed(ctx, u.listings, listing),
		Session:     s,
		Reference:   s.Reference,
		RedirectURL: s.RedirectURL,
	}, nil
}

func (u *paymentUC) TopUp(ctx context.Context, userID string, amount int64) (*model.PaymentSession, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.TopUp")()
	if userID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	desc := "wallet top-up"
	init, err := u.gateway.Initiate(ctx, userID, amount, desc)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	s := &model.PaymentSession{
		ID:          uuid.NewString(),
		Reference:   init.Reference,
		UserID:      userID,
		Amount:      amount,
		Currency:    u.currency,
		Purpose:     model.PurposeWalletTopup,
		Status:      model.SessionStatusInitiated,
		RedirectURL: init.RedirectURL,
		Description: desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.sessions.Save(ctx, nil, s); err != nil {
		return nil, err
	}
	if err := u.watcher.Watch(s.Reference); err != nil && !errors.Is(err, domain.ErrAlreadyWatching) {
		return nil, err
	}
	metrics.IncSession(string(model.SessionStatusInitiated))
	u.log.Info().Str("user_id", userID).Str("reference", s.Reference).
		Int64("amount", amount).Msg("top-up session initiated")
	return s, nil
}

func (u *paymentUC) HandleTerminal(ctx context.Context, reference string, outcome PollOutcome) error {
	s, err := u.sessions.FindByReference(ctx, nil, reference)
	if err != nil {
		u.log.Error().Err(err).Str("reference", reference).Msg("terminal event for unknown session")
		return err
	}

	switch outcome {
	case OutcomeConfirmed:
		return u.applyConfirmed(ctx, s)
	case OutcomeFailed:
		changed, err := u.sessions.UpdateStatusIfOpen(ctx, nil, reference, model.SessionStatusFailed)
		if err != nil {
			return err
		}
		if changed {
			metrics.IncSession(string(model.SessionStatusFailed))
			// The draft stays pending_payment, not rejected: the user may
			// retry with a fresh session.
			u.log.Info().Str("reference", reference).Msg("payment failed")
		}
		return nil
	case OutcomeTimedOut:
		changed, err := u.sessions.UpdateStatusIfOpen(ctx, nil, reference, model.SessionStatusExpired)
		if err != nil {
			return err
		}
		if changed {
			metrics.IncSession(string(model.SessionStatusExpired))
			u.log.Info().Str("reference", reference).Int("attempts", s.Attempts).
				Msg("polling budget exhausted; session expired, recheck still possible")
		}
		return nil
	default:
		return fmt.Errorf("outcome %q: %w", outcome, domain.ErrInvalidArgument)
	}
}

// applyConfirmed finalizes the session and applies the money/listing side
// effects. The side effects run even when the status transition reports "no
// change": a previous confirm may have crashed between the transition and the
// credit/activation, and both side effects are idempotent, so re-applying
// them heals the partial run without double effect.
func (u *paymentUC) applyConfirmed(ctx context.Context, s *model.PaymentSession) error {
	changed, err := u.sessions.UpdateStatusIfOpen(ctx, nil, s.Reference, model.SessionStatusConfirmed)
	if err != nil {
		return err
	}
	if !changed {
		cur, err := u.sessions.FindByReference(ctx, nil, s.Reference)
		if err != nil {
			return err
		}
		if cur.Status != model.SessionStatusConfirmed {
			// failed stays failed; a confirm after an explicit failure would
			// mean the gateway contradicted itself. Keep the ledger shut and
			// make noise instead.
			u.log.Error().Str("reference", s.Reference).Str("status", string(cur.Status)).
				Msg("confirmation for a session finalized otherwise; ignoring")
			return nil
		}
	} else {
		metrics.IncSession(string(model.SessionStatusConfirmed))
		metrics.AddPaymentRevenue(s.Currency, s.Amount)
	}

	switch s.Purpose {
	case model.PurposeWalletTopup:
		_, err := u.wallet.Credit(ctx, s.UserID, s.Amount, s.Reference, s.Description)
		if err != nil {
			return fmt.Errorf("credit top-up %s: %w", s.Reference, err)
		}
	case model.PurposeListingActivation:
		if err := u.listings.Activate(ctx, s.ListingID); err != nil {
			return fmt.Errorf("activate listing %s: %w", s.ListingID, err)
		}
	}
	u.log.Info().Str("reference", s.Reference).Str("purpose", string(s.Purpose)).
		Int64("amount", s.Amount).Msg("payment confirmed")
	return nil
}

func (u *paymentUC) Recheck(ctx context.Context, reference string) (*model.PaymentSession, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Recheck")()
	s, err := u.sessions.FindByReference(ctx, nil, reference)
	if err != nil {
		return nil, err
	}
	if s.Status == model.SessionStatusConfirmed || s.Status == model.SessionStatusFailed {
		return s, nil
	}

	status, qerr := u.gateway.QueryStatus(ctx, reference)
	switch {
	case qerr == nil && status == adapter.GatewayStatusConfirmed:
		if err := u.HandleTerminal(ctx, reference, OutcomeConfirmed); err != nil {
			return nil, err
		}
	case qerr == nil && (status == adapter.GatewayStatusFailed || status == adapter.GatewayStatusNotFound):
		if err := u.HandleTerminal(ctx, reference, OutcomeFailed); err != nil {
			return nil, err
		}
	case errors.Is(qerr, domain.ErrSessionNotFound):
		if err := u.HandleTerminal(ctx, reference, OutcomeFailed); err != nil {
			return nil, err
		}
	case qerr != nil:
		return nil, qerr
	}
	return u.sessions.FindByReference(ctx, nil, reference)
}

func (u *paymentUC) Abandon(ctx context.Context, reference string) {
	u.watcher.Cancel(reference)
	u.log.Info().Str("reference", reference).Msg("stopped watching; payment may still complete")
}

func (u *paymentUC) GetSession(ctx context.Context, reference string) (*model.PaymentSession, error) {
	return u.sessions.FindByReference(ctx, nil, reference)
}

func (u *paymentUC) ResumePending(ctx context.Context, staleAfter time.Duration) (int, error) {
	cutoff := time.Now().Add(-staleAfter)
	open, err := u.sessions.ListInitiatedOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, s := range open {
		if err := u.watcher.Watch(s.Reference); err != nil {
			if errors.Is(err, domain.ErrAlreadyWatching) {
				continue
			}
			u.log.Error().Err(err).Str("reference", s.Reference).Msg("resume watch failed")
			continue
		}
		resumed++
	}
	return resumed, nil
}

// refreshed re-reads a listing after a status change; falls back to the stale
// copy if the read fails, since the mutation itself already succeeded.
func refreshed(ctx context.Context, listings ListingUseCase, l *model.Listing) *model.Listing {
	if cur, err := listings.Get(ctx, l.ID); err == nil {
		return cur
	}
	return l
}
