package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-payments/internal/config"
	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/domain/ports/adapter"
	"marketplace-payments/internal/usecase"
)

// paymentUCTestDeps holds all the dependencies for the payment use case tests.
type paymentUCTestDeps struct {
	sessions *MockSessionRepo
	wallets  *MockWalletRepo
	listings *MockListingRepo
	gateway  *MockGateway
	watcher  *MockWatcher
	tm       *MockTxManager

	walletUC  usecase.WalletUseCase
	listingUC usecase.ListingUseCase
	uc        usecase.PaymentUseCase
}

// newPaymentUCDeps wires a fresh payment use case over mock storage, a mock
// gateway and a mock watcher. Plan prices are small so the arithmetic in
// assertions stays readable.
func newPaymentUCDeps(t *testing.T) *paymentUCTestDeps {
	t.Helper()
	testLogger := newTestLogger()

	deps := &paymentUCTestDeps{
		sessions: NewMockSessionRepo(),
		wallets:  NewMockWalletRepo(),
		listings: NewMockListingRepo(),
		gateway:  &MockGateway{},
		watcher:  NewMockWatcher(),
		tm:       &MockTxManager{},
	}
	catalog, err := usecase.NewPlanCatalog([]config.PlanConfig{
		{ID: "free", Name: "Free", Price: 0, Priority: 0},
		{ID: "premium", Name: "Premium", Price: 15_000, Priority: 1},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	deps.walletUC = usecase.NewWalletUseCase(deps.wallets, nil, testLogger)
	deps.listingUC = usecase.NewListingUseCase(deps.listings, testLogger)
	uc := usecase.NewPaymentUseCase(deps.sessions, catalog, deps.walletUC, deps.listingUC, deps.gateway, deps.tm, testLogger)
	uc.SetWatcher(deps.watcher)
	deps.uc = uc
	return deps
}

func (d *paymentUCTestDeps) draft(t *testing.T, planID string) *model.Listing {
	t.Helper()
	l, err := d.listingUC.SaveDraft(context.Background(), "biz-1", "electronics", planID, nil)
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	return l
}

func (d *paymentUCTestDeps) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	if _, err := d.walletUC.Credit(context.Background(), userID, amount, "seed-"+userID, "seed"); err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func TestPaymentUseCase_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("should activate a free plan listing with no session", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		l := deps.draft(t, "free")

		result, err := deps.uc.Submit(ctx, "user-1", l.ID, "free", usecase.MethodWallet)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if result.Status != usecase.SubmissionActivated {
			t.Errorf("expected activated, got %s", result.Status)
		}
		if result.Listing.Status != model.ListingStatusActive {
			t.Errorf("expected listing active, got %s", result.Listing.Status)
		}
		if len(deps.sessions.byRef) != 0 {
			t.Error("free plan must not create a payment session")
		}
	})

	t.Run("should debit the wallet and activate when the balance covers", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		deps.fund(t, "user-1", 20_000)
		l := deps.draft(t, "premium")

		result, err := deps.uc.Submit(ctx, "user-1", l.ID, "premium", usecase.MethodWallet)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if result.Status != usecase.SubmissionActivated {
			t.Fatalf("expected activated, got %s", result.Status)
		}
		balance, _ := deps.walletUC.Balance(ctx, "user-1")
		if balance != 5_000 {
			t.Errorf("expected balance 5000 after debit, got %d", balance)
		}
	})

	t.Run("should report a shortfall without falling back to the gateway", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		deps.fund(t, "user-1", 5_000)
		l := deps.draft(t, "premium")

		result, err := deps.uc.Submit(ctx, "user-1", l.ID, "premium", usecase.MethodWallet)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if result.Status != usecase.SubmissionPaymentRequired {
			t.Fatalf("expected payment_required, got %s", result.Status)
		}
		if result.Shortfall != 10_000 {
			t.Errorf("expected shortfall 10000, got %d", result.Shortfall)
		}
		balance, _ := deps.walletUC.Balance(ctx, "user-1")
		if balance != 5_000 {
			t.Errorf("the failed attempt must not touch the balance, got %d", balance)
		}
		cur, _ := deps.listingUC.Get(ctx, l.ID)
		if cur.Status != model.ListingStatusDraft {
			t.Errorf("listing should stay a draft, got %s", cur.Status)
		}
		if len(deps.sessions.byRef) != 0 {
			t.Error("an insufficient wallet must not open a gateway session")
		}
	})

	t.Run("should open a session and park the listing on the gateway path", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		l := deps.draft(t, "premium")

		result, err := deps.uc.Submit(ctx, "user-1", l.ID, "premium", usecase.MethodGateway)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if result.Status != usecase.SubmissionAwaiting {
			t.Fatalf("expected awaiting_confirmation, got %s", result.Status)
		}
		if result.Reference == "" || result.RedirectURL == "" {
			t.Error("expected a reference and a redirect URL")
		}
		s, err := deps.sessions.FindByReference(ctx, nil, result.Reference)
		if err != nil {
			t.Fatalf("session not persisted: %v", err)
		}
		if s.Status != model.SessionStatusInitiated || s.Amount != 15_000 {
			t.Errorf("unexpected session: status=%s amount=%d", s.Status, s.Amount)
		}
		cur, _ := deps.listingUC.Get(ctx, l.ID)
		if cur.Status != model.ListingStatusPendingPayment {
			t.Errorf("expected pending_payment, got %s", cur.Status)
		}
		if !deps.watcher.Watching(result.Reference) {
			t.Error("expected the reference to be under watch")
		}
	})

	t.Run("should write the session and park the listing in one transaction", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		l := deps.draft(t, "premium")

		if _, err := deps.uc.Submit(ctx, "user-1", l.ID, "premium", usecase.MethodGateway); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if deps.tm.Calls != 1 {
			t.Fatalf("expected 1 managed transaction, got %d", deps.tm.Calls)
		}
		if deps.sessions.LastSaveTx == nil {
			t.Error("the session write must run under the managed tx")
		}
		if deps.listings.LastUpdateTx == nil {
			t.Error("the listing status write must run under the managed tx")
		}
		if deps.sessions.LastSaveTx != deps.listings.LastUpdateTx {
			t.Error("both writes must share the same tx handle")
		}
	})

	t.Run("should not charge again for an already active listing", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		deps.fund(t, "user-1", 25_000)
		l := deps.draft(t, "premium")

		first, err := deps.uc.Submit(ctx, "user-1", l.ID, "premium", usecase.MethodWallet)
		if err != nil || first.Status != usecase.SubmissionActivated {
			t.Fatalf("first submit: status=%v err=%v", first, err)
		}

		// A duplicate submit of the now-active listing must be a free no-op.
		second, err := deps.uc.Submit(ctx, "user-1", l.ID, "premium", usecase.MethodWallet)
		if err != nil {
			t.Fatalf("duplicate submit: %v", err)
		}
		if second.Status != usecase.SubmissionActivated {
			t.Errorf("expected activated, got %s", second.Status)
		}
		balance, _ := deps.walletUC.Balance(ctx, "user-1")
		if balance != 10_000 {
			t.Errorf("the duplicate submit must not debit again, got balance %d", balance)
		}
	})

	t.Run("should refuse a finalized listing before touching the wallet", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		deps.fund(t, "user-1", 25_000)
		l := deps.draft(t, "premium")
		if err := deps.listings.UpdateStatus(ctx, nil, l.ID, model.ListingStatusRejected, false); err != nil {
			t.Fatalf("reject: %v", err)
		}

		_, err := deps.uc.Submit(ctx, "user-1", l.ID, "premium", usecase.MethodWallet)
		if !errors.Is(err, domain.ErrAlreadyFinalized) {
			t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
		}
		balance, _ := deps.walletUC.Balance(ctx, "user-1")
		if balance != 25_000 {
			t.Errorf("a refused submission must not move money, got %d", balance)
		}
	})

	t.Run("should refuse a finalized listing on the gateway path too", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		l := deps.draft(t, "premium")
		if err := deps.listings.UpdateStatus(ctx, nil, l.ID, model.ListingStatusSold, false); err != nil {
			t.Fatalf("sell: %v", err)
		}

		_, err := deps.uc.Submit(ctx, "user-1", l.ID, "premium", usecase.MethodGateway)
		if !errors.Is(err, domain.ErrAlreadyFinalized) {
			t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
		}
		if len(deps.sessions.byRef) != 0 {
			t.Error("no gateway session may be opened for a finalized listing")
		}
	})

	t.Run("should fail on an unknown plan", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		l := deps.draft(t, "premium")

		_, err := deps.uc.Submit(ctx, "user-1", l.ID, "platinum", usecase.MethodWallet)
		if !errors.Is(err, domain.ErrUnknownPlan) {
			t.Errorf("expected ErrUnknownPlan, got %v", err)
		}
	})

	t.Run("should fail on an unknown listing", func(t *testing.T) {
		deps := newPaymentUCDeps(t)

		_, err := deps.uc.Submit(ctx, "user-1", "nope", "premium", usecase.MethodWallet)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPaymentUseCase_TopUp(t *testing.T) {
	ctx := context.Background()

	t.Run("should open a top-up session and start a watch", func(t *testing.T) {
		deps := newPaymentUCDeps(t)

		s, err := deps.uc.TopUp(ctx, "user-1", 20_000)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if s.Purpose != model.PurposeWalletTopup {
			t.Errorf("expected wallet_topup purpose, got %s", s.Purpose)
		}
		if s.Status != model.SessionStatusInitiated {
			t.Errorf("expected initiated, got %s", s.Status)
		}
		if !deps.watcher.Watching(s.Reference) {
			t.Error("expected the reference to be under watch")
		}
		// The wallet only moves on confirmation.
		balance, _ := deps.walletUC.Balance(ctx, "user-1")
		if balance != 0 {
			t.Errorf("expected balance 0 before confirmation, got %d", balance)
		}
	})

	t.Run("should reject a non-positive amount", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		if _, err := deps.uc.TopUp(ctx, "user-1", 0); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestPaymentUseCase_HandleTerminal(t *testing.T) {
	ctx := context.Background()

	t.Run("should credit the wallet on a confirmed top-up", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s, _ := deps.uc.TopUp(ctx, "user-1", 20_000)

		if err := deps.uc.HandleTerminal(ctx, s.Reference, usecase.OutcomeConfirmed); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		cur, _ := deps.sessions.FindByReference(ctx, nil, s.Reference)
		if cur.Status != model.SessionStatusConfirmed {
			t.Errorf("expected confirmed, got %s", cur.Status)
		}
		balance, _ := deps.walletUC.Balance(ctx, "user-1")
		if balance != 20_000 {
			t.Errorf("expected balance 20000, got %d", balance)
		}
	})

	t.Run("should apply a replayed confirmation exactly once", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s, _ := deps.uc.TopUp(ctx, "user-1", 20_000)

		for i := 0; i < 3; i++ {
			if err := deps.uc.HandleTerminal(ctx, s.Reference, usecase.OutcomeConfirmed); err != nil {
				t.Fatalf("replay %d: %v", i, err)
			}
		}
		balance, _ := deps.walletUC.Balance(ctx, "user-1")
		if balance != 20_000 {
			t.Errorf("expected the credit applied once (20000), got %d", balance)
		}
	})

	t.Run("should activate the listing on a confirmed activation payment", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		l := deps.draft(t, "premium")
		result, _ := deps.uc.Submit(ctx, "user-1", l.ID, "premium", usecase.MethodGateway)

		if err := deps.uc.HandleTerminal(ctx, result.Reference, usecase.OutcomeConfirmed); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		cur, _ := deps.listingUC.Get(ctx, l.ID)
		if cur.Status != model.ListingStatusActive {
			t.Errorf("expected active, got %s", cur.Status)
		}
	})

	t.Run("should mark the session failed and leave the listing recoverable", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		l := deps.draft(t, "premium")
		result, _ := deps.uc.Submit(ctx, "user-1", l.ID, "premium", usecase.MethodGateway)

		if err := deps.uc.HandleTerminal(ctx, result.Reference, usecase.OutcomeFailed); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		cur, _ := deps.sessions.FindByReference(ctx, nil, result.Reference)
		if cur.Status != model.SessionStatusFailed {
			t.Errorf("expected failed, got %s", cur.Status)
		}
		// The draft survives a failed payment for a later retry.
		lst, _ := deps.listingUC.Get(ctx, l.ID)
		if lst.Status != model.ListingStatusPendingPayment {
			t.Errorf("expected pending_payment, got %s", lst.Status)
		}
		balance, _ := deps.walletUC.Balance(ctx, "user-1")
		if balance != 0 {
			t.Errorf("a failed payment must not move money, got %d", balance)
		}
	})

	t.Run("should accept a late confirmation after expiry", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s, _ := deps.uc.TopUp(ctx, "user-1", 20_000)

		if err := deps.uc.HandleTerminal(ctx, s.Reference, usecase.OutcomeTimedOut); err != nil {
			t.Fatalf("timeout: %v", err)
		}
		cur, _ := deps.sessions.FindByReference(ctx, nil, s.Reference)
		if cur.Status != model.SessionStatusExpired {
			t.Fatalf("expected expired, got %s", cur.Status)
		}

		// The user did pay; the answer just arrived after the budget lapsed.
		if err := deps.uc.HandleTerminal(ctx, s.Reference, usecase.OutcomeConfirmed); err != nil {
			t.Fatalf("late confirm: %v", err)
		}
		cur, _ = deps.sessions.FindByReference(ctx, nil, s.Reference)
		if cur.Status != model.SessionStatusConfirmed {
			t.Errorf("expected confirmed after late arrival, got %s", cur.Status)
		}
		balance, _ := deps.walletUC.Balance(ctx, "user-1")
		if balance != 20_000 {
			t.Errorf("expected the late credit applied, got %d", balance)
		}
	})

	t.Run("should ignore a confirmation that contradicts an explicit failure", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s, _ := deps.uc.TopUp(ctx, "user-1", 20_000)

		if err := deps.uc.HandleTerminal(ctx, s.Reference, usecase.OutcomeFailed); err != nil {
			t.Fatalf("fail: %v", err)
		}
		if err := deps.uc.HandleTerminal(ctx, s.Reference, usecase.OutcomeConfirmed); err != nil {
			t.Fatalf("contradicting confirm: %v", err)
		}
		cur, _ := deps.sessions.FindByReference(ctx, nil, s.Reference)
		if cur.Status != model.SessionStatusFailed {
			t.Errorf("failed must stay failed, got %s", cur.Status)
		}
		balance, _ := deps.walletUC.Balance(ctx, "user-1")
		if balance != 0 {
			t.Errorf("no credit may follow an explicit failure, got %d", balance)
		}
	})

	t.Run("should re-apply side effects after a crash mid-confirmation", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s, _ := deps.uc.TopUp(ctx, "user-1", 20_000)

		// Simulate a crash after the status flip but before the credit: the
		// stored session is confirmed, the wallet untouched.
		if changed, err := deps.sessions.UpdateStatusIfOpen(ctx, nil, s.Reference, model.SessionStatusConfirmed); err != nil || !changed {
			t.Fatalf("setup flip: changed=%v err=%v", changed, err)
		}

		if err := deps.uc.HandleTerminal(ctx, s.Reference, usecase.OutcomeConfirmed); err != nil {
			t.Fatalf("redelivery: %v", err)
		}
		balance, _ := deps.walletUC.Balance(ctx, "user-1")
		if balance != 20_000 {
			t.Errorf("expected the redelivery to heal the missing credit, got %d", balance)
		}
	})

	t.Run("should propagate an unknown reference", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		err := deps.uc.HandleTerminal(ctx, "ghost", usecase.OutcomeConfirmed)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPaymentUseCase_Recheck(t *testing.T) {
	ctx := context.Background()

	t.Run("should return a finalized session without querying the gateway", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s, _ := deps.uc.TopUp(ctx, "user-1", 20_000)
		if err := deps.uc.HandleTerminal(ctx, s.Reference, usecase.OutcomeConfirmed); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		before := deps.gateway.Queries

		cur, err := deps.uc.Recheck(ctx, s.Reference)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if cur.Status != model.SessionStatusConfirmed {
			t.Errorf("expected confirmed, got %s", cur.Status)
		}
		if deps.gateway.Queries != before {
			t.Error("a finalized session must not hit the gateway")
		}
	})

	t.Run("should leave a still-pending session open", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s, _ := deps.uc.TopUp(ctx, "user-1", 20_000)

		cur, err := deps.uc.Recheck(ctx, s.Reference)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if cur.Status != model.SessionStatusInitiated {
			t.Errorf("expected initiated, got %s", cur.Status)
		}
	})

	t.Run("should finalize and credit on a confirmed answer", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s, _ := deps.uc.TopUp(ctx, "user-1", 20_000)
		deps.gateway.QueryStatusFunc = func(ctx context.Context, reference string) (adapter.GatewayStatus, error) {
			return adapter.GatewayStatusConfirmed, nil
		}

		cur, err := deps.uc.Recheck(ctx, s.Reference)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if cur.Status != model.SessionStatusConfirmed {
			t.Errorf("expected confirmed, got %s", cur.Status)
		}
		balance, _ := deps.walletUC.Balance(ctx, "user-1")
		if balance != 20_000 {
			t.Errorf("expected balance 20000, got %d", balance)
		}
	})

	t.Run("should rescue an expired session on a late confirmed answer", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s, _ := deps.uc.TopUp(ctx, "user-1", 20_000)
		if err := deps.uc.HandleTerminal(ctx, s.Reference, usecase.OutcomeTimedOut); err != nil {
			t.Fatalf("timeout: %v", err)
		}
		deps.gateway.QueryStatusFunc = func(ctx context.Context, reference string) (adapter.GatewayStatus, error) {
			return adapter.GatewayStatusConfirmed, nil
		}

		cur, err := deps.uc.Recheck(ctx, s.Reference)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if cur.Status != model.SessionStatusConfirmed {
			t.Errorf("expected confirmed, got %s", cur.Status)
		}
	})

	t.Run("should fail the session when the provider disowns the reference", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s, _ := deps.uc.TopUp(ctx, "user-1", 20_000)
		deps.gateway.QueryStatusFunc = func(ctx context.Context, reference string) (adapter.GatewayStatus, error) {
			return adapter.GatewayStatusNotFound, domain.ErrSessionNotFound
		}

		cur, err := deps.uc.Recheck(ctx, s.Reference)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if cur.Status != model.SessionStatusFailed {
			t.Errorf("expected failed, got %s", cur.Status)
		}
	})

	t.Run("should propagate a transient outage without finalizing", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s, _ := deps.uc.TopUp(ctx, "user-1", 20_000)
		deps.gateway.QueryStatusFunc = func(ctx context.Context, reference string) (adapter.GatewayStatus, error) {
			return adapter.GatewayStatusPending, domain.ErrGatewayUnavailable
		}

		_, err := deps.uc.Recheck(ctx, s.Reference)
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
		}
		cur, _ := deps.sessions.FindByReference(ctx, nil, s.Reference)
		if cur.Status != model.SessionStatusInitiated {
			t.Errorf("an outage must not finalize the session, got %s", cur.Status)
		}
	})
}

func TestPaymentUseCase_ResumePending(t *testing.T) {
	ctx := context.Background()

	t.Run("should re-watch every open session", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s1, _ := deps.uc.TopUp(ctx, "user-1", 10_000)
		s2, _ := deps.uc.TopUp(ctx, "user-2", 20_000)

		// A restart loses the in-memory watches.
		deps.watcher.Cancel(s1.Reference)
		deps.watcher.Cancel(s2.Reference)

		n, err := deps.uc.ResumePending(ctx, 0)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 resumed, got %d", n)
		}
		if !deps.watcher.Watching(s1.Reference) || !deps.watcher.Watching(s2.Reference) {
			t.Error("expected both references back under watch")
		}
	})

	t.Run("should skip references already under watch", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		if _, err := deps.uc.TopUp(ctx, "user-1", 10_000); err != nil {
			t.Fatalf("topup: %v", err)
		}

		n, err := deps.uc.ResumePending(ctx, 0)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 resumed, got %d", n)
		}
	})

	t.Run("should honor the stale cutoff", func(t *testing.T) {
		deps := newPaymentUCDeps(t)
		s, _ := deps.uc.TopUp(ctx, "user-1", 10_000)
		deps.watcher.Cancel(s.Reference)

		n, err := deps.uc.ResumePending(ctx, time.Hour)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if n != 0 {
			t.Errorf("a fresh session is not stale yet, got %d resumed", n)
		}
	})
}

func TestPaymentUseCase_Abandon(t *testing.T) {
	ctx := context.Background()

	deps := newPaymentUCDeps(t)
	s, _ := deps.uc.TopUp(ctx, "user-1", 10_000)

	deps.uc.Abandon(ctx, s.Reference)

	if deps.watcher.Watching(s.Reference) {
		t.Error("expected the watch cancelled")
	}
	// Abandon never touches the session itself: the payment may still land.
	cur, _ := deps.sessions.FindByReference(ctx, nil, s.Reference)
	if cur.Status != model.SessionStatusInitiated {
		t.Errorf("expected the session left open, got %s", cur.Status)
	}
}
