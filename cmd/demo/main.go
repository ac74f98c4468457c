package main

import (
	"context"
	"log"
	"time"

	"marketplace-payments/internal/config"
	payAdapters "marketplace-payments/internal/infra/adapters/payment"
	"marketplace-payments/internal/infra/db/memory"
	"marketplace-payments/internal/infra/logging"
	"marketplace-payments/internal/infra/sched"
	"marketplace-payments/internal/usecase"
)

// Walks the whole saga in memory: a draft listing, a wallet submit that comes
// up short, a gateway top-up confirmed after a few polls, and a resubmit that
// goes live off the funded wallet.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)

	// 1. In-memory wiring with a scripted gateway
	walletRepo := memory.NewWalletRepo()
	sessionRepo := memory.NewPaymentSessionRepo()
	listingRepo := memory.NewListingRepo()
	gateway := payAdapters.NewNoopPaymentGateway()

	catalog, err := usecase.NewPlanCatalog([]config.PlanConfig{
		{ID: "free", Name: "Free", Price: 0, Priority: 0},
		{ID: "premium", Name: "Premium", Price: 15_000, Priority: 1},
	})
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	walletUC := usecase.NewWalletUseCase(walletRepo, nil, logger)
	listingUC := usecase.NewListingUseCase(listingRepo, logger)
	paymentUC := usecase.NewPaymentUseCase(sessionRepo, catalog, walletUC, listingUC, gateway, memory.NewTxManager(), logger)

	poller := sched.NewConfirmPoller(gateway, sessionRepo, paymentUC, 100*time.Millisecond, 10, logger)
	paymentUC.SetWatcher(poller)
	poller.Start(ctx)
	defer poller.Stop()

	// 2. Seed a wallet that cannot cover the premium plan
	userID := "demo-user"
	if _, err := walletUC.Credit(ctx, userID, 5_000, "seed-1", "demo seed"); err != nil {
		log.Fatalf("seed credit: %v", err)
	}

	// 3. Draft a listing and try to pay from the wallet
	listing, err := listingUC.SaveDraft(ctx, userID, "electronics", "premium", []byte(`{"title":"Refurbished laptop"}`))
	if err != nil {
		log.Fatalf("save draft: %v", err)
	}
	log.Printf("draft saved: id=%s status=%s", listing.ID, listing.Status)

	result, err := paymentUC.Submit(ctx, userID, listing.ID, "premium", usecase.MethodWallet)
	if err != nil {
		log.Fatalf("wallet submit: %v", err)
	}
	log.Printf("wallet submit: status=%s shortfall=%d", result.Status, result.Shortfall)

	// 4. Top up through the gateway; the scripted provider confirms on the
	// third status query
	session, err := paymentUC.TopUp(ctx, userID, 20_000)
	if err != nil {
		log.Fatalf("topup: %v", err)
	}
	gateway.ConfirmAfter(session.Reference, 3)
	log.Printf("topup initiated: reference=%s redirect=%s", session.Reference, session.RedirectURL)

	waitForBalance(ctx, walletUC, userID, 25_000)
	balance, _ := walletUC.Balance(ctx, userID)
	log.Printf("wallet funded: balance=%d", balance)

	// 5. Resubmit from the funded wallet
	result, err = paymentUC.Submit(ctx, userID, listing.ID, "premium", usecase.MethodWallet)
	if err != nil {
		log.Fatalf("resubmit: %v", err)
	}
	balance, _ = walletUC.Balance(ctx, userID)
	log.Printf("resubmit: status=%s listing=%s balance=%d", result.Status, result.Listing.Status, balance)
}

func waitForBalance(ctx context.Context, wallet usecase.WalletUseCase, userID string, want int64) {
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			log.Fatalf("timed out waiting for wallet credit")
		case <-time.After(50 * time.Millisecond):
			if b, err := wallet.Balance(ctx, userID); err == nil && b >= want {
				return
			}
		}
	}
}
