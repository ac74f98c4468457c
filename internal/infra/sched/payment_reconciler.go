package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/domain/ports/repository"
	"marketplace-payments/internal/infra/worker"
	"marketplace-payments/internal/usecase"
)

// PaymentReconciler periodically scans for stale open payment sessions and
// tries to finalize them. This covers the cases the poller cannot: the
// process crashed mid-watch, the app was closed before polling finished, or
// a terminal handler failed after the gateway had already confirmed. Each
// stale session gets one direct recheck (through the worker pool, so a slow
// gateway cannot stall the scan) and, if still undecided, is handed back to
// the poller for a fresh watch.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	sessions   repository.PaymentSessionRepository
	watcher    *ConfirmPoller
	pool       *worker.Pool
	interval   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger
}

func NewPaymentReconciler(
	uc usecase.PaymentUseCase,
	sessions repository.PaymentSessionRepository,
	watcher *ConfirmPoller,
	pool *worker.Pool,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &PaymentReconciler{
		uc:         uc,
		sessions:   sessions,
		watcher:    watcher,
		pool:       pool,
		interval:   interval,
		staleAfter: staleAfter,
		log:        logger,
	}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.sessions.ListInitiatedOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("reconciler: list open sessions failed")
		return
	}
	for _, s := range stale {
		if w.watcher.Watching(s.Reference) {
			continue
		}
		ref := s.Reference
		err := w.pool.Submit(func(ctx context.Context) error {
			return w.reconcile(ctx, ref)
		})
		if err != nil {
			// Queue saturated; the next tick picks the session up again.
			w.log.Warn().Err(err).Str("reference", ref).Msg("reconciler: submit skipped")
		}
	}
}

func (w *PaymentReconciler) reconcile(ctx context.Context, reference string) error {
	s, err := w.uc.Recheck(ctx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			// Gateway down; resume watching and let the budget decide.
			if werr := w.watcher.Watch(reference); werr != nil && !errors.Is(werr, domain.ErrAlreadyWatching) {
				return werr
			}
			return nil
		}
		return err
	}
	if s.Status == model.SessionStatusInitiated {
		if werr := w.watcher.Watch(reference); werr != nil && !errors.Is(werr, domain.ErrAlreadyWatching) {
			return werr
		}
		return nil
	}
	w.log.Info().Str("reference", reference).Str("status", string(s.Status)).Msg("reconciled session")
	return nil
}
