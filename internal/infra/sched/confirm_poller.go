package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/ports/adapter"
	"marketplace-payments/internal/domain/ports/repository"
	"marketplace-payments/internal/infra/metrics"
	"marketplace-payments/internal/usecase"
)

// Compile-time check
var _ usecase.ConfirmationWatcher = (*ConfirmPoller)(nil)

// TerminalHandler receives the single terminal outcome of a watch.
// usecase.PaymentUseCase satisfies it.
type TerminalHandler interface {
	HandleTerminal(ctx context.Context, reference string, outcome usecase.PollOutcome) error
}

// ConfirmPoller drives repeated gateway status queries for in-flight
// references. Every watched reference runs as its own goroutine with its own
// ticker, so one slow or hanging poll never delays unrelated submissions.
// Each watch queries at most maxAttempts times, one interval apart, and
// delivers exactly one terminal outcome to the handler: confirmed, failed,
// or timed_out. Transient gateway errors count as "still pending" and are
// absorbed against the attempt budget, never surfaced as failures.
type ConfirmPoller struct {
	gateway     adapter.PaymentGateway
	sessions    repository.PaymentSessionRepository
	handler     TerminalHandler
	interval    time.Duration
	maxAttempts int
	log         *zerolog.Logger

	mu      sync.Mutex
	watches map[string]context.CancelFunc
	baseCtx context.Context
	wg      sync.WaitGroup
}

func NewConfirmPoller(
	gateway adapter.PaymentGateway,
	sessions repository.PaymentSessionRepository,
	handler TerminalHandler,
	interval time.Duration,
	maxAttempts int,
	logger *zerolog.Logger,
) *ConfirmPoller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	return &ConfirmPoller{
		gateway:     gateway,
		sessions:    sessions,
		handler:     handler,
		interval:    interval,
		maxAttempts: maxAttempts,
		log:         logger,
		watches:     make(map[string]context.CancelFunc),
		baseCtx:     context.Background(),
	}
}

// Start binds the poller to a parent context. Watches started afterwards stop
// when that context is cancelled.
func (p *ConfirmPoller) Start(ctx context.Context) {
	p.mu.Lock()
	p.baseCtx = ctx
	p.mu.Unlock()
}

// Watch begins polling a reference. Returns domain.ErrAlreadyWatching when a
// watch for the reference is already running, which callers other than the
// original submitter (reconciler sweeps, restarts) simply ignore.
func (p *ConfirmPoller) Watch(reference string) error {
	if reference == "" {
		return domain.ErrInvalidArgument
	}
	p.mu.Lock()
	if _, ok := p.watches[reference]; ok {
		p.mu.Unlock()
		return domain.ErrAlreadyWatching
	}
	ctx, cancel := context.WithCancel(p.baseCtx)
	p.watches[reference] = cancel
	p.mu.Unlock()

	metrics.IncActiveWatches()
	p.wg.Add(1)
	go p.run(ctx, reference)
	return nil
}

// Cancel stops scheduling further ticks for a reference. It does not undo a
// terminal outcome already delivered, and it cannot un-charge the user: the
// external payment may still complete and be applied later via recheck.
func (p *ConfirmPoller) Cancel(reference string) {
	p.mu.Lock()
	cancel, ok := p.watches[reference]
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

// Stop cancels every watch and waits for the goroutines to drain.
func (p *ConfirmPoller) Stop() {
	p.mu.Lock()
	for _, cancel := range p.watches {
		cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Watching reports whether a reference currently has a live watch.
func (p *ConfirmPoller) Watching(reference string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.watches[reference]
	return ok
}

func (p *ConfirmPoller) run(ctx context.Context, reference string) {
	defer p.wg.Done()
	defer p.unregister(reference)

	start := time.Now()
	attempts := 0
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Cancelled or shutting down. No terminal outcome: the session
			// stays open and the reconciler resumes it later.
			p.log.Debug().Str("reference", reference).Int("attempts", attempts).Msg("watch cancelled")
			return
		case <-ticker.C:
		}

		status, err := p.gateway.QueryStatus(ctx, reference)
		attempts++
		p.recordPoll(reference, attempts)

		switch {
		case err == nil && status == adapter.GatewayStatusConfirmed:
			metrics.IncPoll("confirmed")
			p.deliver(reference, usecase.OutcomeConfirmed, start)
			return
		case err == nil && (status == adapter.GatewayStatusFailed || status == adapter.GatewayStatusNotFound):
			metrics.IncPoll(string(status))
			p.deliver(reference, usecase.OutcomeFailed, start)
			return
		case errors.Is(err, domain.ErrSessionNotFound):
			metrics.IncPoll("not_found")
			p.deliver(reference, usecase.OutcomeFailed, start)
			return
		case err != nil:
			metrics.IncPoll("transient_error")
			p.log.Debug().Err(err).Str("reference", reference).Int("attempt", attempts).
				Msg("status query failed; treating as pending")
		default:
			metrics.IncPoll("pending")
		}

		if attempts >= p.maxAttempts {
			p.deliver(reference, usecase.OutcomeTimedOut, start)
			return
		}
	}
}

// deliver hands the terminal outcome to the handler exactly once per watch.
// A single goroutine owns each reference, so a last-tick confirmation can
// never race the timeout: whichever fires first is the one delivered. The
// handler runs on a fresh context so a cancelled watch context cannot
// truncate the application of an outcome already decided.
func (p *ConfirmPoller) deliver(reference string, outcome usecase.PollOutcome, start time.Time) {
	metrics.ObserveWatchDuration(string(outcome), time.Since(start).Seconds())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.handler.HandleTerminal(ctx, reference, outcome); err != nil {
		// The session is still open in storage, so the reconciler sweep will
		// retry from scratch.
		p.log.Error().Err(err).Str("reference", reference).Str("outcome", string(outcome)).
			Msg("terminal handler failed")
	}
}

func (p *ConfirmPoller) recordPoll(reference string, attempts int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.sessions.RecordPoll(ctx, nil, reference, attempts, time.Now()); err != nil {
		p.log.Debug().Err(err).Str("reference", reference).Msg("record poll failed")
	}
}

func (p *ConfirmPoller) unregister(reference string) {
	p.mu.Lock()
	if cancel, ok := p.watches[reference]; ok {
		cancel()
		delete(p.watches, reference)
	}
	p.mu.Unlock()
	metrics.DecActiveWatches()
}
