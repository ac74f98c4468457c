package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"marketplace-payments/internal/usecase"
)

// Server owns the HTTP surface: the marketplace API plus the operational
// endpoints (health, metrics, gateway callback).
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

func NewServer(
	addr string,
	auth *AuthManager,
	listings usecase.ListingUseCase,
	wallet usecase.WalletUseCase,
	payments usecase.PaymentUseCase,
	logger zerolog.Logger,
) *Server {
	h := &handlers{
		listings: listings,
		wallet:   wallet,
		payments: payments,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Gateway redirect lands here after checkout. Unauthenticated: the
	// reference alone identifies the session, and the redirect only
	// triggers a recheck, never an unconditional confirm.
	r.Get("/payments/callback", h.gatewayCallback)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", h.saveDraft)
			r.Get("/", h.listListings)
			r.Get("/{id}", h.getListing)
			r.Post("/{id}/submit", h.submitListing)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", h.walletBalance)
			r.Post("/topup", h.walletTopUp)
			r.Get("/transactions", h.walletTransactions)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/{reference}", h.getPaymentSession)
			r.Post("/{reference}/recheck", h.recheckPayment)
			r.Delete("/{reference}", h.abandonPayment)
		})
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the routed handler for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
