package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
	"marketplace-payments/internal/infra/logging"
	"marketplace-payments/internal/usecase"
)

type handlers struct {
	listings usecase.ListingUseCase
	wallet   usecase.WalletUseCase
	payments usecase.PaymentUseCase
	logger   zerolog.Logger
}

// ===== Listings =====

type saveDraftRequest struct {
	Category string          `json:"category"`
	PlanID   string          `json:"plan_id"`
	Payload  json.RawMessage `json:"payload"`
}

func (h *handlers) saveDraft(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	var req saveDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	listing, err := h.listings.SaveDraft(r.Context(), userID, req.Category, req.PlanID, req.Payload)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, listingResponse(listing))
}

type submitListingRequest struct {
	PlanID string `json:"plan_id"`
	Method string `json:"method"` // "wallet" or "gateway"
}

type submitListingResponse struct {
	Status      string          `json:"status"`
	Listing     map[string]any  `json:"listing,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	Shortfall   int64           `json:"shortfall,omitempty"`
	Session     *sessionPayload `json:"session,omitempty"`
}

func (h *handlers) submitListing(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	listingID := chi.URLParam(r, "id")
	r = r.WithContext(logging.WithListingID(r.Context(), listingID))

	var req submitListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	method := usecase.PaymentMethod(req.Method)
	if method == "" {
		method = usecase.MethodWallet
	}
	if method != usecase.MethodWallet && method != usecase.MethodGateway {
		writeError(w, http.StatusBadRequest, "method must be wallet or gateway")
		return
	}
	if !h.ownsListing(w, r, listingID, userID) {
		return
	}

	result, err := h.payments.Submit(r.Context(), userID, listingID, req.PlanID, method)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := submitListingResponse{
		Status:      string(result.Status),
		Reference:   result.Reference,
		RedirectURL: result.RedirectURL,
		Shortfall:   result.Shortfall,
	}
	if result.Listing != nil {
		resp.Listing = listingResponse(result.Listing)
	}
	if result.Session != nil {
		resp.Session = sessionToPayload(result.Session)
	}
	status := http.StatusOK
	if result.Status == usecase.SubmissionPaymentRequired {
		status = http.StatusPaymentRequired
	}
	writeJSON(w, status, resp)
}

func (h *handlers) getListing(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	listingID := chi.URLParam(r, "id")
	listing, err := h.listings.Get(r.Context(), listingID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if listing.BusinessID != userID {
		writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	writeJSON(w, http.StatusOK, listingResponse(listing))
}

func (h *handlers) listListings(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	limit := queryInt(r, "limit", 50)
	items, err := h.listings.ListByBusiness(r.Context(), userID, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, l := range items {
		out = append(out, listingResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": out})
}

func (h *handlers) ownsListing(w http.ResponseWriter, r *http.Request, listingID, userID string) bool {
	listing, err := h.listings.Get(r.Context(), listingID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return false
	}
	if listing.BusinessID != userID {
		writeError(w, http.StatusNotFound, "listing not found")
		return false
	}
	return true
}

// ===== Wallet =====

func (h *handlers) walletBalance(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	balance, err := h.wallet.Balance(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "balance": balance})
}

type topUpRequest struct {
	Amount int64 `json:"amount"`
}

func (h *handlers) walletTopUp(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	session, err := h.payments.TopUp(r.Context(), userID, req.Amount)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionToPayload(session))
}

func (h *handlers) walletTransactions(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	limit := queryInt(r, "limit", 50)
	txs, err := h.wallet.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(txs))
	for _, t := range txs {
		out = append(out, map[string]any{
			"id":          t.ID,
			"amount":      t.Amount,
			"direction":   string(t.Direction),
			"status":      string(t.Status),
			"reference":   t.Reference,
			"description": t.Description,
			"created_at":  t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

// ===== Payments =====

func (h *handlers) getPaymentSession(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	reference := chi.URLParam(r, "reference")
	session, err := h.payments.GetSession(r.Context(), reference)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if session.UserID != userID {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sessionToPayload(session))
}

func (h *handlers) recheckPayment(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	reference := chi.URLParam(r, "reference")
	r = r.WithContext(logging.WithReference(r.Context(), reference))

	session, err := h.payments.GetSession(r.Context(), reference)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if session.UserID != userID {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	session, err = h.payments.Recheck(r.Context(), reference)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "payment provider unreachable, try again shortly")
			return
		}
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToPayload(session))
}

func (h *handlers) abandonPayment(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	reference := chi.URLParam(r, "reference")

	session, err := h.payments.GetSession(r.Context(), reference)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if session.UserID != userID {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	h.payments.Abandon(r.Context(), reference)
	writeJSON(w, http.StatusOK, map[string]any{"reference": reference, "abandoned": true})
}

// gatewayCallback handles the browser redirect after checkout. The redirect
// is a hint, not proof of payment: it only triggers a verify against the
// provider, and the poller outcome path applies the same transition if the
// verify here loses a race with it.
func (h *handlers) gatewayCallback(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		reference = r.URL.Query().Get("trxref") // paystack sends both
	}
	if reference == "" {
		writeError(w, http.StatusBadRequest, "missing reference")
		return
	}

	session, err := h.payments.Recheck(r.Context(), reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown payment reference")
			return
		}
		h.logger.Warn().Err(err).Str("reference", reference).Msg("callback recheck failed")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "<html><body><h3>We are confirming your payment.</h3><p>Your listing will go live as soon as the payment settles.</p></body></html>")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	switch session.Status {
	case model.SessionStatusConfirmed:
		fmt.Fprint(w, "<html><body><h3>Payment confirmed.</h3><p>You can close this window.</p></body></html>")
	case model.SessionStatusFailed:
		fmt.Fprint(w, "<html><body><h3>Payment failed.</h3><p>You were not charged. Please try again.</p></body></html>")
	default:
		fmt.Fprint(w, "<html><body><h3>We are confirming your payment.</h3><p>Your listing will go live as soon as the payment settles.</p></body></html>")
	}
}

// ===== Shared helpers =====

type sessionPayload struct {
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Purpose     string `json:"purpose"`
	ListingID   string `json:"listing_id,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Attempts    int    `json:"attempts"`
}

func sessionToPayload(s *model.PaymentSession) *sessionPayload {
	return &sessionPayload{
		Reference:   s.Reference,
		Status:      string(s.Status),
		Amount:      s.Amount,
		Currency:    s.Currency,
		Purpose:     string(s.Purpose),
		ListingID:   s.ListingID,
		RedirectURL: s.RedirectURL,
		Attempts:    s.Attempts,
	}
}

func listingResponse(l *model.Listing) map[string]any {
	return map[string]any{
		"id":       l.ID,
		"category": l.Category,
		"plan_id":  l.PlanID,
		"payload":  l.Payload,
		"is_draft": l.IsDraft,
		"status":   string(l.Status),
	}
}

func (h *handlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnknownPlan):
		writeError(w, http.StatusBadRequest, "unknown plan")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, "insufficient wallet balance")
	case errors.Is(err, domain.ErrAlreadyFinalized):
		writeError(w, http.StatusConflict, "listing can no longer be activated")
	case errors.Is(err, domain.ErrGatewayUnavailable):
		writeError(w, http.StatusServiceUnavailable, "payment provider unreachable")
	default:
		l := logging.With(r.Context(), &h.logger)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
