package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PaystackGateway)(nil)

// PaystackGateway implements adapter.PaymentGateway against the Paystack
// transaction API: initialize to create a payment and verify to query the
// authoritative status by reference. On this platform user ids are the
// customer's email, which Paystack requires at initialization.
//
// Transport failures and provider 5xx map to domain.ErrGatewayUnavailable so
// callers keep treating the payment as pending; an unknown reference maps to
// domain.ErrSessionNotFound, which is final.
type PaystackGateway struct {
	secretKey string
	baseURL   string
	callback  string
	client    *http.Client
}

func NewPaystackGateway(secretKey, baseURL, callbackURL string) (*PaystackGateway, error) {
	if secretKey == "" {
		return nil, errors.New("paystack secret key empty")
	}
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	if _, err := url.Parse(callbackURL); err != nil {
		return nil, fmt.Errorf("invalid callback url: %w", err)
	}
	return &PaystackGateway{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		callback:  callbackURL,
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *PaystackGateway) Name() string { return "paystack" }

func (g *PaystackGateway) Initiate(ctx context.Context, userID string, amount int64, description string) (adapter.Initiation, error) {
	// We mint the reference ourselves so it is unique per initiation and
	// never reused across submissions, even for identical amounts.
	reference := "mp_" + uuid.NewString()

	payload := map[string]any{
		"email":        userID,
		"amount":       amount,
		"reference":    reference,
		"callback_url": g.callback,
		"metadata":     map[string]any{"description": description},
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transaction/initialize", strings.NewReader(string(b)))
	if err != nil {
		return adapter.Initiation{}, err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return adapter.Initiation{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return adapter.Initiation{}, fmt.Errorf("%w: initialize returned %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return adapter.Initiation{}, fmt.Errorf("%w: decode initialize: %v", domain.ErrGatewayUnavailable, err)
	}
	if !out.Status || out.Data.AuthorizationURL == "" {
		return adapter.Initiation{}, fmt.Errorf("paystack initialize failed: %s", out.Message)
	}
	if out.Data.Reference != "" {
		reference = out.Data.Reference
	}
	return adapter.Initiation{Reference: reference, RedirectURL: out.Data.AuthorizationURL}, nil
}

func (g *PaystackGateway) QueryStatus(ctx context.Context, reference string) (adapter.GatewayStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return adapter.GatewayStatusNotFound, domain.ErrSessionNotFound
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: verify returned %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode verify: %v", domain.ErrGatewayUnavailable, err)
	}
	if !out.Status {
		if strings.Contains(strings.ToLower(out.Message), "not found") {
			return adapter.GatewayStatusNotFound, domain.ErrSessionNotFound
		}
		return "", fmt.Errorf("%w: %s", domain.ErrGatewayUnavailable, out.Message)
	}

	// The upstream contract mixes response shapes between endpoints; only the
	// transaction status string is authoritative here.
	switch strings.ToLower(out.Data.Status) {
	case "success":
		return adapter.GatewayStatusConfirmed, nil
	case "failed", "reversed":
		return adapter.GatewayStatusFailed, nil
	default: // pending, ongoing, queued, abandoned: the user may yet pay
		return adapter.GatewayStatusPending, nil
	}
}
