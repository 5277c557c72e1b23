package paygate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/marketbase/premium-service/internal/domain/ports"
	"github.com/marketbase/premium-service/internal/metrics"
)

// Provider talks to the payment gateway over HTTP. Calls are rate limited and
// wrapped in a circuit breaker; an open circuit or transport failure surfaces
// as a non-nil error, which callers treat as an unknown outcome.
type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*gatewayResponse]
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Config holds gateway connection settings
type Config struct {
	BaseURL          string
	APIKey           string
	RequestTimeout   time.Duration
	RequestsPerSec   float64
	Burst            int
	FailureThreshold uint32
	BreakerCooldown  time.Duration
}

type captureBody struct {
	Reference string `json:"reference"`
	SellerID  string `json:"seller_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

type refundBody struct {
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

type gatewayResponse struct {
	Approved      bool   `json:"approved"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	ErrorMessage  string `json:"error_message"`
}

// NewProvider creates a new gateway client
func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("payment gateway circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Provider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		breaker: gobreaker.NewCircuitBreaker[*gatewayResponse](settings),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		logger:  logger,
	}
}

// Capture charges a seller for a premium period. The reference is our payment
// id and is sent as the idempotency key, so a retried capture never double-charges.
func (p *Provider) Capture(ctx context.Context, req ports.CaptureRequest) (*ports.CaptureResult, error) {
	body := captureBody{
		Reference: req.Reference,
		SellerID:  req.SellerID,
		Amount:    req.Amount.StringFixed(2),
		Currency:  req.Currency,
	}

	resp, err := p.call(ctx, http.MethodPost, "/v1/charges", req.Reference, body)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("capture", "error").Inc()
		return nil, fmt.Errorf("gateway capture: %w", err)
	}

	outcome := "declined"
	if resp.Approved {
		outcome = "approved"
	}
	metrics.ProviderRequests.WithLabelValues("capture", outcome).Inc()

	return &ports.CaptureResult{
		Approved:      resp.Approved,
		ProviderTxnID: resp.TransactionID,
		ErrorMessage:  resp.ErrorMessage,
	}, nil
}

// Refund returns money against a previously captured transaction
func (p *Provider) Refund(ctx context.Context, providerTxnID string, amount decimal.Decimal, currency string) (*ports.RefundResult, error) {
	body := refundBody{
		TransactionID: providerTxnID,
		Amount:        amount.StringFixed(2),
		Currency:      currency,
	}

	resp, err := p.call(ctx, http.MethodPost, "/v1/refunds", providerTxnID, body)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("refund", "error").Inc()
		return nil, fmt.Errorf("gateway refund: %w", err)
	}

	outcome := "declined"
	if resp.Approved {
		outcome = "approved"
	}
	metrics.ProviderRequests.WithLabelValues("refund", outcome).Inc()

	return &ports.RefundResult{
		Approved:     resp.Approved,
		ErrorMessage: resp.ErrorMessage,
	}, nil
}

// QueryStatus looks up a payment by our reference
func (p *Provider) QueryStatus(ctx context.Context, reference string) (*ports.StatusResult, error) {
	resp, err := p.call(ctx, http.MethodGet, "/v1/charges/"+reference, "", nil)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("status", "error").Inc()
		return nil, fmt.Errorf("gateway status query: %w", err)
	}
	metrics.ProviderRequests.WithLabelValues("status", "ok").Inc()

	status := ports.ProviderPaymentStatus(resp.Status)
	switch status {
	case ports.ProviderStatusPending, ports.ProviderStatusCompleted, ports.ProviderStatusFailed:
	default:
		return nil, fmt.Errorf("gateway status query: unrecognized status %q", resp.Status)
	}

	return &ports.StatusResult{
		Status:        status,
		ProviderTxnID: resp.TransactionID,
		ErrorMessage:  resp.ErrorMessage,
	}, nil
}

// call runs one gateway request through the rate limiter and circuit breaker.
// Gateway 5xx responses count as breaker failures; a 4xx decline is a valid
// answer and passes through.
func (p *Provider) call(ctx context.Context, method, path, idempotencyKey string, body interface{}) (*gatewayResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	return p.breaker.Execute(func() (*gatewayResponse, error) {
		var reqBody io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("gateway request: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("gateway returned %d", resp.StatusCode)
		}

		var decoded gatewayResponse
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}

		return &decoded, nil
	})
}
