package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/marketbase/premium-service/internal/domain/ports"
	"github.com/marketbase/premium-service/pkg/timeutil"
)

// WebhookNotifier delivers premium lifecycle events to the marketplace's
// notification endpoint. Delivery is asynchronous and best-effort: the caller
// returns immediately and failures are only logged. Billing state never
// depends on a notification landing.
type WebhookNotifier struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

type eventEnvelope struct {
	SellerID   string                 `json:"seller_id"`
	Kind       string                 `json:"kind"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(endpoint string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Notify sends the event in the background. The delivery uses its own context
// so an already-finished request context doesn't cancel it.
func (n *WebhookNotifier) Notify(_ context.Context, sellerID string, kind ports.EventKind, payload map[string]interface{}) {
	envelope := eventEnvelope{
		SellerID:   sellerID,
		Kind:       string(kind),
		Payload:    payload,
		OccurredAt: timeutil.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
		defer cancel()

		body, err := json.Marshal(envelope)
		if err != nil {
			n.logger.Error("failed to marshal notification",
				zap.String("seller_id", sellerID),
				zap.String("kind", string(kind)),
				zap.Error(err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
		if err != nil {
			n.logger.Error("failed to build notification request",
				zap.String("seller_id", sellerID),
				zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			n.logger.Warn("notification delivery failed",
				zap.String("seller_id", sellerID),
				zap.String("kind", string(kind)),
				zap.Error(err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			n.logger.Warn("notification endpoint rejected event",
				zap.String("seller_id", sellerID),
				zap.String("kind", string(kind)),
				zap.Int("status", resp.StatusCode))
			return
		}

		n.logger.Debug("notification delivered",
			zap.String("seller_id", sellerID),
			zap.String("kind", string(kind)))
	}()
}

// NopNotifier discards all events. Used when no notification endpoint is configured.
type NopNotifier struct{}

// Notify implements ports.Notifier
func (NopNotifier) Notify(context.Context, string, ports.EventKind, map[string]interface{}) {}
