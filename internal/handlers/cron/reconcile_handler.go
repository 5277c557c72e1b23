package cron

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/marketbase/premium-service/internal/worker"
)

const headerCronSecret = "X-Cron-Secret"

// ReconcileHandler triggers reconciliation sweeps on demand, outside the
// worker's regular schedule. Called by an external scheduler or an operator.
type ReconcileHandler struct {
	reconciler *worker.Reconciler
	logger     *zap.Logger
	cronSecret string
}

// NewReconcileHandler creates a new reconciliation cron handler
func NewReconcileHandler(reconciler *worker.Reconciler, cronSecret string, logger *zap.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		reconciler: reconciler,
		logger:     logger,
		cronSecret: cronSecret,
	}
}

// ReconcileResponse reports the outcome of a manual sweep
type ReconcileResponse struct {
	Success           bool   `json:"success"`
	PaymentsProcessed int    `json:"payments_processed"`
	PaymentsSettled   int    `json:"payments_settled"`
	PaymentsFailed    int    `json:"payments_failed"`
	ExpiriesProcessed int    `json:"expiries_processed"`
	ExpiriesFailed    int    `json:"expiries_failed"`
	Renewed           int    `json:"renewed"`
	ProcessedAt       string `json:"processed_at"`
}

// Reconcile handles POST /cron/reconcile
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("manual reconciliation sweep triggered",
		zap.String("remote_addr", r.RemoteAddr))

	if !h.authenticate(r) {
		h.logger.Warn("unauthorized cron request", zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	result := h.reconciler.RunSweep(r.Context())

	resp := ReconcileResponse{
		Success:           result.PaymentsFailed == 0 && result.ExpiriesFailed == 0,
		PaymentsProcessed: result.PaymentsProcessed,
		PaymentsSettled:   result.PaymentsSettled,
		PaymentsFailed:    result.PaymentsFailed,
		ExpiriesProcessed: result.ExpiriesProcessed,
		ExpiriesFailed:    result.ExpiriesFailed,
		Renewed:           result.Renewed,
		ProcessedAt:       time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode reconcile response", zap.Error(err))
	}
}

// Health handles GET /cron/health
func (h *ReconcileHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *ReconcileHandler) authenticate(r *http.Request) bool {
	provided := r.Header.Get(headerCronSecret)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.cronSecret)) == 1
}
