package premium

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/marketbase/premium-service/internal/domain"
	"github.com/marketbase/premium-service/internal/domain/models"
	svcports "github.com/marketbase/premium-service/internal/services/ports"
	"github.com/marketbase/premium-service/pkg/timeutil"
)

// Handler exposes the premium subscription API: seller purchase flow, the
// payment gateway callback, and the operator admin surface.
type Handler struct {
	lifecycle svcports.LifecycleService
	admin     svcports.PremiumAdminService
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewHandler creates a new premium API handler
func NewHandler(lc svcports.LifecycleService, admin svcports.PremiumAdminService, logger *zap.Logger) *Handler {
	return &Handler{
		lifecycle: lc,
		admin:     admin,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Routes registers the handler's routes on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Post("/premium/purchase", h.InitiatePurchase)
	r.Post("/payments/callback", h.PaymentCallback)

	r.Post("/admin/premium/assign", h.AssignPremium)
	r.Post("/admin/premium/remove", h.RemovePremium)
	r.Get("/admin/premium/sellers", h.ListPremiumSellers)
	r.Get("/admin/premium/analytics", h.Analytics)

	r.Get("/admin/subscriptions/{id}", h.GetSubscription)
	r.Post("/admin/subscriptions/{id}/cancel", h.CancelSubscription)
	r.Post("/admin/subscriptions/{id}/auto-renew", h.SetAutoRenewal)
	r.Get("/admin/subscriptions/{id}/refund-quote", h.RefundQuote)

	r.Get("/admin/sellers/{id}/subscriptions", h.SubscriptionHistory)
}

type purchaseRequest struct {
	SellerID string `json:"seller_id" validate:"required"`
	PlanID   string `json:"plan_id" validate:"required"`
}

// InitiatePurchase starts a premium purchase and returns the payment handle
// the client completes with the gateway.
func (h *Handler) InitiatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !h.decode(w, r, &req) {
		return
	}

	handle, err := h.lifecycle.InitiatePurchase(r.Context(), req.SellerID, req.PlanID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"payment_id": handle.PaymentID,
		"seller_id":  handle.SellerID,
		"plan_id":    handle.PlanID,
		"amount":     handle.Amount.StringFixed(2),
		"currency":   handle.Currency,
	})
}

type callbackRequest struct {
	PaymentID     string `json:"payment_id" validate:"required,uuid4"`
	Success       bool   `json:"success"`
	ProviderTxnID string `json:"provider_txn_id"`
	ErrorMessage  string `json:"error_message"`
}

// PaymentCallback settles a payment from the gateway's asynchronous callback.
// Replays are safe; the confirmation is idempotent.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.lifecycle.ConfirmPayment(r.Context(), req.PaymentID, req.Success, req.ProviderTxnID, req.ErrorMessage)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"payment_id":        result.PaymentID,
		"status":            string(result.Status),
		"subscription_id":   result.SubscriptionID,
		"already_processed": result.AlreadyProcessed,
	})
}

type assignRequest struct {
	SellerID   string  `json:"seller_id" validate:"required"`
	AdminID    string  `json:"admin_id" validate:"required"`
	Expiration *string `json:"expiration"`
}

// AssignPremium grants complimentary premium to a seller
func (h *Handler) AssignPremium(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !h.decode(w, r, &req) {
		return
	}

	var expiration *time.Time
	if req.Expiration != nil {
		parsed, err := time.Parse(time.RFC3339, *req.Expiration)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, string(domain.ErrorCodeValidationFailed), "expiration must be RFC3339")
			return
		}
		expiration = &parsed
	}

	sub, err := h.admin.AssignPremiumStatus(r.Context(), req.SellerID, req.AdminID, expiration)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, subscriptionView(sub))
}

type removeRequest struct {
	SellerID string `json:"seller_id" validate:"required"`
	AdminID  string `json:"admin_id" validate:"required"`
	Reason   string `json:"reason" validate:"required"`
}

// RemovePremium revokes a seller's premium without a refund
func (h *Handler) RemovePremium(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.admin.RemovePremiumStatus(r.Context(), req.SellerID, req.AdminID, req.Reason); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"removed": true})
}

// ListPremiumSellers pages through sellers currently flagged premium
func (h *Handler) ListPremiumSellers(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	profiles, err := h.admin.ListPremiumSellers(r.Context(), page, pageSize)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(profiles))
	for _, p := range profiles {
		item := map[string]interface{}{
			"seller_id":          p.SellerID,
			"category_id":        p.CategoryID,
			"is_premium":         p.IsPremium,
			"has_verified_badge": p.HasVerifiedBadge,
		}
		if p.PremiumSince != nil {
			item["premium_since"] = p.PremiumSince.Format(time.RFC3339)
		}
		items = append(items, item)
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sellers":   items,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetSubscription returns a subscription by id
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.admin.GetSubscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, subscriptionView(sub))
}

// CancelSubscription cancels a subscription. The refund policy decides the
// refunded amount; the response carries the granted percentage and amount.
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	quote, err := h.lifecycle.CancelWithRefund(r.Context(), chi.URLParam(r, "id"), timeutil.Now())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscription_id":   quote.SubscriptionID,
		"refund_percentage": quote.Percentage,
		"refund_amount":     quote.Amount.StringFixed(2),
		"cancelled_at":      quote.AsOf.Format(time.RFC3339),
	})
}

type autoRenewRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// SetAutoRenewal enables or disables auto-renewal on a subscription
func (h *Handler) SetAutoRenewal(w http.ResponseWriter, r *http.Request) {
	var req autoRenewRequest
	if !h.decode(w, r, &req) {
		return
	}

	subscriptionID := chi.URLParam(r, "id")
	var err error
	if *req.Enabled {
		err = h.lifecycle.EnableAutoRenewal(r.Context(), subscriptionID)
	} else {
		err = h.lifecycle.CancelAutoRenewal(r.Context(), subscriptionID)
	}
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscription_id": subscriptionID,
		"auto_renewing":   *req.Enabled,
	})
}

// RefundQuote returns the refund a cancellation would grant right now
func (h *Handler) RefundQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.lifecycle.GetRefundEligibility(r.Context(), chi.URLParam(r, "id"), timeutil.Now())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscription_id":   quote.SubscriptionID,
		"refund_percentage": quote.Percentage,
		"refund_amount":     quote.Amount.StringFixed(2),
		"as_of":             quote.AsOf.Format(time.RFC3339),
	})
}

// SubscriptionHistory returns a seller's subscriptions, newest first
func (h *Handler) SubscriptionHistory(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	subs, err := h.admin.SubscriptionHistory(r.Context(), chi.URLParam(r, "id"), page, pageSize)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(subs))
	for _, sub := range subs {
		items = append(items, subscriptionView(sub))
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscriptions": items,
		"page":          page,
		"page_size":     pageSize,
	})
}

// Analytics aggregates premium counts and revenue over a date range
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, string(domain.ErrorCodeValidationFailed), "from must be RFC3339")
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, string(domain.ErrorCodeValidationFailed), "to must be RFC3339")
		return
	}

	// Widen the range to whole days so callers get stable buckets regardless
	// of the time-of-day they pass.
	stats, err := h.admin.Analytics(r.Context(), timeutil.StartOfDay(from), timeutil.EndOfDay(to))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"from":                  stats.From.Format(time.RFC3339),
		"to":                    stats.To.Format(time.RFC3339),
		"active_count":          stats.ActiveCount,
		"subscriptions_started": stats.SubscriptionsStarted,
		"total_revenue":         stats.TotalRevenue.StringFixed(2),
		"average_fee":           stats.AverageFee.StringFixed(2),
	})
}

func subscriptionView(sub *models.Subscription) map[string]interface{} {
	view := map[string]interface{}{
		"id":            sub.ID,
		"seller_id":     sub.SellerID,
		"plan_id":       sub.PlanID,
		"monthly_fee":   sub.MonthlyFee.StringFixed(2),
		"currency":      sub.Currency,
		"start_date":    sub.StartDate.Format(time.RFC3339),
		"is_active":     sub.IsActive,
		"auto_renewing": sub.IsAutoRenewing,
		"created_at":    sub.CreatedAt.Format(time.RFC3339),
	}
	if sub.EndDate != nil {
		view["end_date"] = sub.EndDate.Format(time.RFC3339)
	}
	if sub.PaymentID != nil {
		view["payment_id"] = *sub.PaymentID
	}
	if sub.GrantedByAdminID != nil {
		view["granted_by_admin_id"] = *sub.GrantedByAdminID
	}
	return view
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

// decode parses and validates a JSON body, replying 400 on failure
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, string(domain.ErrorCodeValidationFailed), "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, string(domain.ErrorCodeValidationFailed), err.Error())
		return false
	}
	return true
}

// respondDomainError maps a DomainError code to an HTTP status. Provider
// internals never surface verbatim; clients get the code plus a safe message.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	code := domain.GetErrorCode(err)

	var status int
	switch code {
	case domain.ErrorCodeValidationFailed:
		status = http.StatusBadRequest
	case domain.ErrorCodeSubscriptionNotFound, domain.ErrorCodePaymentNotFound, domain.ErrorCodeSellerNotFound:
		status = http.StatusNotFound
	case domain.ErrorCodeAlreadyActive, domain.ErrorCodeSubscriptionNotActive,
		domain.ErrorCodePaymentInvalidState, domain.ErrorCodeVersionConflict:
		status = http.StatusConflict
	case domain.ErrorCodeRefundFailed:
		status = http.StatusPaymentRequired
	case domain.ErrorCodeProviderUnavailable:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	message := "internal server error"
	var domainErr *domain.DomainError
	if status != http.StatusInternalServerError && errors.As(err, &domainErr) {
		message = domainErr.Message
	} else if status == http.StatusInternalServerError {
		h.logger.Error("unhandled error in premium handler", zap.Error(err))
		code = domain.ErrorCodeInternalError
	}

	h.respondError(w, status, string(code), message)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
