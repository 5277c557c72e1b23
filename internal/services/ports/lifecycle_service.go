package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketbase/premium-service/internal/domain/models"
)

// PurchaseHandle is returned from InitiatePurchase for the caller to hand to
// the external payment provider flow. No subscription exists yet at this point.
type PurchaseHandle struct {
	PaymentID string
	SellerID  string
	PlanID    string
	Amount    decimal.Decimal
	Currency  string
}

// ConfirmPaymentResult reports the settled state of a payment confirmation.
// AlreadyProcessed is true when the payment was terminal before the call and
// no side effects ran (idempotent replay).
type ConfirmPaymentResult struct {
	PaymentID        string
	Status           models.PaymentStatus
	SubscriptionID   string
	AlreadyProcessed bool
}

// RefundEligibility is a refund quote for a subscription at a given instant.
// CancelWithRefund and GetRefundEligibility share the same computation so the
// quoted and charged amounts never diverge.
type RefundEligibility struct {
	SubscriptionID string
	Percentage     int64
	Amount         decimal.Decimal
	AsOf           time.Time
}

// ExpiryOutcome reports what ExpireIfDue did with a due subscription
type ExpiryOutcome struct {
	SubscriptionID string
	Expired        bool
	Renewed        bool
	RenewalPayment string
}

// LifecycleService orchestrates the premium subscription state machine
type LifecycleService interface {
	InitiatePurchase(ctx context.Context, sellerID, planID string) (*PurchaseHandle, error)
	ConfirmPayment(ctx context.Context, paymentID string, success bool, providerTxnID, errorMessage string) (*ConfirmPaymentResult, error)
	CancelWithRefund(ctx context.Context, subscriptionID string, cancelTime time.Time) (*RefundEligibility, error)
	CancelAutoRenewal(ctx context.Context, subscriptionID string) error
	EnableAutoRenewal(ctx context.Context, subscriptionID string) error
	GetRefundEligibility(ctx context.Context, subscriptionID string, now time.Time) (*RefundEligibility, error)
	ExpireIfDue(ctx context.Context, subscriptionID string, now time.Time) (*ExpiryOutcome, error)
}

// PremiumAdminService is the operator-facing facade over the lifecycle manager
type PremiumAdminService interface {
	AssignPremiumStatus(ctx context.Context, sellerID, adminID string, expiration *time.Time) (*models.Subscription, error)
	RemovePremiumStatus(ctx context.Context, sellerID, adminID, reason string) error
	GetSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error)
	ListPremiumSellers(ctx context.Context, page, pageSize int) ([]*models.SellerPremiumProfile, error)
	SubscriptionHistory(ctx context.Context, sellerID string, page, pageSize int) ([]*models.Subscription, error)
	Analytics(ctx context.Context, from, to time.Time) (*models.PremiumAnalytics, error)
}
