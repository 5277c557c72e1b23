package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// ProviderPaymentStatus is the provider-side view of a payment
type ProviderPaymentStatus string

const (
	ProviderStatusPending   ProviderPaymentStatus = "pending"
	ProviderStatusCompleted ProviderPaymentStatus = "completed"
	ProviderStatusFailed    ProviderPaymentStatus = "failed"
)

// CaptureRequest asks the provider to charge a seller for a premium period
type CaptureRequest struct {
	Reference string // our payment id, doubles as the provider idempotency key
	SellerID  string
	Amount    decimal.Decimal
	Currency  string
}

// CaptureResult is the provider's answer to a capture attempt
type CaptureResult struct {
	Approved      bool
	ProviderTxnID string
	ErrorMessage  string
}

// RefundResult is the provider's answer to a refund attempt
type RefundResult struct {
	Approved     bool
	ErrorMessage string
}

// StatusResult is the provider's current view of a payment, looked up by our
// reference. ProviderTxnID is empty while the provider still reports pending.
type StatusResult struct {
	Status        ProviderPaymentStatus
	ProviderTxnID string
	ErrorMessage  string
}

// PaymentProvider is the external payment gateway boundary.
//
// A non-nil error means the outcome is UNKNOWN (transport failure, timeout,
// open circuit) and the call is safe to retry. A declined capture or refund
// comes back as a nil error with Approved=false.
type PaymentProvider interface {
	Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
	Refund(ctx context.Context, providerTxnID string, amount decimal.Decimal, currency string) (*RefundResult, error)
	QueryStatus(ctx context.Context, reference string) (*StatusResult, error)
}
