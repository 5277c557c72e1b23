package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Refund tier boundaries, measured as wall-clock time since the start of the
// current billing cycle. Boundary values fall into the more generous tier.
const (
	fullRefundWindow = 24 * time.Hour
	halfRefundWindow = 72 * time.Hour
)

var (
	hundred = decimal.NewFromInt(100)
	fifty   = decimal.NewFromInt(50)
)

// RefundQuote is the outcome of the refund policy for a cancellation instant
type RefundQuote struct {
	Percentage int64
	Amount     decimal.Decimal
	Elapsed    time.Duration
}

// ComputeRefund maps elapsed subscription time to a refund percentage and
// amount. It is total: negative elapsed time (clock skew between the store
// and the caller) clamps to zero and lands in the 100% tier.
func ComputeRefund(subscriptionStart, now time.Time, monthlyFee decimal.Decimal) RefundQuote {
	elapsed := now.Sub(subscriptionStart)
	if elapsed < 0 {
		elapsed = 0
	}

	var pct decimal.Decimal
	switch {
	case elapsed <= fullRefundWindow:
		pct = hundred
	case elapsed <= halfRefundWindow:
		pct = fifty
	default:
		pct = decimal.Zero
	}

	// Standard half-up rounding to the currency minor unit, not banker's rounding.
	amount := monthlyFee.Mul(pct).Div(hundred).Round(2)

	return RefundQuote{
		Percentage: pct.IntPart(),
		Amount:     amount,
		Elapsed:    elapsed,
	}
}
