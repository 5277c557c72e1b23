package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBillingPeriod is the interval a periodic subscription runs before renewal
const DefaultBillingPeriod = "monthly"

// Subscription represents a seller's premium subscription.
// Rows are never deleted; closed subscriptions stay for history and audit.
type Subscription struct {
	ID               string
	SellerID         string
	PlanID           string
	MonthlyFee       decimal.Decimal
	Currency         string
	StartDate        time.Time
	EndDate          *time.Time
	IsActive         bool
	IsAutoRenewing   bool
	PaymentID        *string
	GrantedByAdminID *string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsCurrent reports whether the subscription is active and not past its end date
func (s *Subscription) IsCurrent(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	return s.EndDate == nil || s.EndDate.After(now)
}

// IsDueForExpiry reports whether the subscription's end date has passed
func (s *Subscription) IsDueForExpiry(now time.Time) bool {
	return s.IsActive && s.EndDate != nil && !s.EndDate.After(now)
}

// NextPeriodEnd returns the end of the billing period starting at from.
// The default billing period is one calendar month.
func NextPeriodEnd(from time.Time) time.Time {
	return from.AddDate(0, 1, 0)
}
