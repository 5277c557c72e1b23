package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PremiumPlan describes a purchasable premium tier
type PremiumPlan struct {
	ID         string
	MonthlyFee decimal.Decimal
	Currency   string
	// Periodic plans get an end date one billing period out and may auto-renew;
	// non-periodic plans stay open-ended until cancelled.
	Periodic bool
}

// PremiumAnalytics aggregates premium activity over a date range
type PremiumAnalytics struct {
	From                 time.Time
	To                   time.Time
	ActiveCount          int64
	SubscriptionsStarted int64
	TotalRevenue         decimal.Decimal
	AverageFee           decimal.Decimal
}
