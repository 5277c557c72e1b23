package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marketbase/premium-service/internal/domain/models"
)

// SubscriptionRepository persists premium subscriptions.
// Updates are versioned: an Update whose in-memory Version no longer matches
// the row returns domain.ErrVersionConflict and must be retried by the caller.
type SubscriptionRepository interface {
	Create(ctx context.Context, tx DBTX, sub *models.Subscription) error
	Update(ctx context.Context, tx DBTX, sub *models.Subscription) error
	GetByID(ctx context.Context, tx DBTX, id uuid.UUID) (*models.Subscription, error)

	// GetActiveBySeller returns the seller's subscription row with is_active=true,
	// or domain.ErrSubscriptionNotFound when the seller has none.
	GetActiveBySeller(ctx context.Context, tx DBTX, sellerID string) (*models.Subscription, error)

	ListBySeller(ctx context.Context, tx DBTX, sellerID string, page, pageSize int) ([]*models.Subscription, error)

	// ListActiveDueForExpiry returns active subscriptions whose end_date has passed
	ListActiveDueForExpiry(ctx context.Context, tx DBTX, now time.Time, limit int32) ([]*models.Subscription, error)

	// RevenueStats aggregates premium revenue over subscriptions started in [from, to)
	RevenueStats(ctx context.Context, tx DBTX, from, to time.Time) (*models.PremiumAnalytics, error)
}
