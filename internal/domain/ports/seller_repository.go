package ports

import (
	"context"
	"time"

	"github.com/marketbase/premium-service/internal/domain/models"
)

// SellerProfileRepository is the boundary to the seller profile store.
// The premium flags are a derived projection; only the lifecycle service
// writes them, and only through these operations.
type SellerProfileRepository interface {
	GetPremiumProfile(ctx context.Context, tx DBTX, sellerID string) (*models.SellerPremiumProfile, error)
	SetPremiumFlags(ctx context.Context, tx DBTX, sellerID string, isPremium bool, premiumSince *time.Time) error
	SetVerifiedBadge(ctx context.Context, tx DBTX, sellerID string, verified bool) error

	GetApprovedCertificationCount(ctx context.Context, tx DBTX, sellerID, categoryID string) (int, error)
	GetCategoryConfig(ctx context.Context, tx DBTX, categoryID string) (*models.CategoryConfig, error)

	ListPremiumSellers(ctx context.Context, tx DBTX, page, pageSize int) ([]*models.SellerPremiumProfile, error)
}
