package premium

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketbase/premium-service/internal/domain"
	"github.com/marketbase/premium-service/internal/domain/models"
	"github.com/marketbase/premium-service/internal/domain/ports"
	"github.com/marketbase/premium-service/internal/services/lifecycle"
)

// Service implements svcports.PremiumAdminService. Administrative shortcuts
// layer on the lifecycle manager so manual grants and revocations obey the
// same state invariants as paid subscriptions.
type Service struct {
	lifecycle *lifecycle.Service
	subs      ports.SubscriptionRepository
	sellers   ports.SellerProfileRepository
	logger    *zap.Logger
}

// NewService creates a new premium administration service
func NewService(
	lc *lifecycle.Service,
	subs ports.SubscriptionRepository,
	sellers ports.SellerProfileRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		lifecycle: lc,
		subs:      subs,
		sellers:   sellers,
		logger:    logger,
	}
}

// AssignPremiumStatus grants premium to a seller without a payment
func (s *Service) AssignPremiumStatus(ctx context.Context, sellerID, adminID string, expiration *time.Time) (*models.Subscription, error) {
	return s.lifecycle.GrantComplimentary(ctx, sellerID, adminID, expiration)
}

// RemovePremiumStatus revokes a seller's premium without refund computation
func (s *Service) RemovePremiumStatus(ctx context.Context, sellerID, adminID, reason string) error {
	return s.lifecycle.Revoke(ctx, sellerID, adminID, reason)
}

// GetSubscription retrieves a subscription by id
func (s *Service) GetSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	sid, err := uuid.Parse(subscriptionID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid subscription id", err)
	}
	return s.subs.GetByID(ctx, nil, sid)
}

// ListPremiumSellers pages through sellers currently flagged premium
func (s *Service) ListPremiumSellers(ctx context.Context, page, pageSize int) ([]*models.SellerPremiumProfile, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return s.sellers.ListPremiumSellers(ctx, nil, page, pageSize)
}

// SubscriptionHistory pages through a seller's subscriptions, newest first.
// Closed subscriptions are never deleted, so this is the full audit trail.
func (s *Service) SubscriptionHistory(ctx context.Context, sellerID string, page, pageSize int) ([]*models.Subscription, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return s.subs.ListBySeller(ctx, nil, sellerID, page, pageSize)
}

// Analytics aggregates premium counts, revenue and average fee over a range
func (s *Service) Analytics(ctx context.Context, from, to time.Time) (*models.PremiumAnalytics, error) {
	if !to.After(from) {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "analytics range must end after it starts")
	}
	stats, err := s.subs.RevenueStats(ctx, nil, from, to)
	if err != nil {
		s.logger.Error("premium analytics query failed",
			zap.Time("from", from),
			zap.Time("to", to),
			zap.Error(err))
		return nil, err
	}
	return stats, nil
}
