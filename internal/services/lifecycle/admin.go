package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketbase/premium-service/internal/domain"
	"github.com/marketbase/premium-service/internal/domain/models"
	"github.com/marketbase/premium-service/internal/domain/ports"
)

// ComplimentaryPlanID marks subscriptions granted by an operator without a payment
const ComplimentaryPlanID = "complimentary"

// GrantComplimentary creates a subscription for a seller without a payment.
// The grant goes through the same invariants as a purchase: at most one
// active subscription per seller. The granting admin is recorded for audit.
func (s *Service) GrantComplimentary(ctx context.Context, sellerID, adminID string, expiration *time.Time) (*models.Subscription, error) {
	s.locks.Lock("seller:" + sellerID)
	defer s.locks.Unlock("seller:" + sellerID)

	now := s.now()

	existing, err := s.subs.GetActiveBySeller(ctx, nil, sellerID)
	if err == nil && existing.IsCurrent(now) {
		return nil, domain.NewDomainError(domain.ErrorCodeAlreadyActive, "seller already has an active premium subscription").
			WithDetail("seller_id", sellerID).
			WithDetail("subscription_id", existing.ID)
	}
	if err != nil && !domain.IsDomainError(err, domain.ErrorCodeSubscriptionNotFound) {
		return nil, err
	}

	sub := &models.Subscription{
		ID:               uuid.New().String(),
		SellerID:         sellerID,
		PlanID:           ComplimentaryPlanID,
		MonthlyFee:       decimal.Zero,
		Currency:         "USD",
		StartDate:        now,
		EndDate:          expiration,
		IsActive:         true,
		IsAutoRenewing:   false,
		GrantedByAdminID: &adminID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.subs.Create(ctx, tx, sub); err != nil {
			return err
		}
		return s.recomputePremiumProjection(ctx, tx, sellerID, now)
	})
	if err != nil {
		s.logger.Error("complimentary grant failed",
			zap.String("seller_id", sellerID),
			zap.String("admin_id", adminID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("premium granted by admin",
		zap.String("seller_id", sellerID),
		zap.String("admin_id", adminID),
		zap.String("subscription_id", sub.ID))

	s.notifier.Notify(ctx, sellerID, ports.EventPremiumActivated, map[string]interface{}{
		"subscription_id": sub.ID,
		"granted_by":      adminID,
	})

	return sub, nil
}

// Revoke deactivates a seller's active subscription without any refund
// computation. Administrative revocation; the reason is logged, not policy-computed.
func (s *Service) Revoke(ctx context.Context, sellerID, adminID, reason string) error {
	sub, err := s.subs.GetActiveBySeller(ctx, nil, sellerID)
	if err != nil {
		return err
	}

	s.locks.Lock("sub:" + sub.ID)
	defer s.locks.Unlock("sub:" + sub.ID)

	now := s.now()
	sid, err := uuid.Parse(sub.ID)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInternalError, "invalid subscription id", err)
	}

	err = s.retryConflict(func() error {
		return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			fresh, err := s.subs.GetByID(ctx, tx, sid)
			if err != nil {
				return err
			}
			if !fresh.IsActive {
				return nil
			}
			end := now
			fresh.IsActive = false
			fresh.IsAutoRenewing = false
			fresh.EndDate = &end
			fresh.UpdatedAt = now
			if err := s.subs.Update(ctx, tx, fresh); err != nil {
				return err
			}
			return s.recomputePremiumProjection(ctx, tx, sellerID, now)
		})
	})
	if err != nil {
		s.logger.Error("admin revoke failed",
			zap.String("seller_id", sellerID),
			zap.String("admin_id", adminID),
			zap.Error(err))
		return err
	}

	s.logger.Info("premium revoked by admin",
		zap.String("seller_id", sellerID),
		zap.String("admin_id", adminID),
		zap.String("subscription_id", sub.ID),
		zap.String("reason", reason))

	s.notifier.Notify(ctx, sellerID, ports.EventPremiumRevoked, map[string]interface{}{
		"subscription_id": sub.ID,
		"reason":          reason,
	})

	return nil
}
