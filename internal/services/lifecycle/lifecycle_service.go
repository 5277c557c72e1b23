package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/marketbase/premium-service/internal/domain"
	"github.com/marketbase/premium-service/internal/domain/models"
	"github.com/marketbase/premium-service/internal/domain/ports"
	"github.com/marketbase/premium-service/internal/metrics"
	svcports "github.com/marketbase/premium-service/internal/services/ports"
	"github.com/marketbase/premium-service/pkg/timeutil"
)

// conflictRetries bounds how often a versioned update is retried after a
// concurrent writer bumped the row version.
const conflictRetries = 3

// Service implements svcports.LifecycleService.
//
// State-mutating operations serialize per subscription (or per payment for
// ConfirmPayment) through an in-process keyed mutex; versioned repository
// updates are the second line of defense against the reconciliation worker
// racing a live request. Provider round-trips never run inside a store
// transaction.
type Service struct {
	db           ports.DBPort
	subs         ports.SubscriptionRepository
	payments     ports.PaymentRepository
	sellers      ports.SellerProfileRepository
	provider     ports.PaymentProvider
	notifier     ports.Notifier
	plans        map[string]models.PremiumPlan
	providerName string
	locks        *keyedMutex
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates a new subscription lifecycle service
func NewService(
	db ports.DBPort,
	subs ports.SubscriptionRepository,
	payments ports.PaymentRepository,
	sellers ports.SellerProfileRepository,
	provider ports.PaymentProvider,
	notifier ports.Notifier,
	plans []models.PremiumPlan,
	providerName string,
	logger *zap.Logger,
) *Service {
	planIndex := make(map[string]models.PremiumPlan, len(plans))
	for _, p := range plans {
		planIndex[p.ID] = p
	}
	return &Service{
		db:           db,
		subs:         subs,
		payments:     payments,
		sellers:      sellers,
		provider:     provider,
		notifier:     notifier,
		plans:        planIndex,
		providerName: providerName,
		locks:        newKeyedMutex(),
		logger:       logger,
		now:          timeutil.Now,
	}
}

// InitiatePurchase starts a premium purchase for a seller. It creates a
// pending payment row and returns a handle for the provider flow; no
// subscription row exists until the payment is confirmed.
func (s *Service) InitiatePurchase(ctx context.Context, sellerID, planID string) (*svcports.PurchaseHandle, error) {
	s.locks.Lock("seller:" + sellerID)
	defer s.locks.Unlock("seller:" + sellerID)

	plan, ok := s.plans[planID]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "unknown premium plan").
			WithDetail("plan_id", planID)
	}

	now := s.now()

	existing, err := s.subs.GetActiveBySeller(ctx, nil, sellerID)
	if err == nil && existing.IsCurrent(now) {
		return nil, domain.NewDomainError(domain.ErrorCodeAlreadyActive, "seller already has an active premium subscription").
			WithDetail("seller_id", sellerID).
			WithDetail("subscription_id", existing.ID)
	}
	if err != nil && !domain.IsDomainError(err, domain.ErrorCodeSubscriptionNotFound) {
		return nil, fmt.Errorf("get active subscription: %w", err)
	}

	payment := &models.Payment{
		ID:        uuid.New().String(),
		SellerID:  sellerID,
		PlanID:    planID,
		Amount:    plan.MonthlyFee,
		Currency:  plan.Currency,
		Provider:  s.providerName,
		Status:    models.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.payments.Create(ctx, tx, payment)
	})
	if err != nil {
		s.logger.Error("initiate purchase failed",
			zap.String("seller_id", sellerID),
			zap.String("plan_id", planID),
			zap.Error(err))
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.logger.Info("premium purchase initiated",
		zap.String("seller_id", sellerID),
		zap.String("plan_id", planID),
		zap.String("payment_id", payment.ID),
		zap.String("amount", plan.MonthlyFee.String()))

	return &svcports.PurchaseHandle{
		PaymentID: payment.ID,
		SellerID:  sellerID,
		PlanID:    planID,
		Amount:    plan.MonthlyFee,
		Currency:  plan.Currency,
	}, nil
}

// ConfirmPayment settles a payment outcome. It is idempotent: confirming an
// already-terminal payment replays the prior result without creating a second
// subscription or dispatching another notification. The live callback path
// and the reconciliation worker both funnel through here; whichever arrives
// first wins.
func (s *Service) ConfirmPayment(ctx context.Context, paymentID string, success bool, providerTxnID, errorMessage string) (*svcports.ConfirmPaymentResult, error) {
	s.locks.Lock("payment:" + paymentID)
	defer s.locks.Unlock("payment:" + paymentID)

	pid, err := uuid.Parse(paymentID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid payment id", err)
	}

	now := s.now()

	var result *svcports.ConfirmPaymentResult
	var event ports.EventKind
	var sellerID string

	err = s.retryConflict(func() error {
		result = nil
		event = ""
		return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			payment, err := s.payments.GetByID(ctx, tx, pid)
			if err != nil {
				return err
			}

			if payment.Status.IsTerminal() {
				result = &svcports.ConfirmPaymentResult{
					PaymentID:        payment.ID,
					Status:           payment.Status,
					AlreadyProcessed: true,
				}
				return nil
			}

			sellerID = payment.SellerID

			if !success {
				if errorMessage != "" {
					payment.ErrorMessage = &errorMessage
				}
				if err := payment.TransitionTo(models.PaymentStatusFailed, now); err != nil {
					return err
				}
				if err := s.payments.Update(ctx, tx, payment); err != nil {
					return err
				}
				result = &svcports.ConfirmPaymentResult{
					PaymentID: payment.ID,
					Status:    models.PaymentStatusFailed,
				}
				event = ports.EventPaymentFailed
				return nil
			}

			if providerTxnID != "" {
				payment.ProviderTxnID = &providerTxnID
			}
			if err := payment.TransitionTo(models.PaymentStatusCompleted, now); err != nil {
				return err
			}
			if err := s.payments.Update(ctx, tx, payment); err != nil {
				return err
			}

			sub, err := s.upsertSubscriptionForPayment(ctx, tx, payment, now, &event)
			if err != nil {
				return err
			}

			if err := s.recomputePremiumProjection(ctx, tx, payment.SellerID, now); err != nil {
				return err
			}

			result = &svcports.ConfirmPaymentResult{
				PaymentID:      payment.ID,
				Status:         models.PaymentStatusCompleted,
				SubscriptionID: sub.ID,
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Error("confirm payment failed",
			zap.String("payment_id", paymentID),
			zap.Bool("success", success),
			zap.Error(err))
		return nil, err
	}

	if result.AlreadyProcessed {
		metrics.PaymentConfirmations.WithLabelValues("replayed").Inc()
		s.logger.Info("payment already settled, confirmation is a no-op",
			zap.String("payment_id", paymentID),
			zap.String("status", string(result.Status)))
		return result, nil
	}

	metrics.PaymentConfirmations.WithLabelValues(string(result.Status)).Inc()

	s.logger.Info("payment confirmed",
		zap.String("payment_id", paymentID),
		zap.String("status", string(result.Status)),
		zap.String("subscription_id", result.SubscriptionID))

	if event != "" {
		s.notifier.Notify(ctx, sellerID, event, map[string]interface{}{
			"payment_id":      paymentID,
			"subscription_id": result.SubscriptionID,
		})
	}

	return result, nil
}

// upsertSubscriptionForPayment creates the subscription for a first purchase
// or rolls the current one into its next billing cycle on renewal.
func (s *Service) upsertSubscriptionForPayment(ctx context.Context, tx pgx.Tx, payment *models.Payment, now time.Time, event *ports.EventKind) (*models.Subscription, error) {
	plan, hasPlan := s.plans[payment.PlanID]
	periodic := !hasPlan || plan.Periodic

	sub, err := s.subs.GetActiveBySeller(ctx, tx, payment.SellerID)
	switch {
	case err == nil:
		// Renewal: the new cycle starts where the old one ended, so there is
		// no gap in premium coverage even when the confirmation arrives late.
		cycleStart := now
		if sub.EndDate != nil {
			cycleStart = *sub.EndDate
		}
		sub.StartDate = cycleStart
		if periodic {
			end := models.NextPeriodEnd(cycleStart)
			sub.EndDate = &end
		}
		sub.PaymentID = &payment.ID
		sub.UpdatedAt = now
		if err := s.subs.Update(ctx, tx, sub); err != nil {
			return nil, err
		}
		*event = ports.EventPremiumRenewed
		return sub, nil

	case domain.IsDomainError(err, domain.ErrorCodeSubscriptionNotFound):
		sub = &models.Subscription{
			ID:             uuid.New().String(),
			SellerID:       payment.SellerID,
			PlanID:         payment.PlanID,
			MonthlyFee:     payment.Amount,
			Currency:       payment.Currency,
			StartDate:      now,
			IsActive:       true,
			IsAutoRenewing: periodic,
			PaymentID:      &payment.ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if periodic {
			end := models.NextPeriodEnd(now)
			sub.EndDate = &end
		}
		if err := s.subs.Create(ctx, tx, sub); err != nil {
			return nil, err
		}
		*event = ports.EventPremiumActivated
		return sub, nil

	default:
		return nil, err
	}
}

// CancelWithRefund cancels a subscription and refunds according to the tiered
// policy. The provider refund runs first; the local payment and subscription
// state changes only after the provider approved it, so a failed refund never
// leaves the subscription deactivated.
func (s *Service) CancelWithRefund(ctx context.Context, subscriptionID string, cancelTime time.Time) (*svcports.RefundEligibility, error) {
	s.locks.Lock("sub:" + subscriptionID)
	defer s.locks.Unlock("sub:" + subscriptionID)

	sid, err := uuid.Parse(subscriptionID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid subscription id", err)
	}

	sub, err := s.subs.GetByID(ctx, nil, sid)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive {
		return nil, domain.NewDomainError(domain.ErrorCodeSubscriptionNotActive, "subscription is not active").
			WithDetail("subscription_id", subscriptionID)
	}

	quote := domain.ComputeRefund(sub.StartDate, cancelTime, sub.MonthlyFee)

	// Complimentary grants have no linked payment; there is nothing to refund.
	refundNeeded := quote.Amount.IsPositive() && sub.PaymentID != nil

	var payment *models.Payment
	if refundNeeded {
		payID, err := uuid.Parse(*sub.PaymentID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeInternalError, "invalid linked payment id", err)
		}
		payment, err = s.payments.GetByID(ctx, nil, payID)
		if err != nil {
			return nil, err
		}
		if payment.Status == models.PaymentStatusRefunded {
			// Refund already settled on a prior attempt; finish the cancellation.
			refundNeeded = false
		} else {
			if payment.ProviderTxnID == nil {
				return nil, domain.NewDomainError(domain.ErrorCodeRefundFailed, "linked payment has no provider transaction").
					WithDetail("payment_id", payment.ID)
			}

			// External call outside any store transaction, bounded by the
			// adapter's timeout. Transport errors mean unknown outcome; the
			// caller retries and the provider dedupes on transaction id.
			res, err := s.provider.Refund(ctx, *payment.ProviderTxnID, quote.Amount, sub.Currency)
			if err != nil {
				metrics.Refunds.WithLabelValues("error").Inc()
				s.logger.Warn("refund call failed, cancellation not applied",
					zap.String("subscription_id", subscriptionID),
					zap.String("payment_id", payment.ID),
					zap.Error(err))
				return nil, domain.WrapError(domain.ErrorCodeProviderUnavailable, "refund call failed", err)
			}
			if !res.Approved {
				metrics.Refunds.WithLabelValues("declined").Inc()
				s.logger.Error("refund declined, cancellation not applied",
					zap.String("subscription_id", subscriptionID),
					zap.String("payment_id", payment.ID),
					zap.String("provider_message", res.ErrorMessage))
				return nil, domain.NewDomainError(domain.ErrorCodeRefundFailed, "refund declined by payment provider").
					WithDetail("subscription_id", subscriptionID)
			}
			metrics.Refunds.WithLabelValues("approved").Inc()
		}
	}

	now := s.now()
	var alreadyCancelled bool
	err = s.retryConflict(func() error {
		return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			fresh, err := s.subs.GetByID(ctx, tx, sid)
			if err != nil {
				return err
			}
			if !fresh.IsActive {
				// Concurrent cancellation won; nothing left to do.
				alreadyCancelled = true
				return nil
			}

			if refundNeeded {
				freshPayment, err := s.payments.GetByID(ctx, tx, uuid.MustParse(payment.ID))
				if err != nil {
					return err
				}
				if freshPayment.Status != models.PaymentStatusRefunded {
					if err := freshPayment.TransitionTo(models.PaymentStatusRefunded, now); err != nil {
						return err
					}
					if err := s.payments.Update(ctx, tx, freshPayment); err != nil {
						return err
					}
				}
			}

			end := cancelTime
			fresh.IsActive = false
			fresh.IsAutoRenewing = false
			fresh.EndDate = &end
			fresh.UpdatedAt = now
			if err := s.subs.Update(ctx, tx, fresh); err != nil {
				return err
			}

			return s.recomputePremiumProjection(ctx, tx, fresh.SellerID, now)
		})
	})
	if err != nil {
		s.logger.Error("cancel with refund failed",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return nil, err
	}

	if alreadyCancelled {
		// The other canceller already notified; repeating it would double up.
		s.logger.Info("subscription already cancelled concurrently",
			zap.String("subscription_id", subscriptionID),
			zap.String("seller_id", sub.SellerID))
		return &svcports.RefundEligibility{
			SubscriptionID: subscriptionID,
			Percentage:     quote.Percentage,
			Amount:         quote.Amount,
			AsOf:           cancelTime,
		}, nil
	}

	s.logger.Info("subscription cancelled",
		zap.String("subscription_id", subscriptionID),
		zap.String("seller_id", sub.SellerID),
		zap.Int64("refund_percentage", quote.Percentage),
		zap.String("refund_amount", quote.Amount.String()))

	s.notifier.Notify(ctx, sub.SellerID, ports.EventPremiumCancelled, map[string]interface{}{
		"subscription_id": subscriptionID,
		"refund_amount":   quote.Amount.String(),
	})
	if quote.Amount.IsPositive() {
		s.notifier.Notify(ctx, sub.SellerID, ports.EventRefundIssued, map[string]interface{}{
			"subscription_id": subscriptionID,
			"refund_amount":   quote.Amount.String(),
		})
	}

	return &svcports.RefundEligibility{
		SubscriptionID: subscriptionID,
		Percentage:     quote.Percentage,
		Amount:         quote.Amount,
		AsOf:           cancelTime,
	}, nil
}

// CancelAutoRenewal turns off auto-renewal. The subscription stays active and
// the seller keeps premium benefits until the existing end date; no refund.
func (s *Service) CancelAutoRenewal(ctx context.Context, subscriptionID string) error {
	return s.setAutoRenewal(ctx, subscriptionID, false)
}

// EnableAutoRenewal turns auto-renewal back on for a still-active subscription
func (s *Service) EnableAutoRenewal(ctx context.Context, subscriptionID string) error {
	return s.setAutoRenewal(ctx, subscriptionID, true)
}

func (s *Service) setAutoRenewal(ctx context.Context, subscriptionID string, autoRenew bool) error {
	s.locks.Lock("sub:" + subscriptionID)
	defer s.locks.Unlock("sub:" + subscriptionID)

	sid, err := uuid.Parse(subscriptionID)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeValidationFailed, "invalid subscription id", err)
	}

	now := s.now()

	err = s.retryConflict(func() error {
		return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			sub, err := s.subs.GetByID(ctx, tx, sid)
			if err != nil {
				return err
			}
			if autoRenew && !sub.IsCurrent(now) {
				return domain.NewDomainError(domain.ErrorCodeSubscriptionNotActive, "cannot enable auto-renewal on an inactive subscription").
					WithDetail("subscription_id", subscriptionID)
			}
			if !autoRenew && !sub.IsActive {
				return domain.NewDomainError(domain.ErrorCodeSubscriptionNotActive, "subscription is not active").
					WithDetail("subscription_id", subscriptionID)
			}
			sub.IsAutoRenewing = autoRenew
			sub.UpdatedAt = now
			return s.subs.Update(ctx, tx, sub)
		})
	})
	if err != nil {
		s.logger.Error("toggle auto-renewal failed",
			zap.String("subscription_id", subscriptionID),
			zap.Bool("auto_renew", autoRenew),
			zap.Error(err))
		return err
	}

	s.logger.Info("auto-renewal toggled",
		zap.String("subscription_id", subscriptionID),
		zap.Bool("auto_renew", autoRenew))
	return nil
}

// GetRefundEligibility quotes the refund a cancellation at now would yield.
// It shares ComputeRefund with CancelWithRefund so the quoted and charged
// amounts never diverge.
func (s *Service) GetRefundEligibility(ctx context.Context, subscriptionID string, now time.Time) (*svcports.RefundEligibility, error) {
	sid, err := uuid.Parse(subscriptionID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid subscription id", err)
	}

	sub, err := s.subs.GetByID(ctx, nil, sid)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive {
		return nil, domain.NewDomainError(domain.ErrorCodeSubscriptionNotActive, "subscription is not active").
			WithDetail("subscription_id", subscriptionID)
	}

	quote := domain.ComputeRefund(sub.StartDate, now, sub.MonthlyFee)
	return &svcports.RefundEligibility{
		SubscriptionID: subscriptionID,
		Percentage:     quote.Percentage,
		Amount:         quote.Amount,
		AsOf:           now,
	}, nil
}

// ExpireIfDue settles a subscription whose end date has passed. Non-renewing
// subscriptions are deactivated and the seller's premium flags cleared.
// Auto-renewing subscriptions get a renewal payment captured and confirmed;
// this is the only place a payment is created without an explicit user action.
func (s *Service) ExpireIfDue(ctx context.Context, subscriptionID string, now time.Time) (*svcports.ExpiryOutcome, error) {
	s.locks.Lock("sub:" + subscriptionID)
	defer s.locks.Unlock("sub:" + subscriptionID)

	sid, err := uuid.Parse(subscriptionID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid subscription id", err)
	}

	sub, err := s.subs.GetByID(ctx, nil, sid)
	if err != nil {
		return nil, err
	}
	if !sub.IsDueForExpiry(now) {
		return &svcports.ExpiryOutcome{SubscriptionID: subscriptionID}, nil
	}

	if !sub.IsAutoRenewing {
		if err := s.expire(ctx, sid, now); err != nil {
			return nil, err
		}
		s.logger.Info("subscription expired",
			zap.String("subscription_id", subscriptionID),
			zap.String("seller_id", sub.SellerID))
		s.notifier.Notify(ctx, sub.SellerID, ports.EventPremiumExpired, map[string]interface{}{
			"subscription_id": subscriptionID,
		})
		return &svcports.ExpiryOutcome{SubscriptionID: subscriptionID, Expired: true}, nil
	}

	// Renewal: create the charge first so a crash between capture and
	// confirmation leaves a pending payment the reconciliation sweep settles.
	payment := &models.Payment{
		ID:        uuid.New().String(),
		SellerID:  sub.SellerID,
		PlanID:    sub.PlanID,
		Amount:    sub.MonthlyFee,
		Currency:  sub.Currency,
		Provider:  s.providerName,
		Status:    models.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.payments.Create(ctx, tx, payment)
	})
	if err != nil {
		return nil, fmt.Errorf("create renewal payment: %w", err)
	}

	res, err := s.provider.Capture(ctx, ports.CaptureRequest{
		Reference: payment.ID,
		SellerID:  sub.SellerID,
		Amount:    sub.MonthlyFee,
		Currency:  sub.Currency,
	})
	if err != nil {
		// Unknown outcome. The payment stays pending; the next reconciliation
		// sweep queries the provider and settles it.
		s.logger.Warn("renewal capture outcome unknown",
			zap.String("subscription_id", subscriptionID),
			zap.String("payment_id", payment.ID),
			zap.Error(err))
		return nil, domain.WrapError(domain.ErrorCodeProviderUnavailable, "renewal capture failed", err)
	}

	if _, err := s.ConfirmPayment(ctx, payment.ID, res.Approved, res.ProviderTxnID, res.ErrorMessage); err != nil {
		return nil, err
	}

	if !res.Approved {
		// Renewal charge declined: the subscription lapses.
		if err := s.expire(ctx, sid, now); err != nil {
			return nil, err
		}
		s.logger.Warn("renewal declined, subscription expired",
			zap.String("subscription_id", subscriptionID),
			zap.String("payment_id", payment.ID),
			zap.String("provider_message", res.ErrorMessage))
		return &svcports.ExpiryOutcome{
			SubscriptionID: subscriptionID,
			Expired:        true,
			RenewalPayment: payment.ID,
		}, nil
	}

	s.logger.Info("subscription renewed",
		zap.String("subscription_id", subscriptionID),
		zap.String("payment_id", payment.ID))
	return &svcports.ExpiryOutcome{
		SubscriptionID: subscriptionID,
		Renewed:        true,
		RenewalPayment: payment.ID,
	}, nil
}

// expire deactivates a subscription and recomputes the seller projection
func (s *Service) expire(ctx context.Context, sid uuid.UUID, now time.Time) error {
	return s.retryConflict(func() error {
		return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			sub, err := s.subs.GetByID(ctx, tx, sid)
			if err != nil {
				return err
			}
			if !sub.IsActive {
				return nil
			}
			sub.IsActive = false
			sub.UpdatedAt = now
			if err := s.subs.Update(ctx, tx, sub); err != nil {
				return err
			}
			return s.recomputePremiumProjection(ctx, tx, sub.SellerID, now)
		})
	})
}

// recomputePremiumProjection is the single choke point that derives the
// seller's premium flags and verified badge from the active subscription.
// Every subscription mutation funnels through here so the cached flags can
// never drift from the subscription table.
func (s *Service) recomputePremiumProjection(ctx context.Context, tx pgx.Tx, sellerID string, now time.Time) error {
	isPremium := false
	sub, err := s.subs.GetActiveBySeller(ctx, tx, sellerID)
	switch {
	case err == nil:
		isPremium = sub.IsCurrent(now)
	case domain.IsDomainError(err, domain.ErrorCodeSubscriptionNotFound):
	default:
		return err
	}

	profile, err := s.sellers.GetPremiumProfile(ctx, tx, sellerID)
	if err != nil {
		return err
	}

	// premium_since records original signup, never a renewal: set once, kept
	// through lapses so the member-since badge survives re-subscription.
	premiumSince := profile.PremiumSince
	if isPremium && premiumSince == nil {
		since := now
		premiumSince = &since
	}

	if err := s.sellers.SetPremiumFlags(ctx, tx, sellerID, isPremium, premiumSince); err != nil {
		return err
	}

	badge := false
	if isPremium {
		cfg, err := s.sellers.GetCategoryConfig(ctx, tx, profile.CategoryID)
		if err != nil {
			return err
		}
		count, err := s.sellers.GetApprovedCertificationCount(ctx, tx, sellerID, profile.CategoryID)
		if err != nil {
			return err
		}
		badge = domain.IsEligibleForBadge(count, *cfg)
	}

	return s.sellers.SetVerifiedBadge(ctx, tx, sellerID, badge)
}

// retryConflict re-runs op while it fails with a version conflict, up to
// conflictRetries attempts. The closure must re-read its rows on every run.
func (s *Service) retryConflict(op func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = op()
		if !domain.IsDomainError(err, domain.ErrorCodeVersionConflict) {
			return err
		}
	}
	return err
}
