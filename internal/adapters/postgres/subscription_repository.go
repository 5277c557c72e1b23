package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/marketbase/premium-service/internal/domain"
	"github.com/marketbase/premium-service/internal/domain/models"
	"github.com/marketbase/premium-service/internal/domain/ports"
)

// SubscriptionRepository implements ports.SubscriptionRepository over pgx
type SubscriptionRepository struct {
	db ports.DBPort
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db ports.DBPort) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const subscriptionColumns = `id, seller_id, plan_id, monthly_fee, currency, start_date, end_date,
	is_active, is_auto_renewing, payment_id, granted_by_admin_id, version, created_at, updated_at`

// Create inserts a new subscription with version 1
func (r *SubscriptionRepository) Create(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	subID, err := uuid.Parse(sub.ID)
	if err != nil {
		return fmt.Errorf("invalid subscription ID: %w", err)
	}

	fee, err := decimalToNumeric(sub.MonthlyFee)
	if err != nil {
		return fmt.Errorf("convert monthly fee: %w", err)
	}

	var paymentID interface{}
	if sub.PaymentID != nil {
		pid, err := uuid.Parse(*sub.PaymentID)
		if err != nil {
			return fmt.Errorf("invalid payment ID: %w", err)
		}
		paymentID = pid
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO subscriptions (id, seller_id, plan_id, monthly_fee, currency, start_date, end_date,
			is_active, is_auto_renewing, payment_id, granted_by_admin_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $13)`,
		subID, sub.SellerID, sub.PlanID, fee, sub.Currency, sub.StartDate,
		nullTimestamptz(sub.EndDate), sub.IsActive, sub.IsAutoRenewing,
		paymentID, nullTextPtr(sub.GrantedByAdminID), sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "create subscription", err)
	}

	sub.Version = 1
	return nil
}

// Update writes the subscription back, guarded by its version. A stale
// version returns ErrorCodeVersionConflict; the caller re-reads and retries.
func (r *SubscriptionRepository) Update(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	subID, err := uuid.Parse(sub.ID)
	if err != nil {
		return fmt.Errorf("invalid subscription ID: %w", err)
	}

	fee, err := decimalToNumeric(sub.MonthlyFee)
	if err != nil {
		return fmt.Errorf("convert monthly fee: %w", err)
	}

	var paymentID interface{}
	if sub.PaymentID != nil {
		pid, err := uuid.Parse(*sub.PaymentID)
		if err != nil {
			return fmt.Errorf("invalid payment ID: %w", err)
		}
		paymentID = pid
	}

	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE subscriptions
		SET monthly_fee = $2, currency = $3, start_date = $4, end_date = $5, is_active = $6,
			is_auto_renewing = $7, payment_id = $8, version = version + 1, updated_at = $9
		WHERE id = $1 AND version = $10`,
		subID, fee, sub.Currency, sub.StartDate, nullTimestamptz(sub.EndDate), sub.IsActive,
		sub.IsAutoRenewing, paymentID, sub.UpdatedAt, sub.Version)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "update subscription", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeVersionConflict, "subscription was modified concurrently").
			WithDetail("subscription_id", sub.ID).
			WithDetail("version", sub.Version)
	}

	sub.Version++
	return nil
}

// GetByID retrieves a subscription by its ID
func (r *SubscriptionRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*models.Subscription, error) {
	row := r.executor(tx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeSubscriptionNotFound, "subscription not found").
				WithDetail("subscription_id", id.String())
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "get subscription by id", err)
	}
	return sub, nil
}

// GetActiveBySeller returns the seller's active subscription row, or
// ErrorCodeSubscriptionNotFound when the seller has none.
func (r *SubscriptionRepository) GetActiveBySeller(ctx context.Context, tx ports.DBTX, sellerID string) (*models.Subscription, error) {
	row := r.executor(tx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE seller_id = $1 AND is_active = true
		ORDER BY created_at DESC
		LIMIT 1`, sellerID)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeSubscriptionNotFound, "no active subscription for seller").
				WithDetail("seller_id", sellerID)
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "get active subscription", err)
	}
	return sub, nil
}

// ListBySeller pages through a seller's subscriptions, newest first
func (r *SubscriptionRepository) ListBySeller(ctx context.Context, tx ports.DBTX, sellerID string, page, pageSize int) ([]*models.Subscription, error) {
	offset := (page - 1) * pageSize
	rows, err := r.executor(tx).Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, sellerID, pageSize, offset)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list subscriptions by seller", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// ListActiveDueForExpiry returns active subscriptions whose end date has
// passed, oldest due first.
func (r *SubscriptionRepository) ListActiveDueForExpiry(ctx context.Context, tx ports.DBTX, now time.Time, limit int32) ([]*models.Subscription, error) {
	rows, err := r.executor(tx).Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE is_active = true AND end_date IS NOT NULL AND end_date <= $1
		ORDER BY end_date ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list subscriptions due for expiry", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// RevenueStats aggregates premium activity over subscriptions started in [from, to)
func (r *SubscriptionRepository) RevenueStats(ctx context.Context, tx ports.DBTX, from, to time.Time) (*models.PremiumAnalytics, error) {
	exec := r.executor(tx)

	stats := &models.PremiumAnalytics{From: from, To: to}

	err := exec.QueryRow(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE is_active = true`).Scan(&stats.ActiveCount)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "count active subscriptions", err)
	}

	var total, average pgtype.Numeric
	err = exec.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(monthly_fee), 0), COALESCE(AVG(monthly_fee), 0)
		FROM subscriptions
		WHERE start_date >= $1 AND start_date < $2`, from, to).
		Scan(&stats.SubscriptionsStarted, &total, &average)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "aggregate subscription revenue", err)
	}

	if stats.TotalRevenue, err = pgNumericToDecimal(total); err != nil {
		return nil, fmt.Errorf("convert total revenue: %w", err)
	}
	if stats.AverageFee, err = pgNumericToDecimal(average); err != nil {
		return nil, fmt.Errorf("convert average fee: %w", err)
	}
	stats.AverageFee = stats.AverageFee.Round(2)

	return stats, nil
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var (
		sub       models.Subscription
		id        uuid.UUID
		fee       pgtype.Numeric
		endDate   pgtype.Timestamptz
		paymentID pgtype.UUID
		grantedBy pgtype.Text
	)

	err := row.Scan(&id, &sub.SellerID, &sub.PlanID, &fee, &sub.Currency,
		&sub.StartDate, &endDate, &sub.IsActive, &sub.IsAutoRenewing,
		&paymentID, &grantedBy, &sub.Version, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}

	sub.ID = id.String()
	sub.EndDate = timePtr(endDate)
	sub.GrantedByAdminID = textPtr(grantedBy)
	if paymentID.Valid {
		pid := uuid.UUID(paymentID.Bytes).String()
		sub.PaymentID = &pid
	}

	if sub.MonthlyFee, err = pgNumericToDecimal(fee); err != nil {
		return nil, fmt.Errorf("convert monthly fee: %w", err)
	}

	return &sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate subscriptions", err)
	}
	return subs, nil
}
