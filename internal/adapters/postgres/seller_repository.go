package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/marketbase/premium-service/internal/domain"
	"github.com/marketbase/premium-service/internal/domain/models"
	"github.com/marketbase/premium-service/internal/domain/ports"
)

// SellerProfileRepository implements ports.SellerProfileRepository over pgx.
// The premium columns on seller_premium_profiles are a projection owned by
// the lifecycle service; nothing else writes them.
type SellerProfileRepository struct {
	db ports.DBPort
}

// NewSellerProfileRepository creates a new seller profile repository
func NewSellerProfileRepository(db ports.DBPort) *SellerProfileRepository {
	return &SellerProfileRepository{db: db}
}

func (r *SellerProfileRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// GetPremiumProfile retrieves a seller's premium projection
func (r *SellerProfileRepository) GetPremiumProfile(ctx context.Context, tx ports.DBTX, sellerID string) (*models.SellerPremiumProfile, error) {
	row := r.executor(tx).QueryRow(ctx, `
		SELECT seller_id, category_id, is_premium, premium_since, has_verified_badge
		FROM seller_premium_profiles
		WHERE seller_id = $1`, sellerID)

	var (
		profile      models.SellerPremiumProfile
		premiumSince pgtype.Timestamptz
	)
	err := row.Scan(&profile.SellerID, &profile.CategoryID, &profile.IsPremium,
		&premiumSince, &profile.HasVerifiedBadge)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeSellerNotFound, "seller not found").
				WithDetail("seller_id", sellerID)
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "get premium profile", err)
	}
	profile.PremiumSince = timePtr(premiumSince)

	return &profile, nil
}

// SetPremiumFlags writes the derived premium flag and its start timestamp
func (r *SellerProfileRepository) SetPremiumFlags(ctx context.Context, tx ports.DBTX, sellerID string, isPremium bool, premiumSince *time.Time) error {
	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE seller_premium_profiles
		SET is_premium = $2, premium_since = $3, updated_at = now()
		WHERE seller_id = $1`,
		sellerID, isPremium, nullTimestamptz(premiumSince))
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "set premium flags", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeSellerNotFound, "seller not found").
			WithDetail("seller_id", sellerID)
	}
	return nil
}

// SetVerifiedBadge writes the derived verified badge flag
func (r *SellerProfileRepository) SetVerifiedBadge(ctx context.Context, tx ports.DBTX, sellerID string, verified bool) error {
	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE seller_premium_profiles
		SET has_verified_badge = $2, updated_at = now()
		WHERE seller_id = $1`,
		sellerID, verified)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "set verified badge", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeSellerNotFound, "seller not found").
			WithDetail("seller_id", sellerID)
	}
	return nil
}

// GetApprovedCertificationCount counts a seller's approved certifications in a category
func (r *SellerProfileRepository) GetApprovedCertificationCount(ctx context.Context, tx ports.DBTX, sellerID, categoryID string) (int, error) {
	var count int
	err := r.executor(tx).QueryRow(ctx, `
		SELECT COUNT(*)
		FROM seller_certifications
		WHERE seller_id = $1 AND category_id = $2 AND status = 'approved'`,
		sellerID, categoryID).Scan(&count)
	if err != nil {
		return 0, domain.WrapError(domain.ErrorCodeDatabaseError, "count approved certifications", err)
	}
	return count, nil
}

// GetCategoryConfig retrieves badge policy for a marketplace category
func (r *SellerProfileRepository) GetCategoryConfig(ctx context.Context, tx ports.DBTX, categoryID string) (*models.CategoryConfig, error) {
	var cfg models.CategoryConfig
	err := r.executor(tx).QueryRow(ctx, `
		SELECT category_id, allows_verified_badge, min_certifications_for_badge
		FROM category_configs
		WHERE category_id = $1`, categoryID).
		Scan(&cfg.CategoryID, &cfg.AllowsVerifiedBadge, &cfg.MinCertificationsForBadge)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "unknown category").
				WithDetail("category_id", categoryID)
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "get category config", err)
	}
	return &cfg, nil
}

// ListPremiumSellers pages through sellers currently flagged premium
func (r *SellerProfileRepository) ListPremiumSellers(ctx context.Context, tx ports.DBTX, page, pageSize int) ([]*models.SellerPremiumProfile, error) {
	offset := (page - 1) * pageSize
	rows, err := r.executor(tx).Query(ctx, `
		SELECT seller_id, category_id, is_premium, premium_since, has_verified_badge
		FROM seller_premium_profiles
		WHERE is_premium = true
		ORDER BY premium_since DESC NULLS LAST
		LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list premium sellers", err)
	}
	defer rows.Close()

	var profiles []*models.SellerPremiumProfile
	for rows.Next() {
		var (
			profile      models.SellerPremiumProfile
			premiumSince pgtype.Timestamptz
		)
		if err := rows.Scan(&profile.SellerID, &profile.CategoryID, &profile.IsPremium,
			&premiumSince, &profile.HasVerifiedBadge); err != nil {
			return nil, fmt.Errorf("scan premium profile: %w", err)
		}
		profile.PremiumSince = timePtr(premiumSince)
		profiles = append(profiles, &profile)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate premium profiles", err)
	}
	return profiles, nil
}
