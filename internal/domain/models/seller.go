package models

import "time"

// SellerPremiumProfile is the premium projection on a seller profile.
// It is derived from the active subscription and the badge evaluation;
// only the lifecycle service writes it.
type SellerPremiumProfile struct {
	SellerID         string
	CategoryID       string
	IsPremium        bool
	PremiumSince     *time.Time
	HasVerifiedBadge bool
}

// CategoryConfig holds per-category rules for the verified badge
type CategoryConfig struct {
	CategoryID                string
	AllowsVerifiedBadge       bool
	MinCertificationsForBadge int
}
