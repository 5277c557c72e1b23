package domain

import "github.com/marketbase/premium-service/internal/domain/models"

// IsEligibleForBadge decides whether a seller qualifies for the verified badge
// in their category. Categories that disallow the badge always evaluate to
// false, no matter how many approved certifications the seller holds.
func IsEligibleForBadge(approvedCertifications int, cfg models.CategoryConfig) bool {
	if !cfg.AllowsVerifiedBadge {
		return false
	}
	return approvedCertifications >= cfg.MinCertificationsForBadge
}
