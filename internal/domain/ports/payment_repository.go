package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marketbase/premium-service/internal/domain/models"
)

// PaymentRepository persists premium payments.
// Updates are versioned like SubscriptionRepository updates.
type PaymentRepository interface {
	Create(ctx context.Context, tx DBTX, payment *models.Payment) error
	Update(ctx context.Context, tx DBTX, payment *models.Payment) error
	GetByID(ctx context.Context, tx DBTX, id uuid.UUID) (*models.Payment, error)

	// ListPendingOrProcessingOlderThan returns non-terminal payments created
	// before cutoff, oldest first. The reconciliation sweep feeds on this.
	ListPendingOrProcessingOlderThan(ctx context.Context, tx DBTX, cutoff time.Time, limit int32) ([]*models.Payment, error)
}
