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

// PaymentRepository implements ports.PaymentRepository over pgx
type PaymentRepository struct {
	db ports.DBPort
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db ports.DBPort) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const paymentColumns = `id, seller_id, plan_id, amount, currency, provider, provider_txn_id,
	status, error_message, version, created_at, updated_at, completed_at`

// Create inserts a new payment with version 1
func (r *PaymentRepository) Create(ctx context.Context, tx ports.DBTX, payment *models.Payment) error {
	paymentID, err := uuid.Parse(payment.ID)
	if err != nil {
		return fmt.Errorf("invalid payment ID: %w", err)
	}

	amount, err := decimalToNumeric(payment.Amount)
	if err != nil {
		return fmt.Errorf("convert amount: %w", err)
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO payments (id, seller_id, plan_id, amount, currency, provider, provider_txn_id,
			status, error_message, version, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11, $12)`,
		paymentID, payment.SellerID, payment.PlanID, amount, payment.Currency,
		payment.Provider, nullTextPtr(payment.ProviderTxnID), string(payment.Status),
		nullTextPtr(payment.ErrorMessage), payment.CreatedAt, payment.UpdatedAt,
		nullTimestamptz(payment.CompletedAt))
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "create payment", err)
	}

	payment.Version = 1
	return nil
}

// Update writes the payment back, guarded by its version
func (r *PaymentRepository) Update(ctx context.Context, tx ports.DBTX, payment *models.Payment) error {
	paymentID, err := uuid.Parse(payment.ID)
	if err != nil {
		return fmt.Errorf("invalid payment ID: %w", err)
	}

	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE payments
		SET provider_txn_id = $2, status = $3, error_message = $4,
			version = version + 1, updated_at = $5, completed_at = $6
		WHERE id = $1 AND version = $7`,
		paymentID, nullTextPtr(payment.ProviderTxnID), string(payment.Status),
		nullTextPtr(payment.ErrorMessage), payment.UpdatedAt,
		nullTimestamptz(payment.CompletedAt), payment.Version)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "update payment", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeVersionConflict, "payment was modified concurrently").
			WithDetail("payment_id", payment.ID).
			WithDetail("version", payment.Version)
	}

	payment.Version++
	return nil
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*models.Payment, error) {
	row := r.executor(tx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodePaymentNotFound, "payment not found").
				WithDetail("payment_id", id.String())
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "get payment by id", err)
	}
	return payment, nil
}

// ListPendingOrProcessingOlderThan returns non-terminal payments created
// before cutoff, oldest first.
func (r *PaymentRepository) ListPendingOrProcessingOlderThan(ctx context.Context, tx ports.DBTX, cutoff time.Time, limit int32) ([]*models.Payment, error) {
	rows, err := r.executor(tx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE status IN ('pending', 'processing') AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list stuck payments", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate payments", err)
	}
	return payments, nil
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var (
		payment     models.Payment
		id          uuid.UUID
		amount      pgtype.Numeric
		txnID       pgtype.Text
		errMsg      pgtype.Text
		status      string
		completedAt pgtype.Timestamptz
	)

	err := row.Scan(&id, &payment.SellerID, &payment.PlanID, &amount, &payment.Currency,
		&payment.Provider, &txnID, &status, &errMsg, &payment.Version,
		&payment.CreatedAt, &payment.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	payment.ID = id.String()
	payment.Status = models.PaymentStatus(status)
	payment.ProviderTxnID = textPtr(txnID)
	payment.ErrorMessage = textPtr(errMsg)
	payment.CompletedAt = timePtr(completedAt)

	if payment.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}

	return &payment, nil
}
