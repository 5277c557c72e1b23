package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/marketbase/premium-service/internal/domain/models"
	"github.com/marketbase/premium-service/internal/domain/ports"
)

type MockDBPort struct {
	mock.Mock
}

func (m *MockDBPort) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx, nil)
}

func (m *MockDBPort) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx, nil)
}

type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	args := m.Called(ctx, tx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	args := m.Called(ctx, tx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetActiveBySeller(ctx context.Context, tx ports.DBTX, sellerID string) (*models.Subscription, error) {
	args := m.Called(ctx, tx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) ListBySeller(ctx context.Context, tx ports.DBTX, sellerID string, page, pageSize int) ([]*models.Subscription, error) {
	args := m.Called(ctx, tx, sellerID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) ListActiveDueForExpiry(ctx context.Context, tx ports.DBTX, now time.Time, limit int32) ([]*models.Subscription, error) {
	args := m.Called(ctx, tx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) RevenueStats(ctx context.Context, tx ports.DBTX, from, to time.Time) (*models.PremiumAnalytics, error) {
	args := m.Called(ctx, tx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PremiumAnalytics), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, tx ports.DBTX, payment *models.Payment) error {
	args := m.Called(ctx, tx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) Update(ctx context.Context, tx ports.DBTX, payment *models.Payment) error {
	args := m.Called(ctx, tx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListPendingOrProcessingOlderThan(ctx context.Context, tx ports.DBTX, cutoff time.Time, limit int32) ([]*models.Payment, error) {
	args := m.Called(ctx, tx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

type MockSellerProfileRepository struct {
	mock.Mock
}

func (m *MockSellerProfileRepository) GetPremiumProfile(ctx context.Context, tx ports.DBTX, sellerID string) (*models.SellerPremiumProfile, error) {
	args := m.Called(ctx, tx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SellerPremiumProfile), args.Error(1)
}

func (m *MockSellerProfileRepository) SetPremiumFlags(ctx context.Context, tx ports.DBTX, sellerID string, isPremium bool, premiumSince *time.Time) error {
	args := m.Called(ctx, tx, sellerID, isPremium, premiumSince)
	return args.Error(0)
}

func (m *MockSellerProfileRepository) SetVerifiedBadge(ctx context.Context, tx ports.DBTX, sellerID string, verified bool) error {
	args := m.Called(ctx, tx, sellerID, verified)
	return args.Error(0)
}

func (m *MockSellerProfileRepository) GetApprovedCertificationCount(ctx context.Context, tx ports.DBTX, sellerID, categoryID string) (int, error) {
	args := m.Called(ctx, tx, sellerID, categoryID)
	return args.Int(0), args.Error(1)
}

func (m *MockSellerProfileRepository) GetCategoryConfig(ctx context.Context, tx ports.DBTX, categoryID string) (*models.CategoryConfig, error) {
	args := m.Called(ctx, tx, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CategoryConfig), args.Error(1)
}

func (m *MockSellerProfileRepository) ListPremiumSellers(ctx context.Context, tx ports.DBTX, page, pageSize int) ([]*models.SellerPremiumProfile, error) {
	args := m.Called(ctx, tx, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SellerPremiumProfile), args.Error(1)
}

type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) Capture(ctx context.Context, req ports.CaptureRequest) (*ports.CaptureResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.CaptureResult), args.Error(1)
}

func (m *MockPaymentProvider) Refund(ctx context.Context, providerTxnID string, amount decimal.Decimal, currency string) (*ports.RefundResult, error) {
	args := m.Called(ctx, providerTxnID, amount, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.RefundResult), args.Error(1)
}

func (m *MockPaymentProvider) QueryStatus(ctx context.Context, reference string) (*ports.StatusResult, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.StatusResult), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, sellerID string, kind ports.EventKind, payload map[string]interface{}) {
	m.Called(ctx, sellerID, kind, payload)
}
