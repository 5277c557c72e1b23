package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketbase/premium-service/internal/domain"
	"github.com/marketbase/premium-service/internal/domain/models"
	"github.com/marketbase/premium-service/internal/domain/ports"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type serviceMocks struct {
	db       *MockDBPort
	subs     *MockSubscriptionRepository
	payments *MockPaymentRepository
	sellers  *MockSellerProfileRepository
	provider *MockPaymentProvider
	notifier *MockNotifier
}

func newTestService() (*Service, *serviceMocks) {
	m := &serviceMocks{
		db:       new(MockDBPort),
		subs:     new(MockSubscriptionRepository),
		payments: new(MockPaymentRepository),
		sellers:  new(MockSellerProfileRepository),
		provider: new(MockPaymentProvider),
		notifier: new(MockNotifier),
	}
	plans := []models.PremiumPlan{
		{ID: "premium-monthly", MonthlyFee: decimal.NewFromFloat(49.99), Currency: "USD", Periodic: true},
	}
	svc := NewService(m.db, m.subs, m.payments, m.sellers, m.provider, m.notifier, plans, "paygate", zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc, m
}

// expectProjection wires the seller profile reads and writes that
// recomputePremiumProjection performs for a premium seller with a badge.
func expectProjection(m *serviceMocks, sellerID string, premium bool) {
	m.sellers.On("GetPremiumProfile", mock.Anything, mock.Anything, sellerID).
		Return(&models.SellerPremiumProfile{SellerID: sellerID, CategoryID: "electronics"}, nil)
	m.sellers.On("SetPremiumFlags", mock.Anything, mock.Anything, sellerID, premium, mock.Anything).Return(nil)
	if premium {
		m.sellers.On("GetCategoryConfig", mock.Anything, mock.Anything, "electronics").
			Return(&models.CategoryConfig{CategoryID: "electronics", AllowsVerifiedBadge: true, MinCertificationsForBadge: 1}, nil)
		m.sellers.On("GetApprovedCertificationCount", mock.Anything, mock.Anything, sellerID, "electronics").
			Return(2, nil)
	}
	m.sellers.On("SetVerifiedBadge", mock.Anything, mock.Anything, sellerID, premium).Return(nil)
}

func TestInitiatePurchase_UnknownPlan(t *testing.T) {
	svc, _ := newTestService()

	handle, err := svc.InitiatePurchase(context.Background(), "seller-1", "gold-yearly")

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeValidationFailed, domain.GetErrorCode(err))
	assert.Nil(t, handle)
}

func TestInitiatePurchase_AlreadyActive(t *testing.T) {
	svc, m := newTestService()

	end := testNow.Add(10 * 24 * time.Hour)
	m.subs.On("GetActiveBySeller", mock.Anything, mock.Anything, "seller-1").
		Return(&models.Subscription{ID: uuid.New().String(), SellerID: "seller-1", IsActive: true, EndDate: &end}, nil)

	handle, err := svc.InitiatePurchase(context.Background(), "seller-1", "premium-monthly")

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeAlreadyActive, domain.GetErrorCode(err))
	assert.Nil(t, handle)
	m.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestInitiatePurchase_Success(t *testing.T) {
	svc, m := newTestService()

	m.subs.On("GetActiveBySeller", mock.Anything, mock.Anything, "seller-1").
		Return(nil, domain.ErrSubscriptionNotFound)
	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)

	var created *models.Payment
	m.payments.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*models.Payment")).
		Run(func(args mock.Arguments) { created = args.Get(2).(*models.Payment) }).
		Return(nil)

	handle, err := svc.InitiatePurchase(context.Background(), "seller-1", "premium-monthly")

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, created.ID, handle.PaymentID)
	assert.Equal(t, "seller-1", handle.SellerID)
	assert.Equal(t, "49.99", handle.Amount.StringFixed(2))
	assert.Equal(t, "USD", handle.Currency)
	assert.Equal(t, models.PaymentStatusPending, created.Status)
	assert.Equal(t, "paygate", created.Provider)
	assert.Equal(t, "premium-monthly", created.PlanID)
}

func TestInitiatePurchase_LapsedSubscriptionAllowsRepurchase(t *testing.T) {
	svc, m := newTestService()

	// Active flag still set but the end date has passed; not current anymore.
	past := testNow.Add(-time.Hour)
	m.subs.On("GetActiveBySeller", mock.Anything, mock.Anything, "seller-1").
		Return(&models.Subscription{ID: uuid.New().String(), SellerID: "seller-1", IsActive: true, EndDate: &past}, nil)
	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.payments.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	handle, err := svc.InitiatePurchase(context.Background(), "seller-1", "premium-monthly")

	require.NoError(t, err)
	assert.NotEmpty(t, handle.PaymentID)
}

func TestConfirmPayment_InvalidID(t *testing.T) {
	svc, _ := newTestService()

	result, err := svc.ConfirmPayment(context.Background(), "not-a-uuid", true, "txn-1", "")

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeValidationFailed, domain.GetErrorCode(err))
	assert.Nil(t, result)
}

func TestConfirmPayment_SuccessActivatesSubscription(t *testing.T) {
	svc, m := newTestService()

	paymentID := uuid.New().String()
	payment := &models.Payment{
		ID:       paymentID,
		SellerID: "seller-1",
		PlanID:   "premium-monthly",
		Amount:   decimal.NewFromFloat(49.99),
		Currency: "USD",
		Status:   models.PaymentStatusPending,
	}

	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.payments.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(payment, nil)
	m.payments.On("Update", mock.Anything, mock.Anything, payment).Return(nil)

	// No subscription yet at upsert time; the projection read afterwards sees
	// the row the transaction created.
	m.subs.On("GetActiveBySeller", mock.Anything, mock.Anything, "seller-1").
		Return(nil, domain.ErrSubscriptionNotFound).Once()
	var created *models.Subscription
	m.subs.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*models.Subscription")).
		Run(func(args mock.Arguments) { created = args.Get(2).(*models.Subscription) }).
		Return(nil)
	projEnd := models.NextPeriodEnd(testNow)
	m.subs.On("GetActiveBySeller", mock.Anything, mock.Anything, "seller-1").
		Return(&models.Subscription{SellerID: "seller-1", IsActive: true, EndDate: &projEnd}, nil)

	var flaggedSince *time.Time
	m.sellers.On("GetPremiumProfile", mock.Anything, mock.Anything, "seller-1").
		Return(&models.SellerPremiumProfile{SellerID: "seller-1", CategoryID: "electronics"}, nil)
	m.sellers.On("SetPremiumFlags", mock.Anything, mock.Anything, "seller-1", true, mock.Anything).
		Run(func(args mock.Arguments) { flaggedSince, _ = args.Get(4).(*time.Time) }).
		Return(nil)
	m.sellers.On("GetCategoryConfig", mock.Anything, mock.Anything, "electronics").
		Return(&models.CategoryConfig{CategoryID: "electronics", AllowsVerifiedBadge: true, MinCertificationsForBadge: 1}, nil)
	m.sellers.On("GetApprovedCertificationCount", mock.Anything, mock.Anything, "seller-1", "electronics").
		Return(2, nil)
	m.sellers.On("SetVerifiedBadge", mock.Anything, mock.Anything, "seller-1", true).Return(nil)

	m.notifier.On("Notify", mock.Anything, "seller-1", ports.EventPremiumActivated, mock.Anything).Return()

	result, err := svc.ConfirmPayment(context.Background(), paymentID, true, "txn-1", "")

	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, models.PaymentStatusCompleted, result.Status)
	require.NotNil(t, created)
	assert.Equal(t, created.ID, result.SubscriptionID)

	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	require.NotNil(t, payment.ProviderTxnID)
	assert.Equal(t, "txn-1", *payment.ProviderTxnID)
	require.NotNil(t, payment.CompletedAt)

	assert.Equal(t, testNow, created.StartDate)
	require.NotNil(t, created.EndDate)
	assert.Equal(t, models.NextPeriodEnd(testNow), *created.EndDate)
	assert.True(t, created.IsActive)
	assert.True(t, created.IsAutoRenewing)
	require.NotNil(t, created.PaymentID)
	assert.Equal(t, paymentID, *created.PaymentID)

	require.NotNil(t, flaggedSince)
	assert.Equal(t, testNow, *flaggedSince)
	m.notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestConfirmPayment_IdempotentReplay(t *testing.T) {
	svc, m := newTestService()

	paymentID := uuid.New().String()
	completedAt := testNow.Add(-time.Hour)
	payment := &models.Payment{
		ID:          paymentID,
		SellerID:    "seller-1",
		Status:      models.PaymentStatusCompleted,
		CompletedAt: &completedAt,
	}

	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.payments.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(payment, nil)

	result, err := svc.ConfirmPayment(context.Background(), paymentID, true, "txn-2", "")

	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, models.PaymentStatusCompleted, result.Status)

	m.payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	m.subs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	m.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPayment_FailureMarksPaymentFailed(t *testing.T) {
	svc, m := newTestService()

	paymentID := uuid.New().String()
	payment := &models.Payment{
		ID:       paymentID,
		SellerID: "seller-1",
		PlanID:   "premium-monthly",
		Status:   models.PaymentStatusPending,
	}

	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.payments.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(payment, nil)
	m.payments.On("Update", mock.Anything, mock.Anything, payment).Return(nil)
	m.notifier.On("Notify", mock.Anything, "seller-1", ports.EventPaymentFailed, mock.Anything).Return()

	result, err := svc.ConfirmPayment(context.Background(), paymentID, false, "", "card_declined")

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, result.Status)
	assert.Empty(t, result.SubscriptionID)

	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	require.NotNil(t, payment.ErrorMessage)
	assert.Equal(t, "card_declined", *payment.ErrorMessage)

	m.subs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	m.subs.AssertNotCalled(t, "GetActiveBySeller", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPayment_RenewalRollsCycleFromOldEndDate(t *testing.T) {
	svc, m := newTestService()

	paymentID := uuid.New().String()
	payment := &models.Payment{
		ID:       paymentID,
		SellerID: "seller-1",
		PlanID:   "premium-monthly",
		Amount:   decimal.NewFromFloat(49.99),
		Currency: "USD",
		Status:   models.PaymentStatusPending,
	}

	// Confirmation arrives two days after the old cycle ended.
	oldEnd := testNow.Add(-48 * time.Hour)
	sub := &models.Subscription{
		ID:             uuid.New().String(),
		SellerID:       "seller-1",
		PlanID:         "premium-monthly",
		MonthlyFee:     decimal.NewFromFloat(49.99),
		Currency:       "USD",
		StartDate:      oldEnd.AddDate(0, -1, 0),
		EndDate:        &oldEnd,
		IsActive:       true,
		IsAutoRenewing: true,
	}

	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.payments.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(payment, nil)
	m.payments.On("Update", mock.Anything, mock.Anything, payment).Return(nil)
	m.subs.On("GetActiveBySeller", mock.Anything, mock.Anything, "seller-1").Return(sub, nil)
	m.subs.On("Update", mock.Anything, mock.Anything, sub).Return(nil)
	expectProjection(m, "seller-1", true)
	m.notifier.On("Notify", mock.Anything, "seller-1", ports.EventPremiumRenewed, mock.Anything).Return()

	result, err := svc.ConfirmPayment(context.Background(), paymentID, true, "txn-3", "")

	require.NoError(t, err)
	assert.Equal(t, sub.ID, result.SubscriptionID)

	// The new cycle starts where the old one ended, leaving no coverage gap.
	assert.Equal(t, oldEnd, sub.StartDate)
	require.NotNil(t, sub.EndDate)
	assert.Equal(t, models.NextPeriodEnd(oldEnd), *sub.EndDate)
	require.NotNil(t, sub.PaymentID)
	assert.Equal(t, paymentID, *sub.PaymentID)
	m.subs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPayment_RetriesVersionConflict(t *testing.T) {
	svc, m := newTestService()

	paymentID := uuid.New().String()
	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)

	// Each attempt re-reads a fresh row.
	for i := 0; i < 2; i++ {
		m.payments.On("GetByID", mock.Anything, mock.Anything, mock.Anything).
			Return(&models.Payment{ID: paymentID, SellerID: "seller-1", Status: models.PaymentStatusPending}, nil).Once()
	}
	m.payments.On("Update", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ErrVersionConflict).Once()
	m.payments.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	m.notifier.On("Notify", mock.Anything, "seller-1", ports.EventPaymentFailed, mock.Anything).Return()

	result, err := svc.ConfirmPayment(context.Background(), paymentID, false, "", "declined")

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, result.Status)
	m.payments.AssertNumberOfCalls(t, "GetByID", 2)
	m.notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestConfirmPayment_ConflictRetriesExhausted(t *testing.T) {
	svc, m := newTestService()

	paymentID := uuid.New().String()
	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	for i := 0; i < conflictRetries; i++ {
		m.payments.On("GetByID", mock.Anything, mock.Anything, mock.Anything).
			Return(&models.Payment{ID: paymentID, SellerID: "seller-1", Status: models.PaymentStatusPending}, nil).Once()
	}
	m.payments.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrVersionConflict)

	result, err := svc.ConfirmPayment(context.Background(), paymentID, false, "", "declined")

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeVersionConflict, domain.GetErrorCode(err))
	assert.Nil(t, result)
	m.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func cancellableSubscription(startedAgo time.Duration) (*models.Subscription, *models.Payment) {
	paymentID := uuid.New().String()
	txnID := "txn-cap-1"
	end := testNow.AddDate(0, 1, 0)
	sub := &models.Subscription{
		ID:             uuid.New().String(),
		SellerID:       "seller-1",
		PlanID:         "premium-monthly",
		MonthlyFee:     decimal.NewFromInt(100),
		Currency:       "USD",
		StartDate:      testNow.Add(-startedAgo),
		EndDate:        &end,
		IsActive:       true,
		IsAutoRenewing: true,
		PaymentID:      &paymentID,
	}
	completedAt := sub.StartDate
	payment := &models.Payment{
		ID:            paymentID,
		SellerID:      "seller-1",
		PlanID:        "premium-monthly",
		Amount:        decimal.NewFromInt(100),
		Currency:      "USD",
		Status:        models.PaymentStatusCompleted,
		ProviderTxnID: &txnID,
		CompletedAt:   &completedAt,
	}
	return sub, payment
}

func TestCancelWithRefund_FullTier(t *testing.T) {
	svc, m := newTestService()
	sub, payment := cancellableSubscription(12 * time.Hour)

	m.subs.On("GetByID", mock.Anything, mock.Anything, uuid.MustParse(sub.ID)).Return(sub, nil)
	m.payments.On("GetByID", mock.Anything, mock.Anything, uuid.MustParse(payment.ID)).Return(payment, nil)
	m.provider.On("Refund", mock.Anything, "txn-cap-1", mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.StringFixed(2) == "100.00"
	}), "USD").Return(&ports.RefundResult{Approved: true}, nil)

	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.payments.On("Update", mock.Anything, mock.Anything, payment).Return(nil)
	m.subs.On("Update", mock.Anything, mock.Anything, sub).Return(nil)
	m.subs.On("GetActiveBySeller", mock.Anything, mock.Anything, "seller-1").
		Return(nil, domain.ErrSubscriptionNotFound)

	since := testNow.AddDate(0, -3, 0)
	var flaggedSince *time.Time
	m.sellers.On("GetPremiumProfile", mock.Anything, mock.Anything, "seller-1").
		Return(&models.SellerPremiumProfile{SellerID: "seller-1", CategoryID: "electronics", IsPremium: true, PremiumSince: &since}, nil)
	m.sellers.On("SetPremiumFlags", mock.Anything, mock.Anything, "seller-1", false, mock.Anything).
		Run(func(args mock.Arguments) { flaggedSince, _ = args.Get(4).(*time.Time) }).
		Return(nil)
	m.sellers.On("SetVerifiedBadge", mock.Anything, mock.Anything, "seller-1", false).Return(nil)

	m.notifier.On("Notify", mock.Anything, "seller-1", ports.EventPremiumCancelled, mock.Anything).Return()
	m.notifier.On("Notify", mock.Anything, "seller-1", ports.EventRefundIssued, mock.Anything).Return()

	cancelAt := testNow
	eligibility, err := svc.CancelWithRefund(context.Background(), sub.ID, cancelAt)

	require.NoError(t, err)
	assert.Equal(t, int64(100), eligibility.Percentage)
	assert.Equal(t, "100.00", eligibility.Amount.StringFixed(2))

	assert.Equal(t, models.PaymentStatusRefunded, payment.Status)
	assert.False(t, sub.IsActive)
	assert.False(t, sub.IsAutoRenewing)
	require.NotNil(t, sub.EndDate)
	assert.Equal(t, cancelAt, *sub.EndDate)

	// premium_since survives cancellation; only the flag is cleared.
	require.NotNil(t, flaggedSince)
	assert.Equal(t, since, *flaggedSince)
	m.notifier.AssertNumberOfCalls(t, "Notify", 2)
}

func TestCancelWithRefund_ProviderErrorLeavesSubscriptionUntouched(t *testing.T) {
	svc, m := newTestService()
	sub, payment := cancellableSubscription(12 * time.Hour)

	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)
	m.payments.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(payment, nil)
	m.provider.On("Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("gateway timeout"))

	eligibility, err := svc.CancelWithRefund(context.Background(), sub.ID, testNow)

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeProviderUnavailable, domain.GetErrorCode(err))
	assert.Nil(t, eligibility)

	assert.True(t, sub.IsActive)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	m.db.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
	m.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelWithRefund_DeclinedLeavesSubscriptionUntouched(t *testing.T) {
	svc, m := newTestService()
	sub, payment := cancellableSubscription(12 * time.Hour)

	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)
	m.payments.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(payment, nil)
	m.provider.On("Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&ports.RefundResult{Approved: false, ErrorMessage: "risk_rejected"}, nil)

	_, err := svc.CancelWithRefund(context.Background(), sub.ID, testNow)

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeRefundFailed, domain.GetErrorCode(err))
	assert.True(t, sub.IsActive)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	m.db.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
}

func TestCancelWithRefund_ZeroTierSkipsProvider(t *testing.T) {
	svc, m := newTestService()
	sub, _ := cancellableSubscription(5 * 24 * time.Hour)

	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)
	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.subs.On("Update", mock.Anything, mock.Anything, sub).Return(nil)
	m.subs.On("GetActiveBySeller", mock.Anything, mock.Anything, "seller-1").
		Return(nil, domain.ErrSubscriptionNotFound)
	expectProjection(m, "seller-1", false)
	m.notifier.On("Notify", mock.Anything, "seller-1", ports.EventPremiumCancelled, mock.Anything).Return()

	eligibility, err := svc.CancelWithRefund(context.Background(), sub.ID, testNow)

	require.NoError(t, err)
	assert.Equal(t, int64(0), eligibility.Percentage)
	assert.True(t, eligibility.Amount.IsZero())
	assert.False(t, sub.IsActive)

	m.provider.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	// No refund notification when nothing was refunded.
	m.notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestCancelWithRefund_ConcurrentCancellationDoesNotNotifyTwice(t *testing.T) {
	svc, m := newTestService()
	sub, _ := cancellableSubscription(5 * 24 * time.Hour)

	deactivated := *sub
	deactivated.IsActive = false

	// Active on the first read, gone by the in-transaction recheck.
	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil).Once()
	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(&deactivated, nil).Once()
	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)

	eligibility, err := svc.CancelWithRefund(context.Background(), sub.ID, testNow)

	require.NoError(t, err)
	require.NotNil(t, eligibility)
	assert.Equal(t, int64(0), eligibility.Percentage)

	m.subs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	m.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelWithRefund_NotActive(t *testing.T) {
	svc, m := newTestService()

	sub := &models.Subscription{ID: uuid.New().String(), SellerID: "seller-1", IsActive: false}
	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)

	_, err := svc.CancelWithRefund(context.Background(), sub.ID, testNow)

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeSubscriptionNotActive, domain.GetErrorCode(err))
}

func TestSetAutoRenewal(t *testing.T) {
	t.Run("disable keeps subscription active until end date", func(t *testing.T) {
		svc, m := newTestService()
		end := testNow.AddDate(0, 1, 0)
		sub := &models.Subscription{ID: uuid.New().String(), SellerID: "seller-1", IsActive: true, IsAutoRenewing: true, EndDate: &end}

		m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)
		m.subs.On("Update", mock.Anything, mock.Anything, sub).Return(nil)

		err := svc.CancelAutoRenewal(context.Background(), sub.ID)

		require.NoError(t, err)
		assert.False(t, sub.IsAutoRenewing)
		assert.True(t, sub.IsActive)
	})

	t.Run("enable on current subscription", func(t *testing.T) {
		svc, m := newTestService()
		end := testNow.AddDate(0, 1, 0)
		sub := &models.Subscription{ID: uuid.New().String(), SellerID: "seller-1", IsActive: true, EndDate: &end}

		m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)
		m.subs.On("Update", mock.Anything, mock.Anything, sub).Return(nil)

		err := svc.EnableAutoRenewal(context.Background(), sub.ID)

		require.NoError(t, err)
		assert.True(t, sub.IsAutoRenewing)
	})

	t.Run("enable on lapsed subscription fails", func(t *testing.T) {
		svc, m := newTestService()
		past := testNow.Add(-time.Hour)
		sub := &models.Subscription{ID: uuid.New().String(), SellerID: "seller-1", IsActive: true, EndDate: &past}

		m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)

		err := svc.EnableAutoRenewal(context.Background(), sub.ID)

		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeSubscriptionNotActive, domain.GetErrorCode(err))
		m.subs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("disable on inactive subscription fails", func(t *testing.T) {
		svc, m := newTestService()
		sub := &models.Subscription{ID: uuid.New().String(), SellerID: "seller-1", IsActive: false}

		m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)

		err := svc.CancelAutoRenewal(context.Background(), sub.ID)

		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeSubscriptionNotActive, domain.GetErrorCode(err))
	})
}

func TestGetRefundEligibility(t *testing.T) {
	svc, m := newTestService()

	end := testNow.AddDate(0, 1, 0)
	sub := &models.Subscription{
		ID:         uuid.New().String(),
		SellerID:   "seller-1",
		MonthlyFee: decimal.NewFromFloat(49.99),
		StartDate:  testNow.Add(-48 * time.Hour),
		EndDate:    &end,
		IsActive:   true,
	}
	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)

	eligibility, err := svc.GetRefundEligibility(context.Background(), sub.ID, testNow)

	require.NoError(t, err)
	assert.Equal(t, int64(50), eligibility.Percentage)
	assert.Equal(t, "25.00", eligibility.Amount.StringFixed(2))
	assert.Equal(t, testNow, eligibility.AsOf)
}

func TestGetRefundEligibility_NotActive(t *testing.T) {
	svc, m := newTestService()

	sub := &models.Subscription{ID: uuid.New().String(), SellerID: "seller-1", IsActive: false}
	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)

	_, err := svc.GetRefundEligibility(context.Background(), sub.ID, testNow)

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeSubscriptionNotActive, domain.GetErrorCode(err))
}

func TestExpireIfDue_NotDue(t *testing.T) {
	svc, m := newTestService()

	end := testNow.AddDate(0, 1, 0)
	sub := &models.Subscription{ID: uuid.New().String(), SellerID: "seller-1", IsActive: true, EndDate: &end}
	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)

	outcome, err := svc.ExpireIfDue(context.Background(), sub.ID, testNow)

	require.NoError(t, err)
	assert.False(t, outcome.Expired)
	assert.False(t, outcome.Renewed)
	m.subs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestExpireIfDue_NonRenewingExpires(t *testing.T) {
	svc, m := newTestService()

	end := testNow.Add(-time.Hour)
	sub := &models.Subscription{ID: uuid.New().String(), SellerID: "seller-1", IsActive: true, IsAutoRenewing: false, EndDate: &end}

	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)
	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.subs.On("Update", mock.Anything, mock.Anything, sub).Return(nil)
	m.subs.On("GetActiveBySeller", mock.Anything, mock.Anything, "seller-1").
		Return(nil, domain.ErrSubscriptionNotFound)
	expectProjection(m, "seller-1", false)
	m.notifier.On("Notify", mock.Anything, "seller-1", ports.EventPremiumExpired, mock.Anything).Return()

	outcome, err := svc.ExpireIfDue(context.Background(), sub.ID, testNow)

	require.NoError(t, err)
	assert.True(t, outcome.Expired)
	assert.False(t, outcome.Renewed)
	assert.False(t, sub.IsActive)
	m.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	m.provider.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestExpireIfDue_RenewalApproved(t *testing.T) {
	svc, m := newTestService()

	oldEnd := testNow.Add(-time.Hour)
	sub := &models.Subscription{
		ID:             uuid.New().String(),
		SellerID:       "seller-1",
		PlanID:         "premium-monthly",
		MonthlyFee:     decimal.NewFromFloat(49.99),
		Currency:       "USD",
		StartDate:      oldEnd.AddDate(0, -1, 0),
		EndDate:        &oldEnd,
		IsActive:       true,
		IsAutoRenewing: true,
	}

	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)
	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)

	var renewal *models.Payment
	m.payments.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*models.Payment")).
		Run(func(args mock.Arguments) { renewal = args.Get(2).(*models.Payment) }).
		Return(nil)

	var captured ports.CaptureRequest
	m.provider.On("Capture", mock.Anything, mock.AnythingOfType("ports.CaptureRequest")).
		Run(func(args mock.Arguments) { captured = args.Get(1).(ports.CaptureRequest) }).
		Return(&ports.CaptureResult{Approved: true, ProviderTxnID: "txn-renew"}, nil)

	// ConfirmPayment re-reads the renewal payment inside its own transaction.
	pendingRenewal := &models.Payment{
		ID:       uuid.New().String(),
		SellerID: "seller-1",
		PlanID:   "premium-monthly",
		Amount:   decimal.NewFromFloat(49.99),
		Currency: "USD",
		Status:   models.PaymentStatusPending,
	}
	m.payments.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(pendingRenewal, nil)
	m.payments.On("Update", mock.Anything, mock.Anything, pendingRenewal).Return(nil)
	m.subs.On("GetActiveBySeller", mock.Anything, mock.Anything, "seller-1").Return(sub, nil)
	m.subs.On("Update", mock.Anything, mock.Anything, sub).Return(nil)
	expectProjection(m, "seller-1", true)
	m.notifier.On("Notify", mock.Anything, "seller-1", ports.EventPremiumRenewed, mock.Anything).Return()

	outcome, err := svc.ExpireIfDue(context.Background(), sub.ID, testNow)

	require.NoError(t, err)
	assert.True(t, outcome.Renewed)
	assert.False(t, outcome.Expired)
	require.NotNil(t, renewal)
	assert.Equal(t, renewal.ID, outcome.RenewalPayment)

	// The capture is keyed on the payment id for provider-side dedup.
	assert.Equal(t, renewal.ID, captured.Reference)
	assert.Equal(t, "49.99", captured.Amount.StringFixed(2))

	// The new cycle starts at the old end date, not at sweep time.
	assert.Equal(t, oldEnd, sub.StartDate)
	require.NotNil(t, sub.EndDate)
	assert.Equal(t, models.NextPeriodEnd(oldEnd), *sub.EndDate)
	assert.Equal(t, models.PaymentStatusCompleted, pendingRenewal.Status)
}

func TestExpireIfDue_RenewalDeclinedExpires(t *testing.T) {
	svc, m := newTestService()

	oldEnd := testNow.Add(-time.Hour)
	sub := &models.Subscription{
		ID:             uuid.New().String(),
		SellerID:       "seller-1",
		PlanID:         "premium-monthly",
		MonthlyFee:     decimal.NewFromFloat(49.99),
		Currency:       "USD",
		EndDate:        &oldEnd,
		IsActive:       true,
		IsAutoRenewing: true,
	}

	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)
	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.payments.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.provider.On("Capture", mock.Anything, mock.Anything).
		Return(&ports.CaptureResult{Approved: false, ErrorMessage: "insufficient_funds"}, nil)

	failedRenewal := &models.Payment{
		ID:       uuid.New().String(),
		SellerID: "seller-1",
		PlanID:   "premium-monthly",
		Status:   models.PaymentStatusPending,
	}
	m.payments.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(failedRenewal, nil)
	m.payments.On("Update", mock.Anything, mock.Anything, failedRenewal).Return(nil)
	m.notifier.On("Notify", mock.Anything, "seller-1", ports.EventPaymentFailed, mock.Anything).Return()

	m.subs.On("Update", mock.Anything, mock.Anything, sub).Return(nil)
	m.subs.On("GetActiveBySeller", mock.Anything, mock.Anything, "seller-1").
		Return(nil, domain.ErrSubscriptionNotFound)
	expectProjection(m, "seller-1", false)

	outcome, err := svc.ExpireIfDue(context.Background(), sub.ID, testNow)

	require.NoError(t, err)
	assert.True(t, outcome.Expired)
	assert.False(t, outcome.Renewed)
	assert.NotEmpty(t, outcome.RenewalPayment)
	assert.False(t, sub.IsActive)
	assert.Equal(t, models.PaymentStatusFailed, failedRenewal.Status)
	require.NotNil(t, failedRenewal.ErrorMessage)
	assert.Equal(t, "insufficient_funds", *failedRenewal.ErrorMessage)
}

func TestExpireIfDue_CaptureUnknownLeavesPaymentPending(t *testing.T) {
	svc, m := newTestService()

	oldEnd := testNow.Add(-time.Hour)
	sub := &models.Subscription{
		ID:             uuid.New().String(),
		SellerID:       "seller-1",
		PlanID:         "premium-monthly",
		MonthlyFee:     decimal.NewFromFloat(49.99),
		Currency:       "USD",
		EndDate:        &oldEnd,
		IsActive:       true,
		IsAutoRenewing: true,
	}

	m.subs.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil)
	m.db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)

	var renewal *models.Payment
	m.payments.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*models.Payment")).
		Run(func(args mock.Arguments) { renewal = args.Get(2).(*models.Payment) }).
		Return(nil)
	m.provider.On("Capture", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	outcome, err := svc.ExpireIfDue(context.Background(), sub.ID, testNow)

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeProviderUnavailable, domain.GetErrorCode(err))
	assert.Nil(t, outcome)

	// The pending row stays for the reconciliation sweep to settle.
	require.NotNil(t, renewal)
	assert.Equal(t, models.PaymentStatusPending, renewal.Status)
	m.payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	m.subs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	assert.True(t, sub.IsActive)
}
