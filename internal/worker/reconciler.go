package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marketbase/premium-service/internal/domain/ports"
	"github.com/marketbase/premium-service/internal/metrics"
	svcports "github.com/marketbase/premium-service/internal/services/ports"
	"github.com/marketbase/premium-service/pkg/timeutil"
)

// Reconciler is the periodic sweep that settles payments stuck in a
// non-terminal state and expires or renews subscriptions whose end date has
// passed. It runs independently of live requests; ConfirmPayment's
// idempotency makes the two paths converge safely when they race.
type Reconciler struct {
	payments  ports.PaymentRepository
	subs      ports.SubscriptionRepository
	provider  ports.PaymentProvider
	lifecycle svcports.LifecycleService
	logger    *zap.Logger

	interval  time.Duration
	grace     time.Duration
	batchSize int32

	ticker   *time.Ticker
	shutdown chan struct{}
	wg       sync.WaitGroup
	now      func() time.Time
}

// SweepResult summarizes one reconciliation sweep
type SweepResult struct {
	PaymentsProcessed int
	PaymentsSettled   int
	PaymentsSkipped   int
	PaymentsFailed    int
	ExpiriesProcessed int
	ExpiriesFailed    int
	Renewed           int
}

// NewReconciler creates a new payment reconciliation worker
func NewReconciler(
	payments ports.PaymentRepository,
	subs ports.SubscriptionRepository,
	provider ports.PaymentProvider,
	lc svcports.LifecycleService,
	interval, grace time.Duration,
	batchSize int32,
	logger *zap.Logger,
) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if grace <= 0 {
		grace = 2 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Reconciler{
		payments:  payments,
		subs:      subs,
		provider:  provider,
		lifecycle: lc,
		logger:    logger,
		interval:  interval,
		grace:     grace,
		batchSize: batchSize,
		shutdown:  make(chan struct{}),
		now:       timeutil.Now,
	}
}

// Start launches the sweep loop. The first sweep runs immediately to catch
// anything that drifted while the service was down.
func (r *Reconciler) Start() {
	r.logger.Info("starting payment reconciliation worker",
		zap.Duration("interval", r.interval),
		zap.Duration("grace", r.grace))

	r.ticker = time.NewTicker(r.interval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.RunSweep(context.Background())

		for {
			select {
			case <-r.ticker.C:
				r.RunSweep(context.Background())
			case <-r.shutdown:
				r.logger.Info("reconciliation worker shutdown signal received")
				return
			}
		}
	}()
}

// RunSweep executes one reconciliation pass: settle stuck payments, then
// expire or renew due subscriptions. A single item's failure never aborts the
// batch; it is logged and the loop continues.
func (r *Reconciler) RunSweep(ctx context.Context) *SweepResult {
	start := time.Now()
	metrics.ReconcileSweeps.Inc()

	result := &SweepResult{}
	now := r.now()

	r.sweepPayments(ctx, now, result)
	r.sweepExpirations(ctx, now, result)

	metrics.SweepDuration.Observe(time.Since(start).Seconds())

	r.logger.Info("reconciliation sweep completed",
		zap.Int("payments_processed", result.PaymentsProcessed),
		zap.Int("payments_settled", result.PaymentsSettled),
		zap.Int("payments_skipped", result.PaymentsSkipped),
		zap.Int("payments_failed", result.PaymentsFailed),
		zap.Int("expiries_processed", result.ExpiriesProcessed),
		zap.Int("expiries_failed", result.ExpiriesFailed),
		zap.Int("renewed", result.Renewed),
		zap.Duration("elapsed", time.Since(start)))

	return result
}

// sweepPayments settles payments still pending or processing past the grace
// threshold. The grace window avoids racing a just-initiated synchronous
// confirmation that is still in flight.
func (r *Reconciler) sweepPayments(ctx context.Context, now time.Time, result *SweepResult) {
	cutoff := now.Add(-r.grace)
	stuck, err := r.payments.ListPendingOrProcessingOlderThan(ctx, nil, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error("failed to list stuck payments", zap.Error(err))
		return
	}

	if len(stuck) == 0 {
		return
	}

	r.logger.Info("reconciling stuck payments", zap.Int("count", len(stuck)))

	for _, payment := range stuck {
		if r.stopping() {
			r.logger.Info("reconciliation worker stopping mid-batch")
			return
		}

		result.PaymentsProcessed++

		status, err := r.provider.QueryStatus(ctx, payment.ID)
		if err != nil {
			// Unknown outcome; leave the payment for the next tick.
			result.PaymentsFailed++
			metrics.ReconcileItems.WithLabelValues("payment", "error").Inc()
			r.logger.Warn("provider status query failed",
				zap.String("payment_id", payment.ID),
				zap.Error(err))
			continue
		}

		switch status.Status {
		case ports.ProviderStatusPending:
			result.PaymentsSkipped++
			metrics.ReconcileItems.WithLabelValues("payment", "pending").Inc()
			continue
		case ports.ProviderStatusCompleted:
			_, err = r.lifecycle.ConfirmPayment(ctx, payment.ID, true, status.ProviderTxnID, "")
		case ports.ProviderStatusFailed:
			_, err = r.lifecycle.ConfirmPayment(ctx, payment.ID, false, "", status.ErrorMessage)
		}
		if err != nil {
			result.PaymentsFailed++
			metrics.ReconcileItems.WithLabelValues("payment", "error").Inc()
			r.logger.Error("payment confirmation failed during sweep",
				zap.String("payment_id", payment.ID),
				zap.Error(err))
			continue
		}

		result.PaymentsSettled++
		metrics.ReconcileItems.WithLabelValues("payment", "settled").Inc()
	}
}

// sweepExpirations expires or renews active subscriptions past their end date
func (r *Reconciler) sweepExpirations(ctx context.Context, now time.Time, result *SweepResult) {
	due, err := r.subs.ListActiveDueForExpiry(ctx, nil, now, r.batchSize)
	if err != nil {
		r.logger.Error("failed to list due subscriptions", zap.Error(err))
		return
	}

	if len(due) == 0 {
		return
	}

	r.logger.Info("processing due subscriptions", zap.Int("count", len(due)))

	for _, sub := range due {
		if r.stopping() {
			r.logger.Info("reconciliation worker stopping mid-batch")
			return
		}

		result.ExpiriesProcessed++

		outcome, err := r.lifecycle.ExpireIfDue(ctx, sub.ID, now)
		if err != nil {
			result.ExpiriesFailed++
			metrics.ReconcileItems.WithLabelValues("expiry", "error").Inc()
			r.logger.Error("expiry processing failed during sweep",
				zap.String("subscription_id", sub.ID),
				zap.Error(err))
			continue
		}
		if outcome.Renewed {
			result.Renewed++
			metrics.ReconcileItems.WithLabelValues("expiry", "renewed").Inc()
		} else if outcome.Expired {
			metrics.ReconcileItems.WithLabelValues("expiry", "expired").Inc()
		}
	}
}

func (r *Reconciler) stopping() bool {
	select {
	case <-r.shutdown:
		return true
	default:
		return false
	}
}

// Shutdown stops the worker cooperatively: the in-flight item finishes, the
// summary is logged, and no new tick starts.
func (r *Reconciler) Shutdown(ctx context.Context) error {
	r.logger.Info("shutting down reconciliation worker")

	if r.ticker != nil {
		r.ticker.Stop()
	}
	close(r.shutdown)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("reconciliation worker shutdown complete")
		return nil
	case <-ctx.Done():
		r.logger.Warn("reconciliation worker shutdown timeout")
		return ctx.Err()
	}
}
