package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrIllegalTransition is returned when a status change violates the
// payment transition table.
var ErrIllegalTransition = errors.New("illegal payment status transition")

// PaymentStatus represents the current state of a premium payment
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// legalPaymentTransitions is the closed transition table for payment statuses.
// Transitions are monotonic: pending -> processing -> {completed|failed};
// completed -> refunded is the only post-terminal move.
var legalPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
	PaymentStatusFailed:     {},
	PaymentStatusRefunded:   {},
}

// CanTransitionTo reports whether moving to next is a legal status change
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range legalPaymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the payment has reached a confirmed outcome
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// Payment represents a premium purchase or renewal charge
type Payment struct {
	ID            string
	SellerID      string
	PlanID        string
	Amount        decimal.Decimal
	Currency      string
	Provider      string
	ProviderTxnID *string
	Status        PaymentStatus
	ErrorMessage  *string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// TransitionTo moves the payment to the next status, rejecting illegal moves
func (p *Payment) TransitionTo(next PaymentStatus, at time.Time) error {
	if !p.Status.CanTransitionTo(next) {
		return fmt.Errorf("payment %s: %s -> %s: %w", p.ID, p.Status, next, ErrIllegalTransition)
	}
	p.Status = next
	p.UpdatedAt = at
	if next == PaymentStatusCompleted {
		completed := at
		p.CompletedAt = &completed
	}
	return nil
}
