package ports

import "context"

// EventKind identifies a premium lifecycle event sent to sellers
type EventKind string

const (
	EventPremiumActivated EventKind = "premium.activated"
	EventPremiumRenewed   EventKind = "premium.renewed"
	EventPremiumCancelled EventKind = "premium.cancelled"
	EventPremiumExpired   EventKind = "premium.expired"
	EventPremiumRevoked   EventKind = "premium.revoked"
	EventPaymentFailed    EventKind = "premium.payment_failed"
	EventRefundIssued     EventKind = "premium.refund_issued"
)

// Notifier is the fire-and-forget notification boundary. Implementations
// deliver asynchronously and log delivery failures; a billing operation never
// fails because a notification did.
type Notifier interface {
	Notify(ctx context.Context, sellerID string, kind EventKind, payload map[string]interface{})
}
