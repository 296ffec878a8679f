package domain

// EventKind is the tagged set of payment-provider webhook events this
// system reacts to. Unknown provider event types deliberately parse to
// ok=false and are ignored, so the provider's catalog can grow without
// breaking the receiver.
type EventKind string

const (
	EventCustomerCreated     EventKind = "customer.created"
	EventCustomerDeleted     EventKind = "customer.deleted"
	EventSubscriptionCreated EventKind = "customer.subscription.created"
	EventSubscriptionUpdated EventKind = "customer.subscription.updated"
	EventSubscriptionPaused  EventKind = "customer.subscription.paused"
	EventSubscriptionDeleted EventKind = "customer.subscription.deleted"
	EventInvoicePaid         EventKind = "invoice.paid"
	EventInvoicePaymentFail  EventKind = "invoice.payment_failed"

	// EventEnrollFreeTier is an internal task, not a provider event: it
	// provisions the placeholder free subscription after customer creation.
	EventEnrollFreeTier EventKind = "customer.enroll_free_tier"
)

var eventKinds = map[EventKind]struct{}{
	EventCustomerCreated:     {},
	EventCustomerDeleted:     {},
	EventSubscriptionCreated: {},
	EventSubscriptionUpdated: {},
	EventSubscriptionPaused:  {},
	EventSubscriptionDeleted: {},
	EventInvoicePaid:         {},
	EventInvoicePaymentFail:  {},
	EventEnrollFreeTier:      {},
}

// ParseEventKind maps a provider event-type string onto the tagged set.
func ParseEventKind(s string) (EventKind, bool) {
	k := EventKind(s)
	_, ok := eventKinds[k]
	return k, ok
}
