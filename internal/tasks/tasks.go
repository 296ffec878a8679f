// Package tasks holds the asynchronous webhook handlers. Each handler is
// idempotent by lookup and overwrites absolute state, so replayed or
// out-of-order provider events converge on the same rows.
package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ferdiga/subgate/internal/domain"
	"github.com/ferdiga/subgate/internal/queue"
)

// FreePlanName is the plan looked up for auto-enrollment.
const FreePlanName = "free"

// freeSubscriptionID is the placeholder provider reference stamped onto
// auto-enrolled free subscriptions, which never exist at the provider.
const freeSubscriptionID = "sub_free"

// Handler processes one decoded task payload.
type Handler func(ctx context.Context, payload []byte) error

// Handlers owns the store and broker dependencies shared by every task.
type Handlers struct {
	users  domain.UserStore
	plans  domain.PlanStore
	subs   domain.SubscriptionStore
	broker queue.Broker
	logger *slog.Logger
	now    func() time.Time
}

func NewHandlers(users domain.UserStore, plans domain.PlanStore, subs domain.SubscriptionStore, broker queue.Broker, logger *slog.Logger) *Handlers {
	return &Handlers{
		users:  users,
		plans:  plans,
		subs:   subs,
		broker: broker,
		logger: logger,
		now:    time.Now,
	}
}

// For resolves the handler for an event kind. ok is false for kinds that
// have no task, which the worker treats as a terminal failure since the
// receiver only enqueues recognized kinds.
func (h *Handlers) For(kind domain.EventKind) (Handler, bool) {
	switch kind {
	case domain.EventCustomerCreated:
		return h.CustomerCreated, true
	case domain.EventCustomerDeleted:
		return h.CustomerDeleted, true
	case domain.EventEnrollFreeTier:
		return h.EnrollFreeTier, true
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated, domain.EventSubscriptionPaused:
		return h.SubscriptionUpserted, true
	case domain.EventSubscriptionDeleted:
		return h.SubscriptionDeleted, true
	case domain.EventInvoicePaid:
		return h.InvoicePaid, true
	case domain.EventInvoicePaymentFail:
		return h.InvoicePaymentFailed, true
	}
	return nil, false
}

// CustomerCreated reconciles a provider customer with a local user. The
// signup path usually creates the user first, so the common case is
// stamping the customer reference onto an existing row; replays no-op.
func (h *Handlers) CustomerCreated(ctx context.Context, payload []byte) error {
	var p customerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.Invalid("tasks.CustomerCreated", "malformed customer payload")
	}
	if p.ID == "" || p.Email == "" {
		return domain.Invalid("tasks.CustomerCreated", "customer payload missing id or email")
	}

	user, err := h.users.GetByCustomerID(ctx, p.ID)
	if err != nil {
		return err
	}
	if user != nil {
		h.logger.Debug("customer already linked", "customer_id", p.ID, "user_id", user.ID)
		// Re-enqueue enrollment on replays too: it no-ops for users
		// already holding an active free subscription and heals an
		// earlier enrollment that failed permanently.
		return h.enqueueEnrollment(ctx, user.ID)
	}

	user, err = h.users.GetByEmail(ctx, p.Email)
	if err != nil {
		return err
	}
	if user == nil {
		user, err = h.users.Create(ctx, p.Email)
		if err != nil {
			return err
		}
	}
	if err := h.users.SetCustomerID(ctx, user.ID, p.ID); err != nil {
		return err
	}

	h.logger.Info("customer linked", "customer_id", p.ID, "user_id", user.ID)
	return h.enqueueEnrollment(ctx, user.ID)
}

func (h *Handlers) enqueueEnrollment(ctx context.Context, userID int64) error {
	enroll, err := json.Marshal(enrollPayload{UserID: userID})
	if err != nil {
		return domain.Internal(err, "tasks.CustomerCreated", "encoding enrollment payload")
	}
	return h.broker.Enqueue(ctx, string(domain.EventEnrollFreeTier), enroll)
}

// CustomerDeleted removes the user linked to the provider customer. A
// missing row is an error so a delete racing the create gets retried.
func (h *Handlers) CustomerDeleted(ctx context.Context, payload []byte) error {
	var p customerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.Invalid("tasks.CustomerDeleted", "malformed customer payload")
	}
	if p.ID == "" {
		return domain.Invalid("tasks.CustomerDeleted", "customer payload missing id")
	}

	if err := h.users.DeleteByCustomerID(ctx, p.ID); err != nil {
		return err
	}
	h.logger.Info("customer deleted", "customer_id", p.ID)
	return nil
}

// EnrollFreeTier provisions the placeholder free subscription for a newly
// linked user. A user already holding an active free subscription no-ops.
func (h *Handlers) EnrollFreeTier(ctx context.Context, payload []byte) error {
	var p enrollPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.Invalid("tasks.EnrollFreeTier", "malformed enrollment payload")
	}
	if p.UserID == 0 {
		return domain.Invalid("tasks.EnrollFreeTier", "enrollment payload missing user id")
	}

	active, err := h.subs.ListActiveByUser(ctx, p.UserID)
	if err != nil {
		return err
	}
	for _, sub := range active {
		if sub.Tier == domain.TierFree {
			h.logger.Debug("free tier already enrolled", "user_id", p.UserID)
			return nil
		}
	}

	plan, err := h.plans.GetByName(ctx, FreePlanName)
	if err != nil {
		return err
	}
	if plan == nil {
		return domain.Errorf(domain.ENOTFOUND, "tasks.EnrollFreeTier", "free plan is not provisioned")
	}

	sub, err := h.subs.Create(ctx, domain.CreateSubscriptionParams{
		UserID:               p.UserID,
		PlanID:               plan.ID,
		StripeSubscriptionID: freeSubscriptionID,
		Tier:                 domain.TierFree,
		Status:               "active",
		CurrentPeriodEnd:     h.now().UTC(),
		IsActive:             false,
	})
	if err != nil {
		return err
	}
	if err := h.subs.Activate(ctx, sub.ID); err != nil {
		return err
	}

	h.logger.Info("free tier enrolled", "user_id", p.UserID, "subscription_id", sub.ID)
	return nil
}

// SubscriptionUpserted handles subscription created, updated and paused
// events. All three refresh status and period end and mark the row
// active; paused carries no distinct semantics.
func (h *Handlers) SubscriptionUpserted(ctx context.Context, payload []byte) error {
	var p subscriptionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.Invalid("tasks.SubscriptionUpserted", "malformed subscription payload")
	}
	if p.ID == "" || p.Customer == "" {
		return domain.Invalid("tasks.SubscriptionUpserted", "subscription payload missing id or customer")
	}

	periodEnd, err := p.periodEnd()
	if err != nil {
		return err
	}

	err = h.subs.UpdateByProviderIDs(ctx, p.ID, p.Customer, domain.SubscriptionUpdate{
		Status:           p.Status,
		CurrentPeriodEnd: periodEnd,
		IsActive:         true,
	})
	if err != nil {
		return err
	}

	h.logger.Info("subscription refreshed", "subscription_id", p.ID, "status", p.Status)
	return nil
}

// SubscriptionDeleted cancels the matching row: provider status, period
// end, active=false and a cancellation timestamp.
func (h *Handlers) SubscriptionDeleted(ctx context.Context, payload []byte) error {
	var p subscriptionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.Invalid("tasks.SubscriptionDeleted", "malformed subscription payload")
	}
	if p.ID == "" || p.Customer == "" {
		return domain.Invalid("tasks.SubscriptionDeleted", "subscription payload missing id or customer")
	}

	periodEnd, err := p.periodEnd()
	if err != nil {
		return err
	}

	if err := h.subs.Cancel(ctx, p.ID, p.Customer, p.Status, periodEnd); err != nil {
		return err
	}

	h.logger.Info("subscription canceled", "subscription_id", p.ID)
	return nil
}

// InvoicePaid activates the subscription a first invoice settles.
// Invoices with any other billing reason are skipped; recurring renewals
// are already refreshed by subscription.updated events.
func (h *Handlers) InvoicePaid(ctx context.Context, payload []byte) error {
	p, skip, err := h.decodeInvoice("tasks.InvoicePaid", payload)
	if err != nil || skip {
		return err
	}

	subscriptionID := p.Lines.Data[0].Parent.SubscriptionItemDetails.Subscription
	periodEnd := time.Unix(p.Lines.Data[0].Period.End, 0).UTC()

	sub, err := h.subs.GetByProviderIDs(ctx, subscriptionID, p.Customer)
	if err != nil {
		return err
	}
	if sub == nil {
		return domain.Errorf(domain.ENOTFOUND, "tasks.InvoicePaid", "subscription %s not found for customer %s", subscriptionID, p.Customer)
	}

	err = h.subs.UpdateByProviderIDs(ctx, subscriptionID, p.Customer, domain.SubscriptionUpdate{
		Status:           p.Status,
		CurrentPeriodEnd: periodEnd,
		IsActive:         true,
	})
	if err != nil {
		return err
	}

	h.logger.Info("subscription activated by invoice", "subscription_id", subscriptionID, "customer_id", p.Customer)
	return nil
}

// InvoicePaymentFailed mirrors InvoicePaid but deactivates the row and
// records the failure.
func (h *Handlers) InvoicePaymentFailed(ctx context.Context, payload []byte) error {
	p, skip, err := h.decodeInvoice("tasks.InvoicePaymentFailed", payload)
	if err != nil || skip {
		return err
	}

	subscriptionID := p.Lines.Data[0].Parent.SubscriptionItemDetails.Subscription
	periodEnd := time.Unix(p.Lines.Data[0].Period.End, 0).UTC()

	sub, err := h.subs.GetByProviderIDs(ctx, subscriptionID, p.Customer)
	if err != nil {
		return err
	}
	if sub == nil {
		return domain.Errorf(domain.ENOTFOUND, "tasks.InvoicePaymentFailed", "subscription %s not found for customer %s", subscriptionID, p.Customer)
	}

	err = h.subs.UpdateByProviderIDs(ctx, subscriptionID, p.Customer, domain.SubscriptionUpdate{
		Status:           "failed",
		CurrentPeriodEnd: periodEnd,
		IsActive:         false,
	})
	if err != nil {
		return err
	}

	h.logger.Info("subscription deactivated by failed invoice", "subscription_id", subscriptionID, "customer_id", p.Customer)
	return nil
}

// decodeInvoice parses and validates an invoice payload. skip=true means
// the invoice is unrelated to a subscription start and carries no work.
func (h *Handlers) decodeInvoice(op string, payload []byte) (invoicePayload, bool, error) {
	var p invoicePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, false, domain.Invalid(op, "malformed invoice payload")
	}

	if p.BillingReason != "subscription_create" {
		h.logger.Debug("skipping invoice outside subscription creation", "billing_reason", p.BillingReason)
		return p, true, nil
	}
	if len(p.Lines.Data) == 0 {
		return p, false, domain.Invalid(op, "invoice payload has no lines")
	}
	if p.Lines.Data[0].Parent.SubscriptionItemDetails.Subscription == "" {
		return p, false, domain.Invalid(op, "invoice line carries no subscription reference")
	}
	if p.Customer == "" {
		return p, false, domain.Invalid(op, "invoice payload missing customer")
	}
	return p, false, nil
}
