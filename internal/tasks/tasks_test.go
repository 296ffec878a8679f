package tasks

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ferdiga/subgate/internal/domain"
	"github.com/ferdiga/subgate/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserStore struct {
	nextID  int64
	byEmail map[string]*domain.User
	calls   int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, byEmail: map[string]*domain.User{}}
}

func (f *fakeUserStore) Create(ctx context.Context, email string) (*domain.User, error) {
	f.calls++
	u := &domain.User{ID: f.nextID, Email: email}
	f.nextID++
	f.byEmail[email] = u
	return u, nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	f.calls++
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.calls++
	return f.byEmail[email], nil
}

func (f *fakeUserStore) GetByCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	f.calls++
	for _, u := range f.byEmail {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) List(ctx context.Context) ([]domain.User, error) {
	f.calls++
	return nil, nil
}

func (f *fakeUserStore) SetCustomerID(ctx context.Context, id int64, customerID string) error {
	f.calls++
	for _, u := range f.byEmail {
		if u.ID == id {
			u.StripeCustomerID = &customerID
			return nil
		}
	}
	return domain.NotFound("fake.SetCustomerID", "user", "")
}

func (f *fakeUserStore) DeleteByCustomerID(ctx context.Context, customerID string) error {
	f.calls++
	for email, u := range f.byEmail {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			delete(f.byEmail, email)
			return nil
		}
	}
	return domain.NotFound("fake.DeleteByCustomerID", "user", customerID)
}

type fakePlanStore struct {
	byName map[string]*domain.Plan
}

func (f *fakePlanStore) Create(ctx context.Context, params domain.CreatePlanParams) (*domain.Plan, error) {
	return nil, nil
}
func (f *fakePlanStore) GetByPriceID(ctx context.Context, priceID string) (*domain.Plan, error) {
	return nil, nil
}
func (f *fakePlanStore) GetByID(ctx context.Context, id int64) (*domain.Plan, error) {
	return nil, nil
}
func (f *fakePlanStore) GetByName(ctx context.Context, name string) (*domain.Plan, error) {
	return f.byName[name], nil
}
func (f *fakePlanStore) List(ctx context.Context) ([]domain.Plan, error) { return nil, nil }
func (f *fakePlanStore) ReplacePrice(ctx context.Context, oldPriceID, newPriceID string, priceCents int64, interval string) error {
	return nil
}
func (f *fakePlanStore) SetMeta(ctx context.Context, priceID string, name, description *string) error {
	return nil
}
func (f *fakePlanStore) DeleteByPriceID(ctx context.Context, priceID string) error { return nil }

type fakeSubStore struct {
	nextID int64
	rows   map[int64]*domain.Subscription
	calls  int
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{nextID: 1, rows: map[int64]*domain.Subscription{}}
}

func (f *fakeSubStore) Create(ctx context.Context, params domain.CreateSubscriptionParams) (*domain.Subscription, error) {
	f.calls++
	for _, row := range f.rows {
		if row.UserID == params.UserID && row.Tier == params.Tier && row.IsActive {
			return nil, domain.Conflict("fake.Create", "user already subscribed to this tier")
		}
	}
	sub := &domain.Subscription{
		ID:                   f.nextID,
		UserID:               params.UserID,
		PlanID:               params.PlanID,
		StripeSubscriptionID: params.StripeSubscriptionID,
		Tier:                 params.Tier,
		Status:               params.Status,
		CurrentPeriodEnd:     params.CurrentPeriodEnd,
		IsActive:             params.IsActive,
	}
	f.nextID++
	f.rows[sub.ID] = sub
	return sub, nil
}

func (f *fakeSubStore) GetByID(ctx context.Context, id int64) (*domain.Subscription, error) {
	f.calls++
	return f.rows[id], nil
}

func (f *fakeSubStore) List(ctx context.Context) ([]domain.Subscription, error) {
	f.calls++
	return nil, nil
}

func (f *fakeSubStore) ListByUser(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	f.calls++
	var subs []domain.Subscription
	for _, row := range f.rows {
		if row.UserID == userID {
			subs = append(subs, *row)
		}
	}
	return subs, nil
}

func (f *fakeSubStore) ListActiveByUser(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	f.calls++
	var subs []domain.Subscription
	for _, row := range f.rows {
		if row.UserID == userID && row.IsActive {
			subs = append(subs, *row)
		}
	}
	return subs, nil
}

// customers maps fake rows to a provider customer id, standing in for the
// join against users the real store performs.
var customers = map[int64]string{}

func (f *fakeSubStore) GetByProviderIDs(ctx context.Context, subscriptionID, customerID string) (*domain.Subscription, error) {
	f.calls++
	for _, row := range f.rows {
		if row.StripeSubscriptionID == subscriptionID && customers[row.UserID] == customerID {
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakeSubStore) UpdateByProviderIDs(ctx context.Context, subscriptionID, customerID string, update domain.SubscriptionUpdate) error {
	f.calls++
	for _, row := range f.rows {
		if row.StripeSubscriptionID == subscriptionID && customers[row.UserID] == customerID {
			row.Status = update.Status
			row.CurrentPeriodEnd = update.CurrentPeriodEnd
			row.IsActive = update.IsActive
			return nil
		}
	}
	return domain.NotFound("fake.UpdateByProviderIDs", "subscription", subscriptionID)
}

func (f *fakeSubStore) Cancel(ctx context.Context, subscriptionID, customerID, status string, periodEnd time.Time) error {
	f.calls++
	for _, row := range f.rows {
		if row.StripeSubscriptionID == subscriptionID && customers[row.UserID] == customerID {
			now := time.Now()
			row.Status = status
			row.CurrentPeriodEnd = periodEnd
			row.IsActive = false
			row.CanceledAt = &now
			return nil
		}
	}
	return domain.NotFound("fake.Cancel", "subscription", subscriptionID)
}

func (f *fakeSubStore) Activate(ctx context.Context, id int64) error {
	f.calls++
	row, ok := f.rows[id]
	if !ok {
		return domain.NotFound("fake.Activate", "subscription", "")
	}
	row.IsActive = true
	return nil
}

func newTestHandlers(t *testing.T) (*Handlers, *fakeUserStore, *fakePlanStore, *fakeSubStore, *queue.Memory) {
	t.Helper()
	users := newFakeUserStore()
	plans := &fakePlanStore{byName: map[string]*domain.Plan{}}
	subs := newFakeSubStore()
	broker := queue.NewMemory(16)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandlers(users, plans, subs, broker, logger), users, plans, subs, broker
}

func TestCustomerCreatedIdempotent(t *testing.T) {
	h, users, _, _, broker := newTestHandlers(t)
	ctx := context.Background()

	payload := []byte(`{"id": "cus_123", "email": "a@example.com"}`)
	require.NoError(t, h.CustomerCreated(ctx, payload))

	user, err := users.GetByCustomerID(ctx, "cus_123")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "a@example.com", user.Email)
	assert.Equal(t, 1, broker.Len(), "enrollment task enqueued")

	// Replay: no duplicate row, but enrollment is scheduled again so a
	// previously failed enrollment gets another chance. The enrollment
	// task itself skips users already on the free tier.
	require.NoError(t, h.CustomerCreated(ctx, payload))
	assert.Len(t, users.byEmail, 1)
	assert.Equal(t, 2, broker.Len())
}

func TestCustomerCreatedReplayHealsEnrollment(t *testing.T) {
	h, users, plans, subs, broker := newTestHandlers(t)
	ctx := context.Background()

	// First delivery arrives before the free plan is provisioned, so the
	// enqueued enrollment fails permanently.
	payload := []byte(`{"id": "cus_123", "email": "a@example.com"}`)
	require.NoError(t, h.CustomerCreated(ctx, payload))
	drainEnrollment := func() error {
		task, enroll, ok := broker.Dequeue()
		require.True(t, ok)
		require.Equal(t, string(domain.EventEnrollFreeTier), task)
		return h.EnrollFreeTier(ctx, enroll)
	}
	err := drainEnrollment()
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))

	// The plan appears; a replayed customer.created re-enqueues enrollment
	// and this time it lands.
	plans.byName[FreePlanName] = &domain.Plan{ID: 7, Name: FreePlanName}
	require.NoError(t, h.CustomerCreated(ctx, payload))
	require.NoError(t, drainEnrollment())

	user, err := users.GetByCustomerID(ctx, "cus_123")
	require.NoError(t, err)
	active, err := subs.ListActiveByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.TierFree, active[0].Tier)
}

func TestCustomerCreatedLinksExistingUser(t *testing.T) {
	h, users, _, _, _ := newTestHandlers(t)
	ctx := context.Background()

	existing, err := users.Create(ctx, "a@example.com")
	require.NoError(t, err)

	payload := []byte(`{"id": "cus_123", "email": "a@example.com"}`)
	require.NoError(t, h.CustomerCreated(ctx, payload))

	assert.Len(t, users.byEmail, 1)
	require.NotNil(t, existing.StripeCustomerID)
	assert.Equal(t, "cus_123", *existing.StripeCustomerID)
}

func TestCustomerCreatedMalformed(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)
	ctx := context.Background()

	for _, payload := range []string{`{`, `{}`, `{"id": "cus_1"}`, `{"email": "a@b.com"}`} {
		err := h.CustomerCreated(ctx, []byte(payload))
		assert.True(t, domain.IsCode(err, domain.EINVALID), payload)
	}
}

func TestCustomerDeleted(t *testing.T) {
	h, users, _, _, _ := newTestHandlers(t)
	ctx := context.Background()

	u, err := users.Create(ctx, "a@example.com")
	require.NoError(t, err)
	require.NoError(t, users.SetCustomerID(ctx, u.ID, "cus_123"))

	require.NoError(t, h.CustomerDeleted(ctx, []byte(`{"id": "cus_123"}`)))
	assert.Empty(t, users.byEmail)

	// A second delivery finds nothing and fails, feeding the retry loop.
	err = h.CustomerDeleted(ctx, []byte(`{"id": "cus_123"}`))
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}

func TestEnrollFreeTier(t *testing.T) {
	h, users, plans, subs, _ := newTestHandlers(t)
	ctx := context.Background()

	user, err := users.Create(ctx, "a@example.com")
	require.NoError(t, err)
	plans.byName[FreePlanName] = &domain.Plan{ID: 7, Name: FreePlanName}

	require.NoError(t, h.EnrollFreeTier(ctx, []byte(`{"user_id": 1}`)))

	active, err := subs.ListActiveByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.TierFree, active[0].Tier)
	assert.Equal(t, freeSubscriptionID, active[0].StripeSubscriptionID)
	assert.True(t, active[0].IsActive)

	// Replay no-ops instead of violating the one-active-per-tier rule.
	require.NoError(t, h.EnrollFreeTier(ctx, []byte(`{"user_id": 1}`)))
	active, err = subs.ListActiveByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestEnrollFreeTierMissingPlan(t *testing.T) {
	h, users, _, _, _ := newTestHandlers(t)
	ctx := context.Background()

	_, err := users.Create(ctx, "a@example.com")
	require.NoError(t, err)

	err = h.EnrollFreeTier(ctx, []byte(`{"user_id": 1}`))
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}

func seedSubscription(t *testing.T, users *fakeUserStore, subs *fakeSubStore) *domain.Subscription {
	t.Helper()
	ctx := context.Background()

	user, err := users.Create(ctx, "a@example.com")
	require.NoError(t, err)
	require.NoError(t, users.SetCustomerID(ctx, user.ID, "cus_123"))
	customers[user.ID] = "cus_123"

	sub, err := subs.Create(ctx, domain.CreateSubscriptionParams{
		UserID:               user.ID,
		PlanID:               1,
		StripeSubscriptionID: "sub_123",
		Tier:                 domain.TierPro,
		Status:               "incomplete",
		CurrentPeriodEnd:     time.Now(),
		IsActive:             false,
	})
	require.NoError(t, err)
	return sub
}

func TestSubscriptionUpserted(t *testing.T) {
	h, users, _, subs, _ := newTestHandlers(t)
	sub := seedSubscription(t, users, subs)

	payload := []byte(`{
		"id": "sub_123",
		"customer": "cus_123",
		"status": "active",
		"items": {"data": [{"current_period_end": 1767225600}]}
	}`)
	require.NoError(t, h.SubscriptionUpserted(context.Background(), payload))

	assert.Equal(t, "active", sub.Status)
	assert.True(t, sub.IsActive)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), sub.CurrentPeriodEnd)
}

func TestSubscriptionUpsertedWithoutItems(t *testing.T) {
	h, users, _, subs, _ := newTestHandlers(t)
	seedSubscription(t, users, subs)

	payload := []byte(`{"id": "sub_123", "customer": "cus_123", "status": "active", "items": {"data": []}}`)
	err := h.SubscriptionUpserted(context.Background(), payload)
	assert.True(t, domain.IsCode(err, domain.EINVALID))
}

func TestSubscriptionDeleted(t *testing.T) {
	h, users, _, subs, _ := newTestHandlers(t)
	sub := seedSubscription(t, users, subs)

	payload := []byte(`{
		"id": "sub_123",
		"customer": "cus_123",
		"status": "canceled",
		"items": {"data": [{"current_period_end": 1767225600}]}
	}`)
	require.NoError(t, h.SubscriptionDeleted(context.Background(), payload))

	assert.Equal(t, "canceled", sub.Status)
	assert.False(t, sub.IsActive)
	assert.NotNil(t, sub.CanceledAt)
}

func invoicePaidPayload(billingReason string) []byte {
	return []byte(`{
		"customer": "cus_123",
		"status": "paid",
		"billing_reason": "` + billingReason + `",
		"lines": {"data": [{
			"parent": {"subscription_item_details": {"subscription": "sub_123"}},
			"period": {"end": 1767225600}
		}]}
	}`)
}

func TestInvoicePaidActivates(t *testing.T) {
	h, users, _, subs, _ := newTestHandlers(t)
	sub := seedSubscription(t, users, subs)

	require.NoError(t, h.InvoicePaid(context.Background(), invoicePaidPayload("subscription_create")))

	assert.Equal(t, "paid", sub.Status)
	assert.True(t, sub.IsActive)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), sub.CurrentPeriodEnd)
}

func TestInvoicePaidGatesOnBillingReason(t *testing.T) {
	h, users, _, subs, _ := newTestHandlers(t)
	seedSubscription(t, users, subs)
	before := subs.calls

	require.NoError(t, h.InvoicePaid(context.Background(), invoicePaidPayload("subscription_cycle")))

	// Skipped invoices never touch the store.
	assert.Equal(t, before, subs.calls)
}

func TestInvoicePaidUnknownSubscription(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	err := h.InvoicePaid(context.Background(), invoicePaidPayload("subscription_create"))
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}

func TestInvoicePaidMissingLines(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	payload := []byte(`{"customer": "cus_123", "status": "paid", "billing_reason": "subscription_create", "lines": {"data": []}}`)
	err := h.InvoicePaid(context.Background(), payload)
	assert.True(t, domain.IsCode(err, domain.EINVALID))
}

func TestInvoicePaymentFailedDeactivates(t *testing.T) {
	h, users, _, subs, _ := newTestHandlers(t)
	sub := seedSubscription(t, users, subs)
	sub.IsActive = true
	sub.Status = "active"

	require.NoError(t, h.InvoicePaymentFailed(context.Background(), invoicePaidPayload("subscription_create")))

	assert.Equal(t, "failed", sub.Status)
	assert.False(t, sub.IsActive)
}

func TestForCoversEveryEventKind(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	kinds := []domain.EventKind{
		domain.EventCustomerCreated,
		domain.EventCustomerDeleted,
		domain.EventSubscriptionCreated,
		domain.EventSubscriptionUpdated,
		domain.EventSubscriptionPaused,
		domain.EventSubscriptionDeleted,
		domain.EventInvoicePaid,
		domain.EventInvoicePaymentFail,
		domain.EventEnrollFreeTier,
	}
	for _, kind := range kinds {
		handler, ok := h.For(kind)
		assert.True(t, ok, string(kind))
		assert.NotNil(t, handler, string(kind))
	}

	_, ok := h.For(domain.EventKind("charge.succeeded"))
	assert.False(t, ok)
}
