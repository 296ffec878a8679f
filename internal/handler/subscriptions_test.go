package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferdiga/subgate/internal/billing"
	"github.com/ferdiga/subgate/internal/domain"
	"github.com/ferdiga/subgate/internal/middleware"
)

type subCreateStore struct {
	domain.SubscriptionStore
	active  []domain.Subscription
	created []domain.CreateSubscriptionParams
}

func (s *subCreateStore) ListActiveByUser(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	return s.active, nil
}

func (s *subCreateStore) Create(ctx context.Context, params domain.CreateSubscriptionParams) (*domain.Subscription, error) {
	s.created = append(s.created, params)
	return &domain.Subscription{
		ID:                   int64(len(s.created)),
		UserID:               params.UserID,
		PlanID:               params.PlanID,
		StripeSubscriptionID: params.StripeSubscriptionID,
		Tier:                 params.Tier,
		Status:               params.Status,
		IsActive:             params.IsActive,
	}, nil
}

type planByIDStore struct {
	domain.PlanStore
	plans map[int64]*domain.Plan
}

func (s *planByIDStore) GetByID(ctx context.Context, id int64) (*domain.Plan, error) {
	return s.plans[id], nil
}

func newSubscribeEndpoint(user *domain.User, active ...domain.Subscription) (http.Handler, *subCreateStore) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	subs := &subCreateStore{active: active}
	plans := &planByIDStore{plans: map[int64]*domain.Plan{
		2: {ID: 2, StripePriceID: "price_pro", Name: "pro", PriceCents: 999},
		3: {ID: 3, StripePriceID: "price_custom", Name: "consulting", PriceCents: 5000},
	}}
	h := NewSubscriptionHandler(subs, plans, billing.NewMockProvider(), logger)

	auth := staticAuthenticator{user: user}
	mux := http.NewServeMux()
	mux.Handle("POST /subscriptions", middleware.RequireAuth(auth)(http.HandlerFunc(h.Create)))
	return mux, subs
}

func postSubscription(h http.Handler, planID int64) *httptest.ResponseRecorder {
	body, _ := json.Marshal(createSubscriptionRequest{PlanID: planID})
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(string(body)))
	req.Header.Set("Authorization", "Bearer valid-token")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func paidUser() *domain.User {
	customerID := "cus_123"
	return &domain.User{ID: 7, Email: "a@example.com", StripeCustomerID: &customerID}
}

func TestCreateSubscription(t *testing.T) {
	h, subs := newSubscribeEndpoint(paidUser())

	rec := postSubscription(h, 2)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp createSubscriptionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "User subscribed successfully", resp.Detail)
	assert.NotEmpty(t, resp.LatestInvoiceID)

	// The row is written inactive; activation waits for the paid invoice.
	require.Len(t, subs.created, 1)
	assert.False(t, subs.created[0].IsActive)
	assert.Equal(t, domain.TierPro, subs.created[0].Tier)
}

func TestCreateSubscriptionAlreadySubscribed(t *testing.T) {
	existing := domain.Subscription{ID: 1, UserID: 7, Tier: domain.TierPro, IsActive: true}
	h, subs := newSubscribeEndpoint(paidUser(), existing)

	rec := postSubscription(h, 2)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"user already subscribed to this tier"}`, rec.Body.String())
	assert.Empty(t, subs.created)
}

func TestCreateSubscriptionWithoutCustomer(t *testing.T) {
	h, subs := newSubscribeEndpoint(&domain.User{ID: 7, Email: "a@example.com"})

	rec := postSubscription(h, 2)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"user has no payment customer yet"}`, rec.Body.String())
	assert.Empty(t, subs.created)
}

func TestCreateSubscriptionUnknownPlan(t *testing.T) {
	h, _ := newSubscribeEndpoint(paidUser())

	rec := postSubscription(h, 99)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSubscriptionPlanWithoutTier(t *testing.T) {
	h, subs := newSubscribeEndpoint(paidUser())

	rec := postSubscription(h, 3)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, subs.created)
}
