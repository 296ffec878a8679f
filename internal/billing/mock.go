package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing.
// Simulates successful provider flows without calling the Stripe API.
type MockProvider struct {
	// CreateCustomerFunc allows customizing customer creation behavior
	CreateCustomerFunc func(ctx context.Context, email string, userID int64) (*Customer, error)

	// CreateSubscriptionFunc allows customizing subscription creation behavior
	CreateSubscriptionFunc func(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)

	// VerifyWebhookSignatureFunc allows customizing webhook verification behavior
	VerifyWebhookSignatureFunc func(payload []byte, signature string) error

	// Customers stores created customers for retrieval
	Customers map[string]*Customer

	// Prices stores created prices for retrieval
	Prices map[string]*Price

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// Compile-time check to ensure MockProvider implements Provider.
var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Customers: make(map[string]*Customer),
		Prices:    make(map[string]*Price),
		CallLog:   []string{},
	}
}

func (m *MockProvider) CreateCustomer(ctx context.Context, email string, userID int64) (*Customer, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateCustomer(%s, %d)", email, userID))

	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, email, userID)
	}

	c := &Customer{ID: "cus_" + uuid.New().String()[:8], Email: email}
	m.Customers[c.ID] = c
	return c, nil
}

func (m *MockProvider) DeleteCustomer(ctx context.Context, customerID string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("DeleteCustomer(%s)", customerID))
	delete(m.Customers, customerID)
	return nil
}

func (m *MockProvider) CreateProduct(ctx context.Context, name, description string) (*Product, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateProduct(%s)", name))
	return &Product{ID: "prod_" + uuid.New().String()[:8], Name: name, Description: description}, nil
}

func (m *MockProvider) UpdateProduct(ctx context.Context, productID string, name, description *string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("UpdateProduct(%s)", productID))
	return nil
}

func (m *MockProvider) CreatePrice(ctx context.Context, amountCents int64, currency, productID string) (*Price, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreatePrice(%d, %s, %s)", amountCents, currency, productID))

	p := &Price{
		ID:         "price_" + uuid.New().String()[:8],
		ProductID:  productID,
		UnitAmount: amountCents,
		Currency:   currency,
		Interval:   "month",
		Active:     true,
	}
	m.Prices[p.ID] = p
	return p, nil
}

func (m *MockProvider) GetPrice(ctx context.Context, priceID string) (*Price, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetPrice(%s)", priceID))

	if p, ok := m.Prices[priceID]; ok {
		return p, nil
	}
	// Unknown prices still resolve so handler tests can run without seeding.
	return &Price{ID: priceID, ProductID: "prod_mock", UnitAmount: 0, Currency: "usd", Interval: "month", Active: true}, nil
}

func (m *MockProvider) DeactivatePrice(ctx context.Context, priceID string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("DeactivatePrice(%s)", priceID))
	if p, ok := m.Prices[priceID]; ok {
		p.Active = false
	}
	return nil
}

func (m *MockProvider) DeactivateProductPrices(ctx context.Context, productID string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("DeactivateProductPrices(%s)", productID))
	for _, p := range m.Prices {
		if p.ProductID == productID {
			p.Active = false
		}
	}
	return nil
}

func (m *MockProvider) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateSubscription(%s, %s)", params.CustomerID, params.PriceID))

	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, params)
	}

	return &Subscription{
		ID:               "sub_" + uuid.New().String()[:8],
		Status:           "incomplete",
		CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour),
		LatestInvoiceID:  "in_" + uuid.New().String()[:8],
	}, nil
}

func (m *MockProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CancelSubscription(%s)", subscriptionID))
	return nil
}

func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string) error {
	m.CallLog = append(m.CallLog, "VerifyWebhookSignature")

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature)
	}
	return nil
}
