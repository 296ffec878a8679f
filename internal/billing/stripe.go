package billing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/ferdiga/subgate/internal/domain"
)

// StripeProvider implements Provider using the Stripe Go SDK.
type StripeProvider struct {
	webhookSecret string
}

// Compile-time check to ensure StripeProvider implements Provider.
var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider configures the Stripe SDK with the API key.
func NewStripeProvider(apiKey, webhookSecret string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{webhookSecret: webhookSecret}
}

func (s *StripeProvider) CreateCustomer(ctx context.Context, email string, userID int64) (*Customer, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
	}
	params.AddMetadata("user_id", strconv.FormatInt(userID, 10))

	c, err := customer.New(params)
	if err != nil {
		return nil, domain.Internal(err, "billing.create_customer", "failed to create customer")
	}
	return &Customer{ID: c.ID, Email: c.Email}, nil
}

func (s *StripeProvider) DeleteCustomer(ctx context.Context, customerID string) error {
	params := &stripe.CustomerParams{Params: stripe.Params{Context: ctx}}
	if _, err := customer.Del(customerID, params); err != nil {
		return domain.Internal(err, "billing.delete_customer", "failed to delete customer")
	}
	return nil
}

func (s *StripeProvider) CreateProduct(ctx context.Context, name, description string) (*Product, error) {
	params := &stripe.ProductParams{
		Params: stripe.Params{Context: ctx},
		Name:   stripe.String(name),
	}
	if description != "" {
		params.Description = stripe.String(description)
	}

	p, err := product.New(params)
	if err != nil {
		return nil, domain.Internal(err, "billing.create_product", "failed to create product")
	}
	return &Product{ID: p.ID, Name: p.Name, Description: p.Description}, nil
}

func (s *StripeProvider) UpdateProduct(ctx context.Context, productID string, name, description *string) error {
	if name == nil && description == nil {
		return nil
	}

	params := &stripe.ProductParams{Params: stripe.Params{Context: ctx}}
	if name != nil {
		params.Name = stripe.String(*name)
	}
	if description != nil {
		params.Description = stripe.String(*description)
	}

	if _, err := product.Update(productID, params); err != nil {
		return domain.Internal(err, "billing.update_product", "failed to update product")
	}
	return nil
}

func (s *StripeProvider) CreatePrice(ctx context.Context, amountCents int64, currency, productID string) (*Price, error) {
	params := &stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		UnitAmount: stripe.Int64(amountCents),
		Currency:   stripe.String(currency),
		Product:    stripe.String(productID),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
	}

	p, err := price.New(params)
	if err != nil {
		return nil, domain.Internal(err, "billing.create_price", "failed to create price")
	}
	return mapPrice(p), nil
}

func (s *StripeProvider) GetPrice(ctx context.Context, priceID string) (*Price, error) {
	params := &stripe.PriceParams{Params: stripe.Params{Context: ctx}}

	p, err := price.Get(priceID, params)
	if err != nil {
		return nil, domain.Internal(err, "billing.get_price", "failed to retrieve price")
	}
	return mapPrice(p), nil
}

func (s *StripeProvider) DeactivatePrice(ctx context.Context, priceID string) error {
	params := &stripe.PriceParams{
		Params: stripe.Params{Context: ctx},
		Active: stripe.Bool(false),
	}
	if _, err := price.Update(priceID, params); err != nil {
		return domain.Internal(err, "billing.deactivate_price", "failed to deactivate price")
	}
	return nil
}

func (s *StripeProvider) DeactivateProductPrices(ctx context.Context, productID string) error {
	params := &stripe.ProductParams{
		Params: stripe.Params{Context: ctx},
		Active: stripe.Bool(false),
	}
	if _, err := product.Update(productID, params); err != nil {
		return domain.Internal(err, "billing.deactivate_product", "failed to deactivate product")
	}

	listParams := &stripe.PriceListParams{Product: stripe.String(productID)}
	listParams.Context = ctx

	iter := price.List(listParams)
	for iter.Next() {
		if err := s.DeactivatePrice(ctx, iter.Price().ID); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return domain.Internal(err, "billing.deactivate_product", "failed to list prices")
	}
	return nil
}

func (s *StripeProvider) CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(p.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(p.PriceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.AddMetadata("user_id", strconv.FormatInt(p.UserID, 10))
	params.AddMetadata("plan_id", strconv.FormatInt(p.PlanID, 10))
	params.AddExpand("latest_invoice")

	sub, err := subscription.New(params)
	if err != nil {
		return nil, domain.Internal(err, "billing.create_subscription", "failed to create subscription")
	}

	out := &Subscription{ID: sub.ID, Status: string(sub.Status)}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		out.CurrentPeriodEnd = time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0).UTC()
	}
	if sub.LatestInvoice != nil {
		out.LatestInvoiceID = sub.LatestInvoice.ID
	}
	return out, nil
}

func (s *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{Params: stripe.Params{Context: ctx}}
	if _, err := subscription.Cancel(subscriptionID, params); err != nil {
		return domain.Internal(err, "billing.cancel_subscription", "failed to cancel subscription")
	}
	return nil
}

// VerifyWebhookSignature checks the Stripe-Signature header against the
// endpoint's signing secret.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string) error {
	if _, err := webhook.ConstructEvent(payload, signature, s.webhookSecret); err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return nil
}

func mapPrice(p *stripe.Price) *Price {
	out := &Price{
		ID:         p.ID,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
		Active:     p.Active,
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		out.Interval = string(p.Recurring.Interval)
	}
	return out
}
