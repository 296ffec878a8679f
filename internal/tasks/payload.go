package tasks

import (
	"time"

	"github.com/ferdiga/subgate/internal/domain"
)

// customerPayload is the slice of the provider's customer object the
// handlers read. Everything else in the event is ignored.
type customerPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// subscriptionPayload mirrors the provider's subscription object. The
// period end lives on the first subscription item.
type subscriptionPayload struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Items    struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

func (p subscriptionPayload) periodEnd() (time.Time, error) {
	if len(p.Items.Data) == 0 {
		return time.Time{}, domain.Invalid("tasks.periodEnd", "subscription payload has no items")
	}
	return time.Unix(p.Items.Data[0].CurrentPeriodEnd, 0).UTC(), nil
}

// invoicePayload mirrors the provider's invoice object. The subscription
// reference is nested under the first line's parent details.
type invoicePayload struct {
	Customer      string `json:"customer"`
	Status        string `json:"status"`
	BillingReason string `json:"billing_reason"`
	Lines         struct {
		Data []struct {
			Parent struct {
				SubscriptionItemDetails struct {
					Subscription string `json:"subscription"`
				} `json:"subscription_item_details"`
			} `json:"parent"`
			Period struct {
				End int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

// enrollPayload is the internal free-tier provisioning task payload,
// produced by the customer-created handler rather than the provider.
type enrollPayload struct {
	UserID int64 `json:"user_id"`
}
