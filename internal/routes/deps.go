package routes

import (
	"github.com/ferdiga/subgate/internal/handler"
	"github.com/ferdiga/subgate/internal/router"
)

// Deps bundles the handlers and middleware the route table needs.
type Deps struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Plans         *handler.PlanHandler
	Subscriptions *handler.SubscriptionHandler
	Products      *handler.ProductHandler
	Webhooks      *handler.WebhookHandler

	// RequireAuth guards the bearer-authenticated routes.
	RequireAuth router.Middleware
}
