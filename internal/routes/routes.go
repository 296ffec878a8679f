// Package routes wires handlers onto the router. Webhook routes carry no
// auth middleware; the handler verifies the provider signature itself.
package routes

import (
	"github.com/ferdiga/subgate/internal/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Register installs the full route table.
func Register(r *router.Router, deps Deps) {
	// Sessions
	r.Post("/login", deps.Auth.Login)
	r.Post("/refresh", deps.Auth.Refresh)
	r.Post("/logout", deps.Auth.Logout, deps.RequireAuth)
	r.Get("/expired", deps.Auth.ExpiredSessions)

	// Users
	r.Post("/users", deps.Users.Create)
	r.Get("/users", deps.Users.List)
	r.Get("/users/me", deps.Users.Me, deps.RequireAuth)
	r.Delete("/users", deps.Users.Delete, deps.RequireAuth)

	// Plans
	r.Get("/plans", deps.Plans.List)
	r.Post("/plans", deps.Plans.Create)
	r.Patch("/plans/{price_id}", deps.Plans.Update)
	r.Delete("/plans/{price_id}", deps.Plans.Delete)

	// Subscriptions
	r.Post("/subscriptions", deps.Subscriptions.Create, deps.RequireAuth)
	r.Get("/subscriptions/all", deps.Subscriptions.List)
	r.Get("/subscriptions/me", deps.Subscriptions.ListMine, deps.RequireAuth)
	r.Get("/subscriptions/{id}", deps.Subscriptions.Get)
	r.Delete("/subscriptions/{id}", deps.Subscriptions.Cancel, deps.RequireAuth)

	// Tier-gated resources
	r.Get("/products/{tier}", deps.Products.Tier, deps.RequireAuth)

	// Provider webhooks
	r.Post("/webhooks/", deps.Webhooks.Receive)

	// Operational
	r.Handle("GET", "/metrics", promhttp.Handler())
}
