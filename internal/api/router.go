package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

// Deps bundles the collaborators the router wires into handlers.
type Deps struct {
	Webhooks *WebhookHandler
	Jobs     *JobHandler
	Accounts *AccountHandler
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// Provider intake, one endpoint per webhook family.
	r.Route("/webhooks/unipile", func(r chi.Router) {
		r.Post("/account-status", deps.Webhooks.Receive(domain.FamilyAccountStatus))
		r.Post("/messaging", deps.Webhooks.Receive(domain.FamilyMessaging))
		r.Post("/mailing", deps.Webhooks.Receive(domain.FamilyMailing))
		r.Post("/mail-tracking", deps.Webhooks.Receive(domain.FamilyMailTracking))
		r.Post("/users-relations", deps.Webhooks.Receive(domain.FamilyUsersRelations))
	})

	// Orchestrator surface consumed by the CRUD application.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", deps.Jobs.Create)
			r.Get("/{id}/status", deps.Jobs.Status)
			r.Get("/{id}/applicants", deps.Jobs.Applicants)
			r.Post("/{id}/resolve-location", deps.Jobs.ResolveLocation)
			r.Post("/{id}/create", deps.Jobs.CreateExternal)
			r.Post("/{id}/publish", deps.Jobs.Publish)
			r.Post("/{id}/reconcile", deps.Jobs.Reconcile)
			r.Post("/{id}/retry", deps.Jobs.Retry)
			r.Post("/{id}/close", deps.Jobs.CloseExternal)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", deps.Accounts.List)
			r.Get("/{id}/status", deps.Accounts.Status)
		})
	})

	return r
}
