// internal/app/features/masses/routes.go
package masses

import (
	"github.com/migueww/acolitapp/internal/app/system/auth"
	"github.com/migueww/acolitapp/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts all mass routes under the path where the caller mounts
// it. Typically: r.Mount("/masses", masses.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// Reads: any signed-in user.
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.Get("/{id}", h.ServeMass)
	})

	// Attendance: acolitos join and request confirmation for themselves.
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireRole(models.RoleAcolito))

		pr.Post("/{id}/join", h.HandleJoin)
		pr.Post("/{id}/confirmation-requests", h.HandleRequestConfirmation)
	})

	// Administration: cerimoniarios only. Which cerimoniario may act on
	// which mass is enforced per action by the store filters.
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireRole(models.RoleCerimoniario))

		pr.Post("/", h.HandleCreate)
		pr.Post("/{id}/open", h.HandleOpen)
		pr.Post("/{id}/preparation", h.HandlePreparation)
		pr.Post("/{id}/finish", h.HandleFinish)
		pr.Post("/{id}/cancel", h.HandleCancel)
		pr.Post("/{id}/delegate", h.HandleDelegate)

		pr.Get("/{id}/confirmation-requests/{token}", h.ServePreview)
		pr.Post("/{id}/confirmation-requests/{token}/decision", h.HandleDecision)

		pr.Get("/{id}/assignment-plan", h.ServeAssignmentPlan)
		pr.Put("/{id}/assignments", h.HandleUpdateAssignments)
	})

	return r
}
