// internal/app/features/users/routes.go
package users

import (
	"github.com/migueww/acolitapp/internal/app/system/auth"
	"github.com/migueww/acolitapp/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts user administration under the caller's path.
// Typically: r.Mount("/users", users.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireRole(models.RoleCerimoniario))

		pr.Get("/", h.ServeList)
		pr.Post("/", h.HandleCreate)
		pr.Patch("/{id}", h.HandleUpdate)
	})

	return r
}
