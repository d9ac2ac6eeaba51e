// internal/app/features/liturgy/routes.go
package liturgy

import (
	"github.com/migueww/acolitapp/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter serving the liturgical catalog.
// Typically: r.Mount("/liturgy", liturgy.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		pr.Get("/mass-types", h.ServeMassTypes)
		pr.Get("/roles", h.ServeRoles)
	})

	return r
}
