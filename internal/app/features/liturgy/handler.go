// internal/app/features/liturgy/handler.go
package liturgy

import (
	"context"
	"net/http"

	"github.com/migueww/acolitapp/internal/app/features/shared/respond"
	liturgystore "github.com/migueww/acolitapp/internal/app/store/liturgy"
	"github.com/migueww/acolitapp/internal/app/system/timeouts"
	"github.com/migueww/acolitapp/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the liturgical configuration catalog.
type Handler struct {
	DB      *mongo.Database
	Log     *zap.Logger
	Liturgy *liturgystore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:      db,
		Log:     logger,
		Liturgy: liturgystore.New(db),
	}
}

type massTypesResponse struct {
	MassTypes []models.MassTypeConfig `json:"mass_types"`
}

type rolesResponse struct {
	Roles []models.RoleConfig `json:"roles"`
}

// ServeMassTypes lists the mass type templates.
func (h *Handler) ServeMassTypes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	types, err := h.Liturgy.ListMassTypes(ctx)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, massTypesResponse{MassTypes: types})
}

// ServeRoles lists the role configs, heaviest first.
func (h *Handler) ServeRoles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	roles, err := h.Liturgy.ListRoles(ctx)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, rolesResponse{Roles: roles})
}
