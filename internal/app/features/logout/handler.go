// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/migueww/acolitapp/internal/app/features/shared/respond"
	"github.com/migueww/acolitapp/internal/app/system/apperr"
	"github.com/migueww/acolitapp/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

// HandleLogout clears the session cookie. Logging out while already
// signed out succeeds.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := auth.SignOut(w, r); err != nil {
		respond.Error(w, h.Log, apperr.Internal(err))
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}
