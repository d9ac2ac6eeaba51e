// internal/app/policy/masspolicy/masspolicy.go
package masspolicy

import (
	"net/http"

	"github.com/migueww/acolitapp/internal/app/system/authz"
	"github.com/migueww/acolitapp/internal/domain/models"
)

// CanAdminister reports whether the current request user administers
// the mass: a cerimoniario who is its creator or its current chief.
// Mutating actions re-encode this check in their update filters; this
// is the read-side equivalent for previews and detail views.
func CanAdminister(r *http.Request, m *models.Mass) bool {
	if !authz.IsCerimoniario(r) {
		return false
	}
	_, _, uid, _ := authz.UserCtx(r)
	return m.IsAdministeredBy(uid)
}

// CanDelegate reports whether the current request user may hand chief
// duties to another cerimoniario. Only the creator can.
func CanDelegate(r *http.Request, m *models.Mass) bool {
	if !authz.IsCerimoniario(r) {
		return false
	}
	_, _, uid, _ := authz.UserCtx(r)
	return m.CreatedBy == uid
}
