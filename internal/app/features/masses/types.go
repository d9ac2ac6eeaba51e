// internal/app/features/masses/types.go
package masses

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/migueww/acolitapp/internal/app/system/apperr"
	"github.com/migueww/acolitapp/internal/domain/models"
)

// maxBodyBytes caps request bodies; mass payloads are small.
const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("malformed request body")
	}
	return nil
}

type createRequest struct {
	MassType    string    `json:"mass_type"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type delegateRequest struct {
	NewChiefID string `json:"new_chief_id"`
}

type decisionRequest struct {
	Decision string `json:"decision"` // confirm | deny
}

type assignmentEntry struct {
	RoleKey string `json:"role_key"`
	UserID  string `json:"user_id,omitempty"`
}

type assignmentsRequest struct {
	Assignments []assignmentEntry `json:"assignments"`
}

type massResponse struct {
	Mass *models.Mass `json:"mass"`
}

type listResponse struct {
	Masses []models.Mass `json:"masses"`
}

type confirmationRequestResponse struct {
	RequestID string `json:"request_id"`
	Token     string `json:"token"`
}

type previewResponse struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

type planResponse struct {
	Assignments []models.Assignment `json:"assignments"`
}
