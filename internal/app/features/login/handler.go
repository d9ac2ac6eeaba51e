// internal/app/features/login/handler.go
package login

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/migueww/acolitapp/internal/app/features/shared/respond"
	loginstore "github.com/migueww/acolitapp/internal/app/store/logins"
	userstore "github.com/migueww/acolitapp/internal/app/store/users"
	"github.com/migueww/acolitapp/internal/app/system/apperr"
	"github.com/migueww/acolitapp/internal/app/system/auth"
	"github.com/migueww/acolitapp/internal/app/system/ratelimit"
	"github.com/migueww/acolitapp/internal/app/system/timeouts"
	"github.com/migueww/acolitapp/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Handler authenticates users against their stored bcrypt hash and
// issues the session cookie.
type Handler struct {
	DB      *mongo.Database
	Log     *zap.Logger
	Users   *userstore.Store
	Logins  *loginstore.Store
	Limiter *ratelimit.LoginLimiter
}

func NewHandler(db *mongo.Database, limiter *ratelimit.LoginLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		DB:      db,
		Log:     logger,
		Users:   userstore.New(db),
		Logins:  loginstore.New(db),
		Limiter: limiter,
	}
}

type loginRequest struct {
	LoginID  string `json:"login_id"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// HandleLogin handles POST /login.
//
// Failures deliberately share one message: a caller cannot distinguish
// an unknown login id from a wrong password or a disabled account.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.Log, apperr.Validation("malformed request body"))
		return
	}
	if req.LoginID == "" || req.Password == "" {
		respond.Error(w, h.Log, apperr.Validation("login id and password are required"))
		return
	}

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, req.LoginID); !ok {
			respond.JSON(w, http.StatusTooManyRequests, map[string]any{
				"error": map[string]string{
					"kind":    "rate_limited",
					"message": reason,
				},
			})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.Users.FindByLoginID(ctx, req.LoginID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if user.Status != models.StatusActive {
		h.fail(w, nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.fail(w, nil)
		return
	}

	if err := auth.SignIn(w, r, &auth.SessionUser{
		ID:      user.ID.Hex(),
		Name:    user.FullName,
		LoginID: user.LoginID,
		Role:    user.Role,
	}); err != nil {
		respond.Error(w, h.Log, apperr.Internal(err))
		return
	}

	if h.Limiter != nil {
		h.Limiter.ResetLoginID(req.LoginID)
	}
	if err := h.Logins.CreateFrom(ctx, r, user.ID, user.LoginID); err != nil {
		// Auth already succeeded; the audit trail just misses a row.
		h.Log.Warn("login record insert failed", zap.Error(err))
	}

	respond.JSON(w, http.StatusOK, loginResponse{
		UserID:   user.ID.Hex(),
		FullName: user.FullName,
		Role:     user.Role,
	})
}

// fail renders the uniform credential failure. Internal errors still
// surface as 500 so outages are not mistaken for bad passwords.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		respond.Error(w, h.Log, err)
		return
	}
	respond.Error(w, h.Log, apperr.Forbidden("invalid login id or password"))
}
