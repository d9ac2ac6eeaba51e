// internal/app/features/users/handler.go
package users

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/migueww/acolitapp/internal/app/features/shared/respond"
	userstore "github.com/migueww/acolitapp/internal/app/store/users"
	"github.com/migueww/acolitapp/internal/app/system/apperr"
	"github.com/migueww/acolitapp/internal/app/system/timeouts"
	"github.com/migueww/acolitapp/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Handler serves user administration: roster listing, account
// creation, and profile edits. Cerimoniario only.
type Handler struct {
	DB    *mongo.Database
	Log   *zap.Logger
	Users *userstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:    db,
		Log:   logger,
		Users: userstore.New(db),
	}
}

type createRequest struct {
	FullName string `json:"full_name"`
	LoginID  string `json:"login_id"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateRequest struct {
	FullName    *string `json:"full_name"`
	GlobalScore *int    `json:"global_score"`
	Status      *string `json:"status"`
}

type userResponse struct {
	User *models.User `json:"user"`
}

type listResponse struct {
	Users []models.User `json:"users"`
}

// minPasswordLength keeps obviously weak credentials out; stronger
// policy is the parish admin's call.
const minPasswordLength = 8

// ServeList lists users, optionally filtered by role and status.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	users, err := h.Users.List(ctx, userstore.ListOptions{
		Role:   r.URL.Query().Get("role"),
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, listResponse{Users: users})
}

// HandleCreate registers a new account with a bcrypt-hashed password.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.Log, apperr.Validation("malformed request body"))
		return
	}
	if len(req.Password) < minPasswordLength {
		respond.Error(w, h.Log, apperr.Validation("password must be at least 8 characters"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respond.Error(w, h.Log, apperr.Internal(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		FullName:     req.FullName,
		LoginID:      req.LoginID,
		PasswordHash: string(hash),
		Role:         req.Role,
	})
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, userResponse{User: &u})
}

// HandleUpdate applies an admin edit to a user's profile.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.Log, apperr.NotFound("user not found"))
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.Log, apperr.Validation("malformed request body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, id, userstore.ProfileUpdate{
		FullName:    req.FullName,
		GlobalScore: req.GlobalScore,
		Status:      req.Status,
	})
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, userResponse{User: u})
}
