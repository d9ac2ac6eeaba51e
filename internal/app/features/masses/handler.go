// internal/app/features/masses/handler.go
package masses

import (
	"context"
	"net/http"
	"strconv"

	"github.com/migueww/acolitapp/internal/app/features/shared/respond"
	"github.com/migueww/acolitapp/internal/app/policy/masspolicy"
	liturgystore "github.com/migueww/acolitapp/internal/app/store/liturgy"
	massstore "github.com/migueww/acolitapp/internal/app/store/masses"
	userstore "github.com/migueww/acolitapp/internal/app/store/users"
	"github.com/migueww/acolitapp/internal/app/system/apperr"
	"github.com/migueww/acolitapp/internal/app/system/assign"
	"github.com/migueww/acolitapp/internal/app/system/authz"
	"github.com/migueww/acolitapp/internal/app/system/massstatus"
	"github.com/migueww/acolitapp/internal/app/system/qrtoken"
	"github.com/migueww/acolitapp/internal/app/system/timeouts"
	"github.com/migueww/acolitapp/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the feature-level handler for masses: lifecycle,
// attendance, confirmation check-in, and role assignment.
type Handler struct {
	DB      *mongo.Database
	Log     *zap.Logger
	Masses  *massstore.Store
	Liturgy *liturgystore.Store
	Users   *userstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:      db,
		Log:     logger,
		Masses:  massstore.New(db),
		Liturgy: liturgystore.New(db),
		Users:   userstore.New(db),
	}
}

// massID extracts and validates the {id} path parameter. A malformed
// id reads the same as a missing mass so ids cannot be probed.
func massID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.NotFound("mass not found")
	}
	return id, nil
}

/* -------------------------------------------------------------------------- */
/* Creation and reads                                                          */
/* -------------------------------------------------------------------------- */

// HandleCreate creates a SCHEDULED mass. Cerimoniario only.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_, _, actorID, ok := authz.UserCtx(r)
	if !ok {
		respond.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}

	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Liturgy.GetMassType(ctx, req.MassType); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			respond.Error(w, h.Log, apperr.Validation("unknown mass type"))
			return
		}
		respond.Error(w, h.Log, err)
		return
	}

	m, err := h.Masses.Create(ctx, req.ScheduledAt, req.MassType, actorID)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, massResponse{Mass: m})
}

// ServeList lists masses, optionally filtered by status.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	opts := massstore.ListOptions{Status: r.URL.Query().Get("status")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			respond.Error(w, h.Log, apperr.Validation("limit must be a positive integer"))
			return
		}
		opts.Limit = n
	}
	masses, err := h.Masses.List(ctx, opts)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, listResponse{Masses: masses})
}

// ServeMass returns one mass by id.
func (h *Handler) ServeMass(w http.ResponseWriter, r *http.Request) {
	id, err := massID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, err := h.Masses.FindByID(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, massResponse{Mass: m})
}

/* -------------------------------------------------------------------------- */
/* Lifecycle                                                                   */
/* -------------------------------------------------------------------------- */

// HandleOpen moves SCHEDULED → OPEN.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Masses.Open)
}

// HandlePreparation moves OPEN → PREPARATION, pruning unconfirmed
// attendance.
func (h *Handler) HandlePreparation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Masses.MoveToPreparation)
}

// HandleCancel terminates a SCHEDULED or OPEN mass.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Masses.Cancel)
}

// transition runs one actor-gated lifecycle action and renders the
// updated mass.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, primitive.ObjectID, primitive.ObjectID) (*models.Mass, error)) {
	_, _, actorID, ok := authz.UserCtx(r)
	if !ok {
		respond.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}
	id, err := massID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := op(ctx, id, actorID)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, massResponse{Mass: m})
}

// HandleFinish moves PREPARATION → FINISHED. When nobody was ever
// assigned, the template's slots are recorded vacant; otherwise the
// final assignment list is written back onto each user's profile as
// their last held role.
func (h *Handler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	_, _, actorID, ok := authz.UserCtx(r)
	if !ok {
		respond.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}
	id, err := massID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	current, err := h.Masses.FindByID(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	var template []string
	if cfg, err := h.Liturgy.GetMassType(ctx, current.MassType); err == nil {
		template = cfg.RoleKeys
	} else if apperr.KindOf(err) != apperr.KindNotFound {
		respond.Error(w, h.Log, err)
		return
	}

	m, err := h.Masses.Finish(ctx, id, actorID, template)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	lastRoles := make(map[primitive.ObjectID]string)
	for _, a := range m.Assignments {
		if a.UserID == nil || a.RoleKey == models.RoleKeyNone {
			continue
		}
		lastRoles[*a.UserID] = a.RoleKey
	}
	if err := h.Users.SetLastRoleKeys(ctx, lastRoles); err != nil {
		// The mass is already finished; the rotation fallback just
		// misses one data point for these users.
		h.Log.Warn("last role write-back failed",
			zap.String("mass_id", id.Hex()), zap.Error(err))
	}

	respond.JSON(w, http.StatusOK, massResponse{Mass: m})
}

// HandleDelegate hands chief duties to another cerimoniario. Creator
// only.
func (h *Handler) HandleDelegate(w http.ResponseWriter, r *http.Request) {
	_, _, actorID, ok := authz.UserCtx(r)
	if !ok {
		respond.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}
	id, err := massID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	var req delegateRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	newChiefID, err := primitive.ObjectIDFromHex(req.NewChiefID)
	if err != nil {
		respond.Error(w, h.Log, apperr.Validation("new_chief_id is not a valid user id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	chief, err := h.Users.GetByID(ctx, newChiefID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			respond.Error(w, h.Log, apperr.Validation("new chief must be an existing user"))
			return
		}
		respond.Error(w, h.Log, err)
		return
	}
	if chief.Role != models.RoleCerimoniario || chief.Status != models.StatusActive {
		respond.Error(w, h.Log, apperr.Validation("new chief must be an active cerimoniario"))
		return
	}

	// The update filter enforces this again atomically.
	current, err := h.Masses.FindByID(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if !masspolicy.CanDelegate(r, current) {
		respond.Error(w, h.Log, apperr.NotFound("mass not found"))
		return
	}

	m, err := h.Masses.Delegate(ctx, id, actorID, newChiefID)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, massResponse{Mass: m})
}

/* -------------------------------------------------------------------------- */
/* Attendance and check-in                                                     */
/* -------------------------------------------------------------------------- */

// HandleJoin adds the acting acolito to the joined list. Repeating the
// call changes nothing and still succeeds.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	_, _, actorID, ok := authz.UserCtx(r)
	if !ok {
		respond.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}
	id, err := massID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Masses.Join(ctx, id, actorID)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, massResponse{Mass: m})
}

// HandleRequestConfirmation creates (or re-fetches) the acting user's
// pending confirmation request and returns the check-in token they
// present to an administrator.
func (h *Handler) HandleRequestConfirmation(w http.ResponseWriter, r *http.Request) {
	_, _, actorID, ok := authz.UserCtx(r)
	if !ok {
		respond.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}
	id, err := massID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	_, requestID, err := h.Masses.RequestConfirmation(ctx, id, actorID)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, confirmationRequestResponse{
		RequestID: requestID,
		Token:     qrtoken.Encode(id, requestID),
	})
}

// ServePreview shows an administrator who a scanned check-in token
// belongs to, without deciding anything.
func (h *Handler) ServePreview(w http.ResponseWriter, r *http.Request) {
	_, _, actorID, ok := authz.UserCtx(r)
	if !ok {
		respond.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}
	id, requestID, err := h.decodeToken(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	entry, err := h.Masses.FindPending(ctx, id, actorID, requestID)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	preview := previewResponse{
		RequestID:   entry.RequestID,
		UserID:      entry.UserID.Hex(),
		RequestedAt: entry.RequestedAt,
	}
	if u, err := h.Users.GetByID(ctx, entry.UserID); err == nil {
		preview.UserName = u.FullName
	}
	respond.JSON(w, http.StatusOK, preview)
}

// HandleDecision confirms or denies a pending request.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	_, _, actorID, ok := authz.UserCtx(r)
	if !ok {
		respond.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}
	id, requestID, err := h.decodeToken(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	var confirm bool
	switch req.Decision {
	case "confirm":
		confirm = true
	case "deny":
		confirm = false
	default:
		respond.Error(w, h.Log, apperr.Validation(`decision must be "confirm" or "deny"`))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Masses.Decide(ctx, id, actorID, requestID, confirm)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, massResponse{Mass: m})
}

// decodeToken parses the {token} path parameter and verifies it binds
// to the mass in the URL, so a token scanned at one celebration cannot
// be replayed against another.
func (h *Handler) decodeToken(r *http.Request) (primitive.ObjectID, string, error) {
	id, err := massID(r)
	if err != nil {
		return primitive.NilObjectID, "", err
	}
	tokenMassID, requestID, err := qrtoken.Decode(chi.URLParam(r, "token"))
	if err != nil {
		return primitive.NilObjectID, "", err
	}
	if tokenMassID != id {
		return primitive.NilObjectID, "", apperr.Validation("token does not belong to this mass")
	}
	return id, requestID, nil
}

/* -------------------------------------------------------------------------- */
/* Role assignment                                                             */
/* -------------------------------------------------------------------------- */

// ServeAssignmentPlan computes the suggested slot-to-user mapping for a
// mass in preparation. The plan is advisory; nothing is persisted until
// the administrator submits assignments.
func (h *Handler) ServeAssignmentPlan(w http.ResponseWriter, r *http.Request) {
	id, err := massID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	m, err := h.Masses.FindByID(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if !masspolicy.CanAdminister(r, m) {
		respond.Error(w, h.Log, apperr.NotFound("mass not found"))
		return
	}
	if m.Status != massstatus.Preparation {
		respond.Error(w, h.Log, apperr.Conflict("mass is not in preparation"))
		return
	}

	cfg, err := h.Liturgy.GetMassType(ctx, m.MassType)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	weights, err := h.Liturgy.RoleWeightMap(ctx)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	confirmed := make([]assign.ConfirmedUser, 0, len(m.Attendance.Confirmed))
	userIDs := make([]primitive.ObjectID, 0, len(m.Attendance.Confirmed))
	for _, c := range m.Attendance.Confirmed {
		confirmed = append(confirmed, assign.ConfirmedUser{UserID: c.UserID, ConfirmedAt: c.ConfirmedAt})
		userIDs = append(userIDs, c.UserID)
	}

	profiles, err := h.Users.FindProfiles(ctx, userIDs)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	prevWeights, err := h.Masses.PreviousFunctionWeights(ctx, m.ScheduledAt, userIDs, func(roleKey string) int {
		return weights[roleKey]
	})
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	assignProfiles := make(map[primitive.ObjectID]assign.Profile, len(profiles))
	for uid, p := range profiles {
		assignProfiles[uid] = assign.Profile{GlobalScore: p.GlobalScore, LastRoleKey: p.LastRoleKey}
	}

	plan := assign.Plan(assign.Input{
		TemplateRoleKeys: cfg.RoleKeys,
		FallbackRoleKey:  cfg.FallbackRoleKey,
		Weights:          weights,
		Confirmed:        confirmed,
		Profiles:         assignProfiles,
		PrevWeights:      prevWeights,
	})
	respond.JSON(w, http.StatusOK, planResponse{Assignments: plan})
}

// HandleUpdateAssignments replaces the assignment list while the mass
// is in preparation.
func (h *Handler) HandleUpdateAssignments(w http.ResponseWriter, r *http.Request) {
	_, _, actorID, ok := authz.UserCtx(r)
	if !ok {
		respond.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}
	id, err := massID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	var req assignmentsRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	assignments := make([]models.Assignment, 0, len(req.Assignments))
	for _, a := range req.Assignments {
		entry := models.Assignment{RoleKey: a.RoleKey}
		if a.UserID != "" {
			uid, err := primitive.ObjectIDFromHex(a.UserID)
			if err != nil {
				respond.Error(w, h.Log, apperr.Validation("assignment user_id is not a valid user id"))
				return
			}
			entry.UserID = &uid
		}
		assignments = append(assignments, entry)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Masses.AssignRoles(ctx, id, actorID, assignments)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, massResponse{Mass: m})
}
