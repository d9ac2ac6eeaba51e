// internal/app/store/masses/massstore.go
package massstore

// Concurrency discipline: every mutating action on a mass is exactly
// one FindOneAndUpdate whose filter encodes the required status, the
// actor's administrative relationship, and any uniqueness guards. The
// update (plain or aggregation-pipeline) is computed server-side in the
// same operation, so authorization + status check + mutation are a
// single compare-and-swap. A caller whose filter matches nothing lost
// the race (or never qualified); it re-reads the document once to
// produce an exact failure: not-found outranks authorization, which
// outranks wrong-status conflict. No action performs a read-modify-
// write across two round trips.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/migueww/acolitapp/internal/app/system/apperr"
	"github.com/migueww/acolitapp/internal/app/system/massstatus"
	"github.com/migueww/acolitapp/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("masses")}
}

// EnsureIndexes creates the indexes the mass queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: -1}},
			Options: options.Index().SetName("idx_masses_status_scheduled"),
		},
		{
			Keys:    bson.D{{Key: "scheduled_at", Value: -1}},
			Options: options.Index().SetName("idx_masses_scheduled"),
		},
		{
			Keys:    bson.D{{Key: "created_by", Value: 1}, {Key: "scheduled_at", Value: -1}},
			Options: options.Index().SetName("idx_masses_creator_scheduled"),
		},
		{
			Keys:    bson.D{{Key: "chief_by", Value: 1}, {Key: "scheduled_at", Value: -1}},
			Options: options.Index().SetName("idx_masses_chief_scheduled"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

/* -------------------------------------------------------------------------- */
/* Creation and reads                                                          */
/* -------------------------------------------------------------------------- */

// Create inserts a new SCHEDULED mass. The creator starts as chief.
func (s *Store) Create(ctx context.Context, scheduledAt time.Time, massType string, createdBy primitive.ObjectID) (*models.Mass, error) {
	if massType == "" {
		return nil, apperr.Validation("mass type is required")
	}
	if scheduledAt.IsZero() {
		return nil, apperr.Validation("scheduled time is required")
	}

	now := time.Now().UTC()
	m := models.Mass{
		ID:          primitive.NewObjectID(),
		Status:      massstatus.Scheduled,
		MassType:    massType,
		ScheduledAt: scheduledAt.UTC(),
		CreatedBy:   createdBy,
		ChiefBy:     createdBy,
		Attendance: models.Attendance{
			Joined:    []models.JoinedEntry{},
			Confirmed: []models.ConfirmedEntry{},
			Pending:   []models.PendingEntry{},
		},
		Assignments: []models.Assignment{},
		Events:      []models.MassEvent{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return nil, apperr.Internal(err)
	}
	return &m, nil
}

// FindByID loads a mass, normalizing legacy status aliases.
func (s *Store) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Mass, error) {
	m, err := s.findByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.NotFound("mass not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return m, nil
}

func (s *Store) findByID(ctx context.Context, id primitive.ObjectID) (*models.Mass, error) {
	var m models.Mass
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, err
	}
	m.Status = massstatus.Normalize(m.Status)
	return &m, nil
}

// ListOptions narrows List results.
type ListOptions struct {
	Status string // canonical status; matches legacy aliases too
	Limit  int64
}

// List returns masses sorted by scheduled time, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.Mass, error) {
	filter := bson.M{}
	if opts.Status != "" {
		canonical := massstatus.Normalize(opts.Status)
		if !massstatus.IsValid(canonical) {
			return nil, apperr.Validation("unknown status filter")
		}
		filter["status"] = bson.M{"$in": massstatus.Aliases(canonical)}
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "scheduled_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(opts.Limit)
	}

	cur, err := s.c.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer cur.Close(ctx)

	var masses []models.Mass
	if err := cur.All(ctx, &masses); err != nil {
		return nil, apperr.Internal(err)
	}
	for i := range masses {
		masses[i].Status = massstatus.Normalize(masses[i].Status)
	}
	return masses, nil
}

/* -------------------------------------------------------------------------- */
/* Lifecycle transitions                                                       */
/* -------------------------------------------------------------------------- */

// Open moves a SCHEDULED mass to OPEN.
func (s *Store) Open(ctx context.Context, massID, actorID primitive.ObjectID) (*models.Mass, error) {
	now := time.Now().UTC()
	filter := adminFilter(massID, actorID, massstatus.Scheduled)
	update := bson.M{
		"$set": bson.M{
			"status":     massstatus.Open,
			"opened_at":  now,
			"updated_at": now,
		},
		"$push": bson.M{"events": event(models.EventMassOpened, actorID, now, nil)},
	}
	m, err := s.applyUpdate(ctx, filter, update)
	if err == mongo.ErrNoDocuments {
		return nil, s.diagnose(ctx, massID, actorID, false, massstatus.Scheduled)
	}
	return m, wrapDriver(err)
}

// Cancel terminates a SCHEDULED or OPEN mass.
func (s *Store) Cancel(ctx context.Context, massID, actorID primitive.ObjectID) (*models.Mass, error) {
	now := time.Now().UTC()
	filter := adminFilter(massID, actorID, massstatus.CancelableFrom()...)
	update := bson.M{
		"$set": bson.M{
			"status":      massstatus.Canceled,
			"canceled_at": now,
			"updated_at":  now,
		},
		"$push": bson.M{"events": event(models.EventMassCanceled, actorID, now, nil)},
	}
	m, err := s.applyUpdate(ctx, filter, update)
	if err == mongo.ErrNoDocuments {
		return nil, s.diagnose(ctx, massID, actorID, false, massstatus.CancelableFrom()...)
	}
	return m, wrapDriver(err)
}

// Delegate hands chief duties to another cerimoniario. Only the
// creator may delegate, and only while the mass is not terminal.
func (s *Store) Delegate(ctx context.Context, massID, actorID, newChiefID primitive.ObjectID) (*models.Mass, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":        massID,
		"created_by": actorID,
		"status":     bson.M{"$in": aliasesOf(massstatus.DelegableFrom())},
	}
	update := bson.M{
		"$set": bson.M{
			"chief_by":   newChiefID,
			"updated_at": now,
		},
		"$push": bson.M{"events": event(models.EventMassDelegated, actorID, now, bson.M{
			"new_chief_by": newChiefID,
		})},
	}
	m, err := s.applyUpdate(ctx, filter, update)
	if err == mongo.ErrNoDocuments {
		return nil, s.diagnose(ctx, massID, actorID, true, massstatus.DelegableFrom()...)
	}
	return m, wrapDriver(err)
}

// MoveToPreparation closes the attendance window: joined entries
// without a confirmation are dropped, pending requests are cleared,
// and the counts of both removals are recorded on the event.
//
// The whole computation runs as an aggregation-pipeline update so the
// filtering and the counts are derived from the same document version
// the status check matched.
func (s *Store) MoveToPreparation(ctx context.Context, massID, actorID primitive.ObjectID) (*models.Mass, error) {
	now := time.Now().UTC()
	filter := adminFilter(massID, actorID, massstatus.Open)

	keptJoined := bson.M{"$filter": bson.M{
		"input": "$attendance.joined",
		"as":    "j",
		"cond":  bson.M{"$in": bson.A{"$$j.user_id", "$attendance.confirmed.user_id"}},
	}}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"status":         massstatus.Preparation,
			"preparation_at": now,
			"updated_at":     now,
			"attendance.joined": keptJoined,
			"events": bson.M{"$concatArrays": bson.A{"$events", bson.A{bson.M{
				"type":     models.EventMassMovedToPreparation,
				"actor_id": actorID,
				"at":       now,
				"payload": bson.M{
					"removed_joined": bson.M{"$subtract": bson.A{
						bson.M{"$size": "$attendance.joined"},
						bson.M{"$size": keptJoined},
					}},
					"removed_pending": bson.M{"$size": "$attendance.pending"},
				},
			}}}},
		}}},
		{{Key: "$set", Value: bson.M{
			"attendance.pending": bson.A{},
		}}},
	}

	m, err := s.applyUpdate(ctx, filter, pipeline)
	if err == mongo.ErrNoDocuments {
		return nil, s.diagnose(ctx, massID, actorID, false, massstatus.Open)
	}
	return m, wrapDriver(err)
}

// Finish terminates a PREPARATION mass. When no assignments were ever
// recorded, the slots are materialized from the mass type template with
// every slot vacant, so history always carries the full slot list.
// templateRoleKeys is the mass type's slot list (NONE entries ignored).
func (s *Store) Finish(ctx context.Context, massID, actorID primitive.ObjectID, templateRoleKeys []string) (*models.Mass, error) {
	now := time.Now().UTC()
	filter := adminFilter(massID, actorID, massstatus.Preparation)

	vacant := bson.A{}
	for _, key := range templateRoleKeys {
		if key == models.RoleKeyNone || key == "" {
			continue
		}
		vacant = append(vacant, bson.M{"role_key": key, "user_id": nil})
	}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"status":      massstatus.Finished,
			"finished_at": now,
			"updated_at":  now,
			"assignments": bson.M{"$cond": bson.M{
				"if":   bson.M{"$eq": bson.A{bson.M{"$size": "$assignments"}, 0}},
				"then": vacant,
				"else": "$assignments",
			}},
			"events": bson.M{"$concatArrays": bson.A{"$events", bson.A{bson.M{
				"type":     models.EventMassFinished,
				"actor_id": actorID,
				"at":       now,
			}}}},
		}}},
	}

	m, err := s.applyUpdate(ctx, filter, pipeline)
	if err == mongo.ErrNoDocuments {
		return nil, s.diagnose(ctx, massID, actorID, false, massstatus.Preparation)
	}
	return m, wrapDriver(err)
}

// AssignRoles replaces the assignment list wholesale while the mass is
// in PREPARATION.
func (s *Store) AssignRoles(ctx context.Context, massID, actorID primitive.ObjectID, assignments []models.Assignment) (*models.Mass, error) {
	for _, a := range assignments {
		if a.RoleKey == "" {
			return nil, apperr.Validation("assignment entries need a role key")
		}
	}
	if assignments == nil {
		assignments = []models.Assignment{}
	}

	now := time.Now().UTC()
	filter := adminFilter(massID, actorID, massstatus.Preparation)
	update := bson.M{
		"$set": bson.M{
			"assignments": assignments,
			"updated_at":  now,
		},
		"$push": bson.M{"events": event(models.EventMassAssignmentsUpdated, actorID, now, bson.M{
			"count": len(assignments),
		})},
	}
	m, err := s.applyUpdate(ctx, filter, update)
	if err == mongo.ErrNoDocuments {
		return nil, s.diagnose(ctx, massID, actorID, false, massstatus.Preparation)
	}
	return m, wrapDriver(err)
}

/* -------------------------------------------------------------------------- */
/* Attendance workflow                                                         */
/* -------------------------------------------------------------------------- */

// Join appends the user to the joined list while the mass is OPEN. The
// duplicate guard lives in the filter, so two simultaneous joins cannot
// both insert; a repeated join is a no-op that reports the unchanged
// mass.
func (s *Store) Join(ctx context.Context, massID, userID primitive.ObjectID) (*models.Mass, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":                       massID,
		"status":                    bson.M{"$in": massstatus.Aliases(massstatus.Open)},
		"attendance.joined.user_id": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$set": bson.M{"updated_at": now},
		"$push": bson.M{
			"attendance.joined": models.JoinedEntry{UserID: userID, JoinedAt: now},
			"events":            event(models.EventMassJoined, userID, now, nil),
		},
	}
	m, err := s.applyUpdate(ctx, filter, update)
	if err == nil {
		return m, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, apperr.Internal(err)
	}

	current, ferr := s.findByID(ctx, massID)
	if ferr == mongo.ErrNoDocuments {
		return nil, apperr.NotFound("mass not found")
	}
	if ferr != nil {
		return nil, apperr.Internal(ferr)
	}
	if current.Status != massstatus.Open {
		return nil, wrongStatus(current.Status)
	}
	if current.HasJoined(userID) {
		// Repeated join: report the current mass unchanged.
		return current, nil
	}
	return nil, apperr.Conflict("join lost a concurrent update")
}

// RequestConfirmation creates a pending confirmation request for a
// joined user. When a pending request already exists the existing
// request id is returned instead of a new one; requesting without
// joining first is a hard error.
func (s *Store) RequestConfirmation(ctx context.Context, massID, userID primitive.ObjectID) (*models.Mass, string, error) {
	now := time.Now().UTC()
	requestID := uuid.NewString()

	filter := bson.M{
		"_id":                          massID,
		"status":                       bson.M{"$in": massstatus.Aliases(massstatus.Open)},
		"attendance.joined.user_id":    userID,
		"attendance.confirmed.user_id": bson.M{"$ne": userID},
		"attendance.pending.user_id":   bson.M{"$ne": userID},
	}
	update := bson.M{
		"$set": bson.M{"updated_at": now},
		"$push": bson.M{
			"attendance.pending": models.PendingEntry{
				RequestID:   requestID,
				UserID:      userID,
				RequestedAt: now,
			},
			"events": event(models.EventMassConfirmationRequested, userID, now, bson.M{
				"request_id": requestID,
			}),
		},
	}
	m, err := s.applyUpdate(ctx, filter, update)
	if err == nil {
		return m, requestID, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, "", apperr.Internal(err)
	}

	current, ferr := s.findByID(ctx, massID)
	if ferr == mongo.ErrNoDocuments {
		return nil, "", apperr.NotFound("mass not found")
	}
	if ferr != nil {
		return nil, "", apperr.Internal(ferr)
	}
	if current.Status != massstatus.Open {
		return nil, "", wrongStatus(current.Status)
	}
	if !current.HasJoined(userID) {
		return nil, "", apperr.Conflict("join before requesting confirmation")
	}
	if current.HasConfirmed(userID) {
		return nil, "", apperr.Conflict("already confirmed")
	}
	if existing, ok := current.PendingFor(userID); ok {
		// Idempotent re-fetch of the outstanding request.
		return current, existing.RequestID, nil
	}
	return nil, "", apperr.Conflict("confirmation request lost a concurrent update")
}

// FindPending validates a preview: the actor must administer the mass,
// the mass must be OPEN, the request must exist, and its user must not
// already be confirmed. Nothing is mutated.
func (s *Store) FindPending(ctx context.Context, massID, actorID primitive.ObjectID, requestID string) (models.PendingEntry, error) {
	m, err := s.findByID(ctx, massID)
	if err == mongo.ErrNoDocuments {
		return models.PendingEntry{}, apperr.NotFound("mass not found")
	}
	if err != nil {
		return models.PendingEntry{}, apperr.Internal(err)
	}
	if !m.IsAdministeredBy(actorID) {
		return models.PendingEntry{}, apperr.NotFound("mass not found")
	}
	if m.Status != massstatus.Open {
		return models.PendingEntry{}, wrongStatus(m.Status)
	}
	entry, ok := m.PendingByRequestID(requestID)
	if !ok {
		return models.PendingEntry{}, apperr.NotFound("request not found")
	}
	if m.HasConfirmed(entry.UserID) {
		return models.PendingEntry{}, apperr.Conflict("already confirmed")
	}
	return entry, nil
}

// Decide resolves a pending request. Removing the pending entry,
// appending to confirmed, and logging the event happen in one pipeline
// update keyed on the request id, so a duplicate decision finds no
// matching pending entry and fails with "request not found".
func (s *Store) Decide(ctx context.Context, massID, actorID primitive.ObjectID, requestID string, confirm bool) (*models.Mass, error) {
	now := time.Now().UTC()
	filter := adminFilter(massID, actorID, massstatus.Open)
	filter["attendance.pending.request_id"] = requestID

	matched := bson.M{"$filter": bson.M{
		"input": "$attendance.pending",
		"as":    "p",
		"cond":  bson.M{"$eq": bson.A{"$$p.request_id", requestID}},
	}}
	matchedUser := bson.M{"$first": bson.M{"$map": bson.M{
		"input": matched,
		"as":    "p",
		"in":    "$$p.user_id",
	}}}

	eventType := models.EventMassConfirmationDenied
	if confirm {
		eventType = models.EventMassConfirmed
	}

	set := bson.M{
		"updated_at": now,
		"events": bson.M{"$concatArrays": bson.A{"$events", bson.A{bson.M{
			"type":     eventType,
			"actor_id": actorID,
			"at":       now,
			"payload": bson.M{
				"request_id":        requestID,
				"confirmed_user_id": matchedUser,
			},
		}}}},
	}
	if confirm {
		set["attendance.confirmed"] = bson.M{"$concatArrays": bson.A{
			"$attendance.confirmed",
			bson.M{"$map": bson.M{
				"input": matched,
				"as":    "p",
				"in":    bson.M{"user_id": "$$p.user_id", "confirmed_at": now},
			}},
		}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: set}},
		{{Key: "$set", Value: bson.M{
			"attendance.pending": bson.M{"$filter": bson.M{
				"input": "$attendance.pending",
				"as":    "p",
				"cond":  bson.M{"$ne": bson.A{"$$p.request_id", requestID}},
			}},
		}}},
	}

	m, err := s.applyUpdate(ctx, filter, pipeline)
	if err == nil {
		return m, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, apperr.Internal(err)
	}

	current, ferr := s.findByID(ctx, massID)
	if ferr == mongo.ErrNoDocuments {
		return nil, apperr.NotFound("mass not found")
	}
	if ferr != nil {
		return nil, apperr.Internal(ferr)
	}
	if !current.IsAdministeredBy(actorID) {
		return nil, apperr.NotFound("mass not found")
	}
	if current.Status != massstatus.Open {
		return nil, wrongStatus(current.Status)
	}
	return nil, apperr.NotFound("request not found")
}

/* -------------------------------------------------------------------------- */
/* History                                                                     */
/* -------------------------------------------------------------------------- */

// PreviousFunctionWeights resolves, for each user, the weight of the
// role they held in their most recent finished mass scheduled strictly
// before the given time. The scan walks finished masses newest-first
// and stops as soon as every user is resolved; users never seen stay
// absent from the result. When a user holds several entries in that
// one mass, the heaviest counts.
func (s *Store) PreviousFunctionWeights(ctx context.Context, before time.Time, userIDs []primitive.ObjectID, weightOf func(roleKey string) int) (map[primitive.ObjectID]int, error) {
	resolved := make(map[primitive.ObjectID]int, len(userIDs))
	if len(userIDs) == 0 {
		return resolved, nil
	}

	remaining := make(map[primitive.ObjectID]struct{}, len(userIDs))
	for _, id := range userIDs {
		remaining[id] = struct{}{}
	}

	filter := bson.M{
		"status":       bson.M{"$in": massstatus.Aliases(massstatus.Finished)},
		"scheduled_at": bson.M{"$lt": before},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "scheduled_at", Value: -1}}).
		SetProjection(bson.M{"assignments": 1, "scheduled_at": 1})

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var m models.Mass
		if err := cur.Decode(&m); err != nil {
			return nil, apperr.Internal(err)
		}
		for _, a := range m.Assignments {
			if a.UserID == nil {
				continue
			}
			if _, want := remaining[*a.UserID]; !want {
				continue
			}
			w := weightOf(a.RoleKey)
			if cur, ok := resolved[*a.UserID]; !ok || w > cur {
				resolved[*a.UserID] = w
			}
		}
		// A user found in this mass is resolved; later (older) masses
		// must not override their most recent weight.
		for id := range resolved {
			delete(remaining, id)
		}
		if len(remaining) == 0 {
			break
		}
	}
	if err := cur.Err(); err != nil {
		return nil, apperr.Internal(err)
	}
	return resolved, nil
}

/* -------------------------------------------------------------------------- */
/* Helpers                                                                     */
/* -------------------------------------------------------------------------- */

// adminFilter matches the mass when it is in one of the wanted
// statuses and the actor is its creator or chief.
func adminFilter(massID, actorID primitive.ObjectID, statuses ...string) bson.M {
	return bson.M{
		"_id":    massID,
		"status": bson.M{"$in": aliasesOf(statuses)},
		"$or": bson.A{
			bson.M{"created_by": actorID},
			bson.M{"chief_by": actorID},
		},
	}
}

func aliasesOf(statuses []string) []string {
	var all []string
	for _, s := range statuses {
		all = append(all, massstatus.Aliases(s)...)
	}
	return all
}

func event(eventType string, actorID primitive.ObjectID, at time.Time, payload bson.M) models.MassEvent {
	return models.MassEvent{Type: eventType, ActorID: actorID, At: at, Payload: payload}
}

// applyUpdate runs the single atomic conditional update and returns
// the post-update document. A nil match surfaces as
// mongo.ErrNoDocuments for the caller to diagnose.
func (s *Store) applyUpdate(ctx context.Context, filter bson.M, update any) (*models.Mass, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m models.Mass
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
		return nil, err
	}
	m.Status = massstatus.Normalize(m.Status)
	return &m, nil
}

// diagnose re-reads the mass after a zero-match update to report the
// exact failure. Missing record outranks a missing administrative
// relationship (both surface as not-found so existence is not leaked),
// which outranks a wrong-status conflict.
func (s *Store) diagnose(ctx context.Context, massID, actorID primitive.ObjectID, creatorOnly bool, wantStatuses ...string) error {
	m, err := s.findByID(ctx, massID)
	if err == mongo.ErrNoDocuments {
		return apperr.NotFound("mass not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if creatorOnly {
		if m.CreatedBy != actorID {
			return apperr.NotFound("mass not found")
		}
	} else if !m.IsAdministeredBy(actorID) {
		return apperr.NotFound("mass not found")
	}
	for _, want := range wantStatuses {
		if m.Status == want {
			return apperr.Conflict("mass was modified concurrently")
		}
	}
	return wrongStatus(m.Status)
}

func wrongStatus(status string) error {
	return apperr.Conflict(fmt.Sprintf("mass is %s", strings.ToLower(status)))
}

func wrapDriver(err error) error {
	if err == nil {
		return nil
	}
	return apperr.Internal(err)
}
