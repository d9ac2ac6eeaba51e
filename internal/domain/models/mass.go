// internal/domain/models/mass.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mass event types appended to the event log. One entry per successful
// state-changing action; the log is append-only.
const (
	EventMassOpened                = "MASS_OPENED"
	EventMassMovedToPreparation    = "MASS_MOVED_TO_PREPARATION"
	EventMassFinished              = "MASS_FINISHED"
	EventMassCanceled              = "MASS_CANCELED"
	EventMassDelegated             = "MASS_DELEGATED"
	EventMassAssignmentsUpdated    = "MASS_ASSIGNMENTS_UPDATED"
	EventMassJoined                = "MASS_JOINED"
	EventMassConfirmationRequested = "MASS_CONFIRMATION_REQUESTED"
	EventMassConfirmed             = "MASS_CONFIRMED"
	EventMassConfirmationDenied    = "MASS_CONFIRMATION_DENIED"
)

// Mass is the aggregate root for a scheduled celebration.
//
// Attendance and the event log are embedded so every lifecycle action
// can be expressed as a single-document conditional update.
type Mass struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Status   string             `bson:"status" json:"status"` // SCHEDULED | OPEN | PREPARATION | FINISHED | CANCELED
	MassType string             `bson:"mass_type" json:"mass_type"`

	ScheduledAt time.Time `bson:"scheduled_at" json:"scheduled_at"`

	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	ChiefBy   primitive.ObjectID `bson:"chief_by" json:"chief_by"`

	OpenedAt      *time.Time `bson:"opened_at,omitempty" json:"opened_at,omitempty"`
	PreparationAt *time.Time `bson:"preparation_at,omitempty" json:"preparation_at,omitempty"`
	FinishedAt    *time.Time `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
	CanceledAt    *time.Time `bson:"canceled_at,omitempty" json:"canceled_at,omitempty"`

	Attendance  Attendance   `bson:"attendance" json:"attendance"`
	Assignments []Assignment `bson:"assignments" json:"assignments"`
	Events      []MassEvent  `bson:"events" json:"events"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Attendance tracks the per-user join/request/confirm workflow while a
// mass is OPEN. A user id appears at most once per list.
type Attendance struct {
	Joined    []JoinedEntry    `bson:"joined" json:"joined"`
	Confirmed []ConfirmedEntry `bson:"confirmed" json:"confirmed"`
	Pending   []PendingEntry   `bson:"pending" json:"pending"`
}

type JoinedEntry struct {
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}

type ConfirmedEntry struct {
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	ConfirmedAt time.Time          `bson:"confirmed_at" json:"confirmed_at"`
}

type PendingEntry struct {
	RequestID   string             `bson:"request_id" json:"request_id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	RequestedAt time.Time          `bson:"requested_at" json:"requested_at"`
}

// Assignment binds a liturgical role slot to a user. UserID is nil for
// a vacant slot. Role keys may repeat: confirmed users beyond the
// template's slot count each get an entry with the fallback role key.
type Assignment struct {
	RoleKey string              `bson:"role_key" json:"role_key"`
	UserID  *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
}

// MassEvent is one entry in the append-only event log.
type MassEvent struct {
	Type    string             `bson:"type" json:"type"`
	ActorID primitive.ObjectID `bson:"actor_id" json:"actor_id"`
	At      time.Time          `bson:"at" json:"at"`
	Payload bson.M             `bson:"payload,omitempty" json:"payload,omitempty"`
}

// HasJoined reports whether the user appears in the joined list.
func (m *Mass) HasJoined(userID primitive.ObjectID) bool {
	for _, e := range m.Attendance.Joined {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

// HasConfirmed reports whether the user appears in the confirmed list.
func (m *Mass) HasConfirmed(userID primitive.ObjectID) bool {
	for _, e := range m.Attendance.Confirmed {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

// PendingFor returns the pending entry for the user, if any.
func (m *Mass) PendingFor(userID primitive.ObjectID) (PendingEntry, bool) {
	for _, e := range m.Attendance.Pending {
		if e.UserID == userID {
			return e, true
		}
	}
	return PendingEntry{}, false
}

// PendingByRequestID returns the pending entry with the given request id.
func (m *Mass) PendingByRequestID(requestID string) (PendingEntry, bool) {
	for _, e := range m.Attendance.Pending {
		if e.RequestID == requestID {
			return e, true
		}
	}
	return PendingEntry{}, false
}

// IsAdministeredBy reports whether the user is the creator or the
// current chief of the mass.
func (m *Mass) IsAdministeredBy(userID primitive.ObjectID) bool {
	return m.CreatedBy == userID || m.ChiefBy == userID
}
