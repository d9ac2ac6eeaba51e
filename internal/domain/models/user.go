// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles. Cerimoniarios administer masses and confirm attendance;
// acolitos join masses and receive liturgical role assignments.
const (
	RoleCerimoniario = "cerimoniario"
	RoleAcolito      = "acolito"
)

// User statuses.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// DefaultGlobalScore is used when a profile has no valid global score.
const DefaultGlobalScore = 50

// User represents a cerimoniario or acolito account.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	LoginID    string             `bson:"login_id" json:"login_id"`
	LoginIDCI  string             `bson:"login_id_ci" json:"login_id_ci"`

	PasswordHash string `bson:"password_hash,omitempty" json:"-"`

	Role   string `bson:"role" json:"role"` // cerimoniario | acolito
	Status string `bson:"status" json:"status"`

	// GlobalScore is a persisted 0-100 standing used by the assignment
	// engine's profile bonus. Out-of-range or missing values are read
	// as DefaultGlobalScore.
	GlobalScore int `bson:"global_score" json:"global_score"`

	// LastRoleKey is the role key from the user's most recent finished
	// assignment. Fallback input for rotation when no prior finished
	// mass is found in the history scan.
	LastRoleKey string `bson:"last_role_key,omitempty" json:"last_role_key,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
