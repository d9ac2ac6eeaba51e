// internal/domain/models/liturgy.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoleKeyNone marks a template slot that carries no liturgical
// function. NONE slots are filtered out before assignment; it is also
// the default overflow role when a mass type sets no fallback.
const RoleKeyNone = "NONE"

// MassTypeConfig is a template determining which role slots apply to a
// celebration style (e.g. SIMPLES, SOLENE).
type MassTypeConfig struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Key  string             `bson:"key" json:"key"`
	Name string             `bson:"name" json:"name"`

	// RoleKeys is the ordered slot list. May contain NONE entries and
	// repeated keys.
	RoleKeys []string `bson:"role_keys" json:"role_keys"`

	// FallbackRoleKey is assigned to confirmed users beyond the slot
	// count. Empty means NONE.
	FallbackRoleKey string `bson:"fallback_role_key,omitempty" json:"fallback_role_key,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// RoleConfig defines a liturgical function and its priority weight.
// Higher-weight roles are filled first by auto-assignment.
type RoleConfig struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Key    string             `bson:"key" json:"key"`
	Name   string             `bson:"name" json:"name"`
	Weight int                `bson:"weight" json:"weight"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
