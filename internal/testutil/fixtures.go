package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/migueww/acolitapp/internal/app/system/massstatus"
	"github.com/migueww/acolitapp/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, loginID, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:          primitive.NewObjectID(),
		FullName:    fullName,
		FullNameCI:  text.Fold(fullName),
		LoginID:     loginID,
		LoginIDCI:   text.Fold(loginID),
		Role:        role,
		Status:      models.StatusActive,
		GlobalScore: models.DefaultGlobalScore,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateCerimoniario creates a test cerimoniario user.
func (f *Fixtures) CreateCerimoniario(ctx context.Context, fullName, loginID string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, loginID, models.RoleCerimoniario)
}

// CreateAcolito creates a test acolito user.
func (f *Fixtures) CreateAcolito(ctx context.Context, fullName, loginID string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, loginID, models.RoleAcolito)
}

// CreateAcolitoWithScore creates a test acolito with a specific global score.
func (f *Fixtures) CreateAcolitoWithScore(ctx context.Context, fullName, loginID string, score int) models.User {
	f.t.Helper()
	user := f.CreateAcolito(ctx, fullName, loginID)
	_, err := f.db.Collection("users").UpdateByID(ctx, user.ID, bson.M{
		"$set": bson.M{"global_score": score},
	})
	if err != nil {
		f.t.Fatalf("failed to set global score: %v", err)
	}
	user.GlobalScore = score
	return user
}

// CreateMass creates a test mass in the given status with the creator
// as chief.
func (f *Fixtures) CreateMass(ctx context.Context, status, massType string, createdBy primitive.ObjectID) models.Mass {
	f.t.Helper()

	now := time.Now().UTC()
	mass := models.Mass{
		ID:          primitive.NewObjectID(),
		Status:      status,
		MassType:    massType,
		ScheduledAt: now.Add(24 * time.Hour),
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
	if status == massstatus.Open {
		openedAt := now
		mass.OpenedAt = &openedAt
	}

	_, err := f.db.Collection("masses").InsertOne(ctx, mass)
	if err != nil {
		f.t.Fatalf("failed to create test mass: %v", err)
	}

	return mass
}

// CreateScheduledMass creates a SCHEDULED mass.
func (f *Fixtures) CreateScheduledMass(ctx context.Context, massType string, createdBy primitive.ObjectID) models.Mass {
	f.t.Helper()
	return f.CreateMass(ctx, massstatus.Scheduled, massType, createdBy)
}

// CreateOpenMass creates an OPEN mass.
func (f *Fixtures) CreateOpenMass(ctx context.Context, massType string, createdBy primitive.ObjectID) models.Mass {
	f.t.Helper()
	return f.CreateMass(ctx, massstatus.Open, massType, createdBy)
}

// CreateMassType creates a mass type template.
func (f *Fixtures) CreateMassType(ctx context.Context, key, name string, roleKeys []string, fallback string) models.MassTypeConfig {
	f.t.Helper()

	now := time.Now().UTC()
	cfg := models.MassTypeConfig{
		ID:              primitive.NewObjectID(),
		Key:             key,
		Name:            name,
		RoleKeys:        roleKeys,
		FallbackRoleKey: fallback,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := f.db.Collection("liturgy_mass_types").InsertOne(ctx, cfg)
	if err != nil {
		f.t.Fatalf("failed to create test mass type: %v", err)
	}

	return cfg
}

// CreateRole creates a liturgical role with the given weight.
func (f *Fixtures) CreateRole(ctx context.Context, key, name string, weight int) models.RoleConfig {
	f.t.Helper()

	now := time.Now().UTC()
	role := models.RoleConfig{
		ID:        primitive.NewObjectID(),
		Key:       key,
		Name:      name,
		Weight:    weight,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := f.db.Collection("liturgy_roles").InsertOne(ctx, role)
	if err != nil {
		f.t.Fatalf("failed to create test role: %v", err)
	}

	return role
}

// CreateFinishedMassWithAssignment inserts a FINISHED mass scheduled at
// the given time that assigned the user to the given role. Used to seed
// rotation history for the assignment engine.
func (f *Fixtures) CreateFinishedMassWithAssignment(ctx context.Context, scheduledAt time.Time, userID primitive.ObjectID, roleKey string, createdBy primitive.ObjectID) models.Mass {
	f.t.Helper()

	now := time.Now().UTC()
	finishedAt := scheduledAt.Add(2 * time.Hour)
	mass := models.Mass{
		ID:          primitive.NewObjectID(),
		Status:      massstatus.Finished,
		MassType:    "SIMPLES",
		ScheduledAt: scheduledAt,
		CreatedBy:   createdBy,
		ChiefBy:     createdBy,
		FinishedAt:  &finishedAt,
		Attendance: models.Attendance{
			Joined:    []models.JoinedEntry{{UserID: userID, JoinedAt: scheduledAt}},
			Confirmed: []models.ConfirmedEntry{{UserID: userID, ConfirmedAt: scheduledAt}},
			Pending:   []models.PendingEntry{},
		},
		Assignments: []models.Assignment{{RoleKey: roleKey, UserID: &userID}},
		Events:      []models.MassEvent{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := f.db.Collection("masses").InsertOne(ctx, mass)
	if err != nil {
		f.t.Fatalf("failed to create finished test mass: %v", err)
	}

	return mass
}
