package userstore

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/migueww/acolitapp/internal/app/system/apperr"
	"github.com/migueww/acolitapp/internal/app/system/sanitize"
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
	return &Store{c: db.Collection("users")}
}

// EnsureIndexes creates the user lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "login_id_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_login_ci"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}, {Key: "full_name_ci", Value: 1}},
			Options: options.Index().SetName("idx_users_role_status_name"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err)
	}
	return &u, nil
}

// FindByLoginID looks up a user by case-insensitive login id.
func (s *Store) FindByLoginID(ctx context.Context, loginID string) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"login_id_ci": text.Fold(loginID)}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &u, nil
}

// Create inserts a new user after normalizing & validating fields.
// The caller supplies a pre-hashed password.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = sanitize.DisplayName(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.LoginID = sanitize.LoginID(u.LoginID)
	u.LoginIDCI = text.Fold(u.LoginID)
	if u.Status == "" {
		u.Status = models.StatusActive
	}
	if u.GlobalScore == 0 {
		u.GlobalScore = models.DefaultGlobalScore
	}

	if u.FullName == "" {
		return models.User{}, apperr.Validation("full name is required")
	}
	if u.LoginID == "" {
		return models.User{}, apperr.Validation("login id is required")
	}
	switch u.Role {
	case models.RoleCerimoniario, models.RoleAcolito:
	default:
		return models.User{}, apperr.Validation(`role must be "cerimoniario" or "acolito"`)
	}
	switch u.Status {
	case models.StatusActive, models.StatusDisabled:
	default:
		return models.User{}, apperr.Validation(`status must be "active" or "disabled"`)
	}
	if u.GlobalScore < 0 || u.GlobalScore > 100 {
		return models.User{}, apperr.Validation("global score must be between 0 and 100")
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, apperr.Wrap(apperr.Conflict("a user with this login id already exists"), err)
		}
		return models.User{}, apperr.Internal(err)
	}
	return u, nil
}

// ListOptions narrows List results.
type ListOptions struct {
	Role   string
	Status string
}

// List returns users sorted by folded full name.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.User, error) {
	filter := bson.M{}
	if opts.Role != "" {
		filter["role"] = opts.Role
	}
	if opts.Status != "" {
		filter["status"] = opts.Status
	}

	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "full_name_ci", Value: 1}}))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

// ProfileUpdate holds the admin-editable user fields. Nil pointers
// leave the stored value untouched.
type ProfileUpdate struct {
	FullName    *string
	GlobalScore *int
	Status      *string
}

// UpdateProfile applies an admin edit to a user.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}

	if upd.FullName != nil {
		name := sanitize.DisplayName(*upd.FullName)
		if name == "" {
			return nil, apperr.Validation("full name is required")
		}
		set["full_name"] = name
		set["full_name_ci"] = text.Fold(name)
	}
	if upd.GlobalScore != nil {
		if *upd.GlobalScore < 0 || *upd.GlobalScore > 100 {
			return nil, apperr.Validation("global score must be between 0 and 100")
		}
		set["global_score"] = *upd.GlobalScore
	}
	if upd.Status != nil {
		switch *upd.Status {
		case models.StatusActive, models.StatusDisabled:
		default:
			return nil, apperr.Validation(`status must be "active" or "disabled"`)
		}
		set["status"] = *upd.Status
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &u, nil
}

// Profile is the scoring-relevant slice of a user record.
type Profile struct {
	GlobalScore int
	LastRoleKey string
}

// profileDoc decodes the score through a pointer so a document with no
// global_score field reads as absent rather than as a score of 0.
type profileDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	GlobalScore *int               `bson:"global_score"`
	LastRoleKey string             `bson:"last_role_key"`
}

// FindProfiles loads the assignment-scoring inputs for a set of users.
// Users not found are absent from the result; absent or out-of-range
// scores read as the default so a corrupt record cannot skew a plan.
func (s *Store) FindProfiles(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]Profile, error) {
	profiles := make(map[primitive.ObjectID]Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	proj := options.Find().SetProjection(bson.M{
		"global_score":  1,
		"last_role_key": 1,
	})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, proj)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var d profileDoc
		if err := cur.Decode(&d); err != nil {
			return nil, apperr.Internal(err)
		}
		score := models.DefaultGlobalScore
		if d.GlobalScore != nil && *d.GlobalScore >= 0 && *d.GlobalScore <= 100 {
			score = *d.GlobalScore
		}
		profiles[d.ID] = Profile{GlobalScore: score, LastRoleKey: d.LastRoleKey}
	}
	if err := cur.Err(); err != nil {
		return nil, apperr.Internal(err)
	}
	return profiles, nil
}

// SetLastRoleKeys records each user's role from a finished mass, the
// fallback input for the next rotation computation.
func (s *Store) SetLastRoleKeys(ctx context.Context, byUser map[primitive.ObjectID]string) error {
	if len(byUser) == 0 {
		return nil
	}

	now := time.Now().UTC()
	writes := make([]mongo.WriteModel, 0, len(byUser))
	for id, roleKey := range byUser {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id}).
			SetUpdate(bson.M{"$set": bson.M{"last_role_key": roleKey, "updated_at": now}}))
	}

	_, err := s.c.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}
