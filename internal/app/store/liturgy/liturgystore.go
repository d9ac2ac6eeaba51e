// internal/app/store/liturgy/liturgystore.go
package liturgystore

import (
	"context"
	"time"

	"github.com/migueww/acolitapp/internal/app/system/apperr"
	"github.com/migueww/acolitapp/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store serves the liturgical configuration: mass type templates and
// role weights. Both collections are small and read-mostly.
type Store struct {
	massTypes *mongo.Collection
	roles     *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		massTypes: db.Collection("liturgy_mass_types"),
		roles:     db.Collection("liturgy_roles"),
	}
}

// EnsureIndexes creates the unique key indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.massTypes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_mass_type_key"),
	})
	if err != nil {
		return err
	}
	_, err = s.roles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_role_key"),
	})
	return err
}

// GetMassType loads a mass type template by key.
func (s *Store) GetMassType(ctx context.Context, key string) (*models.MassTypeConfig, error) {
	var cfg models.MassTypeConfig
	err := s.massTypes.FindOne(ctx, bson.M{"key": key}).Decode(&cfg)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.NotFound("unknown mass type")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &cfg, nil
}

// ListMassTypes returns all templates sorted by key.
func (s *Store) ListMassTypes(ctx context.Context) ([]models.MassTypeConfig, error) {
	cur, err := s.massTypes.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "key", Value: 1}}))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer cur.Close(ctx)

	var out []models.MassTypeConfig
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// ListRoles returns all role configs sorted by descending weight.
func (s *Store) ListRoles(ctx context.Context) ([]models.RoleConfig, error) {
	cur, err := s.roles.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "weight", Value: -1}}))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer cur.Close(ctx)

	var out []models.RoleConfig
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// RoleWeightMap resolves every configured role key to its weight.
// Callers treat missing keys as weight 0.
func (s *Store) RoleWeightMap(ctx context.Context) (map[string]int, error) {
	roles, err := s.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	weights := make(map[string]int, len(roles))
	for _, r := range roles {
		weights[r.Key] = r.Weight
	}
	return weights, nil
}

// Seed installs the default templates and role set when the
// collections are empty. Existing configuration is never touched, so
// parishes that customized weights keep their changes across deploys.
func (s *Store) Seed(ctx context.Context) error {
	now := time.Now().UTC()

	count, err := s.roles.CountDocuments(ctx, bson.M{})
	if err != nil {
		return err
	}
	if count == 0 {
		defaults := []models.RoleConfig{
			{Key: "CERIMONIARIO_AUX", Name: "Cerimoniário Auxiliar", Weight: 90},
			{Key: "TURIFERARIO", Name: "Turiferário", Weight: 80},
			{Key: "NAVETEIRO", Name: "Naveteiro", Weight: 70},
			{Key: "MISSAL", Name: "Missal", Weight: 60},
			{Key: "VELA_1", Name: "Vela 1", Weight: 50},
			{Key: "VELA_2", Name: "Vela 2", Weight: 40},
			{Key: "CRUCIFERARIO", Name: "Cruciferário", Weight: 30},
			{Key: "APOIO", Name: "Apoio", Weight: 10},
			{Key: models.RoleKeyNone, Name: "Sem função", Weight: 0},
		}
		docs := make([]any, 0, len(defaults))
		for _, r := range defaults {
			r.CreatedAt = now
			r.UpdatedAt = now
			docs = append(docs, r)
		}
		if _, err := s.roles.InsertMany(ctx, docs); err != nil {
			return err
		}
	}

	count, err = s.massTypes.CountDocuments(ctx, bson.M{})
	if err != nil {
		return err
	}
	if count == 0 {
		defaults := []models.MassTypeConfig{
			{
				Key:  "SIMPLES",
				Name: "Missa Simples",
				RoleKeys: []string{
					"MISSAL", "VELA_1", "VELA_2", "CRUCIFERARIO",
				},
				FallbackRoleKey: "APOIO",
			},
			{
				Key:  "SOLENE",
				Name: "Missa Solene",
				RoleKeys: []string{
					"CERIMONIARIO_AUX", "TURIFERARIO", "NAVETEIRO",
					"MISSAL", "VELA_1", "VELA_2", "CRUCIFERARIO",
				},
				FallbackRoleKey: "APOIO",
			},
		}
		docs := make([]any, 0, len(defaults))
		for _, mt := range defaults {
			mt.CreatedAt = now
			mt.UpdatedAt = now
			docs = append(docs, mt)
		}
		if _, err := s.massTypes.InsertMany(ctx, docs); err != nil {
			return err
		}
	}

	return nil
}
