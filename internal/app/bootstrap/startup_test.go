package bootstrap

import (
	"testing"

	"github.com/migueww/acolitapp/internal/domain/models"
	"github.com/migueww/acolitapp/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestEnsureSchema_SeedsLiturgyDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoDatabase: db}

	if err := EnsureSchema(ctx, nil, AppConfig{}, deps, testLogger()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	count, err := db.Collection("liturgy_roles").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count == 0 {
		t.Error("expected default roles to be seeded")
	}

	var solene models.MassTypeConfig
	if err := db.Collection("liturgy_mass_types").FindOne(ctx, bson.M{"key": "SOLENE"}).Decode(&solene); err != nil {
		t.Fatalf("SOLENE template missing: %v", err)
	}
	if len(solene.RoleKeys) != 7 {
		t.Errorf("SOLENE slot count: got %d, want 7", len(solene.RoleKeys))
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoDatabase: db}

	for i := 0; i < 2; i++ {
		if err := EnsureSchema(ctx, nil, AppConfig{}, deps, testLogger()); err != nil {
			t.Fatalf("EnsureSchema run %d failed: %v", i, err)
		}
	}

	count, err := db.Collection("liturgy_mass_types").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 mass type templates, got %d", count)
	}
}
