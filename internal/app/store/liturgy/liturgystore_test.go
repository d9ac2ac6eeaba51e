package liturgystore_test

import (
	"testing"

	liturgystore "github.com/migueww/acolitapp/internal/app/store/liturgy"
	"github.com/migueww/acolitapp/internal/app/system/apperr"
	"github.com/migueww/acolitapp/internal/testutil"
)

func TestStore_Seed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := liturgystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Seed(ctx); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	types, err := store.ListMassTypes(ctx)
	if err != nil {
		t.Fatalf("ListMassTypes failed: %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("expected 2 seeded mass types, got %d", len(types))
	}

	roles, err := store.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if len(roles) == 0 {
		t.Fatal("expected seeded roles")
	}
	// Sorted by descending weight.
	for i := 1; i < len(roles); i++ {
		if roles[i].Weight > roles[i-1].Weight {
			t.Errorf("roles not sorted by weight: %v before %v", roles[i-1], roles[i])
		}
	}
}

func TestStore_Seed_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := liturgystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Seed(ctx); err != nil {
		t.Fatalf("first Seed failed: %v", err)
	}
	if err := store.Seed(ctx); err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}

	types, err := store.ListMassTypes(ctx)
	if err != nil {
		t.Fatalf("ListMassTypes failed: %v", err)
	}
	if len(types) != 2 {
		t.Errorf("re-seeding must not duplicate templates, got %d", len(types))
	}
}

func TestStore_Seed_PreservesCustomization(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := liturgystore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateRole(ctx, "CUSTOM", "Custom", 99)

	if err := store.Seed(ctx); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	roles, err := store.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if len(roles) != 1 || roles[0].Key != "CUSTOM" {
		t.Errorf("seed must not overwrite a customized role set, got %v", roles)
	}
}

func TestStore_GetMassType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := liturgystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Seed(ctx); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	cfg, err := store.GetMassType(ctx, "SOLENE")
	if err != nil {
		t.Fatalf("GetMassType failed: %v", err)
	}
	if len(cfg.RoleKeys) != 7 {
		t.Errorf("SOLENE should carry 7 slots, got %d", len(cfg.RoleKeys))
	}
	if cfg.FallbackRoleKey != "APOIO" {
		t.Errorf("FallbackRoleKey: got %q, want APOIO", cfg.FallbackRoleKey)
	}

	_, err = store.GetMassType(ctx, "UNKNOWN")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not-found for unknown mass type, got %v", err)
	}
}

func TestStore_RoleWeightMap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := liturgystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Seed(ctx); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	weights, err := store.RoleWeightMap(ctx)
	if err != nil {
		t.Fatalf("RoleWeightMap failed: %v", err)
	}
	if weights["TURIFERARIO"] != 80 {
		t.Errorf("TURIFERARIO: got %d, want 80", weights["TURIFERARIO"])
	}
	if w, ok := weights["NOT_CONFIGURED"]; ok || w != 0 {
		t.Errorf("unconfigured key should be absent (read as 0), got %d", w)
	}
}
