package authz_test

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"net/http/httptest"
	"testing"

	"github.com/migueww/acolitapp/internal/app/system/auth"
	"github.com/migueww/acolitapp/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// testUserID returns a valid ObjectID hex string for tests.
func testUserID() string {
	return primitive.NewObjectID().Hex()
}

func TestIsCerimoniario_True(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   testUserID(),
		Role: "cerimoniario",
	})

	if !authz.IsCerimoniario(req) {
		t.Error("expected IsCerimoniario to return true for cerimoniario user")
	}
}

func TestIsCerimoniario_False_Acolito(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   testUserID(),
		Role: "acolito",
	})

	if authz.IsCerimoniario(req) {
		t.Error("expected IsCerimoniario to return false for acolito user")
	}
}

func TestIsCerimoniario_False_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)

	if authz.IsCerimoniario(req) {
		t.Error("expected IsCerimoniario to return false when no user")
	}
}

func TestUserCtx_NormalizesRole(t *testing.T) {
	userID := testUserID()
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   userID,
		Role: "CERIMONIARIO",
	})

	role, _, actorID, ok := authz.UserCtx(req)
	if !ok {
		t.Fatal("expected UserCtx to return ok=true")
	}
	if role != "cerimoniario" {
		t.Errorf("expected role 'cerimoniario', got %q", role)
	}
	if actorID.Hex() != userID {
		t.Errorf("expected actorID %s, got %s", userID, actorID.Hex())
	}
}

func TestUserCtx_MalformedID_FailsClosed(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   "not-a-hex-id",
		Role: "cerimoniario",
	})

	role, _, actorID, ok := authz.UserCtx(req)
	if ok {
		t.Error("expected ok=false for malformed user id")
	}
	if role != "visitor" {
		t.Errorf("expected role 'visitor', got %q", role)
	}
	if !actorID.IsZero() {
		t.Errorf("expected NilObjectID, got %s", actorID.Hex())
	}
}

func TestHasAnyRole(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   testUserID(),
		Role: "acolito",
	})

	if !authz.HasAnyRole(req, "cerimoniario", "acolito") {
		t.Error("expected HasAnyRole to match acolito")
	}
	if authz.HasAnyRole(req, "cerimoniario") {
		t.Error("expected HasAnyRole to reject acolito for cerimoniario-only")
	}
}
