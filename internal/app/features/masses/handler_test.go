package masses_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/migueww/acolitapp/internal/app/features/masses"
	"github.com/migueww/acolitapp/internal/app/system/massstatus"
	"github.com/migueww/acolitapp/internal/domain/models"
	"github.com/migueww/acolitapp/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func newRouter(t *testing.T) (chi.Router, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	h := masses.NewHandler(db, zap.NewNop())
	return masses.Routes(h), testutil.NewFixtures(t, db)
}

func decodeMass(t *testing.T, body []byte) models.Mass {
	t.Helper()
	var resp struct {
		Mass models.Mass `json:"mass"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to decode mass response: %v", err)
	}
	return resp.Mass
}

func TestHandleCreate(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateMassType(ctx, "SIMPLES", "Missa Simples", []string{"MISSAL"}, "APOIO")
	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")

	body := fmt.Sprintf(`{"mass_type":"SIMPLES","scheduled_at":%q}`,
		time.Now().Add(48*time.Hour).UTC().Format(time.RFC3339))
	req := testutil.NewJSONRequest("POST", "/", body)
	req = testutil.WithUser(req, testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 201)

	m := decodeMass(t, rec.Body.Bytes())
	if m.Status != massstatus.Scheduled {
		t.Errorf("status: got %q, want SCHEDULED", m.Status)
	}
	if m.ChiefBy != chief.ID {
		t.Error("creator should start as chief")
	}
}

func TestHandleCreate_UnknownMassType(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")

	body := fmt.Sprintf(`{"mass_type":"NOPE","scheduled_at":%q}`,
		time.Now().Add(48*time.Hour).UTC().Format(time.RFC3339))
	req := testutil.NewJSONRequest("POST", "/", body)
	req = testutil.WithUser(req, testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 400)
	rec.AssertContains(t, "unknown mass type")
}

func TestHandleCreate_RequiresCerimoniario(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	acolito := fixtures.CreateAcolito(ctx, "Ana", "ana.test")

	req := testutil.NewJSONRequest("POST", "/", `{"mass_type":"SIMPLES"}`)
	req = testutil.WithUser(req, testutil.UserFor(acolito.ID, acolito.FullName, acolito.LoginID, acolito.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 403)
}

func TestServeList_RequiresAuth(t *testing.T) {
	router, _ := newRouter(t)

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewRequest("GET", "/"))
	rec.AssertStatus(t, 401)
}

func TestHandleOpen(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	mass := fixtures.CreateScheduledMass(ctx, "SIMPLES", chief.ID)

	req := testutil.NewAuthenticatedRequest("POST", "/"+mass.ID.Hex()+"/open",
		testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 200)

	m := decodeMass(t, rec.Body.Bytes())
	if m.Status != massstatus.Open {
		t.Errorf("status: got %q, want OPEN", m.Status)
	}
}

func TestHandleOpen_WrongStatus(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	mass := fixtures.CreateOpenMass(ctx, "SIMPLES", chief.ID)

	req := testutil.NewAuthenticatedRequest("POST", "/"+mass.ID.Hex()+"/open",
		testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 409)
}

func TestHandleOpen_NotAdministrator(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	other := fixtures.CreateCerimoniario(ctx, "Other", "other.test")
	mass := fixtures.CreateScheduledMass(ctx, "SIMPLES", chief.ID)

	req := testutil.NewAuthenticatedRequest("POST", "/"+mass.ID.Hex()+"/open",
		testutil.UserFor(other.ID, other.FullName, other.LoginID, other.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	// Non-administrators cannot tell the mass exists.
	rec.AssertStatus(t, 404)
}

func TestHandleDelegate(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	next := fixtures.CreateCerimoniario(ctx, "Next", "next.test")
	mass := fixtures.CreateOpenMass(ctx, "SIMPLES", chief.ID)

	body := fmt.Sprintf(`{"new_chief_id":%q}`, next.ID.Hex())
	req := testutil.NewJSONRequest("POST", "/"+mass.ID.Hex()+"/delegate", body)
	req = testutil.WithUser(req, testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 200)

	m := decodeMass(t, rec.Body.Bytes())
	if m.ChiefBy != next.ID {
		t.Errorf("chief: got %s, want %s", m.ChiefBy.Hex(), next.ID.Hex())
	}
}

func TestHandleDelegate_ToAcolito(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	acolito := fixtures.CreateAcolito(ctx, "Ana", "ana.test")
	mass := fixtures.CreateOpenMass(ctx, "SIMPLES", chief.ID)

	body := fmt.Sprintf(`{"new_chief_id":%q}`, acolito.ID.Hex())
	req := testutil.NewJSONRequest("POST", "/"+mass.ID.Hex()+"/delegate", body)
	req = testutil.WithUser(req, testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 400)
	rec.AssertContains(t, "active cerimoniario")
}

func TestHandleJoin(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	acolito := fixtures.CreateAcolito(ctx, "Ana", "ana.test")
	mass := fixtures.CreateOpenMass(ctx, "SIMPLES", chief.ID)

	req := testutil.NewAuthenticatedRequest("POST", "/"+mass.ID.Hex()+"/join",
		testutil.UserFor(acolito.ID, acolito.FullName, acolito.LoginID, acolito.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 200)

	m := decodeMass(t, rec.Body.Bytes())
	if len(m.Attendance.Joined) != 1 || m.Attendance.Joined[0].UserID != acolito.ID {
		t.Errorf("joined list: got %+v", m.Attendance.Joined)
	}
}

func TestHandleJoin_RequiresAcolito(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	mass := fixtures.CreateOpenMass(ctx, "SIMPLES", chief.ID)

	req := testutil.NewAuthenticatedRequest("POST", "/"+mass.ID.Hex()+"/join",
		testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 403)
}

func TestConfirmationFlow(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	acolito := fixtures.CreateAcolito(ctx, "Ana Souza", "ana.test")
	mass := fixtures.CreateOpenMass(ctx, "SIMPLES", chief.ID)

	acolitoUser := testutil.UserFor(acolito.ID, acolito.FullName, acolito.LoginID, acolito.Role)
	chiefUser := testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role)

	// Join.
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("POST", "/"+mass.ID.Hex()+"/join", acolitoUser))
	rec.AssertStatus(t, 200)

	// Request a confirmation token.
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("POST", "/"+mass.ID.Hex()+"/confirmation-requests", acolitoUser))
	rec.AssertStatus(t, 201)

	var created struct {
		RequestID string `json:"request_id"`
		Token     string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode request response: %v", err)
	}
	if created.RequestID == "" || created.Token == "" {
		t.Fatalf("expected request id and token, got %+v", created)
	}

	// Preview as the administrator.
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET",
		"/"+mass.ID.Hex()+"/confirmation-requests/"+created.Token, chiefUser))
	rec.AssertStatus(t, 200)
	rec.AssertContains(t, "Ana Souza")

	// Confirm.
	req := testutil.NewJSONRequest("POST",
		"/"+mass.ID.Hex()+"/confirmation-requests/"+created.Token+"/decision",
		`{"decision":"confirm"}`)
	req = testutil.WithUser(req, chiefUser)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 200)

	m := decodeMass(t, rec.Body.Bytes())
	if len(m.Attendance.Confirmed) != 1 || m.Attendance.Confirmed[0].UserID != acolito.ID {
		t.Errorf("confirmed list: got %+v", m.Attendance.Confirmed)
	}
	if len(m.Attendance.Pending) != 0 {
		t.Errorf("pending should be cleared, got %+v", m.Attendance.Pending)
	}
}

func TestHandleDecision_TokenMassMismatch(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	acolito := fixtures.CreateAcolito(ctx, "Ana", "ana.test")
	first := fixtures.CreateOpenMass(ctx, "SIMPLES", chief.ID)
	second := fixtures.CreateOpenMass(ctx, "SIMPLES", chief.ID)

	acolitoUser := testutil.UserFor(acolito.ID, acolito.FullName, acolito.LoginID, acolito.Role)
	chiefUser := testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role)

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("POST", "/"+first.ID.Hex()+"/join", acolitoUser))
	rec.AssertStatus(t, 200)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("POST", "/"+first.ID.Hex()+"/confirmation-requests", acolitoUser))
	rec.AssertStatus(t, 201)

	var created struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode request response: %v", err)
	}

	// Replay the first mass's token against the second mass.
	req := testutil.NewJSONRequest("POST",
		"/"+second.ID.Hex()+"/confirmation-requests/"+created.Token+"/decision",
		`{"decision":"confirm"}`)
	req = testutil.WithUser(req, chiefUser)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 400)
	rec.AssertContains(t, "does not belong to this mass")
}

func TestServeAssignmentPlan(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateRole(ctx, "MISSAL", "Missal", 60)
	fixtures.CreateRole(ctx, "VELA_1", "Vela 1", 50)
	fixtures.CreateMassType(ctx, "SIMPLES", "Missa Simples", []string{"MISSAL", "VELA_1"}, "APOIO")

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	ana := fixtures.CreateAcolito(ctx, "Ana", "ana.test")
	bruno := fixtures.CreateAcolito(ctx, "Bruno", "bruno.test")
	mass := fixtures.CreateMass(ctx, massstatus.Preparation, "SIMPLES", chief.ID)

	now := time.Now().UTC()
	_, err := fixtures.DB().Collection("masses").UpdateByID(ctx, mass.ID, bson.M{
		"$set": bson.M{"attendance.confirmed": []models.ConfirmedEntry{
			{UserID: ana.ID, ConfirmedAt: now.Add(-2 * time.Minute)},
			{UserID: bruno.ID, ConfirmedAt: now.Add(-1 * time.Minute)},
		}},
	})
	if err != nil {
		t.Fatalf("seeding confirmed list failed: %v", err)
	}

	req := testutil.NewAuthenticatedRequest("GET", "/"+mass.ID.Hex()+"/assignment-plan",
		testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 200)

	var resp struct {
		Assignments []models.Assignment `json:"assignments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode plan: %v", err)
	}
	if len(resp.Assignments) != 2 {
		t.Fatalf("expected 2 planned assignments, got %d", len(resp.Assignments))
	}
	for _, a := range resp.Assignments {
		if a.UserID == nil {
			t.Errorf("slot %s should be filled with two confirmed users", a.RoleKey)
		}
	}
}

func TestServeAssignmentPlan_WrongStatus(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	mass := fixtures.CreateOpenMass(ctx, "SIMPLES", chief.ID)

	req := testutil.NewAuthenticatedRequest("GET", "/"+mass.ID.Hex()+"/assignment-plan",
		testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 409)
}

func TestHandleUpdateAssignments(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	ana := fixtures.CreateAcolito(ctx, "Ana", "ana.test")
	mass := fixtures.CreateMass(ctx, massstatus.Preparation, "SIMPLES", chief.ID)

	body := fmt.Sprintf(`{"assignments":[{"role_key":"MISSAL","user_id":%q},{"role_key":"VELA_1"}]}`, ana.ID.Hex())
	req := testutil.NewJSONRequest("PUT", "/"+mass.ID.Hex()+"/assignments", body)
	req = testutil.WithUser(req, testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 200)

	m := decodeMass(t, rec.Body.Bytes())
	if len(m.Assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(m.Assignments))
	}
	if m.Assignments[0].UserID == nil || *m.Assignments[0].UserID != ana.ID {
		t.Errorf("first assignment should name Ana, got %+v", m.Assignments[0])
	}
	if m.Assignments[1].UserID != nil {
		t.Error("second assignment should be vacant")
	}
}

func TestHandleFinish_WritesBackLastRoles(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateMassType(ctx, "SIMPLES", "Missa Simples", []string{"MISSAL", "VELA_1"}, "APOIO")
	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	ana := fixtures.CreateAcolito(ctx, "Ana", "ana.test")
	mass := fixtures.CreateMass(ctx, massstatus.Preparation, "SIMPLES", chief.ID)

	_, err := fixtures.DB().Collection("masses").UpdateByID(ctx, mass.ID, bson.M{
		"$set": bson.M{"assignments": []models.Assignment{{RoleKey: "MISSAL", UserID: &ana.ID}}},
	})
	if err != nil {
		t.Fatalf("seeding assignments failed: %v", err)
	}

	req := testutil.NewAuthenticatedRequest("POST", "/"+mass.ID.Hex()+"/finish",
		testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 200)

	m := decodeMass(t, rec.Body.Bytes())
	if m.Status != massstatus.Finished {
		t.Errorf("status: got %q, want FINISHED", m.Status)
	}

	var u models.User
	if err := fixtures.DB().Collection("users").FindOne(ctx, bson.M{"_id": ana.ID}).Decode(&u); err != nil {
		t.Fatalf("reading user failed: %v", err)
	}
	if u.LastRoleKey != "MISSAL" {
		t.Errorf("LastRoleKey: got %q, want MISSAL", u.LastRoleKey)
	}
}

func TestHandleFinish_EmptyAssignmentsGetVacantSlots(t *testing.T) {
	router, fixtures := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateMassType(ctx, "SIMPLES", "Missa Simples", []string{"MISSAL", "VELA_1"}, "APOIO")
	chief := fixtures.CreateCerimoniario(ctx, "Chief", "chief.test")
	mass := fixtures.CreateMass(ctx, massstatus.Preparation, "SIMPLES", chief.ID)

	req := testutil.NewAuthenticatedRequest("POST", "/"+mass.ID.Hex()+"/finish",
		testutil.UserFor(chief.ID, chief.FullName, chief.LoginID, chief.Role))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 200)

	m := decodeMass(t, rec.Body.Bytes())
	if len(m.Assignments) != 2 {
		t.Fatalf("expected 2 vacant slots, got %d", len(m.Assignments))
	}
	for _, a := range m.Assignments {
		if a.UserID != nil {
			t.Errorf("slot %s should be vacant", a.RoleKey)
		}
	}
}
