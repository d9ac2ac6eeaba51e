package logout_test

import (
	"net/http"
	"testing"

	"github.com/migueww/acolitapp/internal/app/features/logout"
	"github.com/migueww/acolitapp/internal/app/system/auth"
	"github.com/migueww/acolitapp/internal/testutil"
	"go.uber.org/zap"
)

func TestHandleLogout(t *testing.T) {
	if err := auth.InitSessionStore("0123456789abcdef0123456789abcdef", "", false, zap.NewNop()); err != nil {
		t.Fatalf("session store init failed: %v", err)
	}

	h := logout.NewHandler(zap.NewNop())
	req := testutil.NewRequest("POST", "/logout")
	rec := testutil.NewRecorder()
	h.HandleLogout(rec.ResponseRecorder, req)
	rec.AssertStatus(t, 200)
	rec.AssertContains(t, "signed_out")

	// The deletion cookie must expire immediately.
	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected a session deletion cookie")
	}
	if sessionCookie.MaxAge != -1 {
		t.Errorf("MaxAge: got %d, want -1", sessionCookie.MaxAge)
	}
}

func TestHandleLogout_WithoutSession(t *testing.T) {
	if err := auth.InitSessionStore("0123456789abcdef0123456789abcdef", "", false, zap.NewNop()); err != nil {
		t.Fatalf("session store init failed: %v", err)
	}

	h := logout.NewHandler(zap.NewNop())
	rec := testutil.NewRecorder()
	h.HandleLogout(rec.ResponseRecorder, testutil.NewRequest("POST", "/logout"))
	rec.AssertStatus(t, 200)
}
