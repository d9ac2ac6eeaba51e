package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	l := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("key") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if l.Allow("key") {
		t.Error("attempt beyond limit should be blocked")
	}
	if l.Remaining("key") != 0 {
		t.Errorf("Remaining: got %d, want 0", l.Remaining("key"))
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)

	if !l.Allow("a") {
		t.Fatal("first use of key a should be allowed")
	}
	if !l.Allow("b") {
		t.Error("key b should not be affected by key a")
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := New(1, time.Minute)

	l.Allow("key")
	if l.Allow("key") {
		t.Fatal("second attempt should be blocked")
	}
	l.Reset("key")
	if !l.Allow("key") {
		t.Error("reset should clear the window")
	}
}

func TestLoginLimiter_BlocksRepeatedLoginID(t *testing.T) {
	ll := NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)

	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	for i := 0; i < 2; i++ {
		if ok, _ := ll.Check(req, "maria.silva"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	ok, reason := ll.Check(req, "maria.silva")
	if ok {
		t.Fatal("third attempt for the same login id should be blocked")
	}
	if reason == "" {
		t.Error("expected a block reason")
	}

	// Different account from the same IP stays allowed.
	if ok, _ := ll.Check(req, "joao.souza"); !ok {
		t.Error("other login ids should not be blocked")
	}

	ll.ResetLoginID("maria.silva")
	if ok, _ := ll.Check(req, "maria.silva"); !ok {
		t.Error("reset should clear the login-id window")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if ip := ClientIP(req); ip != "10.0.0.1" {
		t.Errorf("ClientIP: got %q, want 10.0.0.1", ip)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := ClientIP(req); ip != "203.0.113.9" {
		t.Errorf("ClientIP with XFF: got %q, want 203.0.113.9", ip)
	}
}
