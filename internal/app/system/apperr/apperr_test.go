package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{Validation("bad id"), KindValidation},
		{Forbidden("wrong role"), KindForbidden},
		{NotFound("mass not found"), KindNotFound},
		{Conflict("wrong status"), KindConflict},
		{Internal(errors.New("boom")), KindInternal},
		{errors.New("plain"), KindInternal},
		{fmt.Errorf("wrapped: %w", Conflict("lost race")), KindConflict},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v): got %s, want %s", c.err, got, c.want)
		}
	}
}

func TestIs_MatchesOnKind(t *testing.T) {
	err := fmt.Errorf("action failed: %w", Conflict("wrong status"))
	if !errors.Is(err, Conflict("")) {
		t.Error("errors.Is should match any conflict when target message is empty")
	}
	if !errors.Is(err, Conflict("wrong status")) {
		t.Error("errors.Is should match same kind and message")
	}
	if errors.Is(err, Conflict("other message")) {
		t.Error("errors.Is should not match a different message")
	}
	if errors.Is(err, NotFound("")) {
		t.Error("errors.Is should not match across kinds")
	}
}

func TestMessageOf_HidesInternalCause(t *testing.T) {
	err := Internal(errors.New("connection reset by peer"))
	if msg := MessageOf(err); msg != "internal error" {
		t.Errorf("internal message leaked: %q", msg)
	}
	if msg := MessageOf(errors.New("raw driver error")); msg != "internal error" {
		t.Errorf("unclassified message leaked: %q", msg)
	}
}

func TestWrap_KeepsKindAndMessage(t *testing.T) {
	base := NotFound("request not found")
	wrapped := Wrap(base, errors.New("zero documents matched"))
	if KindOf(wrapped) != KindNotFound {
		t.Errorf("kind changed: %s", KindOf(wrapped))
	}
	if MessageOf(wrapped) != "request not found" {
		t.Errorf("message changed: %s", MessageOf(wrapped))
	}
	if !errors.Is(wrapped, NotFound("request not found")) {
		t.Error("wrapped error should still match its base")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation: http.StatusBadRequest,
		KindForbidden:  http.StatusForbidden,
		KindNotFound:   http.StatusNotFound,
		KindConflict:   http.StatusConflict,
		KindInternal:   http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Errorf("HTTPStatus(%s): got %d, want %d", kind, got, want)
		}
	}
}
