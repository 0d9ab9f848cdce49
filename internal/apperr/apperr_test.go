package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew_MatchesKind(t *testing.T) {
	errCallNotFound := New(ErrNotFound, "call not found")
	wrapped := fmt.Errorf("respond: %w", errCallNotFound)

	if !errors.Is(wrapped, errCallNotFound) || !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("expected wrapped sentinel to match both itself and its kind")
	}
	if errors.Is(wrapped, ErrConflict) {
		t.Fatalf("unexpected match on another kind")
	}
	if Kind(wrapped) != ErrNotFound {
		t.Fatalf("Kind=%v", Kind(wrapped))
	}
}

func TestUnavailable_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("otp get", cause)

	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("expected both kind and cause in chain")
	}
	if err.Error() != "otp get: connection refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestKind_Unclassified(t *testing.T) {
	if Kind(errors.New("x")) != nil {
		t.Fatalf("expected nil kind")
	}
}
