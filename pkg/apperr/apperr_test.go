package apperr

import (
	"errors"
	"testing"
)

func TestKindOf_ClassifiesTypedErrors(t *testing.T) {
	err := New(Signature, "signature verification failed")
	if KindOf(err) != Signature {
		t.Fatalf("expected Kind %q, got %q", Signature, KindOf(err))
	}
}

func TestKindOf_DefaultsToInternalForUntypedErrors(t *testing.T) {
	err := errors.New("boom")
	if KindOf(err) != Internal {
		t.Fatalf("expected untyped error to classify as Internal, got %q", KindOf(err))
	}
}

func TestMessage_NeverLeaksWrappedCause(t *testing.T) {
	cause := errors.New("pq: connection reset by peer, leaking internal detail")
	err := Wrap(Internal, "store submission", cause)

	if Message(err) != "store submission" {
		t.Fatalf("expected wire-safe message, got %q", Message(err))
	}
	if err.Error() == "store submission" {
		t.Fatalf("Error() should still include the cause for logs")
	}
}

func TestUnwrap_ExposesCauseForErrorsIs(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(Chain, "chain call failed", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}
