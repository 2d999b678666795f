package fleet

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapPreservesClassification(t *testing.T) {
	inner := Errorf(ClassAuth, "web-1", "bad credentials")
	wrapped := Wrap(ClassInternal, "web-1", fmt.Errorf("connect: %w", inner))
	if wrapped.Class != ClassAuth {
		t.Errorf("Class = %s, want %s (inner classification must survive)", wrapped.Class, ClassAuth)
	}
}

func TestWrapFillsMissingEntity(t *testing.T) {
	inner := Errorf(ClassTimeout, "", "deadline exceeded")
	wrapped := Wrap(ClassInternal, "web-1", inner)
	if wrapped.Entity != "web-1" || wrapped.Class != ClassTimeout {
		t.Errorf("wrapped = %+v", wrapped)
	}
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrap(ClassConnectivity, "web-1", errors.New("boom"))
	if wrapped.Class != ClassConnectivity || wrapped.Entity != "web-1" {
		t.Errorf("wrapped = %+v", wrapped)
	}
	if !errors.Is(wrapped, wrapped.Cause) {
		t.Error("Wrap must keep the cause reachable")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(ClassInternal, "x", nil) != nil {
		t.Error("Wrap(nil) must be nil")
	}
}

func TestClassOf(t *testing.T) {
	if got := ClassOf(Errorf(ClassConflict, "k", "dup")); got != ClassConflict {
		t.Errorf("ClassOf = %s", got)
	}
	if got := ClassOf(errors.New("plain")); got != ClassInternal {
		t.Errorf("ClassOf(plain) = %s, want internal", got)
	}
}

func TestErrorString(t *testing.T) {
	if got := Errorf(ClassNotFound, "web-1", "no host").Error(); got != "not_found: web-1: no host" {
		t.Errorf("Error() = %q", got)
	}
	if got := Errorf(ClassValidation, "", "bad input").Error(); got != "validation: bad input" {
		t.Errorf("Error() = %q", got)
	}
}
