package verrors

import (
	"errors"
	"testing"
)

func TestKindOf(t *testing.T) {
	if KindOf(Faultf("disk full")) != Fault {
		t.Fatal("expected Fault")
	}
	if KindOf(Invalidf("bad sig")) != Invalid {
		t.Fatal("expected Invalid")
	}
	if KindOf(Hostilef("bad magic")) != Hostile {
		t.Fatal("expected Hostile")
	}
	if KindOf(errors.New("unclassified")) != Invalid {
		t.Fatal("unclassified errors should default to Invalid")
	}
}

func TestUnwrap(t *testing.T) {
	base := errors.New("root cause")
	wrapped := Wrap(Hostile, base)
	if !errors.Is(wrapped, base) {
		t.Fatal("Wrap should preserve errors.Is against the root cause")
	}
}

func TestPredicates(t *testing.T) {
	if !IsFault(Faultf("x")) || !IsInvalid(Invalidf("x")) || !IsHostile(Hostilef("x")) {
		t.Fatal("predicate mismatch")
	}
}
