package terminal

import "testing"

func TestNewIdentityTrimsFields(t *testing.T) {
	identity, err := NewIdentity(" m1 ", " t1 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.MID != "m1" || identity.TID != "t1" {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestNewIdentityRejectsBlankFields(t *testing.T) {
	if _, err := NewIdentity("", "t1"); err == nil {
		t.Fatalf("expected error for blank mid")
	}
	if _, err := NewIdentity("m1", "  "); err == nil {
		t.Fatalf("expected error for blank tid")
	}
}

func TestIdentityEqualityIsStructural(t *testing.T) {
	first, _ := NewIdentity("m1", "t1")
	second, _ := NewIdentity("m1", "t1")
	if first != second {
		t.Fatalf("expected %v == %v", first, second)
	}
}

func TestIdentityLogPrefix(t *testing.T) {
	identity, _ := NewIdentity("merch-9", "term-3")
	if got := identity.LogPrefix(); got != "[MID:merch-9 TID:term-3]" {
		t.Fatalf("unexpected prefix %q", got)
	}
}
