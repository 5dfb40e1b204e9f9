package revision

import "testing"

func TestOfIsDeterministic(t *testing.T) {
	a := Of(Zero, []byte(`{"theme":"dark"}`))
	b := Of(Zero, []byte(`{"theme":"dark"}`))
	if a != b {
		t.Fatalf("expected identical revisions, got %q and %q", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 128-bit hex revision, got %q", a)
	}
}

func TestOfChainsParent(t *testing.T) {
	first := Of(Zero, []byte("x"))
	second := Of(first, []byte("x"))
	if first == second {
		t.Fatalf("expected parent chaining to produce a new revision")
	}
	if Of(Zero, []byte("x")) == Of(Zero, []byte("y")) {
		t.Fatalf("expected different content to produce different revisions")
	}
}

func TestZeroHelpers(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatalf("expected Zero to report IsZero")
	}
	id := ID("0123456789abcdef")
	if got := id.Short(); got != "0123456789ab" {
		t.Fatalf("unexpected short form %q", got)
	}
	if got := Zero.Or(id); got != id {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := id.Or("other"); got != id {
		t.Fatalf("expected receiver, got %q", got)
	}
}
