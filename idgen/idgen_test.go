package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
	if id[14] != '7' {
		t.Fatalf("UUIDv7: version nibble = %q, want '7'", id[14])
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	// WHAT: Successive v7 ids sort in generation order.
	// WHY: recordstore lists rows by id and relies on creation order.
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 100; i++ {
		next := gen()
		if next <= prev {
			t.Fatalf("not sortable: %q <= %q", next, prev)
		}
		prev = next
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed(DraftPrefix, Default)()
	if !strings.HasPrefix(id, "drf_") {
		t.Fatalf("missing prefix: %q", id)
	}
	if _, err := Parse(strings.TrimPrefix(id, DraftPrefix)); err != nil {
		t.Fatalf("suffix is not a UUID: %v", err)
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("d")
	for _, want := range []string{"d1", "d2", "d3"} {
		if got := gen(); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("expected error")
	}
}

func TestShort(t *testing.T) {
	// WHAT: Short yields n hex characters that differ between calls.
	// WHY: blob keys rely on it to keep same-named uploads from colliding.
	gen := Short(8)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		s := gen()
		if len(s) != 8 || strings.Trim(s, "0123456789abcdef") != "" {
			t.Fatalf("Short(8) = %q", s)
		}
		if seen[s] {
			t.Fatalf("duplicate %q after %d draws", s, i)
		}
		seen[s] = true
	}
	if got := len(Short(100)()); got != 32 {
		t.Fatalf("Short(100) length = %d, want 32", got)
	}
}
