package markset

import (
	"testing"

	"github.com/quillfield/implicore/internal/idset"
)

func TestSetMarkHasUnmark(t *testing.T) {
	var s Set
	if s.Has(idset.ID(3)) {
		t.Fatal("zero value Set reports a mark before any Mark call")
	}
	s.Mark(idset.ID(3))
	s.Mark(idset.ID(10))
	if !s.Has(idset.ID(3)) || !s.Has(idset.ID(10)) {
		t.Fatal("Has false for a marked id")
	}
	if s.Has(idset.ID(4)) {
		t.Fatal("Has true for an unmarked id")
	}
	s.Unmark(idset.ID(3))
	if s.Has(idset.ID(3)) {
		t.Fatal("Has true after Unmark")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestSetReset(t *testing.T) {
	var s Set
	s.Mark(idset.ID(1))
	s.Mark(idset.ID(2))
	s.Reset()
	if s.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", s.Len())
	}
	s.Mark(idset.ID(1))
	if !s.Has(idset.ID(1)) {
		t.Fatal("Set unusable after Reset")
	}
}
