package idset

import "testing"

func TestArenaAllocFree(t *testing.T) {
	var a Arena[int]
	id1, p1 := a.Alloc()
	*p1 = 42
	id2, p2 := a.Alloc()
	*p2 = 7
	if id1 == id2 {
		t.Fatalf("Alloc returned duplicate ids: %v, %v", id1, id2)
	}
	if *a.Get(id1) != 42 || *a.Get(id2) != 7 {
		t.Fatalf("Get did not return the allocated values")
	}
	a.Free(id1)
	if a.Has(id1) {
		t.Fatalf("Has(id1) true after Free")
	}
	if a.Get(id1) != nil {
		t.Fatalf("Get(id1) != nil after Free")
	}
	if !a.Has(id2) {
		t.Fatalf("Has(id2) false; Free of id1 must not affect id2")
	}
}

func TestArenaIDsStableAcrossGrowth(t *testing.T) {
	var a Arena[struct{}]
	ids := make([]ID, 100)
	for i := range ids {
		ids[i], _ = a.Alloc()
	}
	for i, id := range ids {
		if !a.Has(id) {
			t.Fatalf("id %d (index %d) lost after growing past one chunk", id, i)
		}
	}
	if a.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", a.Len())
	}
}

func TestArenaFreeAndRealloc(t *testing.T) {
	var a Arena[int]
	id, _ := a.Alloc()
	a.Free(id)
	newID, _ := a.Alloc()
	if newID == id {
		// Reuse of a freed slot under a fresh id is fine, but the
		// old id must never resolve again.
	}
	if a.Has(id) && id != newID {
		t.Fatalf("stale id %d resolved after being freed and slot reused", id)
	}
}

func TestArenaPointerStableAcrossGrowth(t *testing.T) {
	var a Arena[int]
	id, p := a.Alloc()
	*p = 99
	for i := 0; i < 200; i++ {
		a.Alloc()
	}
	if *p != 99 {
		t.Fatalf("pointer from early Alloc reads %d after growth, want 99 (stale backing array)", *p)
	}
	if *a.Get(id) != 99 {
		t.Fatalf("Get(id) disagrees with the pointer held since before growth")
	}
}

func TestArenaEachAscending(t *testing.T) {
	var a Arena[int]
	var ids []ID
	for i := 0; i < 5; i++ {
		id, p := a.Alloc()
		*p = i
		ids = append(ids, id)
	}
	var seen []ID
	a.Each(func(id ID, v *int) { seen = append(seen, id) })
	if len(seen) != len(ids) {
		t.Fatalf("Each visited %d ids, want %d", len(seen), len(ids))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("Each did not visit in ascending id order: %v", seen)
		}
	}
}
