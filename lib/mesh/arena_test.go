package mesh

import "testing"

// TestArenaDeclare tests entity creation and idempotent re-declaration
func TestArenaDeclare(t *testing.T) {
	a := NewArena()

	key := NewEntityKey(0, 1)
	h, created := a.Declare(key, 2)
	if !created {
		t.Error("first Declare should report creation")
	}
	if a.Len() != 1 {
		t.Errorf("arena has %d entities, want 1", a.Len())
	}

	// re-declaring returns the same handle and keeps the original owner
	h2, created := a.Declare(key, 7)
	if created {
		t.Error("second Declare should not report creation")
	}
	if h2 != h {
		t.Error("re-declare should return the original handle")
	}
	if e := a.Get(h); e.Owner != 2 {
		t.Errorf("owner = %d, want the owner of the first declaration (2)", e.Owner)
	}
}

// TestArenaFirstHandle tests that the very first declared entity is usable
func TestArenaFirstHandle(t *testing.T) {
	a := NewArena()

	h, _ := a.Declare(NewEntityKey(0, 1), 0)
	if h.IsNil() {
		t.Fatal("the first declared handle must not be the nil handle")
	}
	e := a.Get(h)
	if e == nil {
		t.Fatal("the first declared handle must resolve")
	}
	e.AddPart(PartLocallyOwned)
	if !a.Get(h).HasPart(PartLocallyOwned) {
		t.Error("mutation through the resolved entity should stick")
	}
}

// TestArenaFind tests key lookup
func TestArenaFind(t *testing.T) {
	a := NewArena()
	key := NewEntityKey(1, 9)
	h, _ := a.Declare(key, 0)

	got, ok := a.Find(key)
	if !ok || got != h {
		t.Errorf("Find(%s) = (%v, %v), want (%v, true)", key, got, ok, h)
	}

	if _, ok := a.Find(NewEntityKey(1, 10)); ok {
		t.Error("Find of an undeclared key should report false")
	}
}

// TestArenaStaleHandle tests that destroy invalidates handles
func TestArenaStaleHandle(t *testing.T) {
	a := NewArena()
	h, _ := a.Declare(NewEntityKey(0, 1), 0)

	if !a.Destroy(h) {
		t.Fatal("Destroy of a leaf entity should succeed")
	}
	if a.Get(h) != nil {
		t.Error("Get of a destroyed handle should return nil")
	}
	if a.Len() != 0 {
		t.Errorf("arena has %d entities after destroy, want 0", a.Len())
	}

	// the recycled slot must not resurrect the old handle
	h2, _ := a.Declare(NewEntityKey(0, 2), 0)
	if a.Get(h) != nil {
		t.Error("stale handle should stay invalid after the slot is reused")
	}
	if e := a.Get(h2); e == nil || e.Key != NewEntityKey(0, 2) {
		t.Error("new handle should resolve to the new entity")
	}
}

// TestArenaRelate tests downward relations and their back-references
func TestArenaRelate(t *testing.T) {
	a := NewArena()
	node, _ := a.Declare(NewEntityKey(0, 1), 0)
	elem, _ := a.Declare(NewEntityKey(1, 1), 0)

	if err := a.Relate(elem, node); err != nil {
		t.Fatalf("Relate(elem, node) failed: %v", err)
	}

	// declaring the same relation again is a no-op
	if err := a.Relate(elem, node); err != nil {
		t.Fatalf("repeated Relate failed: %v", err)
	}
	if got := len(a.Get(elem).Relations); got != 1 {
		t.Errorf("element has %d relations, want 1", got)
	}
	if got := len(a.Get(node).Upward()); got != 1 {
		t.Errorf("node has %d upward references, want 1", got)
	}

	// relations must point strictly downward
	if err := a.Relate(node, elem); err == nil {
		t.Error("Relate(node, elem) should fail, the relation is not downward")
	}
	if err := a.Relate(node, node); err == nil {
		t.Error("Relate(node, node) should fail, the relation is not downward")
	}
}

// TestArenaDestroyOrder tests that referenced entities cannot be destroyed
func TestArenaDestroyOrder(t *testing.T) {
	a := NewArena()
	node, _ := a.Declare(NewEntityKey(0, 1), 0)
	elem, _ := a.Declare(NewEntityKey(1, 1), 0)
	if err := a.Relate(elem, node); err != nil {
		t.Fatalf("Relate failed: %v", err)
	}

	if a.Destroy(node) {
		t.Fatal("Destroy of a referenced node should fail")
	}

	// highest rank first: destroying the element releases the node
	if !a.Destroy(elem) {
		t.Fatal("Destroy of the element should succeed")
	}
	if !a.Destroy(node) {
		t.Fatal("Destroy of the node should succeed once unreferenced")
	}
	if a.Len() != 0 {
		t.Errorf("arena has %d entities, want 0", a.Len())
	}
}

// TestMetaParts tests part declaration and lookup
func TestMetaParts(t *testing.T) {
	m := NewMeta(2)

	if m.RankCount() != 2 {
		t.Errorf("RankCount() = %d, want 2", m.RankCount())
	}

	// the reserved part occupies ordinal zero
	if name, err := m.PartName(PartLocallyOwned); err != nil || name != "{locally_owned}" {
		t.Errorf("PartName(0) = (%q, %v), want the reserved part", name, err)
	}

	ord := m.DeclarePart("block_1")
	if ord == PartLocallyOwned {
		t.Error("a user part must not receive the reserved ordinal")
	}
	if again := m.DeclarePart("block_1"); again != ord {
		t.Errorf("re-declaring a part returned ordinal %d, want %d", again, ord)
	}
	if m.PartCount() != 2 {
		t.Errorf("PartCount() = %d, want 2", m.PartCount())
	}
	if _, err := m.PartName(99); err == nil {
		t.Error("PartName of an unknown ordinal should fail")
	}
}
