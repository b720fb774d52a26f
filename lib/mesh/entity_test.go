package mesh

import "testing"

// TestInsertComm tests ordered, duplicate-free insertion into the comm list
func TestInsertComm(t *testing.T) {
	e := &Entity{}

	if !e.InsertComm(CommInfo{Ordinal: 2, Proc: 1}) {
		t.Error("first insert should report true")
	}
	if !e.InsertComm(CommInfo{Ordinal: 0, Proc: 3}) {
		t.Error("insert of a second entry should report true")
	}
	if !e.InsertComm(CommInfo{Ordinal: 0, Proc: 1}) {
		t.Error("insert of a third entry should report true")
	}
	if e.InsertComm(CommInfo{Ordinal: 2, Proc: 1}) {
		t.Error("duplicate insert should report false")
	}

	want := []CommInfo{{0, 1}, {0, 3}, {2, 1}}
	if len(e.Comm) != len(want) {
		t.Fatalf("comm list has %d entries, want %d", len(e.Comm), len(want))
	}
	for i, ci := range want {
		if e.Comm[i] != ci {
			t.Errorf("comm[%d] = %v, want %v", i, e.Comm[i], ci)
		}
	}
}

// TestEraseComm tests removal from the comm list
func TestEraseComm(t *testing.T) {
	e := &Entity{}
	e.InsertComm(CommInfo{Ordinal: 0, Proc: 1})
	e.InsertComm(CommInfo{Ordinal: 1, Proc: 2})

	if !e.EraseComm(CommInfo{Ordinal: 1, Proc: 2}) {
		t.Error("erase of a present entry should report true")
	}
	if e.EraseComm(CommInfo{Ordinal: 1, Proc: 2}) {
		t.Error("erase of an absent entry should report false")
	}
	if !e.HasComm(0, 1) {
		t.Error("unrelated entry should survive the erase")
	}
}

// TestSharing tests that Sharing returns exactly the ordinal 0 prefix
func TestSharing(t *testing.T) {
	e := &Entity{}
	e.InsertComm(CommInfo{Ordinal: 0, Proc: 2})
	e.InsertComm(CommInfo{Ordinal: 0, Proc: 5})
	e.InsertComm(CommInfo{Ordinal: 1, Proc: 3})
	e.InsertComm(CommInfo{Ordinal: 4, Proc: 2})

	sharing := e.Sharing()
	if len(sharing) != 2 {
		t.Fatalf("Sharing() returned %d entries, want 2", len(sharing))
	}
	if sharing[0].Proc != 2 || sharing[1].Proc != 5 {
		t.Errorf("Sharing() = %v, want procs 2 and 5", sharing)
	}
}

// TestHasGhostComm tests ghost detection across layer ordinals
func TestHasGhostComm(t *testing.T) {
	e := &Entity{}
	if e.HasGhostComm() {
		t.Error("empty comm list must not report a ghost entry")
	}

	e.InsertComm(CommInfo{Ordinal: 0, Proc: 1})
	if e.HasGhostComm() {
		t.Error("a sharing-only entity must not report a ghost entry")
	}

	e.InsertComm(CommInfo{Ordinal: 2, Proc: 1})
	if !e.HasGhostComm() {
		t.Error("an entity with a layer entry should report a ghost entry")
	}
}

// TestParts tests sorted duplicate-free part membership
func TestParts(t *testing.T) {
	e := &Entity{}
	e.AddPart(3)
	e.AddPart(1)
	e.AddPart(3)

	if len(e.Parts) != 2 {
		t.Fatalf("entity has %d parts, want 2", len(e.Parts))
	}
	if e.Parts[0] != 1 || e.Parts[1] != 3 {
		t.Errorf("parts = %v, want [1 3]", e.Parts)
	}
	if !e.HasPart(1) || !e.HasPart(3) {
		t.Error("HasPart should report both inserted parts")
	}
	if e.HasPart(2) {
		t.Error("HasPart should not report an absent part")
	}
}
