package ghost

import (
	"testing"

	"github.com/ValentinKolb/dMesh/comm"
	"github.com/ValentinKolb/dMesh/comm/transport/channel"
	"github.com/ValentinKolb/dMesh/lib/field"
	"github.com/ValentinKolb/dMesh/lib/mesh"
)

// newLocalDB creates a database for local (non-collective) tests. The hub
// pretends a second rank exists so foreign owners and sharing targets are
// in range.
func newLocalDB(t *testing.T) *DB {
	t.Helper()
	hub := channel.NewHub(2)
	tr, err := hub.Attach(0)
	if err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	return NewDB(comm.NewMachine(tr), mesh.NewMeta(2), field.Nop{})
}

// TestDeclareEntity tests entity declaration and its ownership rules
func TestDeclareEntity(t *testing.T) {
	db := newLocalDB(t)

	// a locally owned entity carries the reserved part
	h, err := db.DeclareEntity(mesh.NewEntityKey(0, 1), 0)
	if err != nil {
		t.Fatalf("DeclareEntity failed: %v", err)
	}
	if !db.Entity(h).HasPart(mesh.PartLocallyOwned) {
		t.Error("a locally owned entity should carry the locally-owned part")
	}

	// a foreign-owned entity does not
	h2, err := db.DeclareEntity(mesh.NewEntityKey(0, 2), 1)
	if err != nil {
		t.Fatalf("DeclareEntity failed: %v", err)
	}
	if db.Entity(h2).HasPart(mesh.PartLocallyOwned) {
		t.Error("a foreign-owned entity must not carry the locally-owned part")
	}

	// re-declaring with the same owner returns the same handle
	again, err := db.DeclareEntity(mesh.NewEntityKey(0, 1), 0)
	if err != nil {
		t.Fatalf("re-declare failed: %v", err)
	}
	if again != h {
		t.Error("re-declare should return the original handle")
	}

	// conflicting owner, out-of-range owner and out-of-range entity rank fail
	if _, err := db.DeclareEntity(mesh.NewEntityKey(0, 1), 1); err == nil {
		t.Error("re-declare with a different owner should fail")
	}
	if _, err := db.DeclareEntity(mesh.NewEntityKey(0, 3), 5); err == nil {
		t.Error("declare with an out-of-range owner should fail")
	}
	if _, err := db.DeclareEntity(mesh.NewEntityKey(2, 1), 0); err == nil {
		t.Error("declare beyond the schema's rank count should fail")
	}
}

// TestDeclareSharing tests sharing declarations and the comm list
func TestDeclareSharing(t *testing.T) {
	db := newLocalDB(t)
	h, err := db.DeclareEntity(mesh.NewEntityKey(0, 1), 0)
	if err != nil {
		t.Fatalf("DeclareEntity failed: %v", err)
	}

	if err := db.DeclareSharing(h, 1); err != nil {
		t.Fatalf("DeclareSharing failed: %v", err)
	}
	if !db.InShared(h, 1) {
		t.Error("InShared should report the declared sharing")
	}
	if db.InShared(h, 0) {
		t.Error("InShared must not report an undeclared process")
	}

	// re-declaring is a no-op; the comm list holds the entity once
	if err := db.DeclareSharing(h, 1); err != nil {
		t.Fatalf("repeated DeclareSharing failed: %v", err)
	}
	if got := len(db.CommEntities()); got != 1 {
		t.Errorf("comm list has %d entries, want 1", got)
	}

	// sharing with this process itself or out of range fails
	if err := db.DeclareSharing(h, 0); err == nil {
		t.Error("sharing with the own rank should fail")
	}
	if err := db.DeclareSharing(h, 7); err == nil {
		t.Error("sharing with an out-of-range rank should fail")
	}
	if err := db.DeclareSharing(mesh.NilHandle, 1); err == nil {
		t.Error("sharing of an unknown entity should fail")
	}
}

// TestLayerRegistry tests the reserved layers and layer lookup
func TestLayerRegistry(t *testing.T) {
	db := newLocalDB(t)

	if got := db.SharedLayer().Ordinal(); got != mesh.SharedOrdinal {
		t.Errorf("shared layer has ordinal %d, want %d", got, mesh.SharedOrdinal)
	}
	if got := db.AuraLayer().Ordinal(); got != AuraOrdinal {
		t.Errorf("aura layer has ordinal %d, want %d", got, AuraOrdinal)
	}
	if len(db.Ghostings()) != 2 {
		t.Errorf("new database has %d layers, want the 2 reserved ones", len(db.Ghostings()))
	}

	if g, ok := db.Layer(AuraOrdinal); !ok || g != db.AuraLayer() {
		t.Error("Layer(AuraOrdinal) should return the aura layer")
	}
	if _, ok := db.Layer(9); ok {
		t.Error("Layer of an unknown ordinal should report false")
	}
}

// TestRetCodeStrings tests the symbolic names used in error messages
func TestRetCodeStrings(t *testing.T) {
	tests := map[RetCode]string{
		RetCSuccess:           "Success",
		RetCFieldUnpack:       "FieldUnpackFailure",
		RetCNotOwned:          "NotOwned",
		RetCNotInReceiveGhost: "NotInReceiveGhost",
		RetCIllegalLayer:      "IllegalLayer",
		RetCNameMismatch:      "ParallelNameMismatch",
		RetCode(99):           "Unknown",
	}
	for code, want := range tests {
		if got := code.String(); got != want {
			t.Errorf("RetCode(%d).String() = %q, want %q", code, got, want)
		}
	}
}
