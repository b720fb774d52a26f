package ghost

import (
	"context"
	"fmt"
	"sort"

	"github.com/ValentinKolb/dMesh/lib/mesh"
)

// AuraOrdinal is the ordinal of the distinguished shared-aura layer.
const AuraOrdinal uint32 = 1

// --------------------------------------------------------------------------
// Ghosting Layer
// --------------------------------------------------------------------------

// Ghosting is one named ghosting layer. Layers are created once, receive
// the next free ordinal, and live for the database's lifetime.
type Ghosting struct {
	db        *DB
	name      string
	ordinal   uint32
	syncCount uint64
}

// Name returns the layer name, identical on every process.
func (g *Ghosting) Name() string { return g.name }

// Ordinal returns the stable layer ordinal.
func (g *Ghosting) Ordinal() uint32 { return g.ordinal }

// SyncCount returns the database synchronization count at which the layer
// last changed.
func (g *Ghosting) SyncCount() uint64 { return g.syncCount }

// --------------------------------------------------------------------------
// Layer registry operations
// --------------------------------------------------------------------------

// CreateGhosting creates a named ghosting layer. Collective: the name must
// be identical on every process. Rank 0's name is broadcast and compared
// locally, then a global reduction flags any mismatch, so the resulting
// error is raised on every process or on none.
func (db *DB) CreateGhosting(ctx context.Context, name string) (*Ghosting, error) {
	rootName, err := db.machine.Broadcast(ctx, 0, []byte(name))
	if err != nil {
		return nil, NewError(RetCTransport, err.Error())
	}

	local := RetCSuccess
	if string(rootName) != name {
		local = RetCNameMismatch
	}
	worst, gerr := db.globalWorst(ctx, local)
	if gerr != nil {
		return nil, gerr
	}
	if worst != RetCSuccess {
		return nil, NewError(RetCNameMismatch, fmt.Sprintf("create_ghosting( %s ): parallel name inconsistency", name))
	}

	g := &Ghosting{
		db:        db,
		name:      name,
		ordinal:   uint32(len(db.ghostings)),
		syncCount: db.syncCount,
	}
	db.ghostings = append(db.ghostings, g)
	log.Debugf("rank %d: created ghosting %q (ordinal %d)", db.Rank(), name, g.ordinal)
	return g, nil
}

// DestroyAllGhosting strips every non-sharing comm entry from every entity
// and destroys each entity that existed purely as a receive ghost. Sharing
// entries (ordinal 0) survive. Collective by convention but requires no
// communication; it always succeeds unless an expected destruction fails.
func (db *DB) DestroyAllGhosting() error {
	db.syncCount++
	for _, g := range db.ghostings {
		g.syncCount = db.syncCount
	}

	// Iterate backwards (descending entity key, hence descending rank) so
	// destroying an entity never invalidates a lower-rank entity still to
	// be visited - the closure-safe order.
	for i := len(db.commList) - 1; i >= 0; i-- {
		h := db.commList[i]
		e := db.arena.Get(h)

		if e.Owner != db.Rank() && e.HasGhostComm() {
			e.Comm = nil
			if !db.arena.Destroy(h) {
				return NewError(RetCDestroyFailed, fmt.Sprintf("destroy_all_ghosting failed to destroy %v", e.Key))
			}
			metricGhostsDestroyed.Inc()
			db.commList[i] = mesh.NilHandle
			continue
		}

		// Keep only the sharing entries.
		j := sort.Search(len(e.Comm), func(j int) bool { return e.Comm[j].Ordinal > mesh.SharedOrdinal })
		e.Comm = e.Comm[:j]
		if len(e.Comm) == 0 {
			db.commList[i] = mesh.NilHandle
		}
	}
	db.commListCompact()
	return nil
}
