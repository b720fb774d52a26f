package ghost

import (
	"context"
	"fmt"
	"sort"

	"github.com/ValentinKolb/dMesh/comm"
	"github.com/ValentinKolb/dMesh/lib/field"
	"github.com/ValentinKolb/dMesh/lib/mesh"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("ghost")

// --------------------------------------------------------------------------
// EntityProc
// --------------------------------------------------------------------------

// EntityProc pairs an entity with a destination process. Its total order
// is entity-key-major, process-minor; every reconciliation set is iterated
// in that order so all ranks pack deterministically.
type EntityProc struct {
	Entity mesh.Handle
	Proc   int
}

// --------------------------------------------------------------------------
// DB
// --------------------------------------------------------------------------

// DB is the per-process mesh database core: the entity arena, the sorted
// registry of entities with communication metadata, the ghosting layer
// table and the global synchronization counter.
//
// A DB is exclusively owned by one process-rank goroutine. Cross-process
// consistency comes from the collective protocol alone, never from shared
// memory.
type DB struct {
	machine comm.Machine
	meta    *mesh.Meta
	arena   *mesh.Arena
	codec   field.Codec

	// commList is the ordered sequence of every entity that currently
	// appears in any comm list, sorted by entity key, duplicate-free
	// after every protocol run.
	commList []mesh.Handle

	ghostings []*Ghosting
	syncCount uint64
}

// NewDB creates the database for one process rank. The reserved sharing
// layer (ordinal 0) and the shared aura (ordinal 1) exist from the start.
func NewDB(machine comm.Machine, meta *mesh.Meta, codec field.Codec) *DB {
	db := &DB{
		machine: machine,
		meta:    meta,
		arena:   mesh.NewArena(),
		codec:   codec,
	}
	db.ghostings = []*Ghosting{
		{db: db, name: "shared", ordinal: mesh.SharedOrdinal},
		{db: db, name: "shared_aura", ordinal: AuraOrdinal},
	}
	return db
}

// Rank returns this process rank.
func (db *DB) Rank() int { return db.machine.Rank() }

// Size returns the number of participating processes.
func (db *DB) Size() int { return db.machine.Size() }

// Meta returns the mesh schema.
func (db *DB) Meta() *mesh.Meta { return db.meta }

// SyncCount returns the database's global synchronization counter.
func (db *DB) SyncCount() uint64 { return db.syncCount }

// SharedLayer returns the reserved sharing layer (ordinal 0).
func (db *DB) SharedLayer() *Ghosting { return db.ghostings[mesh.SharedOrdinal] }

// AuraLayer returns the shared aura layer (ordinal 1).
func (db *DB) AuraLayer() *Ghosting { return db.ghostings[AuraOrdinal] }

// Layer returns the ghosting layer with the given ordinal.
func (db *DB) Layer(ordinal uint32) (*Ghosting, bool) {
	if int(ordinal) >= len(db.ghostings) {
		return nil, false
	}
	return db.ghostings[ordinal], true
}

// Ghostings returns all layers, ordered by ordinal.
func (db *DB) Ghostings() []*Ghosting {
	out := make([]*Ghosting, len(db.ghostings))
	copy(out, db.ghostings)
	return out
}

// --------------------------------------------------------------------------
// Entity graph construction (collaborator surface)
// --------------------------------------------------------------------------

// DeclareEntity creates the entity for key with the given owning process,
// or returns the existing handle. Declaring an existing entity with a
// different owner is an error.
func (db *DB) DeclareEntity(key mesh.EntityKey, owner int) (mesh.Handle, error) {
	if key.Rank() >= db.meta.RankCount() {
		return mesh.NilHandle, NewError(RetCInternal, fmt.Sprintf("entity %v exceeds rank count %d", key, db.meta.RankCount()))
	}
	if owner < 0 || owner >= db.Size() {
		return mesh.NilHandle, NewError(RetCInternal, fmt.Sprintf("entity %v owner %d out of range", key, owner))
	}
	h, created := db.arena.Declare(key, owner)
	e := db.arena.Get(h)
	if !created && e.Owner != owner {
		return mesh.NilHandle, NewError(RetCInternal, fmt.Sprintf("entity %v already owned by %d", key, e.Owner))
	}
	if created && owner == db.Rank() {
		e.AddPart(mesh.PartLocallyOwned)
	}
	return h, nil
}

// DeclareRelation declares a downward relation between two entities.
func (db *DB) DeclareRelation(from, to mesh.Handle) error {
	return db.arena.Relate(from, to)
}

// DeclareSharing records that the entity is shared with another process
// (an ordinal 0 comm entry) and registers it in the comm list.
func (db *DB) DeclareSharing(h mesh.Handle, proc int) error {
	e := db.arena.Get(h)
	if e == nil {
		return NewError(RetCInternal, "sharing declared for unknown entity")
	}
	if proc == db.Rank() || proc < 0 || proc >= db.Size() {
		return NewError(RetCInternal, fmt.Sprintf("entity %v cannot be shared with process %d", e.Key, proc))
	}
	if e.InsertComm(mesh.CommInfo{Ordinal: mesh.SharedOrdinal, Proc: proc}) {
		db.commListInsert(h)
	}
	return nil
}

// Entity resolves a handle, or nil if the entity was destroyed.
func (db *DB) Entity(h mesh.Handle) *mesh.Entity { return db.arena.Get(h) }

// Find returns the handle for an entity key, if the entity exists locally.
func (db *DB) Find(key mesh.EntityKey) (mesh.Handle, bool) { return db.arena.Find(key) }

// EntityCount returns the number of live local entities.
func (db *DB) EntityCount() int { return db.arena.Len() }

// --------------------------------------------------------------------------
// Query surface
// --------------------------------------------------------------------------

// InShared reports whether the entity is shared with the given process.
func (db *DB) InShared(h mesh.Handle, proc int) bool {
	e := db.arena.Get(h)
	return e != nil && e.HasComm(mesh.SharedOrdinal, proc)
}

// InReceiveGhost reports whether the entity is held locally as a receive
// ghost of the layer.
func (db *DB) InReceiveGhost(g *Ghosting, h mesh.Handle) bool {
	e := db.arena.Get(h)
	return e != nil && e.Owner != db.Rank() && e.HasComm(g.ordinal, e.Owner)
}

// InSendList reports whether the locally owned entity is scheduled to be
// sent to proc within the layer.
func (db *DB) InSendList(g *Ghosting, h mesh.Handle, proc int) bool {
	e := db.arena.Get(h)
	return e != nil && e.Owner == db.Rank() && e.HasComm(g.ordinal, proc)
}

// inGhost reports whether the entity carries any entry for (layer, proc),
// regardless of direction.
func (db *DB) inGhost(g *Ghosting, h mesh.Handle, proc int) bool {
	e := db.arena.Get(h)
	return e != nil && e.HasComm(g.ordinal, proc)
}

// CommEntities returns a snapshot of the comm registry, ordered by entity
// key.
func (db *DB) CommEntities() []mesh.Handle {
	out := make([]mesh.Handle, len(db.commList))
	copy(out, db.commList)
	return out
}

// --------------------------------------------------------------------------
// Comm registry maintenance
// --------------------------------------------------------------------------

func (db *DB) commListInsert(h mesh.Handle) {
	key := db.arena.Get(h).Key
	i := sort.Search(len(db.commList), func(i int) bool {
		return db.arena.Get(db.commList[i]).Key >= key
	})
	if i < len(db.commList) && db.commList[i] == h {
		return
	}
	db.commList = append(db.commList, mesh.NilHandle)
	copy(db.commList[i+1:], db.commList[i:])
	db.commList[i] = h
}

// commListCompact drops nil handles left behind by a removal sweep.
func (db *DB) commListCompact() {
	kept := db.commList[:0]
	for _, h := range db.commList {
		if !h.IsNil() {
			kept = append(kept, h)
		}
	}
	db.commList = kept
}

// commListMerge restores sort order and uniqueness after new entries were
// appended at the tail.
func (db *DB) commListMerge(oldLen int) {
	if len(db.commList) == oldLen {
		return
	}
	sort.Slice(db.commList, func(i, j int) bool {
		return db.arena.Get(db.commList[i]).Key < db.arena.Get(db.commList[j]).Key
	})
	kept := db.commList[:0]
	for _, h := range db.commList {
		if len(kept) == 0 || kept[len(kept)-1] != h {
			kept = append(kept, h)
		}
	}
	db.commList = kept
}

// --------------------------------------------------------------------------
// Global reductions
// --------------------------------------------------------------------------

// globalWorst combines each rank's local status code so that every rank
// observes the same outcome: the maximum code across all ranks. Zero means
// every rank passed. This reduce-then-raise step is what keeps validation
// failures from diverging the processes.
func (db *DB) globalWorst(ctx context.Context, local RetCode) (RetCode, error) {
	v, err := db.machine.AllReduceMax(ctx, int64(local))
	if err != nil {
		return RetCSuccess, NewError(RetCTransport, err.Error())
	}
	return RetCode(v), nil
}

// globalSum totals a local counter across all ranks.
func (db *DB) globalSum(ctx context.Context, local int64) (int64, error) {
	v, err := db.machine.AllReduceSum(ctx, local)
	if err != nil {
		return 0, NewError(RetCTransport, err.Error())
	}
	return v, nil
}
