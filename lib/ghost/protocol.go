package ghost

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ValentinKolb/dMesh/comm"
	"github.com/ValentinKolb/dMesh/lib/mesh"
	"github.com/VictoriaMetrics/metrics"
)

var (
	metricSyncRounds      = metrics.NewCounter("dmesh_sync_rounds_total")
	metricGhostsSent      = metrics.NewCounter("dmesh_ghost_entities_sent_total")
	metricGhostsReceived  = metrics.NewCounter("dmesh_ghost_entities_received_total")
	metricGhostsDestroyed = metrics.NewCounter("dmesh_ghost_entities_destroyed_total")
)

// --------------------------------------------------------------------------
// ChangeGhosting (validation)
// --------------------------------------------------------------------------

// ChangeGhosting reconciles locally desired changes to one ghosting layer
// into a globally consistent send/receive assignment and transfers the
// affected entities. addSend contributes (locally owned entity, destination)
// pairs to the send set; removeReceive drops entities from the local
// receive set.
//
// Collective: every process must call it with the same layer, or the
// protocol deadlocks. Validation failures are reduced globally, so either
// every process returns the same error code and no state changes anywhere,
// or every process proceeds.
func (db *DB) ChangeGhosting(ctx context.Context, g *Ghosting, addSend []EntityProc, removeReceive []mesh.Handle) error {
	local := RetCSuccess
	var detail strings.Builder

	okMesh := g != nil && g.db == db
	okGhost := okMesh && g.ordinal > mesh.SharedOrdinal
	if !okMesh {
		local = RetCIllegalLayer
		detail.WriteString(" : ghosting does not belong to this database")
	} else if !okGhost {
		local = RetCIllegalLayer
		detail.WriteString(" : cannot modify the sharing layer")
	}

	// Every add must be locally owned.
	if okMesh {
		bad := false
		for _, ep := range addSend {
			e := db.arena.Get(ep.Entity)
			if e == nil || e.Owner != db.Rank() {
				if !bad {
					bad = true
					detail.WriteString(" : not owned add {")
				}
				if e != nil {
					fmt.Fprintf(&detail, " %v", e.Key)
				}
			}
		}
		if bad {
			detail.WriteString(" }")
			if local < RetCNotOwned {
				local = RetCNotOwned
			}
		}
	}

	// Every remove must currently be a receive ghost of this layer.
	if okGhost {
		bad := false
		for _, h := range removeReceive {
			if !db.InReceiveGhost(g, h) {
				if !bad {
					bad = true
					detail.WriteString(" : not in ghost receive {")
				}
				if e := db.arena.Get(h); e != nil {
					fmt.Fprintf(&detail, " %v", e.Key)
				}
			}
		}
		if bad {
			detail.WriteString(" }")
			if local < RetCNotInReceiveGhost {
				local = RetCNotInReceiveGhost
			}
		}
	}

	worst, err := db.globalWorst(ctx, local)
	if err != nil {
		return err
	}
	if worst != RetCSuccess {
		name := "<foreign>"
		if okMesh {
			name = g.name
		}
		return NewError(worst, fmt.Sprintf("change_ghosting( %s ) ERROR%s", name, detail.String()))
	}

	return db.internalChangeGhosting(ctx, g, addSend, removeReceive, false)
}

// --------------------------------------------------------------------------
// Five-phase reconciliation
// --------------------------------------------------------------------------

// internalChangeGhosting runs the reconciliation proper. With fullRegen set
// the current receive set is not carried over: everything not re-requested
// through addSend (or still wanted by a peer) is removed - the shape aura
// regeneration uses.
func (db *DB) internalChangeGhosting(ctx context.Context, g *Ghosting, addSend []EntityProc, removeReceive []mesh.Handle, fullRegen bool) error {
	db.syncCount++
	metricSyncRounds.Inc()

	newSend := newEntityProcSet()
	newRecv := make(map[mesh.Handle]struct{})

	// Phase 1: current receive ghosts, minus the removals, closed downward.
	if !fullRegen {
		for _, h := range db.commList {
			if db.InReceiveGhost(g, h) {
				newRecv[h] = struct{}{}
			}
		}
		for _, h := range removeReceive {
			delete(newRecv, h)
		}
		db.closeReceiveSet(g, newRecv)
	}

	// Phase 2: inform each owner which of its entities this rank keeps.
	if err := db.commRecvToSend(ctx, newRecv, newSend); err != nil {
		return err
	}

	// Phase 3: explicitly requested sends with their downward closure.
	for _, ep := range addSend {
		db.insertSendClosure(newSend, ep)
	}

	// Phase 4: route not-owned send entries to their owners and let every
	// receiver know what is coming.
	if err := db.commSyncSendRecv(ctx, newSend, newRecv); err != nil {
		return err
	}

	// Phase 5a: erase comm entries of this layer absent from the new sets;
	// destroy entities that were pure receive ghosts. Backwards iteration
	// keeps the destruction order closure-safe.
	removed := false
	for i := len(db.commList) - 1; i >= 0; i-- {
		h := db.commList[i]
		e := db.arena.Get(h)
		isOwner := e.Owner == db.Rank()
		removeRecv := false

		kept := e.Comm[:0]
		for _, ci := range e.Comm {
			if ci.Ordinal == g.ordinal {
				if !isOwner {
					if _, in := newRecv[h]; !in {
						removeRecv = true
						continue
					}
				} else if !newSend.has(e.Key, ci.Proc) {
					continue
				}
			}
			kept = append(kept, ci)
		}
		e.Comm = kept

		if len(e.Comm) == 0 {
			removed = true
			db.commList[i] = mesh.NilHandle
			if removeRecv {
				if !db.arena.Destroy(h) {
					return NewError(RetCDestroyFailed, fmt.Sprintf("change_ghosting( %s ) failed to destroy %v", g.name, e.Key))
				}
				metricGhostsDestroyed.Inc()
			}
		}
	}
	if removed {
		db.commListCompact()
	}

	// Phase 5b: push newly ghosted entities to their receivers.
	if err := db.commGhostTransfer(ctx, g, newSend); err != nil {
		return err
	}

	g.syncCount = db.syncCount
	return nil
}

// --------------------------------------------------------------------------
// Phase 2: receive set -> owner send sets
// --------------------------------------------------------------------------

// commRecvToSend sends the keys of the locally kept receive ghosts to their
// owning processes; each owner reconstructs the matching send entries.
func (db *DB) commRecvToSend(ctx context.Context, newRecv map[mesh.Handle]struct{}, newSend *entityProcSet) error {
	bulk := comm.NewBulk(db.machine)

	recv := make([]mesh.Handle, 0, len(newRecv))
	for h := range newRecv {
		recv = append(recv, h)
	}
	sortHandlesByKey(db.arena, recv)

	pack := func() {
		for _, h := range recv {
			e := db.arena.Get(h)
			bulk.SendBuffer(e.Owner).PackUint64(uint64(e.Key))
		}
	}
	pack()
	if err := bulk.Allocate(); err != nil {
		return NewError(RetCInternal, err.Error())
	}
	pack()
	if err := bulk.Communicate(ctx); err != nil {
		return NewError(RetCTransport, err.Error())
	}

	for p := 0; p < db.Size(); p++ {
		buf := bulk.RecvBuffer(p)
		for buf.Remaining() > 0 {
			key := mesh.EntityKey(buf.UnpackUint64())
			h, ok := db.arena.Find(key)
			if !ok {
				return NewError(RetCInternal, fmt.Sprintf("rank %d keeps ghost %v this owner does not know", p, key))
			}
			newSend.insert(key, h, p)
		}
		if err := buf.Err(); err != nil {
			return NewError(RetCInternal, err.Error())
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Phase 4: send/receive synchronization
// --------------------------------------------------------------------------

// commSyncSendRecv resolves send entries that reference entities this rank
// does not own. Each (entity, dest) pair travels to dest (a ghost is
// coming) and, when the sender is not the owner, to the owner as well (the
// owner must send); forwarded entries leave the local send set because
// ownership is authoritative. A received pair whose destination is this
// rank and whose entity already exists locally stays in the receive set -
// genuinely new ghosts arrive in the transfer phase instead.
func (db *DB) commSyncSendRecv(ctx context.Context, newSend *entityProcSet, newRecv map[mesh.Handle]struct{}) error {
	me := db.Rank()
	entries := newSend.sorted()
	bulk := comm.NewBulk(db.machine)

	pack := func(fill bool) {
		for _, ep := range entries {
			e := db.arena.Get(ep.Entity)
			buf := bulk.SendBuffer(ep.Proc)
			buf.PackUint64(uint64(e.Key))
			buf.PackUint32(uint32(ep.Proc))
			if e.Owner != me {
				buf = bulk.SendBuffer(e.Owner)
				buf.PackUint64(uint64(e.Key))
				buf.PackUint32(uint32(ep.Proc))
				if fill {
					// Not this rank's responsibility; the owner takes over.
					newSend.remove(e.Key, ep.Proc)
				}
			}
		}
	}
	pack(false)
	if err := bulk.Allocate(); err != nil {
		return NewError(RetCInternal, err.Error())
	}
	pack(true)
	if err := bulk.Communicate(ctx); err != nil {
		return NewError(RetCTransport, err.Error())
	}

	for p := 0; p < db.Size(); p++ {
		buf := bulk.RecvBuffer(p)
		for buf.Remaining() > 0 {
			key := mesh.EntityKey(buf.UnpackUint64())
			proc := int(buf.UnpackUint32())
			h, ok := db.arena.Find(key)

			if proc != me {
				// A ghosting need for an entity this rank owns.
				if !ok {
					return NewError(RetCInternal, fmt.Sprintf("rank %d routed unknown entity %v to its owner", p, key))
				}
				newSend.insert(key, h, proc)
			} else if ok {
				// This rank is the receiver and already holds the entity.
				newRecv[h] = struct{}{}
			}
		}
		if err := buf.Err(); err != nil {
			return NewError(RetCInternal, err.Error())
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Phase 5b: ghost transfer
// --------------------------------------------------------------------------

// commGhostTransfer packs every new send entry's full entity description
// and field values, moves all buffers in one collective exchange, and
// unpacks strictly in ascending entity-rank order so lower-rank dependents
// always exist before an entity references them. Field unpack failures are
// counted, reduced globally after the exchange drains, and raised
// identically everywhere.
func (db *DB) commGhostTransfer(ctx context.Context, g *Ghosting, newSend *entityProcSet) error {
	oldLen := len(db.commList)
	bulk := comm.NewBulk(db.machine)

	// Only entries not already recorded for (layer, dest) are sent. The
	// snapshot is taken before the fill pass mutates any comm list, and
	// its key-major order packs each buffer in ascending entity rank -
	// the precondition of the rank-ordered drain below.
	var entries []EntityProc
	for _, ep := range newSend.sorted() {
		if !db.inGhost(g, ep.Entity, ep.Proc) {
			entries = append(entries, ep)
		}
	}
	pack := func(fill bool) {
		for _, ep := range entries {
			e := db.arena.Get(ep.Entity)
			buf := bulk.SendBuffer(ep.Proc)
			buf.PackUint32(uint32(e.Key.Rank()))
			packEntityInfo(db.arena, buf, e)
			db.codec.Pack(buf, e.Key)
			if fill {
				e.InsertComm(mesh.CommInfo{Ordinal: g.ordinal, Proc: ep.Proc})
				db.commList = append(db.commList, ep.Entity)
				metricGhostsSent.Inc()
			}
		}
	}
	pack(false)
	if err := bulk.Allocate(); err != nil {
		return NewError(RetCInternal, err.Error())
	}
	pack(true)
	if err := bulk.Communicate(ctx); err != nil {
		return NewError(RetCTransport, err.Error())
	}

	var errorCount int64
	var detail strings.Builder

	for r := uint32(0); r < uint32(db.meta.RankCount()); r++ {
		for p := 0; p < db.Size(); p++ {
			buf := bulk.RecvBuffer(p)
			for buf.Remaining() > 0 {
				// Only unpack records of the rank currently being
				// drained; defer the rest to a later rank iteration.
				if buf.PeekUint32() != r {
					break
				}
				buf.UnpackUint32()

				key, owner, parts, relKeys := unpackEntityInfo(buf)
				if err := buf.Err(); err != nil {
					return NewError(RetCInternal, err.Error())
				}

				h, created := db.arena.Declare(key, owner)
				e := db.arena.Get(h)
				if !created && e.Owner != owner {
					errorCount++
					fmt.Fprintf(&detail, "\n  entity %v announced with owner %d, known as %d", key, owner, e.Owner)
				}

				// The ghost copy never carries local ownership.
				for _, part := range parts {
					if part != mesh.PartLocallyOwned {
						e.AddPart(part)
					}
				}

				for _, rk := range relKeys {
					th, ok := db.arena.Find(rk)
					if !ok {
						errorCount++
						fmt.Fprintf(&detail, "\n  entity %v relates to unknown %v", key, rk)
						continue
					}
					if err := db.arena.Relate(h, th); err != nil {
						errorCount++
						fmt.Fprintf(&detail, "\n  entity %v: %v", key, err)
					}
				}

				if err := db.codec.Unpack(buf, key); err != nil {
					errorCount++
					fmt.Fprintf(&detail, "\n  entity %v field unpack: %v", key, err)
				}

				e = db.arena.Get(h)
				if e.InsertComm(mesh.CommInfo{Ordinal: g.ordinal, Proc: owner}) {
					db.commList = append(db.commList, h)
				}
				metricGhostsReceived.Inc()
			}
		}
	}
	for p := 0; p < db.Size(); p++ {
		buf := bulk.RecvBuffer(p)
		if err := buf.Err(); err != nil {
			return NewError(RetCInternal, err.Error())
		}
		// A record still pending here carries a rank tag the drain loop
		// never reached - a malformed buffer, not a deferred record.
		if buf.Remaining() > 0 {
			return NewError(RetCInternal, fmt.Sprintf("rank %d sent a record outside the entity rank range", p))
		}
	}

	// Surface unpack failures only after the exchange fully drained, and
	// uniformly on every rank.
	total, err := db.globalSum(ctx, errorCount)
	if err != nil {
		return err
	}
	if total != 0 {
		return NewError(RetCFieldUnpack, fmt.Sprintf("change_ghosting( %s ): %d unpack failures across all processes%s", g.name, total, detail.String()))
	}

	db.commListMerge(oldLen)
	return nil
}

// --------------------------------------------------------------------------
// Entity description records
// --------------------------------------------------------------------------

// Record layout (after the rank tag): key u64, owner u32, part count u32 +
// part ordinals, relation count u32 + related entity keys.

func packEntityInfo(arena *mesh.Arena, buf *comm.Buffer, e *mesh.Entity) {
	buf.PackUint64(uint64(e.Key))
	buf.PackUint32(uint32(e.Owner))
	buf.PackUint32(uint32(len(e.Parts)))
	for _, part := range e.Parts {
		buf.PackUint32(part)
	}
	buf.PackUint32(uint32(len(e.Relations)))
	for _, rel := range e.Relations {
		buf.PackUint64(uint64(arena.Get(rel).Key))
	}
}

func unpackEntityInfo(buf *comm.Buffer) (key mesh.EntityKey, owner int, parts []uint32, relKeys []mesh.EntityKey) {
	key = mesh.EntityKey(buf.UnpackUint64())
	owner = int(buf.UnpackUint32())
	np := buf.UnpackUint32()
	parts = make([]uint32, 0, np)
	for i := uint32(0); i < np; i++ {
		parts = append(parts, buf.UnpackUint32())
	}
	nr := buf.UnpackUint32()
	relKeys = make([]mesh.EntityKey, 0, nr)
	for i := uint32(0); i < nr; i++ {
		relKeys = append(relKeys, mesh.EntityKey(buf.UnpackUint64()))
	}
	return
}

// sortHandlesByKey orders handles by their entity key.
func sortHandlesByKey(arena *mesh.Arena, hs []mesh.Handle) {
	sort.Slice(hs, func(i, j int) bool {
		return arena.Get(hs[i]).Key < arena.Get(hs[j]).Key
	})
}
