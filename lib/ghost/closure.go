package ghost

import (
	"sort"

	"github.com/ValentinKolb/dMesh/lib/mesh"
)

// --------------------------------------------------------------------------
// EntityProc set
// --------------------------------------------------------------------------

type epKey struct {
	key  mesh.EntityKey
	proc int
}

// entityProcSet is a set of (entity, destination process) pairs. Membership
// is keyed by entity key so it stays meaningful across handle lookups; the
// sorted view iterates in the protocol's total order (key-major,
// process-minor).
type entityProcSet struct {
	m map[epKey]mesh.Handle
}

func newEntityProcSet() *entityProcSet {
	return &entityProcSet{m: make(map[epKey]mesh.Handle)}
}

func (s *entityProcSet) insert(key mesh.EntityKey, h mesh.Handle, proc int) bool {
	k := epKey{key: key, proc: proc}
	if _, ok := s.m[k]; ok {
		return false
	}
	s.m[k] = h
	return true
}

func (s *entityProcSet) has(key mesh.EntityKey, proc int) bool {
	_, ok := s.m[epKey{key: key, proc: proc}]
	return ok
}

func (s *entityProcSet) remove(key mesh.EntityKey, proc int) {
	delete(s.m, epKey{key: key, proc: proc})
}

func (s *entityProcSet) len() int { return len(s.m) }

// sorted returns the entries as a fresh slice in (key, proc) order.
func (s *entityProcSet) sorted() []EntityProc {
	keys := make([]epKey, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].key != keys[j].key {
			return keys[i].key < keys[j].key
		}
		return keys[i].proc < keys[j].proc
	})
	out := make([]EntityProc, len(keys))
	for i, k := range keys {
		out[i] = EntityProc{Entity: s.m[k], Proc: k.proc}
	}
	return out
}

// --------------------------------------------------------------------------
// Receive-set closure (Phase 1)
// --------------------------------------------------------------------------

// closeReceiveSet closes newRecv downward: visiting entities from highest
// to lowest rank, every relation to a lower-rank entity that is also
// currently a receive ghost of the layer is pulled into the set. Keeping a
// high-rank ghost therefore never orphans the lower-rank ghosts it depends
// on.
func (db *DB) closeReceiveSet(g *Ghosting, newRecv map[mesh.Handle]struct{}) {
	rankCount := int(db.meta.RankCount())
	buckets := make([][]mesh.Handle, rankCount)
	for h := range newRecv {
		r := int(db.arena.Get(h).Key.Rank())
		buckets[r] = append(buckets[r], h)
	}

	// Relations point strictly downward, so a descending rank sweep sees
	// every entity after all entities that could pull it in.
	for r := rankCount - 1; r > 0; r-- {
		for i := 0; i < len(buckets[r]); i++ {
			e := db.arena.Get(buckets[r][i])
			for _, rel := range e.Relations {
				if _, in := newRecv[rel]; in {
					continue
				}
				if !db.InReceiveGhost(g, rel) {
					continue
				}
				newRecv[rel] = struct{}{}
				rr := int(db.arena.Get(rel).Key.Rank())
				buckets[rr] = append(buckets[rr], rel)
			}
		}
	}
}

// --------------------------------------------------------------------------
// Send-set closure (Phase 3)
// --------------------------------------------------------------------------

// insertSendClosure inserts an explicitly requested (entity, destination)
// pair into newSend together with its full downward closure. Insertion is
// skipped when the destination already owns or shares the entity - no
// redundant ghost; a pair that was already present stops the expansion, so
// the traversal terminates on shared substructure.
//
// Expressed as an explicit worklist instead of call recursion: the mesh
// depth must not bound the stack.
func (db *DB) insertSendClosure(newSend *entityProcSet, entry EntityProc) {
	stack := []EntityProc{entry}
	for len(stack) > 0 {
		ep := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		e := db.arena.Get(ep.Entity)
		if e == nil || ep.Proc == e.Owner || db.InShared(ep.Entity, ep.Proc) {
			continue
		}
		if !newSend.insert(e.Key, ep.Entity, ep.Proc) {
			continue
		}
		for _, rel := range e.Relations {
			stack = append(stack, EntityProc{Entity: rel, Proc: ep.Proc})
		}
	}
}
