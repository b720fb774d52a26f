package mesh

import "fmt"

// --------------------------------------------------------------------------
// Arena
// --------------------------------------------------------------------------

type slot struct {
	ent  Entity
	gen  uint32
	live bool
}

// Arena owns every entity record of one process by value. All other code
// refers to entities through generational handles; destroying an entity
// invalidates its handle and recycles the slot.
type Arena struct {
	slots []slot
	free  []uint32
	index map[EntityKey]Handle
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{index: make(map[EntityKey]Handle)}
}

// Len returns the number of live entities.
func (a *Arena) Len() int {
	return len(a.index)
}

// Declare creates the entity for key if it does not exist and returns its
// handle. The boolean reports whether the entity was newly created; the
// owner is only applied on creation.
func (a *Arena) Declare(key EntityKey, owner int) (Handle, bool) {
	if h, ok := a.index[key]; ok {
		return h, false
	}
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		// Fresh slots start at generation 1 so that no handle ever
		// equals NilHandle (idx 0, gen 0).
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{gen: 1})
	}
	s := &a.slots[idx]
	s.ent = Entity{Key: key, Owner: owner}
	s.live = true
	h := Handle{idx: idx, gen: s.gen}
	a.index[key] = h
	return h, true
}

// Find returns the handle for key, if the entity exists.
func (a *Arena) Find(key EntityKey) (Handle, bool) {
	h, ok := a.index[key]
	return h, ok
}

// Get resolves a handle to an entity record, or nil if the handle is stale
// or nil. The pointer is only valid until the next Declare or Destroy.
func (a *Arena) Get(h Handle) *Entity {
	if h.IsNil() || int(h.idx) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.idx]
	if !s.live || s.gen != h.gen {
		return nil
	}
	return &s.ent
}

// Relate declares a downward relation from one entity to another. The
// target must have a strictly lower rank. Declaring an already existing
// relation is a no-op.
func (a *Arena) Relate(from, to Handle) error {
	fe, te := a.Get(from), a.Get(to)
	if fe == nil || te == nil {
		return fmt.Errorf("mesh: relation endpoint does not exist")
	}
	if te.Key.Rank() >= fe.Key.Rank() {
		return fmt.Errorf("mesh: relation %v -> %v is not downward", fe.Key, te.Key)
	}
	for _, rel := range fe.Relations {
		if rel == to {
			return nil
		}
	}
	fe.Relations = append(fe.Relations, to)
	te.upward = append(te.upward, from)
	return nil
}

// Destroy removes an entity. It fails (returning false) while upward
// relations still reference the entity; callers must destroy dependents
// first, highest rank first.
func (a *Arena) Destroy(h Handle) bool {
	e := a.Get(h)
	if e == nil || len(e.upward) > 0 {
		return false
	}
	for _, rel := range e.Relations {
		if te := a.Get(rel); te != nil {
			for i, up := range te.upward {
				if up == h {
					te.upward = append(te.upward[:i], te.upward[i+1:]...)
					break
				}
			}
		}
	}
	delete(a.index, e.Key)
	s := &a.slots[h.idx]
	s.ent = Entity{}
	s.live = false
	s.gen++
	a.free = append(a.free, h.idx)
	return true
}
