package mesh

import "sort"

// --------------------------------------------------------------------------
// Handles
// --------------------------------------------------------------------------

// Handle is a stable generational reference to an entity in an Arena.
// The zero value is NilHandle and never resolves.
type Handle struct {
	idx uint32
	gen uint32
}

// NilHandle is the invalid handle.
var NilHandle = Handle{}

// IsNil reports whether the handle is the invalid handle.
func (h Handle) IsNil() bool { return h == NilHandle }

// --------------------------------------------------------------------------
// Communication Metadata
// --------------------------------------------------------------------------

// SharedOrdinal is the reserved layer ordinal recording sharing
// relationships. Ordinals above it name ghosting layers.
const SharedOrdinal uint32 = 0

// CommInfo records that one more process holds a copy of an entity within
// one layer: ordinal 0 entries mean the entity is shared with Proc, higher
// ordinals mean it is ghosted (sent to Proc if locally owned, received from
// the owner otherwise).
type CommInfo struct {
	Ordinal uint32
	Proc    int
}

func commLess(a, b CommInfo) bool {
	if a.Ordinal != b.Ordinal {
		return a.Ordinal < b.Ordinal
	}
	return a.Proc < b.Proc
}

// --------------------------------------------------------------------------
// Entity
// --------------------------------------------------------------------------

// Entity is one mesh entity record. Records live in an Arena and are always
// addressed through handles; pointers obtained from Arena.Get must not be
// retained across a Destroy.
type Entity struct {
	Key   EntityKey
	Owner int

	// Relations are the downward relations, in declaration order. Every
	// target has a strictly lower rank than this entity.
	Relations []Handle

	// upward lists the entities whose Relations point at this one,
	// maintained by Arena.Relate and Arena.Destroy.
	upward []Handle

	// Parts holds the ordinals of the parts (classification tags) the
	// entity belongs to, sorted ascending.
	Parts []uint32

	// Comm is the ordered, duplicate-free list of (layer ordinal, process)
	// pairs recording who else holds a copy of this entity.
	Comm []CommInfo
}

// Upward returns the entities that relate down to this one. The slice
// aliases internal state and must not be mutated.
func (e *Entity) Upward() []Handle { return e.upward }

// InsertComm inserts an entry into the ordered comm list. It reports
// whether the entry was newly inserted.
func (e *Entity) InsertComm(ci CommInfo) bool {
	i := sort.Search(len(e.Comm), func(i int) bool { return !commLess(e.Comm[i], ci) })
	if i < len(e.Comm) && e.Comm[i] == ci {
		return false
	}
	e.Comm = append(e.Comm, CommInfo{})
	copy(e.Comm[i+1:], e.Comm[i:])
	e.Comm[i] = ci
	return true
}

// EraseComm removes an entry from the comm list. It reports whether the
// entry was present.
func (e *Entity) EraseComm(ci CommInfo) bool {
	i := sort.Search(len(e.Comm), func(i int) bool { return !commLess(e.Comm[i], ci) })
	if i >= len(e.Comm) || e.Comm[i] != ci {
		return false
	}
	e.Comm = append(e.Comm[:i], e.Comm[i+1:]...)
	return true
}

// HasComm reports whether the comm list contains the exact entry.
func (e *Entity) HasComm(ordinal uint32, proc int) bool {
	ci := CommInfo{Ordinal: ordinal, Proc: proc}
	i := sort.Search(len(e.Comm), func(i int) bool { return !commLess(e.Comm[i], ci) })
	return i < len(e.Comm) && e.Comm[i] == ci
}

// HasCommOrdinal reports whether any comm entry carries the given ordinal.
func (e *Entity) HasCommOrdinal(ordinal uint32) bool {
	i := sort.Search(len(e.Comm), func(i int) bool { return e.Comm[i].Ordinal >= ordinal })
	return i < len(e.Comm) && e.Comm[i].Ordinal == ordinal
}

// HasGhostComm reports whether any comm entry names a ghosting layer
// (ordinal above the sharing ordinal).
func (e *Entity) HasGhostComm() bool {
	return len(e.Comm) > 0 && e.Comm[len(e.Comm)-1].Ordinal > SharedOrdinal
}

// Sharing returns the processes the entity is shared with (ordinal 0
// entries), in ascending process order. The returned slice aliases the
// comm list and must not be mutated.
func (e *Entity) Sharing() []CommInfo {
	i := sort.Search(len(e.Comm), func(i int) bool { return e.Comm[i].Ordinal > SharedOrdinal })
	return e.Comm[:i]
}

// AddPart inserts a part ordinal, keeping the list sorted and free of
// duplicates.
func (e *Entity) AddPart(part uint32) {
	i := sort.Search(len(e.Parts), func(i int) bool { return e.Parts[i] >= part })
	if i < len(e.Parts) && e.Parts[i] == part {
		return
	}
	e.Parts = append(e.Parts, 0)
	copy(e.Parts[i+1:], e.Parts[i:])
	e.Parts[i] = part
}

// HasPart reports part membership.
func (e *Entity) HasPart(part uint32) bool {
	i := sort.Search(len(e.Parts), func(i int) bool { return e.Parts[i] >= part })
	return i < len(e.Parts) && e.Parts[i] == part
}
