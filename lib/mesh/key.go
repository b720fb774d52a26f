package mesh

import "fmt"

// --------------------------------------------------------------------------
// Entity Identity
// --------------------------------------------------------------------------

// EntityKey identifies a mesh entity process-globally. The entity rank
// occupies the top byte and the id the remaining 56 bits, so the natural
// uint64 ordering of keys is rank-major, id-minor.
type EntityKey uint64

const (
	keyRankShift = 56
	keyIDMask    = (uint64(1) << keyRankShift) - 1

	// InvalidKey is the zero value of no valid entity (rank 0, id 0 is
	// reserved and never declared).
	InvalidKey EntityKey = 0
)

// NewEntityKey packs a rank and an id into a key. The id must fit into
// 56 bits.
func NewEntityKey(rank uint8, id uint64) EntityKey {
	return EntityKey(uint64(rank)<<keyRankShift | id&keyIDMask)
}

// Rank returns the entity rank encoded in the key.
func (k EntityKey) Rank() uint8 {
	return uint8(uint64(k) >> keyRankShift)
}

// ID returns the within-rank id encoded in the key.
func (k EntityKey) ID() uint64 {
	return uint64(k) & keyIDMask
}

// String renders the key as "rank[id]" for error messages and logs.
func (k EntityKey) String() string {
	return fmt.Sprintf("%d[%d]", k.Rank(), k.ID())
}
