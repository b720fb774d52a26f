package mesh

import "fmt"

// --------------------------------------------------------------------------
// Meta
// --------------------------------------------------------------------------

// PartLocallyOwned is the reserved part marking local ownership. It is
// declared by NewMeta and never travels with a ghosted entity.
const PartLocallyOwned uint32 = 0

// Meta is the process-identical description of the mesh schema: how many
// entity ranks exist and which parts (classification tags) are declared.
// Every process must construct an identical Meta - part ordinals and rank
// counts travel on the wire without negotiation.
type Meta struct {
	rankCount uint8
	parts     []string
	index     map[string]uint32
}

// NewMeta creates a schema with the given number of entity ranks
// (e.g. 2 for node/element, 4 for node/edge/face/element) and the reserved
// locally-owned part.
func NewMeta(rankCount uint8) *Meta {
	m := &Meta{rankCount: rankCount, index: make(map[string]uint32)}
	m.DeclarePart("{locally_owned}")
	return m
}

// RankCount returns the number of entity ranks.
func (m *Meta) RankCount() uint8 { return m.rankCount }

// DeclarePart registers a part name and returns its ordinal. Re-declaring
// a name returns the existing ordinal.
func (m *Meta) DeclarePart(name string) uint32 {
	if ord, ok := m.index[name]; ok {
		return ord
	}
	ord := uint32(len(m.parts))
	m.parts = append(m.parts, name)
	m.index[name] = ord
	return ord
}

// PartName resolves an ordinal back to its name.
func (m *Meta) PartName(ord uint32) (string, error) {
	if int(ord) >= len(m.parts) {
		return "", fmt.Errorf("mesh: unknown part ordinal %d", ord)
	}
	return m.parts[ord], nil
}

// PartCount returns the number of declared parts.
func (m *Meta) PartCount() int { return len(m.parts) }
