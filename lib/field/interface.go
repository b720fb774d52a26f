package field

import (
	"github.com/ValentinKolb/dMesh/comm"
	"github.com/ValentinKolb/dMesh/lib/mesh"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Codec packs and unpacks the field values of one entity. The ghosting
// protocol calls it opaquely: at pack time for every entity it sends, at
// unpack time for every entity record it receives, in the same order.
type Codec interface {
	// Pack appends the entity's field record to the buffer. Called during
	// both the sizing and the fill pass; both calls must pack identically.
	Pack(buf *comm.Buffer, key mesh.EntityKey)
	// Unpack consumes the entity's field record from the buffer and
	// applies it locally. It must consume the record even when it cannot
	// apply it, so the remaining buffer stays decodable.
	Unpack(buf *comm.Buffer, key mesh.EntityKey) error
}
