package field

import (
	"github.com/ValentinKolb/dMesh/comm"
	"github.com/ValentinKolb/dMesh/lib/mesh"
)

// --------------------------------------------------------------------------
// BlobStore
// --------------------------------------------------------------------------

// BlobStore keeps field values as opaque per-entity byte blobs. Entities
// without a blob pack an empty record.
type BlobStore struct {
	blobs map[mesh.EntityKey][]byte
}

// NewBlobStore creates an empty blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[mesh.EntityKey][]byte)}
}

// Set stores the field blob for an entity.
func (s *BlobStore) Set(key mesh.EntityKey, blob []byte) {
	s.blobs[key] = append([]byte(nil), blob...)
}

// Get returns the field blob for an entity.
func (s *BlobStore) Get(key mesh.EntityKey) ([]byte, bool) {
	b, ok := s.blobs[key]
	return b, ok
}

// Delete drops the field blob for an entity.
func (s *BlobStore) Delete(key mesh.EntityKey) {
	delete(s.blobs, key)
}

// Pack implements Codec.
func (s *BlobStore) Pack(buf *comm.Buffer, key mesh.EntityKey) {
	buf.PackBytes(s.blobs[key])
}

// Unpack implements Codec.
func (s *BlobStore) Unpack(buf *comm.Buffer, key mesh.EntityKey) error {
	blob := buf.UnpackBytes()
	if err := buf.Err(); err != nil {
		return err
	}
	s.blobs[key] = append([]byte(nil), blob...)
	return nil
}

// --------------------------------------------------------------------------
// Nop
// --------------------------------------------------------------------------

// Nop is the codec for meshes without field data.
type Nop struct{}

// Pack implements Codec.
func (Nop) Pack(*comm.Buffer, mesh.EntityKey) {}

// Unpack implements Codec.
func (Nop) Unpack(*comm.Buffer, mesh.EntityKey) error { return nil }
