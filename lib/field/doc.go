// Package field defines the field-value capability the ghosting protocol
// consumes without knowing anything about field layout: a Codec that packs
// an entity's field values into a wire buffer on the owning process and
// unpacks them into the local store on a receiving process.
//
// Two implementations are provided:
//
//   - BlobStore: field values as opaque per-entity byte blobs, the default
//     for embeddings that manage their own field layout.
//   - Nop: no field data at all, for topologies-only meshes and tests.
//
// A Codec's Pack is called twice per protocol run - once while sizing the
// send buffers and once while filling them - and must pack identically both
// times. Unpack failures are not raised at the call site: the protocol
// counts them, finishes draining the collective exchange, and raises one
// uniform error on every process afterwards.
package field
