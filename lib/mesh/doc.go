// Package mesh implements the local entity graph of the distributed mesh
// database: the per-process store of mesh entities, their ranks, owning
// processes, downward relations and communication metadata.
//
// The package focuses on:
//   - A compact entity identity scheme (EntityKey) whose natural ordering
//     is rank-major, the total order every reconciliation pass relies on
//   - An arena that owns all Entity records by value and hands out stable
//     generational handles, so destroying an entity can never leave a
//     dangling reference in live code
//   - Per-entity communication metadata (ordered lists of (layer, process)
//     pairs) shared by the sharing and ghosting machinery
//
// Key Components:
//
//   - EntityKey: a uint64 packing the entity rank into the top byte and the
//     entity id below it. Comparing keys as integers therefore sorts all
//     entities of rank r before any entity of rank r+1, which is exactly
//     the order the ghosting protocol packs and unpacks entities in.
//
//   - Handle / Arena: entities are referenced everywhere by generational
//     handles into a central arena. A destroyed slot bumps its generation,
//     so stale handles resolve to nothing instead of to a recycled entity.
//     The arena also maintains upward back-reference lists: an entity with
//     live dependents refuses destruction.
//
//   - Entity: the record itself - key, owner process, ordered downward
//     relations, part (classification tag) ordinals and the ordered comm
//     list of (layer ordinal, process) pairs.
//
//   - Meta: the process-identical registry of entity ranks and parts. Part
//     ordinals travel on the wire, so every process must declare the same
//     parts in the same order.
//
// The arena is exclusively owned by one process-rank goroutine; cross
// process consistency is the ghosting protocol's job, never this package's.
package mesh
