// Package ghost implements the distributed entity-ghosting protocol of the
// dMesh database: the mechanism by which each process keeps read-only
// replicas (ghosts) of remotely owned mesh entities, and by which the
// bookkeeping of who-sends-to-whom stays globally consistent as the set of
// desired ghosts changes - without a central coordinator, using only the
// collective bulk exchanges of the comm package.
//
// Key Components:
//
//   - DB: the per-process database. It owns the entity arena, the sorted
//     registry of all entities with communication metadata, the ghosting
//     layer table and the global synchronization counter. Two layers exist
//     from the start: the reserved sharing layer (ordinal 0) and the
//     shared aura (ordinal 1); CreateGhosting adds named custom layers.
//
//   - ChangeGhosting: the five-phase reconciliation. A caller contributes
//     additions to its send set and removals from its receive set; the
//     protocol closes both sets downward over entity relations, reconciles
//     ownership across processes in two collective rounds, then applies
//     the difference against live state - transferring newly ghosted
//     entities (with their parts, relations and field values) and
//     destroying replicas nothing references anymore.
//
//   - RegenerateSharedAura: recomputes the aura layer from the current
//     sharing relationships, expressed as a single ChangeGhosting-style
//     run that removes everything and re-adds what is still wanted.
//
// Every operation taking a context is collective: all process ranks must
// invoke it with consistent layer identity, or the protocol deadlocks.
// Errors are detected locally, combined with a global reduction, and
// raised identically on every rank - the protocol never leaves some
// processes mutated and others not over a validation failure.
package ghost
