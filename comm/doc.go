// Package comm implements the collective communication layer of dMesh: the
// sized two-phase per-destination buffer exchange, typed pack/unpack of
// fixed-width and variable-length records, and scalar reductions, all
// layered over the pluggable point-to-point transport defined in the
// comm/transport package.
//
// The package focuses on:
//   - Machine: the per-rank collective surface (all-to-all exchange,
//     broadcast, min/max/sum reductions). Every method is a barrier: no
//     rank proceeds before the round completes everywhere.
//   - Bulk: two-pass sized buffers. One packing loop runs twice - once to
//     size, once to fill - so the wire allocation is exact and any
//     divergence between the passes is detected before communicating.
//   - Buffer: the typed record primitives, including the peek operation the
//     rank-ordered unpacking discipline depends on.
//
// There is no retry, cancellation of an in-flight round, or partial
// completion here: the protocol above requires that a started collective
// always drains fully everywhere, and that errors are raised only after
// the communication they depend on has completed.
package comm
