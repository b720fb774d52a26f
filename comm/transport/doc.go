// Package transport defines the bulk transport primitive consumed by the
// dMesh communication layer: a single all-to-all message round between a
// fixed set of process ranks.
//
// Implementations live in subpackages:
//
//   - channel: in-process ranks wired together through a Hub of buffered
//     channels. Used by tests, the simulator and any embedding that runs
//     all ranks in one OS process.
//
//   - tcp: one listener per rank plus a full mesh of peer connections,
//     exchanging length-prefixed frames tagged with sender rank and round
//     sequence number. Used when ranks are separate OS processes.
//
// All implementations deliver self-addressed messages locally and preserve
// per-pair ordering, which the collective layer in package comm relies on.
package transport
