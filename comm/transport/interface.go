package transport

import "context"

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Transport moves one round of point-to-point bulk messages between a fixed
// set of process ranks. It is the only primitive the mesh database needs
// from the outside world; everything collective (reductions, broadcasts,
// sized buffer exchanges) is layered on top of it.
//
// Exchange is a collective operation: every rank must call it the same
// number of times, in the same order, or the participating ranks deadlock.
// This is a contract, not a bug - the protocol built on top has no
// speculative or partial execution.
type Transport interface {
	// Rank returns this process rank (0 <= Rank < Size).
	Rank() int
	// Size returns the number of participating ranks.
	Size() int
	// Exchange delivers out[p] to rank p (including p == Rank()) and
	// returns the messages every rank addressed to this one, indexed by
	// source rank. A nil out[p] is delivered as an empty message.
	Exchange(ctx context.Context, out [][]byte) ([][]byte, error)
	// Close releases the transport's resources. Exchange must not be
	// called afterwards.
	Close() error
}
