// Package channel provides the in-process transport: a Hub that a fixed
// number of ranks attach to, with channel-backed pairwise mailboxes. It is
// the transport used by tests, the simulator and embeddings that run every
// rank as a goroutine of one OS process.
package channel

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dMesh/comm/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Hub
// --------------------------------------------------------------------------

// Hub wires a fixed set of in-process ranks together. Create one hub, then
// Attach every rank exactly once.
type Hub struct {
	size int
	// mailboxes[dst][src]: all mailboxes exist from construction, so a
	// fast rank can enter its first Exchange before a slow peer has
	// attached and simply park in the channel operations.
	mailboxes [][]chan []byte
	attached  *xsync.MapOf[int, *endpoint]
}

// NewHub creates a hub for the given number of ranks.
func NewHub(size int) *Hub {
	mailboxes := make([][]chan []byte, size)
	for dst := range mailboxes {
		mailboxes[dst] = make([]chan []byte, size)
		for src := range mailboxes[dst] {
			// Capacity one: a rank can run at most one round ahead of a
			// peer that has not yet drained the previous round.
			mailboxes[dst][src] = make(chan []byte, 1)
		}
	}
	return &Hub{
		size:      size,
		mailboxes: mailboxes,
		attached:  xsync.NewMapOf[int, *endpoint](),
	}
}

// Size returns the number of ranks the hub was created for.
func (h *Hub) Size() int { return h.size }

// Attach registers a rank and returns its transport. Each rank may be
// attached once; Attach is safe to call from the rank goroutines
// themselves.
func (h *Hub) Attach(rank int) (transport.Transport, error) {
	if rank < 0 || rank >= h.size {
		return nil, fmt.Errorf("channel: rank %d out of range [0,%d)", rank, h.size)
	}
	ep := &endpoint{hub: h, rank: rank}
	if _, loaded := h.attached.LoadOrStore(rank, ep); loaded {
		return nil, fmt.Errorf("channel: rank %d already attached", rank)
	}
	return ep, nil
}

// --------------------------------------------------------------------------
// Endpoint (implements transport.Transport)
// --------------------------------------------------------------------------

type endpoint struct {
	hub  *Hub
	rank int
}

func (e *endpoint) Rank() int { return e.rank }
func (e *endpoint) Size() int { return e.hub.size }

func (e *endpoint) Exchange(ctx context.Context, out [][]byte) ([][]byte, error) {
	if len(out) != e.hub.size {
		return nil, fmt.Errorf("channel: exchange with %d buffers for %d ranks", len(out), e.hub.size)
	}

	// Deliver to every peer's mailbox for this rank, then collect one
	// message per peer. All ranks send before receiving, so the rounds
	// stay aligned as long as every rank calls Exchange the same number
	// of times - the collective contract.
	for dst := 0; dst < e.hub.size; dst++ {
		payload := out[dst]
		if payload == nil {
			payload = []byte{}
		}
		select {
		case e.hub.mailboxes[dst][e.rank] <- payload:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	in := make([][]byte, e.hub.size)
	for src := 0; src < e.hub.size; src++ {
		select {
		case msg := <-e.hub.mailboxes[e.rank][src]:
			in[src] = msg
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return in, nil
}

func (e *endpoint) Close() error {
	e.hub.attached.Delete(e.rank)
	return nil
}
