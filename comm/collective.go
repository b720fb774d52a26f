package comm

import (
	"context"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

var (
	metricExchangeBytes  = metrics.NewCounter("dmesh_exchange_bytes_total")
	metricExchangeRounds = metrics.NewCounter("dmesh_exchange_rounds_total")
)

// --------------------------------------------------------------------------
// Bulk
// --------------------------------------------------------------------------

// Bulk is the two-phase sized/filled per-destination buffer exchange: the
// caller runs its packing loop once against sizing buffers, calls Allocate,
// runs the identical loop again to fill, then calls Communicate to move all
// buffers in a single collective round.
//
// Callers that later drain receive buffers rank-by-rank (peek the rank tag,
// defer mismatches) must pack each send buffer in ascending entity-rank
// order; Bulk itself imposes no record structure.
//
// Usage:
//
//	bulk := comm.NewBulk(machine)
//	pack(bulk)                   // sizing pass
//	if err := bulk.Allocate(); err != nil { ... }
//	pack(bulk)                   // fill pass, identical
//	if err := bulk.Communicate(ctx); err != nil { ... }
//	for p := 0; p < machine.Size(); p++ {
//		drain(bulk.RecvBuffer(p))
//	}
type Bulk struct {
	m         Machine
	send      []*Buffer
	recv      []*Buffer
	allocated bool
}

// NewBulk creates a buffer set with one sizing send buffer per rank.
func NewBulk(m Machine) *Bulk {
	send := make([]*Buffer, m.Size())
	for p := range send {
		send[p] = &Buffer{mode: bufSizing}
	}
	return &Bulk{m: m, send: send}
}

// SendBuffer returns the buffer addressed to rank dest.
func (b *Bulk) SendBuffer(dest int) *Buffer {
	return b.send[dest]
}

// RecvBuffer returns the buffer received from rank src. Only valid after
// Communicate.
func (b *Bulk) RecvBuffer(src int) *Buffer {
	return b.recv[src]
}

// Allocate ends the sizing pass and allocates every send buffer.
func (b *Bulk) Allocate() error {
	if b.allocated {
		return fmt.Errorf("comm: buffers already allocated")
	}
	for _, buf := range b.send {
		if err := buf.Err(); err != nil {
			return err
		}
		buf.allocate()
	}
	b.allocated = true
	return nil
}

// Communicate verifies every fill pass matched its sizing pass and performs
// the collective exchange. This is a synchronization point: no rank returns
// before every rank's buffers have moved.
func (b *Bulk) Communicate(ctx context.Context) error {
	if !b.allocated {
		return fmt.Errorf("comm: communicate before allocate")
	}
	out := make([][]byte, len(b.send))
	var sent int
	for p, buf := range b.send {
		if err := buf.Err(); err != nil {
			return err
		}
		if n := buf.Remaining(); n != 0 {
			return fmt.Errorf("comm: fill pass left %d of %d bytes unpacked for rank %d", n, len(buf.data), p)
		}
		out[p] = buf.Bytes()
		sent += len(buf.data)
	}
	in, err := b.m.Exchange(ctx, out)
	if err != nil {
		return err
	}
	metricExchangeRounds.Inc()
	metricExchangeBytes.Add(sent)
	b.recv = make([]*Buffer, len(in))
	for p, msg := range in {
		b.recv[p] = newReadBuffer(msg)
	}
	return nil
}
