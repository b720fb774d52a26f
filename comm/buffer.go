package comm

import (
	"encoding/binary"
	"fmt"
)

// --------------------------------------------------------------------------
// Buffer
// --------------------------------------------------------------------------

type bufMode int

const (
	bufSizing bufMode = iota
	bufFilling
	bufReading
)

// Buffer is one per-destination (or per-source) message buffer with typed
// pack and unpack primitives. Send buffers live through two phases: a
// sizing pass in which Pack calls only accumulate the required byte count,
// and a fill pass after allocation in which the same Pack calls must be
// repeated identically. Any divergence between the two passes is reported
// by Bulk.Communicate.
//
// Errors are sticky: the first pack overflow or unpack underflow is
// recorded and every later value call becomes a no-op returning zero.
// Callers check Err once per buffer instead of after every call.
type Buffer struct {
	mode bufMode
	size int
	data []byte
	off  int
	err  error
}

func newReadBuffer(data []byte) *Buffer {
	return &Buffer{mode: bufReading, data: data}
}

// allocate flips a sizing buffer into its fill phase.
func (b *Buffer) allocate() {
	b.data = make([]byte, b.size)
	b.off = 0
	b.mode = bufFilling
}

func (b *Buffer) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns the first pack/unpack error, if any.
func (b *Buffer) Err() error { return b.err }

// Remaining returns the number of unread bytes of a receive buffer, or the
// unfilled bytes of a fill-phase send buffer.
func (b *Buffer) Remaining() int {
	if b.mode == bufSizing {
		return 0
	}
	return len(b.data) - b.off
}

// Bytes returns the packed wire bytes of a send buffer.
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) pack(n int, fill func(dst []byte)) {
	switch b.mode {
	case bufSizing:
		b.size += n
	case bufFilling:
		if b.off+n > len(b.data) {
			b.setErr(fmt.Errorf("comm: fill pass exceeds sized buffer (%d > %d)", b.off+n, len(b.data)))
			return
		}
		fill(b.data[b.off : b.off+n])
		b.off += n
	default:
		b.setErr(fmt.Errorf("comm: pack on a receive buffer"))
	}
}

func (b *Buffer) unpack(n int) []byte {
	if b.mode != bufReading {
		b.setErr(fmt.Errorf("comm: unpack on a send buffer"))
		return nil
	}
	if b.err != nil {
		return nil
	}
	if b.off+n > len(b.data) {
		b.setErr(fmt.Errorf("comm: unpack past end of buffer (%d > %d)", b.off+n, len(b.data)))
		return nil
	}
	out := b.data[b.off : b.off+n]
	b.off += n
	return out
}

// --------------------------------------------------------------------------
// Typed pack primitives
// --------------------------------------------------------------------------

// PackUint32 appends a fixed-width unsigned 32-bit value.
func (b *Buffer) PackUint32(v uint32) {
	b.pack(4, func(dst []byte) { binary.BigEndian.PutUint32(dst, v) })
}

// PackUint64 appends a fixed-width unsigned 64-bit value.
func (b *Buffer) PackUint64(v uint64) {
	b.pack(8, func(dst []byte) { binary.BigEndian.PutUint64(dst, v) })
}

// PackBytes appends a variable-length record: a 32-bit length followed by
// the raw bytes.
func (b *Buffer) PackBytes(p []byte) {
	b.PackUint32(uint32(len(p)))
	b.pack(len(p), func(dst []byte) { copy(dst, p) })
}

// --------------------------------------------------------------------------
// Typed unpack primitives
// --------------------------------------------------------------------------

// UnpackUint32 reads a fixed-width unsigned 32-bit value.
func (b *Buffer) UnpackUint32() uint32 {
	p := b.unpack(4)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint32(p)
}

// UnpackUint64 reads a fixed-width unsigned 64-bit value.
func (b *Buffer) UnpackUint64() uint64 {
	p := b.unpack(8)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint64(p)
}

// UnpackBytes reads a variable-length record written by PackBytes. The
// returned slice aliases the receive buffer.
func (b *Buffer) UnpackBytes() []byte {
	n := b.UnpackUint32()
	return b.unpack(int(n))
}

// PeekUint32 returns the next 32-bit value without consuming it. Used by
// the rank-ordered unpacking discipline: peek the rank tag, defer the
// record if it is not the rank currently being drained.
func (b *Buffer) PeekUint32() uint32 {
	if b.mode != bufReading || b.off+4 > len(b.data) {
		b.setErr(fmt.Errorf("comm: peek past end of buffer"))
		return 0
	}
	return binary.BigEndian.Uint32(b.data[b.off : b.off+4])
}
