package comm

import (
	"bytes"
	"testing"
)

// TestBufferSizeAndFill tests the two-phase sizing/fill discipline
func TestBufferSizeAndFill(t *testing.T) {
	b := &Buffer{mode: bufSizing}

	pack := func() {
		b.PackUint32(7)
		b.PackUint64(1 << 40)
		b.PackBytes([]byte("payload"))
	}

	// sizing pass
	pack()
	if b.size != 4+8+4+7 {
		t.Errorf("sized %d bytes, want %d", b.size, 4+8+4+7)
	}

	// fill pass
	b.allocate()
	pack()
	if err := b.Err(); err != nil {
		t.Fatalf("fill pass failed: %v", err)
	}
	if b.Remaining() != 0 {
		t.Errorf("fill pass left %d bytes unfilled", b.Remaining())
	}

	// read it back
	r := newReadBuffer(b.Bytes())
	if v := r.UnpackUint32(); v != 7 {
		t.Errorf("UnpackUint32() = %d, want 7", v)
	}
	if v := r.UnpackUint64(); v != 1<<40 {
		t.Errorf("UnpackUint64() = %d, want %d", v, uint64(1)<<40)
	}
	if p := r.UnpackBytes(); !bytes.Equal(p, []byte("payload")) {
		t.Errorf("UnpackBytes() = %q, want %q", p, "payload")
	}
	if err := r.Err(); err != nil {
		t.Errorf("read pass failed: %v", err)
	}
	if r.Remaining() != 0 {
		t.Errorf("read pass left %d bytes unread", r.Remaining())
	}
}

// TestBufferOverfill tests that a fill pass larger than the sizing pass
// sticks as an error
func TestBufferOverfill(t *testing.T) {
	b := &Buffer{mode: bufSizing}
	b.PackUint32(1)
	b.allocate()

	b.PackUint32(1)
	b.PackUint32(2) // one value more than sized
	if b.Err() == nil {
		t.Fatal("overfilling a sized buffer should record an error")
	}

	// later calls stay no-ops, the first error is kept
	first := b.Err()
	b.PackUint64(3)
	if b.Err() != first {
		t.Error("the first error should stick")
	}
}

// TestBufferUnderflow tests reading past the end of a receive buffer
func TestBufferUnderflow(t *testing.T) {
	r := newReadBuffer([]byte{0, 0, 0, 1})

	if v := r.UnpackUint32(); v != 1 {
		t.Fatalf("UnpackUint32() = %d, want 1", v)
	}
	if v := r.UnpackUint32(); v != 0 {
		t.Errorf("underflowing UnpackUint32() = %d, want zero value", v)
	}
	if r.Err() == nil {
		t.Error("reading past the end should record an error")
	}
}

// TestBufferPeek tests that PeekUint32 does not consume the value
func TestBufferPeek(t *testing.T) {
	r := newReadBuffer([]byte{0, 0, 0, 9, 0, 0, 0, 2})

	if v := r.PeekUint32(); v != 9 {
		t.Errorf("PeekUint32() = %d, want 9", v)
	}
	if v := r.PeekUint32(); v != 9 {
		t.Errorf("second PeekUint32() = %d, want 9 again", v)
	}
	if v := r.UnpackUint32(); v != 9 {
		t.Errorf("UnpackUint32() after peek = %d, want 9", v)
	}
	if v := r.UnpackUint32(); v != 2 {
		t.Errorf("UnpackUint32() = %d, want 2", v)
	}
}

// TestBufferModeMisuse tests pack on receive buffers and unpack on send buffers
func TestBufferModeMisuse(t *testing.T) {
	r := newReadBuffer(nil)
	r.PackUint32(1)
	if r.Err() == nil {
		t.Error("packing a receive buffer should record an error")
	}

	s := &Buffer{mode: bufSizing}
	s.UnpackUint32()
	if s.Err() == nil {
		t.Error("unpacking a send buffer should record an error")
	}
}
