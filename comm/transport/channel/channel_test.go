package channel

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestAttach tests rank registration on the hub
func TestAttach(t *testing.T) {
	hub := NewHub(2)

	tr, err := hub.Attach(0)
	if err != nil {
		t.Fatalf("Attach(0) failed: %v", err)
	}
	if tr.Rank() != 0 || tr.Size() != 2 {
		t.Errorf("transport reports rank %d size %d, want rank 0 size 2", tr.Rank(), tr.Size())
	}

	if _, err := hub.Attach(0); err == nil {
		t.Error("attaching the same rank twice should fail")
	}
	if _, err := hub.Attach(2); err == nil {
		t.Error("attaching an out-of-range rank should fail")
	}
	if _, err := hub.Attach(-1); err == nil {
		t.Error("attaching a negative rank should fail")
	}
}

// TestExchange tests one all-to-all round including self-delivery
func TestExchange(t *testing.T) {
	const size = 3
	hub := NewHub(size)

	results := make([][][]byte, size)
	errs := make([]error, size)

	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			tr, err := hub.Attach(rank)
			if err != nil {
				errs[rank] = err
				return
			}
			defer tr.Close()

			out := make([][]byte, size)
			for dst := 0; dst < size; dst++ {
				out[dst] = []byte{byte(rank), byte(dst)}
			}
			results[rank], errs[rank] = tr.Exchange(context.Background(), out)
		}(r)
	}
	wg.Wait()

	for rank := 0; rank < size; rank++ {
		if errs[rank] != nil {
			t.Fatalf("rank %d: exchange failed: %v", rank, errs[rank])
		}
		for src := 0; src < size; src++ {
			msg := results[rank][src]
			if len(msg) != 2 || msg[0] != byte(src) || msg[1] != byte(rank) {
				t.Errorf("rank %d: message from rank %d = %v, want [%d %d]", rank, src, msg, src, rank)
			}
		}
	}
}

// TestExchangeBeforePeerAttach tests that a rank may enter Exchange while a
// slower peer has not yet attached
func TestExchangeBeforePeerAttach(t *testing.T) {
	hub := NewHub(2)

	tr0, err := hub.Attach(0)
	if err != nil {
		t.Fatalf("Attach(0) failed: %v", err)
	}

	done := make(chan struct{})
	var in0 [][]byte
	var err0 error
	go func() {
		defer close(done)
		in0, err0 = tr0.Exchange(context.Background(), [][]byte{{0}, {1}})
	}()

	// rank 1 attaches only after rank 0 is already inside Exchange
	time.Sleep(10 * time.Millisecond)
	tr1, err := hub.Attach(1)
	if err != nil {
		t.Fatalf("Attach(1) failed: %v", err)
	}
	in1, err1 := tr1.Exchange(context.Background(), [][]byte{{2}, {3}})

	<-done
	if err0 != nil || err1 != nil {
		t.Fatalf("exchange failed: rank 0: %v, rank 1: %v", err0, err1)
	}
	if in0[1][0] != 2 || in1[0][0] != 1 {
		t.Errorf("cross messages = %v / %v, want [2] / [1]", in0[1], in1[0])
	}
}

// TestExchangeNilPayload tests that nil send buffers arrive as empty messages
func TestExchangeNilPayload(t *testing.T) {
	hub := NewHub(1)
	tr, err := hub.Attach(0)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	in, err := tr.Exchange(context.Background(), [][]byte{nil})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if in[0] == nil || len(in[0]) != 0 {
		t.Errorf("nil payload arrived as %v, want an empty message", in[0])
	}
}

// TestExchangeBufferCount tests the buffer count validation
func TestExchangeBufferCount(t *testing.T) {
	hub := NewHub(2)
	tr, err := hub.Attach(0)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	if _, err := tr.Exchange(context.Background(), make([][]byte, 3)); err == nil {
		t.Error("exchange with a wrong buffer count should fail")
	}
}

// TestExchangeContextCancel tests that a stalled peer does not block forever
func TestExchangeContextCancel(t *testing.T) {
	hub := NewHub(2)
	tr, err := hub.Attach(0)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	// rank 1 attaches but never exchanges
	if _, err := hub.Attach(1); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := tr.Exchange(ctx, make([][]byte, 2)); err == nil {
		t.Error("exchange against a stalled peer should fail once the context expires")
	}
}
