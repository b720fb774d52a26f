package tcp

import (
	"context"
	"testing"

	"github.com/ValentinKolb/dMesh/comm/common"
)

// TestExchangeSelfDelivery tests the loopback path of a single-rank mesh,
// including that a nil send buffer arrives as an empty message
func TestExchangeSelfDelivery(t *testing.T) {
	tr, err := New(context.Background(), common.TransportConfig{
		Rank:      0,
		Endpoints: []string{"127.0.0.1:0"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer tr.Close()

	in, err := tr.Exchange(context.Background(), [][]byte{[]byte("self")})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if string(in[0]) != "self" {
		t.Errorf("self message = %q, want %q", in[0], "self")
	}

	in, err = tr.Exchange(context.Background(), [][]byte{nil})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if in[0] == nil || len(in[0]) != 0 {
		t.Errorf("nil payload arrived as %v, want an empty message", in[0])
	}
}
