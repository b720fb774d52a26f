package comm

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dMesh/comm/transport"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Machine is the collective communication surface of one process rank: the
// raw all-to-all exchange of its transport plus the scalar collectives the
// ghosting protocol needs. Every method is collective - all ranks must call
// it with structurally matching arguments or the participants deadlock.
type Machine interface {
	// Rank returns this process rank.
	Rank() int
	// Size returns the number of participating ranks.
	Size() int
	// Exchange performs one all-to-all message round (see transport.Transport).
	Exchange(ctx context.Context, out [][]byte) ([][]byte, error)
	// Broadcast distributes root's payload to every rank.
	Broadcast(ctx context.Context, root int, payload []byte) ([]byte, error)
	// AllReduceMin returns the minimum of every rank's value, on every rank.
	AllReduceMin(ctx context.Context, v int64) (int64, error)
	// AllReduceMax returns the maximum of every rank's value, on every rank.
	AllReduceMax(ctx context.Context, v int64) (int64, error)
	// AllReduceSum returns the sum of every rank's value, on every rank.
	AllReduceSum(ctx context.Context, v int64) (int64, error)
}

// --------------------------------------------------------------------------
// Implementation
// --------------------------------------------------------------------------

// NewMachine layers the collective operations over a transport.
func NewMachine(t transport.Transport) Machine {
	return &machineImpl{t: t}
}

type machineImpl struct {
	t transport.Transport
}

func (m *machineImpl) Rank() int { return m.t.Rank() }
func (m *machineImpl) Size() int { return m.t.Size() }

func (m *machineImpl) Exchange(ctx context.Context, out [][]byte) ([][]byte, error) {
	return m.t.Exchange(ctx, out)
}

func (m *machineImpl) Broadcast(ctx context.Context, root int, payload []byte) ([]byte, error) {
	if root < 0 || root >= m.Size() {
		return nil, fmt.Errorf("comm: broadcast root %d out of range", root)
	}
	out := make([][]byte, m.Size())
	if m.Rank() == root {
		for p := range out {
			out[p] = payload
		}
	}
	in, err := m.Exchange(ctx, out)
	if err != nil {
		return nil, err
	}
	return in[root], nil
}

// reduce runs one all-to-all round carrying a single int64 per rank and
// folds the received values. With every rank contributing to every other,
// each rank computes the identical result without a coordinator.
func (m *machineImpl) reduce(ctx context.Context, v int64, fold func(a, b int64) int64) (int64, error) {
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], uint64(v))
	out := make([][]byte, m.Size())
	for p := range out {
		out[p] = enc[:]
	}
	in, err := m.Exchange(ctx, out)
	if err != nil {
		return 0, err
	}
	acc := v
	for p, msg := range in {
		if len(msg) != 8 {
			return 0, fmt.Errorf("comm: malformed reduction message from rank %d", p)
		}
		acc = fold(acc, int64(binary.BigEndian.Uint64(msg)))
	}
	return acc, nil
}

func (m *machineImpl) AllReduceMin(ctx context.Context, v int64) (int64, error) {
	return m.reduce(ctx, v, func(a, b int64) int64 {
		if b < a {
			return b
		}
		return a
	})
}

func (m *machineImpl) AllReduceMax(ctx context.Context, v int64) (int64, error) {
	return m.reduce(ctx, v, func(a, b int64) int64 {
		if b > a {
			return b
		}
		return a
	})
}

func (m *machineImpl) AllReduceSum(ctx context.Context, v int64) (int64, error) {
	// The exchange echoes our own value back from recvs[rank], so start
	// the accumulator at zero, not at v.
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], uint64(v))
	out := make([][]byte, m.Size())
	for p := range out {
		out[p] = enc[:]
	}
	in, err := m.Exchange(ctx, out)
	if err != nil {
		return 0, err
	}
	var acc int64
	for p, msg := range in {
		if len(msg) != 8 {
			return 0, fmt.Errorf("comm: malformed reduction message from rank %d", p)
		}
		acc += int64(binary.BigEndian.Uint64(msg))
	}
	return acc, nil
}
