package sim

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ValentinKolb/dMesh/comm"
	"github.com/ValentinKolb/dMesh/comm/transport"
	"github.com/ValentinKolb/dMesh/comm/transport/channel"
	"github.com/ValentinKolb/dMesh/lib/field"
	"github.com/ValentinKolb/dMesh/lib/ghost"
	"github.com/ValentinKolb/dMesh/lib/mesh"
)

// entity ranks of the chain mesh
const (
	rankNode    uint8 = 0
	rankElement uint8 = 1
)

// rankSummary describes the local mesh of one rank after synchronization
type rankSummary struct {
	Rank         int
	Entities     int
	Shared       int
	AuraGhosts   int
	CustomGhosts int
}

func (s rankSummary) String() string {
	return fmt.Sprintf("rank %d: %d entities (%d shared, %d aura ghosts, %d custom ghosts)",
		s.Rank, s.Entities, s.Shared, s.AuraGhosts, s.CustomGhosts)
}

// runSimulation builds a 1-D chain of elements partitioned evenly across
// in-process ranks, regenerates the shared aura and then ghosts the first
// element of rank 0 onto the last rank via a custom layer. It returns one
// summary per rank.
func runSimulation(ranks, elements int) ([]rankSummary, error) {
	hub := channel.NewHub(ranks)
	summaries := make([]rankSummary, ranks)
	errs := make([]error, ranks)

	var wg sync.WaitGroup
	for r := 0; r < ranks; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			summaries[rank], errs[rank] = runRank(hub, rank, ranks, elements)
		}(r)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

// runRank builds and synchronizes the local portion of the chain mesh.
func runRank(hub *channel.Hub, rank, ranks, elements int) (rankSummary, error) {
	ctx := context.Background()

	tr, err := hub.Attach(rank)
	if err != nil {
		return rankSummary{}, err
	}
	defer tr.Close()

	db, firstElem, err := buildRank(tr, rank, ranks, elements)
	if err != nil {
		return rankSummary{}, err
	}

	if err := db.RegenerateSharedAura(ctx); err != nil {
		return rankSummary{}, err
	}

	// rank 0 pushes its first element onto the last rank via a custom layer
	custom, err := db.CreateGhosting(ctx, "custom")
	if err != nil {
		return rankSummary{}, err
	}
	var add []ghost.EntityProc
	if rank == 0 && ranks > 1 {
		add = append(add, ghost.EntityProc{Entity: firstElem, Proc: ranks - 1})
	}
	if err := db.ChangeGhosting(ctx, custom, add, nil); err != nil {
		return rankSummary{}, err
	}

	return summarize(db, custom), nil
}

// buildRank declares the local portion of the chain mesh.
//
// Rank r owns the contiguous element range [r*E/N, (r+1)*E/N) plus the
// nodes inside it. The node on the low boundary is shared with the
// previous rank, which also owns it. The returned handle is the rank's
// first element.
func buildRank(tr transport.Transport, rank, ranks, elements int) (*ghost.DB, mesh.Handle, error) {
	machine := comm.NewMachine(tr)
	meta := mesh.NewMeta(2)
	fields := field.NewBlobStore()
	db := ghost.NewDB(machine, meta, fields)

	lo := rank * elements / ranks
	hi := (rank + 1) * elements / ranks

	// declare the nodes lo..hi (ids are offset by one, id zero is reserved)
	nodes := make(map[int]mesh.Handle, hi-lo+1)
	for n := lo; n <= hi; n++ {
		owner := rank
		if n == lo && rank > 0 {
			owner = rank - 1
		}
		key := mesh.NewEntityKey(rankNode, uint64(n)+1)
		h, err := db.DeclareEntity(key, owner)
		if err != nil {
			return nil, mesh.NilHandle, err
		}
		nodes[n] = h
		if owner == rank {
			fields.Set(key, fieldValue(uint64(n)))
		}
	}

	// declare the elements and their downward node relations
	var firstElem mesh.Handle
	for i := lo; i < hi; i++ {
		key := mesh.NewEntityKey(rankElement, uint64(i)+1)
		h, err := db.DeclareEntity(key, rank)
		if err != nil {
			return nil, mesh.NilHandle, err
		}
		if i == lo {
			firstElem = h
		}
		if err := db.DeclareRelation(h, nodes[i]); err != nil {
			return nil, mesh.NilHandle, err
		}
		if err := db.DeclareRelation(h, nodes[i+1]); err != nil {
			return nil, mesh.NilHandle, err
		}
		fields.Set(key, fieldValue(uint64(i)))
	}

	// the boundary nodes are shared with the neighbouring ranks
	if rank > 0 {
		if err := db.DeclareSharing(nodes[lo], rank-1); err != nil {
			return nil, mesh.NilHandle, err
		}
	}
	if rank < ranks-1 {
		if err := db.DeclareSharing(nodes[hi], rank+1); err != nil {
			return nil, mesh.NilHandle, err
		}
	}

	return db, firstElem, nil
}

func summarize(db *ghost.DB, custom *ghost.Ghosting) rankSummary {
	s := rankSummary{Rank: db.Rank(), Entities: db.EntityCount()}
	aura := db.AuraLayer()
	for _, h := range db.CommEntities() {
		e := db.Entity(h)
		if e == nil {
			continue
		}
		if len(e.Sharing()) > 0 {
			s.Shared++
		}
		if db.InReceiveGhost(aura, h) {
			s.AuraGhosts++
		}
		if db.InReceiveGhost(custom, h) {
			s.CustomGhosts++
		}
	}
	return s
}

func fieldValue(id uint64) []byte {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, id)
	return v
}
