package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dMesh/cmd/util"
	"github.com/ValentinKolb/dMesh/comm/common"
	"github.com/ValentinKolb/dMesh/comm/transport/channel"
	"github.com/ValentinKolb/dMesh/lib/ghost"
	"github.com/ValentinKolb/dMesh/lib/mesh"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the synchronization protocol",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
)

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	simRanks = viper.GetInt("ranks")
	simElements = viper.GetInt("element-count")

	if simRanks < 1 {
		return fmt.Errorf("invalid rank count %d", simRanks)
	}
	if simElements < simRanks {
		return fmt.Errorf("element count %d must be at least the rank count %d", simElements, simRanks)
	}

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	common.InitLoggers(viper.GetString("log-level"))

	fmt.Println("Performance testing tool for the synchronization protocol")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Ranks:    %d\n", simRanks)
	fmt.Printf("Elements: %d\n", simElements)
	fmt.Println()

	fmt.Println("starting tests...")

	// full-sync: build the mesh from scratch and run the complete round
	// of aura regeneration plus one custom ghost change
	timer := gometrics.NewTimer()
	fullSyncResult := testing.Benchmark(func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			start := time.Now()
			if _, err := runSimulation(simRanks, simElements); err != nil {
				b.Fatalf("simulation failed: %v", err)
			}
			timer.UpdateSince(start)
		}
	})
	printResult("full-sync", fullSyncResult)

	// change: build the mesh once, then repeatedly add and remove a
	// single custom ghost
	changeResult := testing.Benchmark(benchChange)
	printResult("change", changeResult)

	// print latency percentiles for the full-sync rounds
	ps := timer.Percentiles([]float64{0.5, 0.9, 0.99})
	fmt.Println()
	fmt.Printf("full-sync latency: p50=%s p90=%s p99=%s\n",
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]))

	return nil
}

// benchChange measures repeated single-entity ghost changes against a
// mesh that is built once per benchmark run
func benchChange(b *testing.B) {
	hub := channel.NewHub(simRanks)
	start := make(chan struct{})
	ready := make(chan struct{}, simRanks)
	errs := make([]error, simRanks)

	var wg sync.WaitGroup
	for r := 0; r < simRanks; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			errs[rank] = changeRank(hub, rank, simRanks, simElements, ready, start, b.N)
		}(r)
	}

	// wait until every rank has built its mesh, then start the clock
	for i := 0; i < simRanks; i++ {
		<-ready
	}
	b.ResetTimer()
	close(start)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			b.Fatalf("change round failed: %v", err)
		}
	}
}

// changeRank builds the local mesh and then runs n rounds of adding and
// removing a single custom ghost of rank 0's first element on the last
// rank
func changeRank(hub *channel.Hub, rank, ranks, elements int, ready chan<- struct{}, start <-chan struct{}, n int) error {
	ctx := context.Background()

	tr, err := hub.Attach(rank)
	if err != nil {
		return err
	}
	defer tr.Close()

	db, firstElem, err := buildRank(tr, rank, ranks, elements)
	if err != nil {
		return err
	}
	if err := db.RegenerateSharedAura(ctx); err != nil {
		return err
	}
	custom, err := db.CreateGhosting(ctx, "perf")
	if err != nil {
		return err
	}

	ready <- struct{}{}
	<-start

	elemKey := db.Entity(firstElem).Key
	for i := 0; i < n; i++ {
		// add: only rank 0 requests the send
		var add []ghost.EntityProc
		if rank == 0 && ranks > 1 {
			add = append(add, ghost.EntityProc{Entity: firstElem, Proc: ranks - 1})
		}
		if err := db.ChangeGhosting(ctx, custom, add, nil); err != nil {
			return err
		}

		// remove: the receiving rank gives the ghost back up
		var remove []mesh.Handle
		if rank == ranks-1 && ranks > 1 {
			if h, ok := db.Find(elemKey); ok {
				remove = append(remove, h)
			}
		}
		if err := db.ChangeGhosting(ctx, custom, nil, remove); err != nil {
			return err
		}
	}

	return nil
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}
