package benchmark

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/fogfactory/flow"
	"github.com/samber/lo"
)

// Profile generates a profile file. It will be outputted as flow_{date}_r{records}_b{bufferSize}_p{parallelism}.prof.
//
// - records Number of records read by the source.
// - bufferSize Buffer capacity of every node.
// - parallelism Number of workers of the transformation.
//
// use pprof to read the file (go install github.com/google/pprof@latest).
func Profile(records, bufferSize, parallelism int) {
	// Profile file
	f, err := os.Create(fmt.Sprintf("flow_%s_r%d_b%d_p%d.prof",
		strings.ReplaceAll(time.Now().Truncate(time.Second).Format(time.DateTime), " ", "-"),
		records, bufferSize, parallelism))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer f.Close()

	// Init engine
	cfg, err := flow.NewConfig(flow.Settings{DisableAllLogging: true, MaxBufferSize: bufferSize})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer cfg.Release()
	dumbProc := func(i int) int { time.Sleep(time.Microsecond); return i }
	source := flow.NewMemorySource(lo.Range(records), flow.WithConfig(cfg))
	transformation := flow.NewRowTransformation(flow.AsTransform(dumbProc), flow.WithConfig(cfg), flow.WithParallelism(parallelism))
	multicast, _ := flow.NewMulticast[int](flow.WithConfig(cfg))
	sort := flow.NewSort(func(a, b int) int { return a - b }, flow.WithConfig(cfg))
	source.LinkTo(transformation)
	transformation.LinkTo(multicast)
	multicast.LinkTo(sort)
	multicast.LinkTo(flow.NewVoidDestination[int](flow.WithConfig(cfg)))
	sort.LinkTo(flow.NewVoidDestination[int](flow.WithConfig(cfg)))

	fmt.Println("records: ", records, ", minimal seq duration:", time.Duration(records)*time.Microsecond)

	// Start profiling
	func() {
		_ = pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()

		start := time.Now()
		if err := flow.Run(context.Background(), source); err != nil {
			fmt.Println(err)
		}
		fmt.Printf("(par: %s)\n", time.Since(start))
	}()

	val := 0
	start := time.Now()
	for range records {
		val = dumbProc(val)
	}
	fmt.Printf("(seq: %s)\n", time.Since(start))
	fmt.Printf("profile:%s\n", f.Name())

	// Call pprof on a file
	// pprof -http=:8080 $file
	// On all files
	// source <(ls | grep .prof | nl | awk '{print "pprof -http=:"$1 + 8080, $2,$3,"&"}')
}
