// Build the card abstraction table used to cluster short-deck hands.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/schollz/progressbar/v3"

	"github.com/pokerai/lcfr/abstraction"
	_ "github.com/pokerai/lcfr/abstraction/rdb"
)

func main() {
	params := abstraction.DefaultBuildParams()
	output := flag.String("output", "", "Path of the table to create")
	backend := flag.String("backend", "leveldb", "Storage engine (leveldb, or rocksdb if built with -tags rocksdb)")
	flag.IntVar(&params.LowRank, "low_rank", params.LowRank, "Lowest card rank in the deck (2-14)")
	flag.IntVar(&params.HighRank, "high_rank", params.HighRank, "Highest card rank in the deck (2-14)")
	flag.IntVar(&params.Rounds, "rounds", params.Rounds, "Number of betting rounds to cluster")
	flop := flag.Int("flop_clusters", params.Clusters[1], "Number of flop clusters")
	turn := flag.Int("turn_clusters", params.Clusters[2], "Number of turn clusters")
	river := flag.Int("river_clusters", params.Clusters[3], "Number of river clusters")
	flag.IntVar(&params.Samples, "samples", params.Samples, "Monte Carlo rollouts per hand")
	flag.IntVar(&params.Workers, "workers", runtime.NumCPU(), "Number of worker goroutines")
	flag.Int64Var(&params.Seed, "seed", params.Seed, "Random seed")
	flag.Parse()

	if *output == "" {
		glog.Exit("-output is required")
	}

	params.Clusters[1], params.Clusters[2], params.Clusters[3] = *flop, *turn, *river
	var total int64
	for round := 0; round < params.Rounds; round++ {
		total += abstraction.NumCombos(params.LowRank, params.HighRank, round)
	}

	bar := progressbar.Default(total, "clustering")
	params.Progress = func(done, _ int64) {
		bar.Set64(done)
	}

	w, err := abstraction.CreateWith(*backend, *output)
	if err != nil {
		glog.Exit(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := abstraction.Build(ctx, params, w); err != nil {
		glog.Exitf("Building %s: %v", *output, err)
	}
	bar.Finish()

	glog.Infof("Wrote %s hands to %s in %v", humanize.Comma(total), *output, time.Since(start))
}
