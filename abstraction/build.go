package abstraction

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math/rand"
	"runtime"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/pokerai/lcfr/card"
)

// BuildParams configure the construction of an abstraction table.
type BuildParams struct {
	LowRank  int
	HighRank int
	Rounds   int

	// Number of buckets for the flop, turn and river. Preflop hands
	// are bucketed losslessly and Clusters[0] is ignored.
	Clusters [MaxRounds]int

	// Number of Monte Carlo rollouts used to estimate hand strength.
	Samples int
	Workers int
	Seed    int64

	// Progress, if set, is called periodically from a single goroutine.
	Progress func(done, total int64)
}

// DefaultBuildParams are suitable for a 20-card short deck.
func DefaultBuildParams() BuildParams {
	return BuildParams{
		LowRank:  10,
		HighRank: 14,
		Rounds:   MaxRounds,
		Clusters: [MaxRounds]int{0, 50, 50, 50},
		Samples:  200,
		Workers:  runtime.NumCPU(),
		Seed:     42,
	}
}

func (p BuildParams) validate() error {
	if p.LowRank < card.MinRank || p.HighRank > card.MaxRank || p.LowRank >= p.HighRank {
		return errors.Errorf("invalid rank range [%d, %d]", p.LowRank, p.HighRank)
	}

	if p.Rounds < 1 || p.Rounds > MaxRounds {
		return errors.Errorf("rounds must be in [1, %d], got %d", MaxRounds, p.Rounds)
	}

	if nCards := card.NumSuits * (p.HighRank - p.LowRank + 1); nCards < 9 {
		return errors.Errorf("deck of %d cards is too small for hole cards, an opponent and a board", nCards)
	}

	for round := 1; round < p.Rounds; round++ {
		if p.Clusters[round] < 1 {
			return errors.Errorf("round %d needs at least one cluster", round)
		}
	}

	if p.Rounds > 1 && p.Samples < 1 {
		return errors.New("samples must be positive")
	}

	return nil
}

// NumCombos returns the number of table entries for the given round.
func NumCombos(low, high, round int) int64 {
	n := card.NumSuits * (high - low + 1)
	return choose(n, 2) * choose(n-2, BoardSize(round))
}

type entry struct {
	cards   []card.Card
	cluster int32
}

// Build computes every hole+board combination for p.Rounds betting rounds
// and writes its cluster to w. The output depends only on p, not on
// the number of workers. w is always closed.
func Build(ctx context.Context, p BuildParams, w Writer) error {
	if err := build(ctx, p, w); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}

func build(ctx context.Context, p BuildParams, w Writer) error {
	if err := p.validate(); err != nil {
		return err
	}

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	var total int64
	for round := 0; round < p.Rounds; round++ {
		total += NumCombos(p.LowRank, p.HighRank, round)
	}

	deck := card.NewDeck(p.LowRank, p.HighRank)
	glog.Infof("Building abstraction table: %d cards, %d rounds, %d combinations, %d workers",
		len(deck), p.Rounds, total, workers)

	var done int64
	for round := 0; round < p.Rounds; round++ {
		g, gctx := errgroup.WithContext(ctx)
		results := make(chan entry, 1024)

		for worker := 0; worker < workers; worker++ {
			worker := worker
			g.Go(func() error {
				return clusterShard(gctx, p, deck, round, worker, workers, results)
			})
		}

		consumerErr := make(chan error, 1)
		go func() {
			var err error
			for e := range results {
				if err != nil {
					continue
				}

				err = w.Put(e.cards, e.cluster)
				done++
				if p.Progress != nil && done%4096 == 0 {
					p.Progress(done, total)
				}
			}
			consumerErr <- err
		}()

		err := g.Wait()
		close(results)
		if cerr := <-consumerErr; err == nil {
			err = cerr
		}

		if err != nil {
			return errors.Wrapf(err, "build round %d", round)
		}

		glog.V(1).Infof("Finished round %d of abstraction table", round)
	}

	if p.Progress != nil {
		p.Progress(total, total)
	}

	return w.SetMeta(Meta{
		LowRank:  p.LowRank,
		HighRank: p.HighRank,
		Rounds:   p.Rounds,
		Clusters: p.clusterCounts(),
		Samples:  p.Samples,
		Seed:     p.Seed,
	})
}

func (p BuildParams) clusterCounts() [MaxRounds]int {
	counts := p.Clusters
	counts[0] = NumPreflopClusters
	for round := p.Rounds; round < MaxRounds; round++ {
		counts[round] = 0
	}
	return counts
}

// clusterShard computes clusters for every hole pair whose index is
// congruent to shard modulo nShards.
func clusterShard(ctx context.Context, p BuildParams, deck []card.Card, round, shard, nShards int, out chan<- entry) error {
	boardSize := BoardSize(round)
	pairIdx := 0
	var err error
	eachCombination(len(deck), 2, func(holeIdx []int) bool {
		defer func() { pairIdx++ }()
		if pairIdx%nShards != shard {
			return true
		}

		if ctx.Err() != nil {
			err = ctx.Err()
			return false
		}

		hole := []card.Card{deck[holeIdx[0]], deck[holeIdx[1]]}
		rest := card.Without(deck, hole)
		eachCombination(len(rest), boardSize, func(boardIdx []int) bool {
			cards := make([]card.Card, 2, 2+boardSize)
			copy(cards, hole)
			for _, i := range boardIdx {
				cards = append(cards, rest[i])
			}

			var cluster int32
			if round == 0 {
				cluster = PreflopCluster(hole[0], hole[1])
			} else {
				ehs := handStrength(deck, cards, p.Samples, rolloutSeed(p.Seed, cards))
				cluster = bucket(ehs, p.Clusters[round])
			}

			select {
			case out <- entry{cards, cluster}:
				return true
			case <-ctx.Done():
				err = ctx.Err()
				return false
			}
		})

		return err == nil
	})

	return err
}

// NumPreflopClusters is the number of distinct preflop hand classes.
const NumPreflopClusters = 2 * 13 * 13

// PreflopCluster returns the lossless class of a starting hand:
// its two ranks and whether it is suited.
func PreflopCluster(a, b card.Card) int32 {
	hi, lo := a.Rank(), b.Rank()
	if lo > hi {
		hi, lo = lo, hi
	}

	cluster := int32((hi-card.MinRank)*13 + (lo - card.MinRank))
	if a.Suit() == b.Suit() {
		cluster += 13 * 13
	}
	return cluster
}

func bucket(ehs float64, k int) int32 {
	b := int32(ehs * float64(k))
	if b >= int32(k) {
		b = int32(k) - 1
	}
	if b < 0 {
		b = 0
	}
	return b
}

func rolloutSeed(seed int64, cards []card.Card) int64 {
	key, _ := Key(cards)
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	h.Write(buf[:])
	h.Write(key)
	return int64(h.Sum64())
}

// handStrength estimates the probability of beating one random opponent
// at showdown, counting ties as half, over random completions of the board.
func handStrength(deck, cards []card.Card, samples int, seed int64) float64 {
	rng := rand.New(rand.NewSource(seed))
	hole, board := cards[:2], cards[2:]
	rest := card.Without(deck, cards)
	missing := 5 - len(board)

	hero := make([]card.Card, 7)
	villain := make([]card.Card, 7)
	copy(hero, hole)
	copy(hero[2:], board)

	var total float64
	for s := 0; s < samples; s++ {
		// Partial Fisher-Yates: the first 2+missing entries are the draw.
		for i := 0; i < 2+missing; i++ {
			j := i + rng.Intn(len(rest)-i)
			rest[i], rest[j] = rest[j], rest[i]
		}

		copy(hero[2+len(board):], rest[2:2+missing])
		copy(villain, rest[:2])
		copy(villain[2:], hero[2:])

		heroScore, villainScore := card.Evaluate(hero), card.Evaluate(villain)
		switch {
		case heroScore > villainScore:
			total += 1.0
		case heroScore == villainScore:
			total += 0.5
		}
	}

	return total / float64(samples)
}

// eachCombination calls fn with every k-subset of [0, n) in
// lexicographic order until fn returns false.
func eachCombination(n, k int, fn func(idx []int) bool) {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}

	if k > n {
		return
	}

	for {
		if !fn(idx) {
			return
		}

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}

		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func choose(n, k int) int64 {
	if k < 0 || k > n {
		return 0
	}

	result := int64(1)
	for i := 1; i <= k; i++ {
		result = result * int64(n-k+i) / int64(i)
	}
	return result
}
