package cfr

import (
	"math/rand"
)

// TraversalMode selects how a player's tree is walked on one iteration.
type TraversalMode int

const (
	// FullTraversal explores every action at the traverser's nodes.
	FullTraversal TraversalMode = iota
	// PrunedTraversal skips actions whose regret has reached the floor.
	PrunedTraversal
)

func (m TraversalMode) String() string {
	if m == PrunedTraversal {
		return "pruned"
	}
	return "full"
}

// Schedule decides, as a pure function of the iteration number,
// when each periodic operation of a training run takes place.
type Schedule struct {
	cfg Config
}

func NewSchedule(cfg Config) Schedule {
	return Schedule{cfg: cfg}
}

// ShouldUpdateStrategy reports whether strategy weights accumulate on iteration t.
func (s Schedule) ShouldUpdateStrategy(t int) bool {
	return t > s.cfg.UpdateThreshold && t%s.cfg.StrategyInterval == 0
}

// Discount returns the factor applied to every regret and strategy weight
// after iteration t, and whether discounting happens at all.
func (s Schedule) Discount(t int) (float64, bool) {
	if t >= s.cfg.LCFRThreshold || t%s.cfg.DiscountInterval != 0 {
		return 1.0, false
	}

	return s.DiscountFactor(t), true
}

// DiscountFactor is the linear CFR factor (t/DI) / (t/DI + 1).
// It is strictly increasing in t and always less than 1.
//
// See: https://arxiv.org/pdf/1809.04040.pdf
func (s Schedule) DiscountFactor(t int) float64 {
	x := float64(t) / float64(s.cfg.DiscountInterval)
	return x / (x + 1.0)
}

// PruningEligible reports whether iteration t may use pruned traversals.
func (s Schedule) PruningEligible(t int) bool {
	return t > s.cfg.PruneThreshold
}

// Mode picks the traversal mode for one player on iteration t.
// Once pruning is eligible, a full traversal is chosen with probability
// FullTraversalProbability. rng is only consumed when pruning is eligible.
func (s Schedule) Mode(t int, rng *rand.Rand) TraversalMode {
	if !s.PruningEligible(t) {
		return FullTraversal
	}

	if rng.Float64() < s.cfg.FullTraversalProbability {
		return FullTraversal
	}

	return PrunedTraversal
}

// ShouldDump reports whether the strategy dump is written after iteration t.
func (s Schedule) ShouldDump(t int) bool {
	return t > s.cfg.UpdateThreshold && t%s.cfg.DumpIteration == 0
}

// ShouldCheckpoint reports whether a checkpoint is taken after iteration t.
func (s Schedule) ShouldCheckpoint(t int) bool {
	return t%s.cfg.CheckpointInterval == 0
}

// IterationSeed derives the random seed used by one player's traversal on
// iteration t, so that any iteration can be replayed from a checkpoint.
func IterationSeed(seed int64, t, player int) int64 {
	x := uint64(seed)
	x = splitmix64(x ^ uint64(t))
	x = splitmix64(x ^ uint64(player))
	return int64(x)
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func iterationRand(seed int64, t, player int) *rand.Rand {
	return rand.New(rand.NewSource(IterationSeed(seed, t, player)))
}
