package cfr

import (
	"math/rand"
	"testing"
)

func testSchedule() Schedule {
	cfg := DefaultConfig()
	cfg.LCFRThreshold = 400
	cfg.DiscountInterval = 10
	cfg.PruneThreshold = 200
	cfg.UpdateThreshold = 50
	cfg.StrategyInterval = 5
	cfg.DumpIteration = 20
	cfg.CheckpointInterval = 100
	return NewSchedule(cfg)
}

func TestSchedule_DiscountFactor(t *testing.T) {
	s := testSchedule()
	prev := 0.0
	for it := 10; it < 400; it += 10 {
		d := s.DiscountFactor(it)
		if d <= prev || d >= 1 {
			t.Fatalf("discount factor %v at iteration %d after %v", d, it, prev)
		}
		prev = d
	}

	if d := s.DiscountFactor(10); d != 0.5 {
		t.Errorf("expected factor 1/2 after the first interval, got %v", d)
	}
}

func TestSchedule_Discount(t *testing.T) {
	s := testSchedule()
	cases := map[int]bool{
		5:   false,
		10:  true,
		390: true,
		395: false,
		400: false,
		410: false,
	}

	for it, want := range cases {
		d, ok := s.Discount(it)
		if ok != want {
			t.Errorf("iteration %d: discount %v, expected %v", it, ok, want)
		}

		if !ok && d != 1 {
			t.Errorf("iteration %d: factor %v without discounting", it, d)
		}
	}
}

func TestSchedule_NoPruningBeforeThreshold(t *testing.T) {
	s := testSchedule()
	rng := rand.New(rand.NewSource(1))
	for it := 1; it <= 200; it++ {
		if s.PruningEligible(it) {
			t.Fatalf("pruning eligible at iteration %d", it)
		}

		if mode := s.Mode(it, rng); mode != FullTraversal {
			t.Fatalf("%v traversal at iteration %d", mode, it)
		}
	}
}

func TestSchedule_ModeMix(t *testing.T) {
	s := testSchedule()
	rng := rand.New(rand.NewSource(1))
	n, full := 20000, 0
	for i := 0; i < n; i++ {
		if s.Mode(201, rng) == FullTraversal {
			full++
		}
	}

	frac := float64(full) / float64(n)
	t.Logf("%.4f of traversals were full", frac)
	if frac < 0.03 || frac > 0.07 {
		t.Errorf("expected about 5%% full traversals, got %.4f", frac)
	}
}

func TestSchedule_Gating(t *testing.T) {
	s := testSchedule()
	for _, tc := range []struct {
		it                       int
		update, dump, checkpoint bool
	}{
		{it: 1},
		{it: 50},
		{it: 55, update: true},
		{it: 57},
		{it: 60, update: true, dump: true},
		{it: 100, update: true, dump: true, checkpoint: true},
		{it: 20},
	} {
		if got := s.ShouldUpdateStrategy(tc.it); got != tc.update {
			t.Errorf("iteration %d: update strategy %v, expected %v", tc.it, got, tc.update)
		}

		if got := s.ShouldDump(tc.it); got != tc.dump {
			t.Errorf("iteration %d: dump %v, expected %v", tc.it, got, tc.dump)
		}

		if got := s.ShouldCheckpoint(tc.it); got != tc.checkpoint {
			t.Errorf("iteration %d: checkpoint %v, expected %v", tc.it, got, tc.checkpoint)
		}
	}
}

func TestIterationSeed(t *testing.T) {
	seen := make(map[int64]bool)
	for it := 1; it <= 100; it++ {
		for p := 0; p < 4; p++ {
			seed := IterationSeed(42, it, p)
			if seed != IterationSeed(42, it, p) {
				t.Fatal("seed is not a function of its inputs")
			}

			if seen[seed] {
				t.Fatalf("seed collision at iteration %d player %d", it, p)
			}
			seen[seed] = true
		}
	}

	if IterationSeed(42, 1, 0) == IterationSeed(43, 1, 0) {
		t.Error("run seed has no effect")
	}
}
