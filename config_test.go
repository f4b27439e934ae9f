package cfr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	err := os.WriteFile(path, []byte(`
n_iterations: 1000
n_players: 2
c: -5000
lut_path: /data/lut
save_path: /data/blueprint
`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	want := DefaultConfig()
	want.NIterations = 1000
	want.NPlayers = 2
	want.C = -5000
	want.LUTPath = "/data/lut"
	want.SavePath = "/data/blueprint"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("loaded config (-want +got):\n%s", diff)
	}

	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}

	if p := cfg.CheckpointPath(); p != "/data/blueprint/checkpoints" {
		t.Errorf("unexpected checkpoint path %q", p)
	}

	if p := cfg.DumpPath(); p != "/data/blueprint/agent.gob" {
		t.Errorf("unexpected dump path %q", p)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("LCFR_SEED", "7")
	t.Setenv("LCFR_WORKERS", "4")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Seed != 7 || cfg.Workers != 4 {
		t.Errorf("environment not applied: seed %d, workers %d", cfg.Seed, cfg.Workers)
	}

	if cfg.NIterations != DefaultConfig().NIterations {
		t.Errorf("default not applied: %d iterations", cfg.NIterations)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}

	for name, mutate := range map[string]func(*Config){
		"rank range":     func(c *Config) { c.LowCardRank = 14 },
		"too many":       func(c *Config) { c.NPlayers = 8 },
		"one player":     func(c *Config) { c.NPlayers = 1 },
		"rounds":         func(c *Config) { c.NRounds = 5 },
		"blinds":         func(c *Config) { c.BigBlind = c.SmallBlind },
		"interval":       func(c *Config) { c.DiscountInterval = 0 },
		"positive floor": func(c *Config) { c.C = 1 },
		"epsilon":        func(c *Config) { c.FullTraversalProbability = 1.5 },
		"workers":        func(c *Config) { c.Workers = 0 },
		"strategy round": func(c *Config) { c.StrategyRounds = 5 },
		"save path":      func(c *Config) { c.SavePath = "" },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestScaleSchedule(t *testing.T) {
	cfg := DefaultConfig().ScaleSchedule(10)
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	if cfg.NIterations != 10 || cfg.CheckpointInterval < 1 || cfg.DiscountInterval < 1 {
		t.Errorf("unexpected scaled schedule: %+v", cfg)
	}
}

func TestScheduleEqual(t *testing.T) {
	a := DefaultConfig()
	b := a
	b.NIterations *= 2
	b.SavePath = "/elsewhere"
	b.CheckpointKeep = 1
	if !a.ScheduleEqual(b) {
		t.Error("iteration count and paths should not affect the schedule")
	}

	b.Workers = 8
	if a.ScheduleEqual(b) {
		t.Error("parallel traversals change the schedule")
	}

	c := a
	c.PruneThreshold++
	if a.ScheduleEqual(c) {
		t.Error("prune threshold is part of the schedule")
	}
}
