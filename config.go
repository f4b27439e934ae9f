package cfr

import (
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

// Config holds the options of a training run.
//
// Every field that influences the schedule is part of a checkpoint, and a
// run may only be resumed under a Config with the same schedule.
type Config struct {
	// Card range of the abstracted deck, inclusive (2..14, ace high).
	LowCardRank  int `yaml:"low_card_rank" env:"LCFR_LOW_CARD_RANK" env-default:"10"`
	HighCardRank int `yaml:"high_card_rank" env:"LCFR_HIGH_CARD_RANK" env-default:"14"`
	NPlayers     int `yaml:"n_players" env:"LCFR_N_PLAYERS" env-default:"3"`
	// Number of betting rounds played (1 = preflop only, 4 = through the river).
	NRounds    int `yaml:"n_rounds" env:"LCFR_N_ROUNDS" env-default:"4"`
	MaxRaises  int `yaml:"max_raises" env:"LCFR_MAX_RAISES" env-default:"3"`
	SmallBlind int `yaml:"small_blind" env:"LCFR_SMALL_BLIND" env-default:"50"`
	BigBlind   int `yaml:"big_blind" env:"LCFR_BIG_BLIND" env-default:"100"`

	NIterations int `yaml:"n_iterations" env:"LCFR_N_ITERATIONS" env-default:"1000000"`
	// Linear discounting applies while t < LCFRThreshold, every DiscountInterval.
	LCFRThreshold    int `yaml:"lcfr_threshold" env:"LCFR_LCFR_THRESHOLD" env-default:"200000"`
	DiscountInterval int `yaml:"discount_interval" env:"LCFR_DISCOUNT_INTERVAL" env-default:"50000"`
	// Pruned traversals are possible once t > PruneThreshold.
	PruneThreshold int `yaml:"prune_threshold" env:"LCFR_PRUNE_THRESHOLD" env-default:"125000"`
	// Strategy weights accumulate once t > UpdateThreshold, every StrategyInterval.
	UpdateThreshold  int `yaml:"update_threshold" env:"LCFR_UPDATE_THRESHOLD" env-default:"20000"`
	StrategyInterval int `yaml:"strategy_interval" env:"LCFR_STRATEGY_INTERVAL" env-default:"100"`
	// Betting rounds in which strategy weights accumulate; 0 means all.
	StrategyRounds     int `yaml:"strategy_rounds" env:"LCFR_STRATEGY_ROUNDS" env-default:"0"`
	DumpIteration      int `yaml:"dump_iteration" env:"LCFR_DUMP_ITERATION" env-default:"5000"`
	CheckpointInterval int `yaml:"checkpoint_interval" env:"LCFR_CHECKPOINT_INTERVAL" env-default:"50000"`
	CheckpointKeep     int `yaml:"checkpoint_keep" env:"LCFR_CHECKPOINT_KEEP" env-default:"5"`

	// C is both the regret floor and the pruning threshold.
	C float64 `yaml:"c" env:"LCFR_C" env-default:"-310000000"`
	// Probability of a full traversal once pruning is eligible.
	FullTraversalProbability float64 `yaml:"full_traversal_probability" env:"LCFR_FULL_TRAVERSAL_PROBABILITY" env-default:"0.05"`

	Seed int64 `yaml:"seed" env:"LCFR_SEED" env-default:"42"`
	// Number of goroutines running per-player traversals. With 1, players
	// traverse in order and each sees the updates of the previous ones.
	Workers int `yaml:"workers" env:"LCFR_WORKERS" env-default:"1"`

	LUTPath       string `yaml:"lut_path" env:"LCFR_LUT_PATH"`
	LUTBackend    string `yaml:"lut_backend" env:"LCFR_LUT_BACKEND" env-default:"leveldb"`
	SavePath      string `yaml:"save_path" env:"LCFR_SAVE_PATH" env-default:"./research/blueprint"`
	CheckpointDir string `yaml:"checkpoint_dir" env:"LCFR_CHECKPOINT_DIR"`
	Nickname      string `yaml:"nickname" env:"LCFR_NICKNAME"`
}

// DumpFileName is the name of the strategy dump inside Config.SavePath.
const DumpFileName = "agent.gob"

// LoadConfig reads a YAML configuration file, applying environment
// overrides and defaults. With an empty path only the environment is read.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&cfg)
	} else {
		err = cleanenv.ReadConfig(path, &cfg)
	}

	if err != nil {
		return cfg, errors.Wrapf(err, "load config %q", path)
	}

	return cfg, nil
}

// DefaultConfig returns the configuration with every default applied
// and no environment overrides.
func DefaultConfig() Config {
	return Config{
		LowCardRank:              10,
		HighCardRank:             14,
		NPlayers:                 3,
		NRounds:                  4,
		MaxRaises:                3,
		SmallBlind:               50,
		BigBlind:                 100,
		NIterations:              1000000,
		LCFRThreshold:            200000,
		DiscountInterval:         50000,
		PruneThreshold:           125000,
		UpdateThreshold:          20000,
		StrategyInterval:         100,
		DumpIteration:            5000,
		CheckpointInterval:       50000,
		CheckpointKeep:           5,
		C:                        -310000000,
		FullTraversalProbability: 0.05,
		Seed:                     42,
		Workers:                  1,
		LUTBackend:               "leveldb",
		SavePath:                 "./research/blueprint",
	}
}

// ScaleSchedule sets the iteration count and derives the schedule
// thresholds from it, keeping the intervals at the same fractions of the
// run as the defaults.
func (c Config) ScaleSchedule(n int) Config {
	c.NIterations = n
	c.LCFRThreshold = n / 5
	c.DiscountInterval = max(n/20, 1)
	c.PruneThreshold = n / 8
	c.UpdateThreshold = n / 50
	c.CheckpointInterval = max(n/20, 1)
	c.DumpIteration = max(c.CheckpointInterval/10, 1)
	return c
}

// DumpPath returns the location of the strategy dump.
func (c Config) DumpPath() string {
	return filepath.Join(c.SavePath, DumpFileName)
}

// CheckpointPath returns the directory holding checkpoints.
func (c Config) CheckpointPath() string {
	if c.CheckpointDir != "" {
		return c.CheckpointDir
	}
	return filepath.Join(c.SavePath, "checkpoints")
}

// Validate reports the first inconsistency in the configuration.
func (c Config) Validate() error {
	switch {
	case c.LowCardRank < 2 || c.HighCardRank > 14 || c.LowCardRank >= c.HighCardRank:
		return errors.Errorf("invalid card range [%d, %d]", c.LowCardRank, c.HighCardRank)
	case c.NPlayers < 2:
		return errors.Errorf("need at least 2 players, got %d", c.NPlayers)
	case 2*c.NPlayers+5 > 4*(c.HighCardRank-c.LowCardRank+1):
		return errors.Errorf("deck of ranks [%d, %d] cannot deal %d players and a board",
			c.LowCardRank, c.HighCardRank, c.NPlayers)
	case c.NRounds < 1 || c.NRounds > 4:
		return errors.Errorf("n_rounds must be in [1, 4], got %d", c.NRounds)
	case c.MaxRaises < 0:
		return errors.Errorf("max_raises must be non-negative, got %d", c.MaxRaises)
	case c.SmallBlind <= 0 || c.BigBlind <= c.SmallBlind:
		return errors.Errorf("invalid blinds %d/%d", c.SmallBlind, c.BigBlind)
	case c.NIterations < 1:
		return errors.Errorf("n_iterations must be positive, got %d", c.NIterations)
	case c.DiscountInterval < 1 || c.StrategyInterval < 1 || c.DumpIteration < 1 || c.CheckpointInterval < 1:
		return errors.New("discount_interval, strategy_interval, dump_iteration and checkpoint_interval must be positive")
	case c.LCFRThreshold < 0 || c.PruneThreshold < 0 || c.UpdateThreshold < 0:
		return errors.New("thresholds must be non-negative")
	case c.StrategyRounds < 0 || c.StrategyRounds > c.NRounds:
		return errors.Errorf("strategy_rounds must be in [0, %d], got %d", c.NRounds, c.StrategyRounds)
	case c.CheckpointKeep < 1:
		return errors.Errorf("checkpoint_keep must be at least 1, got %d", c.CheckpointKeep)
	case c.C >= 0:
		return errors.Errorf("regret floor c must be negative, got %v", c.C)
	case c.FullTraversalProbability < 0 || c.FullTraversalProbability > 1:
		return errors.Errorf("full_traversal_probability must be in [0, 1], got %v", c.FullTraversalProbability)
	case c.Workers < 1:
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	case c.SavePath == "":
		return errors.New("save_path is required")
	}

	return nil
}

// ScheduleEqual reports whether two configurations make identical
// training decisions, so that a run checkpointed under one can be resumed
// under the other. The iteration count and output locations may differ.
func (c Config) ScheduleEqual(o Config) bool {
	return c.LowCardRank == o.LowCardRank &&
		c.HighCardRank == o.HighCardRank &&
		c.NPlayers == o.NPlayers &&
		c.NRounds == o.NRounds &&
		c.MaxRaises == o.MaxRaises &&
		c.SmallBlind == o.SmallBlind &&
		c.BigBlind == o.BigBlind &&
		c.LCFRThreshold == o.LCFRThreshold &&
		c.DiscountInterval == o.DiscountInterval &&
		c.PruneThreshold == o.PruneThreshold &&
		c.UpdateThreshold == o.UpdateThreshold &&
		c.StrategyInterval == o.StrategyInterval &&
		c.StrategyRounds == o.StrategyRounds &&
		c.C == o.C &&
		c.FullTraversalProbability == o.FullTraversalProbability &&
		c.Seed == o.Seed &&
		(c.Workers > 1) == (o.Workers > 1)
}
