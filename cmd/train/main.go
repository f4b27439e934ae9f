// Train a short-deck hold'em blueprint strategy with linear, pruned
// Monte Carlo CFR, checkpointing so that the run can be resumed.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/pokerai/lcfr"
	"github.com/pokerai/lcfr/abstraction"
	_ "github.com/pokerai/lcfr/abstraction/rdb"
	"github.com/pokerai/lcfr/checkpoint"
	"github.com/pokerai/lcfr/runlog"
	"github.com/pokerai/lcfr/shortdeck"
)

type options struct {
	configPath   string
	nickname     string
	resume       bool
	resumeFailed bool
	runlogPath   string
	cacheSize    int
	progress     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML configuration file; if empty, only LCFR_* environment variables are read")
	flag.StringVar(&opts.nickname, "nickname", "", "Name of the run, overriding the configuration")
	flag.BoolVar(&opts.resume, "resume", true, "Resume from the latest checkpoint if there is one")
	flag.BoolVar(&opts.resumeFailed, "resume_failed", false, "Resume even if the last run with this nickname failed")
	flag.StringVar(&opts.runlogPath, "runlog", "", "Run registry database (default: <save_path>/runs.db)")
	flag.IntVar(&opts.cacheSize, "lut_cache", abstraction.DefaultCacheSize, "Number of clusters cached in memory")
	flag.BoolVar(&opts.progress, "progress", true, "Show a progress bar")
	flag.Parse()

	status, err := train(opts)
	glog.Flush()
	if err != nil {
		glog.Exitf("Training %v: %v", status, err)
	}

	glog.Infof("Training %v", status)
}

func train(opts options) (cfr.Status, error) {
	cfg, err := cfr.LoadConfig(opts.configPath)
	if err != nil {
		return cfr.StatusFailed, err
	}

	if opts.nickname != "" {
		cfg.Nickname = opts.nickname
	}
	if cfg.Nickname == "" {
		cfg.Nickname = filepath.Base(cfg.SavePath)
	}

	if err := cfg.Validate(); err != nil {
		return cfr.StatusFailed, errors.Wrap(err, "invalid configuration")
	}

	lut, err := abstraction.OpenWith(cfg.LUTBackend, cfg.LUTPath, opts.cacheSize)
	if err != nil {
		return cfr.StatusFailed, errors.Wrap(err, "open abstraction table")
	}
	defer lut.Close()

	if err := lut.Meta().Check(cfg.LowCardRank, cfg.HighCardRank, cfg.NRounds); err != nil {
		return cfr.StatusFailed, err
	}

	game, err := shortdeck.New(shortdeck.ParamsFromConfig(cfg), lut)
	if err != nil {
		return cfr.StatusFailed, err
	}

	trainer, err := cfr.NewTrainer(cfg, game)
	if err != nil {
		return cfr.StatusFailed, err
	}

	checkpoints, err := checkpoint.New(cfg.CheckpointPath(), cfg.CheckpointKeep)
	if err != nil {
		return cfr.StatusFailed, err
	}
	trainer.SetCheckpointer(checkpoints)

	runlogPath := opts.runlogPath
	if runlogPath == "" {
		runlogPath = filepath.Join(cfg.SavePath, "runs.db")
	}

	registry, err := runlog.Open(runlogPath)
	if err != nil {
		return cfr.StatusFailed, err
	}
	defer registry.Close()

	if opts.resume {
		if err := restore(trainer, checkpoints, registry, cfg.Nickname, opts.resumeFailed); err != nil {
			return cfr.StatusFailed, err
		}
	}

	run, err := registry.Start(cfg.Nickname, cfg)
	if err != nil {
		return cfr.StatusFailed, err
	}
	trainer.SetRecorder(run)
	glog.Infof("Starting run %s (%s) at iteration %d of %s", run.ID, cfg.Nickname,
		trainer.Iteration(), humanize.Comma(int64(cfg.NIterations)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress func(cfr.Progress)
	if opts.progress {
		bar := progressbar.Default(int64(cfg.NIterations), "training")
		bar.Set(trainer.Iteration())
		progress = func(p cfr.Progress) {
			bar.Set(p.Iteration)
		}
		defer bar.Finish()
	}

	return trainer.Run(ctx, progress)
}

// restore loads the latest checkpoint into trainer, refusing to silently
// pick up where a failed run left off.
func restore(trainer *cfr.Trainer, checkpoints *checkpoint.Manager, registry *runlog.Registry, nickname string, resumeFailed bool) error {
	last, err := registry.LastRun(nickname)
	if err != nil {
		return err
	}

	if last != nil && last.Failed() && !resumeFailed {
		return errors.Errorf("last run %s of %q failed at iteration %d (%s); pass -resume_failed to continue from its checkpoint",
			last.ID, nickname, last.Iteration, last.Error)
	}

	snap, err := checkpoints.LoadLatest()
	if err != nil {
		return err
	}

	if snap == nil {
		glog.Infof("No checkpoint in %s, starting from scratch", checkpoints.Dir())
		return nil
	}

	return trainer.Restore(snap)
}
