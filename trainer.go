package cfr

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of a training run.
type Status int

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusInterrupted
	StatusFailed
)

var statusStr = [...]string{"running", "completed", "interrupted", "failed"}

func (s Status) String() string {
	if int(s) < len(statusStr) {
		return statusStr[s]
	}
	return fmt.Sprintf("Status(%d)", s)
}

// Snapshot is the state needed to resume training after Iteration.
type Snapshot struct {
	Iteration int
	Config    Config
	Tables
}

// Checkpointer persists snapshots.
type Checkpointer interface {
	// Save durably stores snap and returns its id.
	Save(snap *Snapshot) (string, error)
}

// RunRecorder is told about the milestones of a run. It may be called
// from a goroutine other than the one calling Run.
type RunRecorder interface {
	CheckpointSaved(iteration int, id string)
	Finished(status Status, iteration int, err error)
}

// Progress is reported to the caller of Run after each iteration.
type Progress struct {
	Iteration   int
	NIterations int
	InfoSets    int
	Elapsed     time.Duration
}

// Trainer runs the CFR iterations of a training run, discounting,
// dumping and checkpointing on schedule.
type Trainer struct {
	cfg    Config
	dealer Dealer
	sched  Schedule
	exec   *Executor
	store  *Store
	iter   int

	checkpointer   Checkpointer
	recorder       RunRecorder
	lastCheckpoint int
	saving         chan bool
	pending        int
}

// NewTrainer returns a Trainer that starts from iteration 0 with an
// empty store.
func NewTrainer(cfg Config, dealer Dealer) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	if n := dealer.NumPlayers(); n != cfg.NPlayers {
		return nil, errors.Errorf("game has %d players but configuration has %d", n, cfg.NPlayers)
	}

	return &Trainer{
		cfg:    cfg,
		dealer: dealer,
		sched:  NewSchedule(cfg),
		exec:   NewExecutor(cfg.C, cfg.StrategyRounds),
		store:  NewStore(cfg.C),
	}, nil
}

// SetCheckpointer enables checkpoints.
func (t *Trainer) SetCheckpointer(c Checkpointer) {
	t.checkpointer = c
}

// SetRecorder registers a RunRecorder.
func (t *Trainer) SetRecorder(r RunRecorder) {
	t.recorder = r
}

// Restore continues training from a snapshot. The snapshot must have been
// taken under a configuration with the same schedule.
func (t *Trainer) Restore(snap *Snapshot) error {
	if !t.cfg.ScheduleEqual(snap.Config) {
		return errors.Errorf("checkpoint at iteration %d was taken with an incompatible configuration: %+v",
			snap.Iteration, snap.Config)
	}

	t.store = NewStoreFromTables(t.cfg.C, snap.Tables)
	t.iter = snap.Iteration
	t.lastCheckpoint = snap.Iteration
	glog.Infof("Restored %s information sets at iteration %d",
		humanize.Comma(int64(t.store.Len())), t.iter)
	return nil
}

// Iteration returns the last completed iteration.
func (t *Trainer) Iteration() int {
	return t.iter
}

// Store returns the regrets and strategy weights being trained.
// It must not be written to while Run is in progress.
func (t *Trainer) Store() *Store {
	return t.store
}

// Run performs iterations until NIterations is reached or ctx is done.
//
// Cancellation is only observed between iterations: the interrupted run
// returns StatusInterrupted and a nil error, and leaves the last checkpoint
// and dump in place. If an iteration fails, its partial updates are
// discarded, a best-effort checkpoint of the last completed iteration is
// taken, and StatusFailed is returned with the error.
func (t *Trainer) Run(ctx context.Context, progress func(Progress)) (Status, error) {
	start := time.Now()
	glog.Infof("Training iterations %d to %d with %d players, %d workers",
		t.iter+1, t.cfg.NIterations, t.cfg.NPlayers, t.cfg.Workers)

	for it := t.iter + 1; it <= t.cfg.NIterations; it++ {
		select {
		case <-ctx.Done():
			glog.Infof("Stopping after iteration %d: %v", t.iter, ctx.Err())
			t.waitForCheckpoint()
			t.finish(StatusInterrupted, nil)
			return StatusInterrupted, nil
		default:
		}

		if err := t.iterate(it); err != nil {
			return t.fail(errors.Wrapf(err, "iteration %d", it))
		}

		t.iter = it
		if d, ok := t.sched.Discount(it); ok {
			t.store.Discount(d)
		}

		if t.sched.ShouldDump(it) {
			if err := t.writeDump(); err != nil {
				glog.Warningf("Strategy dump after iteration %d failed: %v", it, err)
			}
		}

		if t.sched.ShouldCheckpoint(it) {
			t.checkpoint()
		}

		if progress != nil {
			progress(Progress{
				Iteration:   it,
				NIterations: t.cfg.NIterations,
				InfoSets:    t.store.Len(),
				Elapsed:     time.Since(start),
			})
		}
	}

	if err := t.writeDump(); err != nil {
		return t.fail(errors.Wrap(err, "final strategy dump"))
	}

	t.waitForCheckpoint()
	if t.iter > t.lastCheckpoint {
		t.checkpoint()
	}

	t.waitForCheckpoint()
	glog.Infof("Training finished at iteration %d after %v: %s information sets",
		t.iter, time.Since(start), humanize.Comma(int64(t.store.Len())))
	t.finish(StatusCompleted, nil)
	return StatusCompleted, nil
}

// iterate runs one iteration of every player's traversals and commits
// their updates to the store. On error the store is left untouched.
func (t *Trainer) iterate(it int) error {
	n := t.dealer.NumPlayers()
	if t.cfg.Workers <= 1 {
		tx := newTxn(t.store)
		for p := 0; p < n; p++ {
			if err := safely(func() error { return t.traverse(tx, it, p) }); err != nil {
				return errors.Wrapf(err, "player %d", p)
			}
		}

		tx.commit()
		glog.V(2).Infof("Iteration %d updated %d entries", it, tx.len())
		return nil
	}

	txns := make([]*txn, n)
	g := new(errgroup.Group)
	g.SetLimit(t.cfg.Workers)
	for p := 0; p < n; p++ {
		p := p
		txns[p] = newTxn(t.store)
		g.Go(func() error {
			err := safely(func() error { return t.traverse(txns[p], it, p) })
			return errors.Wrapf(err, "player %d", p)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, tx := range txns {
		tx.commitDelta()
	}

	return nil
}

// traverse deals player a hand of its own and runs their share of
// iteration it on it.
func (t *Trainer) traverse(rs RegretStore, it, player int) error {
	rng := iterationRand(t.cfg.Seed, it, player)
	root, err := t.dealer.Deal(rng)
	if err != nil {
		return errors.Wrap(err, "deal")
	}

	if t.sched.ShouldUpdateStrategy(it) {
		if err := t.exec.UpdateStrategy(rs, root, player, rng); err != nil {
			return errors.Wrap(err, "update strategy")
		}
	}

	switch mode := t.sched.Mode(it, rng); mode {
	case PrunedTraversal:
		_, err = t.exec.PrunedCFR(rs, root, player, rng)
	default:
		_, err = t.exec.CFR(rs, root, player, rng)
	}

	return err
}

// safely converts a panic in fn into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("Recovered from panic: %v\n%s", r, debug.Stack())
			err = errors.Errorf("panic: %v", r)
		}
	}()

	return fn()
}

func (t *Trainer) fail(err error) (Status, error) {
	glog.Errorf("Training failed: %v", err)
	t.waitForCheckpoint()
	if t.checkpointer != nil && t.iter > t.lastCheckpoint {
		glog.Infof("Saving best-effort checkpoint of iteration %d", t.iter)
		if t.saveCheckpoint(t.snapshot()) {
			t.lastCheckpoint = t.iter
		}
	}

	t.finish(StatusFailed, err)
	return StatusFailed, err
}

func (t *Trainer) finish(status Status, err error) {
	if t.recorder != nil {
		t.recorder.Finished(status, t.iter, err)
	}
}

func (t *Trainer) snapshot() *Snapshot {
	return &Snapshot{
		Iteration: t.iter,
		Config:    t.cfg,
		Tables:    t.store.Tables(),
	}
}

// checkpoint captures a snapshot and saves it in the background while
// training continues. At most one save is in flight.
func (t *Trainer) checkpoint() {
	if t.checkpointer == nil {
		return
	}

	t.waitForCheckpoint()
	snap := t.snapshot()
	done := make(chan bool, 1)
	t.saving, t.pending = done, snap.Iteration
	go func() {
		done <- t.saveCheckpoint(snap)
	}()
}

// waitForCheckpoint waits for the save in flight, if any. Only a save
// that succeeded counts as the last checkpoint.
func (t *Trainer) waitForCheckpoint() {
	if t.saving == nil {
		return
	}

	if <-t.saving {
		t.lastCheckpoint = t.pending
	}
	t.saving = nil
}

// saveCheckpoint retries a failed save once. A checkpoint that cannot be
// written is a durability problem but does not stop training.
func (t *Trainer) saveCheckpoint(snap *Snapshot) bool {
	id, err := t.checkpointer.Save(snap)
	if err != nil {
		glog.Warningf("Checkpoint at iteration %d failed, retrying: %v", snap.Iteration, err)
		id, err = t.checkpointer.Save(snap)
	}

	if err != nil {
		glog.Warningf("Checkpoint at iteration %d failed again, continuing without it: %v",
			snap.Iteration, err)
		return false
	}

	glog.Infof("Saved checkpoint %s at iteration %d (%s information sets)",
		id, snap.Iteration, humanize.Comma(int64(len(snap.Regret))))
	if t.recorder != nil {
		t.recorder.CheckpointSaved(snap.Iteration, id)
	}

	return true
}

// writeDump replaces the strategy dump, retrying once on failure.
func (t *Trainer) writeDump() error {
	d := t.StrategyDump()
	path := t.cfg.DumpPath()
	err := WriteDumpFile(path, d)
	if err != nil {
		glog.Warningf("Writing strategy dump %s failed, retrying: %v", path, err)
		err = WriteDumpFile(path, d)
	}

	if err == nil {
		glog.V(1).Infof("Wrote strategy dump %s at iteration %d", path, t.iter)
	}

	return err
}

// StrategyDump returns a dump of the current store without writing it.
func (t *Trainer) StrategyDump() *Dump {
	tables := t.store.Tables()
	return &Dump{Regret: tables.Regret, Strategy: tables.Strategy, Timestep: t.iter}
}
