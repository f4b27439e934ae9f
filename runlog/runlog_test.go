package runlog

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/pokerai/lcfr"
)

func openRegistry(t *testing.T) *Registry {
	reg, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestLastRun_None(t *testing.T) {
	reg := openRegistry(t)
	rec, err := reg.LastRun("nobody")
	if err != nil {
		t.Fatal(err)
	}

	if rec != nil {
		t.Errorf("expected no run, got %+v", rec)
	}
}

func TestRunLifecycle(t *testing.T) {
	reg := openRegistry(t)
	cfg := cfr.DefaultConfig().ScaleSchedule(100)
	run, err := reg.Start("blueprint", cfg)
	if err != nil {
		t.Fatal(err)
	}

	rec, err := reg.LastRun("blueprint")
	if err != nil {
		t.Fatal(err)
	}

	if rec.Status != "running" || !rec.Finished.IsZero() {
		t.Errorf("expected a running run, got %+v", rec)
	}

	if diff := cmp.Diff(cfg, rec.Config); diff != "" {
		t.Errorf("stored config differs (-want +got):\n%s", diff)
	}

	run.CheckpointSaved(5, "ckpt-a")
	run.CheckpointSaved(10, "ckpt-b")
	run.Finished(cfr.StatusFailed, 12, errors.New("lookup failed"))

	rec, err = reg.LastRun("blueprint")
	if err != nil {
		t.Fatal(err)
	}

	if !rec.Failed() || rec.Iteration != 12 || rec.Error != "lookup failed" || rec.LastCheckpoint != "ckpt-b" {
		t.Errorf("unexpected record after failure: %+v", rec)
	}

	if rec.Finished.IsZero() {
		t.Error("finish time not recorded")
	}

	ids, err := reg.Checkpoints(run.ID)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"ckpt-a", "ckpt-b"}, ids); diff != "" {
		t.Errorf("checkpoints (-want +got):\n%s", diff)
	}
}

func TestRuns_NewestFirst(t *testing.T) {
	reg := openRegistry(t)
	cfg := cfr.DefaultConfig()
	first, err := reg.Start("a", cfg)
	if err != nil {
		t.Fatal(err)
	}
	first.Finished(cfr.StatusInterrupted, 3, nil)

	second, err := reg.Start("a", cfg)
	if err != nil {
		t.Fatal(err)
	}
	second.Finished(cfr.StatusCompleted, 7, nil)

	if _, err := reg.Start("b", cfg); err != nil {
		t.Fatal(err)
	}

	runs, err := reg.Runs("a")
	if err != nil {
		t.Fatal(err)
	}

	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}

	if diff := cmp.Diff([]string{second.ID, first.ID}, ids); diff != "" {
		t.Errorf("runs (-want +got):\n%s", diff)
	}

	if runs[0].Status != "completed" || runs[1].Status != "interrupted" {
		t.Errorf("unexpected statuses %q, %q", runs[0].Status, runs[1].Status)
	}
}
