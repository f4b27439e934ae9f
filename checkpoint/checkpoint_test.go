package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pokerai/lcfr"
)

func testSnapshot(iteration int) *cfr.Snapshot {
	cfg := cfr.DefaultConfig().ScaleSchedule(10)
	return &cfr.Snapshot{
		Iteration: iteration,
		Config:    cfg,
		Tables: cfr.Tables{
			Regret: cfr.Table{
				"K-":  {"c": 1.5, "b": -2},
				"J-b": {"c": float64(iteration), "b": cfg.C},
			},
			Strategy: cfr.Table{
				"K-": {"b": 3},
			},
		},
	}
}

func newManager(t *testing.T, keep int) *Manager {
	m, err := New(t.TempDir(), keep)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func save(t *testing.T, m *Manager, iteration int) string {
	id, err := m.Save(testSnapshot(iteration))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestSaveLoad(t *testing.T) {
	m := newManager(t, 5)
	want := testSnapshot(7)
	id, err := m.Save(want)
	if err != nil {
		t.Fatal(err)
	}

	got, err := m.Load(id)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("loaded snapshot differs (-want +got):\n%s", diff)
	}

	latest, err := m.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}

	if latest == nil || latest.Iteration != 7 {
		t.Errorf("expected latest checkpoint at iteration 7, got %+v", latest)
	}
}

func TestLoadLatest_Empty(t *testing.T) {
	m := newManager(t, 5)
	snap, err := m.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}

	if snap != nil {
		t.Errorf("expected no checkpoint, got iteration %d", snap.Iteration)
	}
}

func TestRotation(t *testing.T) {
	m := newManager(t, 2)
	for it := 1; it <= 4; it++ {
		save(t, m, it)
	}

	entries, err := m.List()
	if err != nil {
		t.Fatal(err)
	}

	var iterations []int
	for _, e := range entries {
		iterations = append(iterations, e.Iteration)
	}

	if diff := cmp.Diff([]int{4, 3}, iterations); diff != "" {
		t.Errorf("kept checkpoints (-want +got):\n%s", diff)
	}

	files, err := filepath.Glob(filepath.Join(m.Dir(), filePrefix+"*"+fileSuffix))
	if err != nil {
		t.Fatal(err)
	}

	if len(files) != 2 {
		t.Errorf("expected 2 checkpoint files on disk, got %v", files)
	}
}

func TestRotation_KeepOne(t *testing.T) {
	m := newManager(t, 1)
	for _, it := range []int{5, 10} {
		id := save(t, m, it)
		snap, err := m.LoadLatest()
		if err != nil {
			t.Fatal(err)
		}

		if snap == nil || snap.Iteration != it {
			t.Fatalf("checkpoint %s at iteration %d was not kept, latest is %+v", id, it, snap)
		}

		entries, err := m.List()
		if err != nil {
			t.Fatal(err)
		}

		if len(entries) != 1 || entries[0].ID != id {
			t.Errorf("expected index of only %s, got %+v", id, entries)
		}
	}
}

func TestSave_IndexFailureRemovesFile(t *testing.T) {
	m := newManager(t, 5)
	// A directory in the way of the index makes it impossible to replace.
	if err := os.MkdirAll(filepath.Join(m.Dir(), indexFile, "blocked"), 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Save(testSnapshot(5)); err == nil {
		t.Fatal("expected Save to fail without an index")
	}

	files, err := filepath.Glob(filepath.Join(m.Dir(), filePrefix+"*"+fileSuffix))
	if err != nil {
		t.Fatal(err)
	}

	if len(files) != 0 {
		t.Errorf("unindexed checkpoint left behind: %v", files)
	}
}

func TestLoadLatest_SkipsCorrupt(t *testing.T) {
	m := newManager(t, 5)
	save(t, m, 5)
	newest := save(t, m, 10)

	if err := os.WriteFile(m.path(newest), []byte("not a checkpoint"), 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := m.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}

	if snap == nil || snap.Iteration != 5 {
		t.Errorf("expected fallback to iteration 5, got %+v", snap)
	}
}

func TestLoadLatest_SkipsTruncated(t *testing.T) {
	m := newManager(t, 5)
	save(t, m, 5)
	newest := save(t, m, 10)

	fi, err := os.Stat(m.path(newest))
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Truncate(m.path(newest), fi.Size()/2); err != nil {
		t.Fatal(err)
	}

	snap, err := m.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}

	if snap == nil || snap.Iteration != 5 {
		t.Errorf("expected fallback to iteration 5, got %+v", snap)
	}
}

func TestLoadLatest_AllCorrupt(t *testing.T) {
	m := newManager(t, 5)
	id := save(t, m, 5)
	if err := os.WriteFile(m.path(id), nil, 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := m.LoadLatest()
	if err != nil || snap != nil {
		t.Errorf("expected a cold start, got %+v, %v", snap, err)
	}
}

func TestList_MissingIndex(t *testing.T) {
	m := newManager(t, 5)
	save(t, m, 5)
	save(t, m, 10)
	if err := os.Remove(filepath.Join(m.Dir(), indexFile)); err != nil {
		t.Fatal(err)
	}

	snap, err := m.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}

	if snap == nil || snap.Iteration != 10 {
		t.Errorf("expected directory scan to find iteration 10, got %+v", snap)
	}

	// The next save rebuilds the index from the scan.
	save(t, m, 15)
	entries, err := m.List()
	if err != nil {
		t.Fatal(err)
	}

	var iterations []int
	for _, e := range entries {
		iterations = append(iterations, e.Iteration)
	}

	if diff := cmp.Diff([]int{15, 10, 5}, iterations); diff != "" {
		t.Errorf("index after rebuild (-want +got):\n%s", diff)
	}
}

func TestList_CorruptIndex(t *testing.T) {
	m := newManager(t, 5)
	save(t, m, 5)
	if err := os.WriteFile(filepath.Join(m.Dir(), indexFile), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := m.List()
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 1 || entries[0].Iteration != 5 {
		t.Errorf("unexpected entries from scan: %+v", entries)
	}
}

func TestToken(t *testing.T) {
	a, b := testSnapshot(3), testSnapshot(3)
	if Token(a) != Token(b) {
		t.Error("equal snapshots have different tokens")
	}

	b.Regret["K-"]["c"] += 1e-9
	if Token(a) == Token(b) {
		t.Error("token did not change with a regret")
	}

	c := testSnapshot(4)
	c.Regret["J-b"]["c"] = 3
	if Token(a) == Token(c) {
		t.Error("token did not change with the iteration")
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(t.TempDir(), 0); err == nil {
		t.Error("expected error keeping no checkpoints")
	}
}
