// Package checkpoint persists training snapshots so that an interrupted
// run can resume from the last one that was completely written.
//
// Each checkpoint is a gzip-compressed gob file carrying a content token.
// A checkpoint becomes visible only after it has been written, synced,
// renamed into place and read back with a matching token; the index of
// visible checkpoints is itself replaced atomically.
package checkpoint

import (
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/google/uuid"
	gzip "github.com/klauspost/pgzip"
	"github.com/pkg/errors"

	"github.com/pokerai/lcfr"
)

const (
	filePrefix = "ckpt-"
	fileSuffix = ".gob.gz"
	indexFile  = "index.json"
)

// Entry describes one saved checkpoint.
type Entry struct {
	ID        string    `json:"id"`
	Iteration int       `json:"iteration"`
	Token     uint64    `json:"token"`
	Created   time.Time `json:"created"`
}

type index struct {
	// Newest first.
	Checkpoints []Entry `json:"checkpoints"`
}

// record is the content of a checkpoint file.
type record struct {
	Token    uint64
	Snapshot *cfr.Snapshot
}

// Manager saves checkpoints to a directory, keeping the newest few.
// It implements cfr.Checkpointer.
type Manager struct {
	dir  string
	keep int

	mu sync.Mutex
}

// New returns a Manager over dir that keeps the newest keep checkpoints.
func New(dir string, keep int) (*Manager, error) {
	if keep < 1 {
		return nil, errors.Errorf("must keep at least one checkpoint, got %d", keep)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create checkpoint dir")
	}

	return &Manager{dir: dir, keep: keep}, nil
}

// Dir returns the checkpoint directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Save implements cfr.Checkpointer.
func (m *Manager) Save(snap *cfr.Snapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("%s%010d-%s", filePrefix, snap.Iteration, uuid.NewString()[:8])
	token := Token(snap)
	path := m.path(id)
	if err := writeFileAtomic(path, func(f *os.File) error {
		return encode(f, &record{Token: token, Snapshot: snap})
	}); err != nil {
		return "", errors.Wrapf(err, "write checkpoint %s", id)
	}

	if _, err := m.Load(id); err != nil {
		os.Remove(path)
		return "", errors.Wrapf(err, "verify checkpoint %s", id)
	}

	if glog.V(1) {
		if fi, err := os.Stat(path); err == nil {
			glog.Infof("Wrote checkpoint %s (%s)", id, humanize.Bytes(uint64(fi.Size())))
		}
	}

	listed, err := m.List()
	if err != nil {
		glog.Warningf("Rebuilding checkpoint index: %v", err)
	}

	// Without an index, List scans the directory and already sees id.
	var entries []Entry
	for _, e := range listed {
		if e.ID != id {
			entries = append(entries, e)
		}
	}

	entries = append(entries, Entry{
		ID:        id,
		Iteration: snap.Iteration,
		Token:     token,
		Created:   time.Now().UTC(),
	})
	sortNewestFirst(entries)

	var stale []Entry
	if len(entries) > m.keep {
		stale = entries[m.keep:]
		entries = entries[:m.keep]
	}

	if err := m.writeIndex(entries); err != nil {
		os.Remove(path)
		return "", errors.Wrap(err, "update checkpoint index")
	}

	for _, e := range stale {
		glog.V(1).Infof("Removing checkpoint %s at iteration %d", e.ID, e.Iteration)
		if err := os.Remove(m.path(e.ID)); err != nil && !os.IsNotExist(err) {
			glog.Warningf("Unable to remove old checkpoint %s: %v", e.ID, err)
		}
	}

	return id, nil
}

// Load reads and verifies the checkpoint with the given id.
func (m *Manager) Load(id string) (*cfr.Snapshot, error) {
	f, err := os.Open(m.path(id))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint %s", id)
	}
	defer r.Close()

	var rec record
	if err := gob.NewDecoder(r).Decode(&rec); err != nil {
		return nil, errors.Wrapf(err, "decode checkpoint %s", id)
	}

	if rec.Snapshot == nil {
		return nil, errors.Errorf("checkpoint %s has no snapshot", id)
	}

	if got := Token(rec.Snapshot); got != rec.Token {
		return nil, errors.Errorf("checkpoint %s is corrupt: token %x, expected %x", id, got, rec.Token)
	}

	return rec.Snapshot, nil
}

// LoadLatest returns the newest checkpoint that can be read and verified,
// skipping any that cannot. It returns nil if there is none.
func (m *Manager) LoadLatest() (*cfr.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.List()
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		snap, err := m.Load(e.ID)
		if err != nil {
			glog.Warningf("Skipping checkpoint %s: %v", e.ID, err)
			continue
		}

		glog.Infof("Loaded checkpoint %s at iteration %d", e.ID, snap.Iteration)
		return snap, nil
	}

	return nil, nil
}

// List returns the known checkpoints, newest first. If the index is
// missing or unreadable, the directory is scanned instead.
func (m *Manager) List() ([]Entry, error) {
	buf, err := os.ReadFile(filepath.Join(m.dir, indexFile))
	if err == nil {
		var idx index
		if err = json.Unmarshal(buf, &idx); err == nil {
			sortNewestFirst(idx.Checkpoints)
			return idx.Checkpoints, nil
		}
	}

	if !os.IsNotExist(err) {
		glog.Warningf("Checkpoint index in %s is unreadable, scanning directory: %v", m.dir, err)
	}

	return m.scan()
}

func (m *Manager) scan() ([]Entry, error) {
	files, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, errors.Wrap(err, "scan checkpoint dir")
	}

	var entries []Entry
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}

		id := strings.TrimSuffix(name, fileSuffix)
		iteration, err := parseIteration(id)
		if err != nil {
			glog.Warningf("Ignoring %s: %v", name, err)
			continue
		}

		entries = append(entries, Entry{ID: id, Iteration: iteration})
	}

	sortNewestFirst(entries)
	return entries, nil
}

func parseIteration(id string) (int, error) {
	parts := strings.SplitN(strings.TrimPrefix(id, filePrefix), "-", 2)
	return strconv.Atoi(parts[0])
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Iteration != entries[j].Iteration {
			return entries[i].Iteration > entries[j].Iteration
		}
		return entries[i].Created.After(entries[j].Created)
	})
}

func (m *Manager) writeIndex(entries []Entry) error {
	buf, err := json.MarshalIndent(index{Checkpoints: entries}, "", "  ")
	if err != nil {
		return err
	}

	return writeFileAtomic(filepath.Join(m.dir, indexFile), func(f *os.File) error {
		_, err := f.Write(buf)
		return err
	})
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+fileSuffix)
}

func encode(f *os.File, rec *record) error {
	w := gzip.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(rec); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}

// writeFileAtomic writes a temporary file with fn, syncs it and renames it
// to path.
func writeFileAtomic(path string, fn func(f *os.File) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	if err := fn(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Token is a content hash of a snapshot: its iteration and every regret
// and strategy weight, visited in sorted order.
func Token(snap *cfr.Snapshot) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(snap.Iteration))
	h.Write(buf[:])
	for _, table := range []cfr.Table{snap.Regret, snap.Strategy} {
		infoSets := make([]string, 0, len(table))
		for infoSet := range table {
			infoSets = append(infoSets, infoSet)
		}
		sort.Strings(infoSets)

		for _, infoSet := range infoSets {
			h.Write([]byte(infoSet))
			h.Write([]byte{0})
			values := table[infoSet]
			actions := make([]string, 0, len(values))
			for a := range values {
				actions = append(actions, string(a))
			}
			sort.Strings(actions)

			for _, a := range actions {
				h.Write([]byte(a))
				h.Write([]byte{0})
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(values[cfr.Action(a)]))
				h.Write(buf[:])
			}
		}

		h.Write([]byte{0xff})
	}

	return h.Sum64()
}
