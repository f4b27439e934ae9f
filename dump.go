package cfr

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// Dump is the strategy artifact read by downstream consumers.
type Dump struct {
	Regret   Table
	Strategy Table
	// Timestep is the iteration the dump was taken after.
	Timestep int
}

// AverageStrategy returns the normalized strategy weights of an
// information set: uniform over its known actions if they sum to zero,
// and nil if the information set never accumulated any weight or regret.
func (d *Dump) AverageStrategy(infoSet string) map[Action]float64 {
	weights, ok := d.Strategy[infoSet]
	if !ok {
		weights = make(map[Action]float64, len(d.Regret[infoSet]))
		for a := range d.Regret[infoSet] {
			weights[a] = 0
		}
	}

	if len(weights) == 0 {
		return nil
	}

	actions := make([]Action, 0, len(weights))
	for a := range weights {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })

	v := make([]float64, len(actions))
	for i, a := range actions {
		v[i] = weights[a]
	}
	normalize(v)

	result := make(map[Action]float64, len(actions))
	for i, a := range actions {
		result[a] = v[i]
	}
	return result
}

// MarshalTo writes the dump to w.
func (d *Dump) MarshalTo(w io.Writer) error {
	return gob.NewEncoder(w).Encode(d)
}

// LoadDump reads a dump written by MarshalTo.
func LoadDump(r io.Reader) (*Dump, error) {
	var d Dump
	if err := gob.NewDecoder(r).Decode(&d); err != nil {
		return nil, err
	}

	return &d, nil
}

// WriteDumpFile atomically replaces the dump at path: readers see either
// the previous dump or the new one, never a partial file.
func WriteDumpFile(path string, d *Dump) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create dump dir")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create dump temp")
	}

	if err := d.MarshalTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "encode dump")
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "sync dump")
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close dump temp")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "persist dump")
	}

	return nil
}

// LoadDumpFile reads the dump at path.
func LoadDumpFile(path string) (*Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, err := LoadDump(f)
	return d, errors.Wrapf(err, "decode dump %s", path)
}
