package abstraction

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/pokerai/lcfr/card"
)

// MemTable is an in-memory abstraction table. It implements both
// Reader and Writer and is safe for concurrent use.
type MemTable struct {
	mu       sync.RWMutex
	meta     Meta
	clusters map[string]int32
}

func NewMemTable() *MemTable {
	return &MemTable{clusters: make(map[string]int32)}
}

// Put implements Writer.
func (m *MemTable) Put(cards []card.Card, cluster int32) error {
	key, err := Key(cards)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.clusters[string(key)] = cluster
	m.mu.Unlock()
	return nil
}

// SetMeta implements Writer.
func (m *MemTable) SetMeta(meta Meta) error {
	m.mu.Lock()
	m.meta = meta
	m.mu.Unlock()
	return nil
}

// Cluster implements Lookup.
func (m *MemTable) Cluster(cards []card.Card) (int32, error) {
	key, err := Key(cards)
	if err != nil {
		return 0, err
	}

	m.mu.RLock()
	cluster, ok := m.clusters[string(key)]
	m.mu.RUnlock()
	if !ok {
		return 0, errors.Wrapf(ErrNotFound, "%s", card.Format(cards))
	}

	return cluster, nil
}

// Meta implements Reader.
func (m *MemTable) Meta() Meta {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta
}

// Len returns the number of combinations in the table.
func (m *MemTable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clusters)
}

// Close implements io.Closer.
func (m *MemTable) Close() error {
	return nil
}
