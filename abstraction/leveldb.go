package abstraction

import (
	"encoding/json"

	"github.com/golang/glog"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/pokerai/lcfr/card"
)

// DefaultCacheSize is the number of cluster ids kept in memory by a Table.
const DefaultCacheSize = 1 << 18

const batchSize = 10000

func init() {
	RegisterBackend("leveldb", Backend{
		Create: func(path string) (Writer, error) { return Create(path) },
		Open:   func(path string, cacheSize int) (Reader, error) { return Open(path, cacheSize) },
	})
}

// Table is a read-only abstraction table kept in a LevelDB database,
// fronted by an LRU cache of recent lookups. It is safe for concurrent use.
type Table struct {
	path  string
	db    *leveldb.DB
	meta  Meta
	cache *lru.Cache[string, int32]
}

// Open opens the table at path. cacheSize <= 0 selects DefaultCacheSize.
func Open(path string, cacheSize int) (*Table, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		ErrorIfMissing: true,
		ReadOnly:       true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open abstraction table %s", path)
	}

	meta, err := readMeta(db)
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "abstraction table %s", path)
	}

	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, int32](cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	glog.V(1).Infof("Opened abstraction table %s: ranks [%d, %d], %d rounds, clusters %v",
		path, meta.LowRank, meta.HighRank, meta.Rounds, meta.Clusters)
	return &Table{path: path, db: db, meta: meta, cache: cache}, nil
}

func readMeta(db *leveldb.DB) (Meta, error) {
	var meta Meta
	buf, err := db.Get(metaKey, nil)
	if err == leveldb.ErrNotFound {
		return meta, errors.New("missing metadata record")
	} else if err != nil {
		return meta, err
	}

	if err := json.Unmarshal(buf, &meta); err != nil {
		return meta, errors.Wrap(err, "corrupt metadata record")
	}

	return meta, nil
}

// Cluster implements Lookup.
func (t *Table) Cluster(cards []card.Card) (int32, error) {
	key, err := Key(cards)
	if err != nil {
		return 0, err
	}

	if cluster, ok := t.cache.Get(string(key)); ok {
		return cluster, nil
	}

	buf, err := t.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return 0, errors.Wrapf(ErrNotFound, "%s", card.Format(cards))
	} else if err != nil {
		return 0, errors.Wrapf(err, "lookup %s", card.Format(cards))
	}

	cluster, err := DecodeCluster(buf)
	if err != nil {
		return 0, errors.Wrapf(err, "lookup %s", card.Format(cards))
	}

	t.cache.Add(string(key), cluster)
	return cluster, nil
}

// Meta implements Reader.
func (t *Table) Meta() Meta {
	return t.meta
}

// Close implements io.Closer.
func (t *Table) Close() error {
	return t.db.Close()
}

// Each calls fn for every combination in the table, in key order.
func (t *Table) Each(fn func(cards []card.Card, cluster int32) error) error {
	iter := t.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		key := iter.Key()
		if string(key) == string(metaKey) {
			continue
		}

		cluster, err := DecodeCluster(iter.Value())
		if err != nil {
			return err
		}

		if err := fn(decodeKey(key), cluster); err != nil {
			return err
		}
	}

	return iter.Error()
}

// TableWriter builds a LevelDB abstraction table in batches.
type TableWriter struct {
	db    *leveldb.DB
	batch *leveldb.Batch
	n     int
}

// Create creates a new, empty table at path.
func Create(path string) (*TableWriter, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{ErrorIfExist: true})
	if err != nil {
		return nil, errors.Wrapf(err, "create abstraction table %s", path)
	}

	return &TableWriter{db: db, batch: new(leveldb.Batch)}, nil
}

// Put implements Writer.
func (w *TableWriter) Put(cards []card.Card, cluster int32) error {
	key, err := Key(cards)
	if err != nil {
		return err
	}

	w.batch.Put(key, EncodeCluster(cluster))
	w.n++
	if w.batch.Len() >= batchSize {
		return w.flush()
	}

	return nil
}

// SetMeta implements Writer.
func (w *TableWriter) SetMeta(m Meta) error {
	buf, err := json.Marshal(m)
	if err != nil {
		return err
	}

	return w.db.Put(metaKey, buf, nil)
}

func (w *TableWriter) flush() error {
	if w.batch.Len() == 0 {
		return nil
	}

	if err := w.db.Write(w.batch, nil); err != nil {
		return err
	}

	w.batch.Reset()
	return nil
}

// Close flushes pending writes and closes the database.
func (w *TableWriter) Close() error {
	if err := w.flush(); err != nil {
		w.db.Close()
		return err
	}

	glog.V(1).Infof("Wrote %d abstraction table entries", w.n)
	return w.db.Close()
}
