//go:build rocksdb
// +build rocksdb

package rdb

import (
	"encoding/json"

	"github.com/golang/glog"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	rocksdb "github.com/tecbot/gorocksdb"

	"github.com/pokerai/lcfr/abstraction"
	"github.com/pokerai/lcfr/card"
)

const batchSize = 10000

var metaKey = []byte("\xffmeta")

func init() {
	abstraction.RegisterBackend("rocksdb", abstraction.Backend{
		Create: func(path string) (abstraction.Writer, error) { return Create(path) },
		Open:   func(path string, cacheSize int) (abstraction.Reader, error) { return Open(path, cacheSize) },
	})
}

// Params hold the RocksDB handles used by a table.
type Params struct {
	Path         string
	Options      *rocksdb.Options
	ReadOptions  *rocksdb.ReadOptions
	WriteOptions *rocksdb.WriteOptions
}

func DefaultParams(path string) Params {
	opts := rocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)

	return Params{
		Path:         path,
		Options:      opts,
		ReadOptions:  rocksdb.NewDefaultReadOptions(),
		WriteOptions: rocksdb.NewDefaultWriteOptions(),
	}
}

func (p Params) Close() {
	p.Options.Destroy()
	p.ReadOptions.Destroy()
	p.WriteOptions.Destroy()
}

// Table is a read-only abstraction table kept in RocksDB.
type Table struct {
	params Params
	db     *rocksdb.DB
	meta   abstraction.Meta
	cache  *lru.Cache[string, int32]
}

// Open opens the table at path. cacheSize <= 0 selects abstraction.DefaultCacheSize.
func Open(path string, cacheSize int) (*Table, error) {
	params := DefaultParams(path)
	params.Options.SetCreateIfMissing(false)
	db, err := rocksdb.OpenDbForReadOnly(params.Options, path, false)
	if err != nil {
		params.Close()
		return nil, errors.Wrapf(err, "open abstraction table %s", path)
	}

	t := &Table{params: params, db: db}
	if err := t.readMeta(); err != nil {
		t.Close()
		return nil, errors.Wrapf(err, "abstraction table %s", path)
	}

	if cacheSize <= 0 {
		cacheSize = abstraction.DefaultCacheSize
	}
	if t.cache, err = lru.New[string, int32](cacheSize); err != nil {
		t.Close()
		return nil, err
	}

	glog.V(1).Infof("Opened RocksDB abstraction table %s: %+v", path, t.meta)
	return t, nil
}

func (t *Table) readMeta() error {
	buf, err := t.db.GetBytes(t.params.ReadOptions, metaKey)
	if err != nil {
		return err
	} else if buf == nil {
		return errors.New("missing metadata record")
	}

	return errors.Wrap(json.Unmarshal(buf, &t.meta), "corrupt metadata record")
}

// Cluster implements abstraction.Lookup.
func (t *Table) Cluster(cards []card.Card) (int32, error) {
	key, err := abstraction.Key(cards)
	if err != nil {
		return 0, err
	}

	if cluster, ok := t.cache.Get(string(key)); ok {
		return cluster, nil
	}

	buf, err := t.db.GetBytes(t.params.ReadOptions, key)
	if err != nil {
		return 0, errors.Wrapf(err, "lookup %s", card.Format(cards))
	} else if buf == nil {
		return 0, errors.Wrapf(abstraction.ErrNotFound, "%s", card.Format(cards))
	}

	cluster, err := abstraction.DecodeCluster(buf)
	if err != nil {
		return 0, errors.Wrapf(err, "lookup %s", card.Format(cards))
	}

	t.cache.Add(string(key), cluster)
	return cluster, nil
}

// Meta implements abstraction.Reader.
func (t *Table) Meta() abstraction.Meta {
	return t.meta
}

// Close implements io.Closer.
func (t *Table) Close() error {
	t.db.Close()
	t.params.Close()
	return nil
}

// TableWriter builds a RocksDB abstraction table in batches.
type TableWriter struct {
	params Params
	db     *rocksdb.DB
	batch  *rocksdb.WriteBatch
	n      int
}

// Create creates a new table at path.
func Create(path string) (*TableWriter, error) {
	params := DefaultParams(path)
	params.Options.SetErrorIfExists(true)
	db, err := rocksdb.OpenDb(params.Options, path)
	if err != nil {
		params.Close()
		return nil, errors.Wrapf(err, "create abstraction table %s", path)
	}

	return &TableWriter{
		params: params,
		db:     db,
		batch:  rocksdb.NewWriteBatch(),
	}, nil
}

// Put implements abstraction.Writer.
func (w *TableWriter) Put(cards []card.Card, cluster int32) error {
	key, err := abstraction.Key(cards)
	if err != nil {
		return err
	}

	w.batch.Put(key, abstraction.EncodeCluster(cluster))
	w.n++
	if w.batch.Count() >= batchSize {
		return w.flush()
	}

	return nil
}

// SetMeta implements abstraction.Writer.
func (w *TableWriter) SetMeta(m abstraction.Meta) error {
	buf, err := json.Marshal(m)
	if err != nil {
		return err
	}

	return w.db.Put(w.params.WriteOptions, metaKey, buf)
}

func (w *TableWriter) flush() error {
	if w.batch.Count() == 0 {
		return nil
	}

	if err := w.db.Write(w.params.WriteOptions, w.batch); err != nil {
		return err
	}

	w.batch.Clear()
	return nil
}

// Close flushes pending writes and closes the database.
func (w *TableWriter) Close() error {
	err := w.flush()
	w.batch.Destroy()
	w.db.Close()
	w.params.Close()
	if err == nil {
		glog.V(1).Infof("Wrote %d abstraction table entries", w.n)
	}
	return err
}
