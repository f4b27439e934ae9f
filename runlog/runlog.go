// Package runlog records training runs and their checkpoints in a local
// SQLite database, so that a restart can tell how the previous run ended.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/pokerai/lcfr"
)

const timeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    nickname        TEXT NOT NULL,
    status          TEXT NOT NULL,
    iteration       INTEGER NOT NULL DEFAULT 0,
    config          TEXT NOT NULL,
    error           TEXT NOT NULL DEFAULT '',
    last_checkpoint TEXT NOT NULL DEFAULT '',
    started_at_ms   INTEGER NOT NULL,
    finished_at_ms  INTEGER
);
CREATE INDEX IF NOT EXISTS runs_nickname ON runs (nickname, started_at_ms);
CREATE TABLE IF NOT EXISTS checkpoints (
    run_id        TEXT NOT NULL REFERENCES runs (id),
    checkpoint_id TEXT NOT NULL,
    iteration     INTEGER NOT NULL,
    created_at_ms INTEGER NOT NULL,
    PRIMARY KEY (run_id, checkpoint_id)
);
`

// Registry is a database of training runs.
type Registry struct {
	db *sql.DB
}

// Open opens or creates the registry at path.
func Open(path string) (*Registry, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, "create run log dir")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open run log %s", path)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, stmt := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "initialize run log %s", path)
		}
	}

	return &Registry{db: db}, nil
}

// Close closes the database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Record is a run as stored in the registry.
type Record struct {
	ID             string
	Nickname       string
	Status         string
	Iteration      int
	Config         cfr.Config
	Error          string
	LastCheckpoint string
	Started        time.Time
	// Zero while the run is in progress.
	Finished time.Time
}

// Failed reports whether the run ended in failure.
func (rec *Record) Failed() bool {
	return rec.Status == cfr.StatusFailed.String()
}

// Start records a new run in progress.
func (r *Registry) Start(nickname string, cfg cfr.Config) (*Run, error) {
	buf, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	run := &Run{reg: r, ID: uuid.NewString(), Nickname: nickname}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO runs (id, nickname, status, config, started_at_ms)
VALUES (?, ?, ?, ?, ?)
`, run.ID, nickname, cfr.StatusRunning.String(), string(buf), time.Now().UTC().UnixMilli())
	if err != nil {
		return nil, errors.Wrap(err, "record run start")
	}

	glog.V(1).Infof("Recorded run %s (%s)", run.ID, nickname)
	return run, nil
}

// LastRun returns the most recently started run with the given nickname,
// or nil if there is none.
func (r *Registry) LastRun(nickname string) (*Record, error) {
	runs, err := r.query(`WHERE nickname = ? ORDER BY started_at_ms DESC, rowid DESC LIMIT 1`, nickname)
	if err != nil || len(runs) == 0 {
		return nil, err
	}

	return &runs[0], nil
}

// Runs returns every run with the given nickname, newest first.
func (r *Registry) Runs(nickname string) ([]Record, error) {
	return r.query(`WHERE nickname = ? ORDER BY started_at_ms DESC, rowid DESC`, nickname)
}

// Checkpoints returns the ids of the checkpoints saved by a run, in order.
func (r *Registry) Checkpoints(runID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
SELECT checkpoint_id FROM checkpoints WHERE run_id = ? ORDER BY iteration, created_at_ms
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}

	return result, rows.Err()
}

func (r *Registry) query(where string, args ...interface{}) ([]Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
SELECT id, nickname, status, iteration, config, error, last_checkpoint, started_at_ms, finished_at_ms
FROM runs `+where, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var rec Record
		var config string
		var started int64
		var finished sql.NullInt64
		err := rows.Scan(&rec.ID, &rec.Nickname, &rec.Status, &rec.Iteration, &config,
			&rec.Error, &rec.LastCheckpoint, &started, &finished)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}

		if err := json.Unmarshal([]byte(config), &rec.Config); err != nil {
			return nil, errors.Wrapf(err, "config of run %s", rec.ID)
		}

		rec.Started = time.UnixMilli(started).UTC()
		if finished.Valid {
			rec.Finished = time.UnixMilli(finished.Int64).UTC()
		}

		result = append(result, rec)
	}

	return result, rows.Err()
}

// Run is a run in progress. It implements cfr.RunRecorder; failures to
// record are logged and otherwise ignored.
type Run struct {
	reg      *Registry
	ID       string
	Nickname string
}

// CheckpointSaved implements cfr.RunRecorder.
func (run *Run) CheckpointSaved(iteration int, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	tx, err := run.reg.db.BeginTx(ctx, nil)
	if err != nil {
		glog.Warningf("Unable to record checkpoint %s: %v", id, err)
		return
	}
	defer tx.Rollback()

	now := time.Now().UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO checkpoints (run_id, checkpoint_id, iteration, created_at_ms) VALUES (?, ?, ?, ?)
`, run.ID, id, iteration, now); err != nil {
		glog.Warningf("Unable to record checkpoint %s: %v", id, err)
		return
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE runs SET last_checkpoint = ?, iteration = MAX(iteration, ?) WHERE id = ?
`, id, iteration, run.ID); err != nil {
		glog.Warningf("Unable to record checkpoint %s: %v", id, err)
		return
	}

	if err := tx.Commit(); err != nil {
		glog.Warningf("Unable to record checkpoint %s: %v", id, err)
	}
}

// Finished implements cfr.RunRecorder.
func (run *Run) Finished(status cfr.Status, iteration int, err error) {
	var msg string
	if err != nil {
		msg = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, dbErr := run.reg.db.ExecContext(ctx, `
UPDATE runs SET status = ?, iteration = ?, error = ?, finished_at_ms = ? WHERE id = ?
`, status.String(), iteration, msg, time.Now().UTC().UnixMilli(), run.ID)
	if dbErr != nil {
		glog.Warningf("Unable to record end of run %s: %v", run.ID, dbErr)
	}
}
