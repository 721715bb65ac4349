// Package journal stores object graph snapshots and the diffs recorded
// against them in a sqlite database, so a simulation can be replayed.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/funvibe/formula/internal/classes"
	"github.com/funvibe/formula/internal/evaluator"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	root       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS diffs (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	root       TEXT NOT NULL,
	data       TEXT NOT NULL,
	size       INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS diffs_root ON diffs(root, seq);
`

// Journal is a diff journal backed by one sqlite file.
type Journal struct {
	db *sql.DB
}

// Entry is one recorded diff.
type Entry struct {
	Seq  int64
	Root uuid.UUID
	Diff classes.Diff
	At   time.Time
}

// Stats summarizes the contents of a journal.
type Stats struct {
	Snapshots int
	Diffs     int
	// Bytes is the total uncompressed size of the recorded diffs.
	Bytes int64
}

// Open opens or creates the journal at path. ":memory:" gives a
// throwaway journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening journal %s", path)
	}
	// A single connection keeps ":memory:" databases shared and
	// serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "initializing journal %s", path)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Snapshot stores the full serialized graph of root, replacing any
// earlier snapshot and dropping the diffs recorded against it.
func (j *Journal) Snapshot(ctx context.Context, root *classes.Instance) error {
	data, err := classes.Serialize(root)
	if err != nil {
		return errors.Wrap(err, "serializing snapshot")
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning snapshot")
	}
	defer tx.Rollback()

	id := root.ID().String()
	if _, err := tx.ExecContext(ctx, `DELETE FROM diffs WHERE root = ?`, id); err != nil {
		return errors.Wrap(err, "clearing diffs")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (root, data, created_at) VALUES (?, ?, ?)`,
		id, data, time.Now().UnixNano()); err != nil {
		return errors.Wrap(err, "storing snapshot")
	}
	return errors.Wrap(tx.Commit(), "committing snapshot")
}

// Append records d against the snapshot of root and returns its
// sequence number.
func (j *Journal) Append(ctx context.Context, root uuid.UUID, d *classes.Diff) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO diffs (root, data, size, created_at) VALUES (?, ?, ?, ?)`,
		root.String(), d.Data, d.Size, time.Now().UnixNano())
	if err != nil {
		return 0, errors.Wrap(err, "appending diff")
	}
	seq, err := res.LastInsertId()
	return seq, errors.Wrap(err, "reading diff sequence")
}

// Record computes the diff from before to after and appends it under
// the identity of after. Empty diffs are recorded too, so every step of
// a simulation has an entry.
func (j *Journal) Record(ctx context.Context, before evaluator.Object, after *classes.Instance) (int64, error) {
	d, err := classes.GenerateDiff(before, after)
	if err != nil {
		return 0, errors.Wrap(err, "generating diff")
	}
	return j.Append(ctx, after.ID(), d)
}

// Entries lists the diffs of root with a sequence number above after, in
// recording order.
func (j *Journal) Entries(ctx context.Context, root uuid.UUID, after int64) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, data, size, created_at FROM diffs WHERE root = ? AND seq > ? ORDER BY seq`,
		root.String(), after)
	if err != nil {
		return nil, errors.Wrap(err, "querying diffs")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e := Entry{Root: root}
		var at int64
		if err := rows.Scan(&e.Seq, &e.Diff.Data, &e.Diff.Size, &at); err != nil {
			return nil, errors.Wrap(err, "scanning diff")
		}
		e.At = time.Unix(0, at)
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "reading diffs")
}

// Roots lists the identities that have a snapshot.
func (j *Journal) Roots(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT root FROM snapshots ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "querying snapshots")
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "scanning snapshot")
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, errors.Wrapf(err, "snapshot id %q", s)
		}
		out = append(out, id)
	}
	return out, errors.Wrap(rows.Err(), "reading snapshots")
}

// Load restores the snapshot of root without applying any diff.
func (j *Journal) Load(ctx context.Context, r *classes.Registry, root uuid.UUID) (*classes.Instance, error) {
	var data []byte
	err := j.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE root = ?`, root.String()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, errors.Errorf("no snapshot for %s", root)
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading snapshot")
	}
	inst, err := r.Deserialize(data)
	return inst, errors.Wrapf(err, "decoding snapshot %s", root)
}

// Replay restores the snapshot of root and applies its diffs in order,
// stopping after sequence number upTo when it is positive. It returns the
// rebuilt graph and the number of diffs applied.
func (j *Journal) Replay(ctx context.Context, r *classes.Registry, root uuid.UUID, upTo int64) (*classes.Instance, int, error) {
	inst, err := j.Load(ctx, r, root)
	if err != nil {
		return nil, 0, err
	}
	entries, err := j.Entries(ctx, root, 0)
	if err != nil {
		return nil, 0, err
	}
	n := 0
	for _, e := range entries {
		if upTo > 0 && e.Seq > upTo {
			break
		}
		if err := ctx.Err(); err != nil {
			return inst, n, err
		}
		if err := r.ApplyDiff(inst, &e.Diff); err != nil {
			return inst, n, errors.Wrapf(err, "applying diff %d", e.Seq)
		}
		n++
	}
	return inst, n, nil
}

func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&s.Snapshots); err != nil {
		return s, errors.Wrap(err, "counting snapshots")
	}
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM diffs`).Scan(&s.Diffs, &s.Bytes)
	return s, errors.Wrap(err, "counting diffs")
}
