package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS renders (
	id         TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	format     TEXT NOT NULL,
	edges      TEXT NOT NULL,
	labels     TEXT NOT NULL,
	counts     TEXT NOT NULL,
	output     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_renders_category ON renders(category);
CREATE INDEX IF NOT EXISTS idx_renders_created_at ON renders(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Record(ctx context.Context, run *Run) error {
	stamp(run)
	enc, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: record")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO renders (id, category, title, state, format, edges, labels, counts, output, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Category, run.Title, run.State, run.Format,
		enc.edges, enc.labels, enc.counts, run.Output, run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert render %s", run.ID)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, category, title, state, format, edges, labels, counts, output, created_at
		 FROM renders WHERE id = ?`, id)
	r, err := scanRun(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get render %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Run, error) {
	query := `SELECT id, category, title, state, format, edges, labels, counts, output, created_at
		FROM renders WHERE 1=1`
	var args []any
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list renders")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan render")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list renders iterate")
}

// helpers

func stamp(run *Run) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}

type encodedRun struct {
	edges, labels, counts string
}

func encodeRun(run *Run) (encodedRun, error) {
	var out encodedRun
	for _, f := range []struct {
		dst *string
		v   any
	}{
		{&out.edges, nonNil(run.Edges)},
		{&out.labels, nonNil(run.Labels)},
		{&out.counts, nonNil(run.Counts)},
	} {
		b, err := json.Marshal(f.v)
		if err != nil {
			return out, eris.Wrap(err, "marshal run")
		}
		*f.dst = string(b)
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var (
		r                     Run
		edges, labels, counts string
	)
	if err := row.Scan(&r.ID, &r.Category, &r.Title, &r.State, &r.Format,
		&edges, &labels, &counts, &r.Output, &r.CreatedAt); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		src string
		dst any
	}{
		{edges, &r.Edges},
		{labels, &r.Labels},
		{counts, &r.Counts},
	} {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, eris.Wrap(err, "unmarshal run")
		}
	}
	return &r, nil
}
