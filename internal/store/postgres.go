package store

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/choroshape/internal/db"
)

// PostgresStore implements Store on a pgx pool, for deployments that
// already keep boundaries in PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to connString.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, 4)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; Close leaves it open.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS renders (
	id         TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	format     TEXT NOT NULL,
	edges      JSONB NOT NULL,
	labels     JSONB NOT NULL,
	counts     JSONB NOT NULL,
	output     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_renders_category ON renders(category);
CREATE INDEX IF NOT EXISTS idx_renders_created_at ON renders(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, run *Run) error {
	stamp(run)
	enc, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "postgres: record")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO renders (id, category, title, state, format, edges, labels, counts, output, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Category, run.Title, run.State, run.Format,
		enc.edges, enc.labels, enc.counts, run.Output, run.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert render %s", run.ID)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, category, title, state, format, edges::text, labels::text, counts::text, output, created_at
		 FROM renders WHERE id = $1`, id)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get render %s", id)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Run, error) {
	query := `SELECT id, category, title, state, format, edges::text, labels::text, counts::text, output, created_at
		FROM renders`
	args := []any{}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += ` WHERE category = $1`
	}
	args = append(args, filter.limit(), max(filter.Offset, 0))
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list renders")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan render")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list renders iterate")
}

