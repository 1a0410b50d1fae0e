package boundary

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/choroshape/internal/db"
)

// DefaultTable is the PostGIS table holding county polygons.
const DefaultTable = "geo.counties"

// PostGISSource reads counties stored by Load.
type PostGISSource struct {
	Pool  db.Pool
	Table string
}

// NewPostGISSource returns a source over table (DefaultTable when empty).
func NewPostGISSource(pool db.Pool, table string) *PostGISSource {
	if table == "" {
		table = DefaultTable
	}
	return &PostGISSource{Pool: pool, Table: table}
}

// EnsureSchema creates the counties table when missing.
func (s *PostGISSource) EnsureSchema(ctx context.Context) error {
	ident := identifier(s.Table)
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS postgis",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	geoid   CHAR(5) PRIMARY KEY,
	statefp CHAR(2) NOT NULL,
	name    TEXT,
	geom    geometry(MultiPolygon, 4326) NOT NULL
)`, ident.Sanitize()),
	}
	if len(ident) > 1 {
		stmts = append([]string{"CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{ident[0]}.Sanitize()}, stmts...)
	}
	for _, stmt := range stmts {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return eris.Wrapf(err, "boundary: ensure schema %s", s.Table)
		}
	}
	return nil
}

// Counties implements Source.
func (s *PostGISSource) Counties(ctx context.Context, stateFIPS string) ([]Feature, error) {
	sql := fmt.Sprintf("SELECT geoid, name, ST_AsEWKB(geom) FROM %s", identifier(s.Table).Sanitize())
	var args []any
	if stateFIPS != "" {
		sql += " WHERE statefp = $1"
		args = append(args, stateFIPS)
	}
	sql += " ORDER BY geoid"

	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: query counties")
	}
	defer rows.Close()

	var out []Feature
	for rows.Next() {
		var (
			geoid, name string
			wkb         []byte
		)
		if err := rows.Scan(&geoid, &name, &wkb); err != nil {
			return nil, eris.Wrap(err, "boundary: scan county")
		}
		mp, err := DecodeWKB(wkb)
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: county %s", geoid)
		}
		out = append(out, Feature{FIPS: geoid, Name: name, Geom: mp})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "boundary: iterate counties")
	}
	return out, nil
}

// Load upserts features into the counties table keyed by geoid.
func (s *PostGISSource) Load(ctx context.Context, features []Feature) (int64, error) {
	rows := make([][]any, 0, len(features))
	for _, f := range features {
		wkb, err := EncodeWKB(f.Geom)
		if err != nil {
			return 0, eris.Wrapf(err, "boundary: county %s", f.FIPS)
		}
		rows = append(rows, []any{f.FIPS, f.FIPS[:2], f.Name, wkb})
	}

	n, err := db.BulkUpsert(ctx, s.Pool, db.UpsertConfig{
		Table:        s.Table,
		Columns:      []string{"geoid", "statefp", "name", "geom"},
		ConflictKeys: []string{"geoid"},
	}, rows)
	if err != nil {
		return 0, err
	}
	zap.L().Info("loaded counties into postgis", zap.String("table", s.Table), zap.Int64("rows", n))
	return n, nil
}

func identifier(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}
