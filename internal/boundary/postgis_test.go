package boundary

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostGISSource_Counties(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	f := testFeatures()[0]
	wkb, err := EncodeWKB(f.Geom)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT geoid, name, ST_AsEWKB\(geom\) FROM "geo"."counties" WHERE statefp = \$1`).
		WithArgs("48").
		WillReturnRows(pgxmock.NewRows([]string{"geoid", "name", "geom"}).AddRow("48001", "Anderson", wkb))

	src := NewPostGISSource(mock, "")
	features, err := src.Counties(context.Background(), "48")
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "48001", features[0].FIPS)
	assert.Equal(t, 1, features[0].Geom.NumPolygons())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostGISSource_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT geoid").WillReturnError(fmt.Errorf("relation does not exist"))

	_, err = NewPostGISSource(mock, "counties").Counties(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query counties")
}

func TestPostGISSource_EnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "geo"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS postgis").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "geo"."counties"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, NewPostGISSource(mock, "geo.counties").EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostGISSource_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"geoid", "statefp", "name", "geom"}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_geo_counties"}, cols).WillReturnResult(3)
	mock.ExpectExec(`INSERT INTO "geo"."counties"`).WillReturnResult(pgxmock.NewResult("INSERT", 3))
	mock.ExpectCommit()

	n, err := NewPostGISSource(mock, "").Load(context.Background(), testFeatures())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
