package fetcher

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestTable_ColumnMissing(t *testing.T) {
	tbl := NewTable([]string{"a", "b"}, [][]string{{"1", "2"}})
	_, err := tbl.Column("c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "c" not found`)
	assert.False(t, tbl.Has("c"))
	assert.True(t, tbl.Has(" A "))
}

func TestTable_ShortRows(t *testing.T) {
	tbl := NewTable([]string{"a", "b"}, [][]string{{"1"}, {"2", "3"}})
	col, err := tbl.Column("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "3"}, col)
}

func TestTable_SetColumn(t *testing.T) {
	tbl := NewTable([]string{"county"}, [][]string{{"1"}, {"2"}})

	require.NoError(t, tbl.SetColumn("FIPS", []string{"48001", "48002"}))
	assert.Equal(t, []string{"county", "FIPS"}, tbl.Header)
	assert.Equal(t, []string{"1", "48001"}, tbl.Rows[0])

	require.NoError(t, tbl.SetColumn("county", []string{"001", "002"}))
	assert.Equal(t, []string{"002", "48002"}, tbl.Rows[1])

	err := tbl.SetColumn("x", []string{"only one"})
	require.Error(t, err)
}

func TestTable_Filter(t *testing.T) {
	tbl := NewTable([]string{"v"}, [][]string{{"1"}, {"2"}, {"3"}})
	tbl.Filter(func(row []string) bool { return row[0] != "2" })
	assert.Equal(t, [][]string{{"1"}, {"3"}}, tbl.Rows)
}

func TestTable_WriteCSV(t *testing.T) {
	tbl := NewTable([]string{"FIPS", "label"}, [][]string{{"48001", "10.0% or less"}})
	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))
	assert.Equal(t, "FIPS,label\n48001,10.0% or less\n", buf.String())
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1,290,188", 1290188, true},
		{" 42.5 ", 42.5, true},
		{"-3", -3, true},
		{"", 0, false},
		{"NA", 0, false},
		{"null", 0, false},
		{"N", 0, false},
	}
	for _, tt := range tests {
		v, ok, err := ParseNumber(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, v, tt.in)
		} else {
			assert.True(t, math.IsNaN(v), tt.in)
		}
	}

	_, _, err := ParseNumber("twelve")
	require.Error(t, err)
}

func TestRead_LocalCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, writeTestFile(path, "FIPS,total\n001,10\n"))

	tbl, err := Read(context.Background(), &Router{}, path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"001", "10"}}, tbl.Rows)
}

func TestRead_RemoteJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[["NAME","B01001_001E","state","county"],["Travis County, Texas","1290188","48","453"]]`))
	}))
	defer srv.Close()

	r := &Router{HTTP: NewHTTPFetcher(HTTPOptions{MaxRetries: 1})}
	tbl, err := Read(context.Background(), r, srv.URL+"/data.json", ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"NAME", "B01001_001E", "state", "county"}, tbl.Header)
	assert.Equal(t, 1, tbl.Len())
}

func TestRead_XLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xlsx")
	writeTestXLSX(t, path, [][]string{
		{"Population by county"},
		{"FIPS", "total"},
		{"48453", "1290188"},
		{"", ""},
	})

	tbl, err := Read(context.Background(), &Router{}, path, ReadOptions{XLSX: XLSXOptions{SkipRows: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"FIPS", "total"}, tbl.Header)
	assert.Equal(t, [][]string{{"48453", "1290188"}}, tbl.Rows)
}

func TestReadXLSX_SheetErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xlsx")
	writeTestXLSX(t, path, [][]string{{"a"}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	_, err = ReadXLSX(filepath.Join(dir, "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
}

func writeTestXLSX(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	require.NoError(t, f.Save(path))
	_, err = os.Stat(path)
	require.NoError(t, err)
}
