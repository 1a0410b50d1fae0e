package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a header plus string rows, the common shape of every tabular
// input (CSV, XLSX, Census API responses).
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// NewTable builds a Table and indexes its header.
func NewTable(header []string, rows [][]string) *Table {
	t := &Table{Header: header, Rows: rows}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		key := normalizeCol(h)
		if _, dup := t.index[key]; !dup {
			t.index[key] = i
		}
	}
}

func normalizeCol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of a column. Matching ignores case and
// surrounding whitespace.
func (t *Table) Index(name string) (int, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[normalizeCol(name)]
	return i, ok
}

// Has reports whether the table has the named column.
func (t *Table) Has(name string) bool {
	_, ok := t.Index(name)
	return ok
}

// Column returns every value of the named column. Short rows yield "".
func (t *Table) Column(name string) ([]string, error) {
	idx, ok := t.Index(name)
	if !ok {
		return nil, eris.Errorf("table: column %q not found (have %s)", name, strings.Join(t.Header, ", "))
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, nil
}

// SetColumn replaces the named column or appends it when missing.
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return eris.Errorf("table: column %q has %d values, table has %d rows", name, len(values), len(t.Rows))
	}
	idx, ok := t.Index(name)
	if !ok {
		t.Header = append(t.Header, name)
		idx = len(t.Header) - 1
		t.index[normalizeCol(name)] = idx
	}
	for i, row := range t.Rows {
		for len(row) <= idx {
			row = append(row, "")
		}
		row[idx] = values[i]
		t.Rows[i] = row
	}
	return nil
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(row []string) bool) {
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		if keep(row) {
			kept = append(kept, row)
		}
	}
	t.Rows = kept
}

// WriteCSV writes the header and rows as CSV.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "table: write header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return eris.Wrap(err, "table: write rows")
	}
	return nil
}

// missingTokens are cell values read as "no data".
var missingTokens = map[string]bool{
	"": true, "na": true, "n/a": true, "nan": true, "null": true, "none": true, "n": true, "-": true,
}

// ParseNumber parses a numeric cell, dropping thousands separators and
// whitespace. ok is false for missing-value markers; unparsable text is an
// error.
func ParseNumber(s string) (v float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	if missingTokens[strings.ToLower(s)] {
		return math.NaN(), false, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), false, eris.Wrapf(err, "table: parse number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.NaN(), false, nil
	}
	return v, true, nil
}

// ReadOptions configures Read.
type ReadOptions struct {
	CSV   CSVOptions
	XLSX  XLSXOptions
	Cache string // directory for remote downloads; default os.TempDir()
}

// Read loads a table from a local path or URL, choosing the parser by file
// extension: .xlsx for spreadsheets, .json for Census-style arrays and CSV
// for everything else.
func Read(ctx context.Context, f Fetcher, location string, opts ReadOptions) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(strings.SplitN(location, "?", 2)[0]))

	if ext == ".xlsx" {
		path := location
		if IsRemote(location) {
			dir := opts.Cache
			if dir == "" {
				dir = os.TempDir()
			}
			path = filepath.Join(dir, filepath.Base(strings.SplitN(location, "?", 2)[0]))
			if _, err := f.DownloadToFile(ctx, location, path); err != nil {
				return nil, eris.Wrapf(err, "table: download %s", location)
			}
		}
		return ReadXLSX(path, opts.XLSX)
	}

	body, err := f.Download(ctx, location)
	if err != nil {
		return nil, eris.Wrapf(err, "table: open %s", location)
	}
	defer body.Close() //nolint:errcheck

	if ext == ".json" {
		return ReadJSONTable(ctx, body)
	}
	return ReadTable(ctx, body, opts.CSV)
}
