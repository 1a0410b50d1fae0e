// Package dataset joins tabular county data to boundary polygons and bins
// the derived value into labeled groups.
package dataset

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/choroshape/internal/binning"
	"github.com/sells-group/choroshape/internal/boundary"
	"github.com/sells-group/choroshape/internal/fetcher"
	"github.com/sells-group/choroshape/internal/fips"
)

// Options configures Build. Use DefaultOptions for the usual defaults;
// Build itself only fills NumCats and CategoryName.
type Options struct {
	FIPSColumn     string
	StateColumn    string // optional column completing 3-digit county codes
	StateFIPS      string // constant state for 3-digit county codes
	CategoryColumn string
	TotalColumn    string

	Bins           []float64 // custom edges; quantile bins when empty
	NumCats        int
	Precision      int
	PercentFormat  bool
	LabeledCutoffs map[int]string

	CategoryName string
	Title        string
	Footnote     string
}

// DefaultOptions returns options with the FIPS column, 4 categories and one
// decimal of precision.
func DefaultOptions() Options {
	return Options{
		FIPSColumn:   "FIPS",
		NumCats:      4,
		Precision:    1,
		CategoryName: "Population",
	}
}

// Area is one county on the map.
type Area struct {
	FIPS     string
	Name     string
	Geom     *geom.MultiPolygon
	Category float64 // NaN when missing
	Total    float64 // NaN when missing
	Value    float64 // NaN when missing
	Group    int     // 1-based, 0 when missing
	Label    string
}

// Missing reports whether the area has no value to color by.
func (a Area) Missing() bool { return a.Group == 0 }

// Dataset is the joined, binned table behind a map.
type Dataset struct {
	Areas  []Area
	Edges  []float64
	Labels []string
	Opts   Options
}

type record struct {
	category, total float64
}

// Build left-joins boundary features with data rows on FIPS, computes the
// value of each area and assigns groups and labels.
func Build(tbl *fetcher.Table, features []boundary.Feature, opts Options) (*Dataset, error) {
	log := zap.L().With(zap.String("component", "dataset"))

	if opts.CategoryColumn == "" && opts.TotalColumn == "" {
		return nil, eris.New("dataset: a category column, a total column or both are required")
	}
	if opts.FIPSColumn == "" {
		opts.FIPSColumn = "FIPS"
	}
	if opts.NumCats <= 0 {
		opts.NumCats = 4
	}
	if opts.Precision < 0 {
		opts.Precision = 0
	}
	if opts.CategoryName == "" {
		opts.CategoryName = "Population"
	}

	records, err := readRecords(tbl, opts)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Opts: opts, Areas: make([]Area, 0, len(features))}
	joined := make(map[string]bool, len(records))
	for _, f := range features {
		a := Area{FIPS: f.FIPS, Name: f.Name, Geom: f.Geom, Category: math.NaN(), Total: math.NaN(), Value: math.NaN()}
		if r, ok := records[f.FIPS]; ok {
			joined[f.FIPS] = true
			a.Category, a.Total = r.category, r.total
			a.Value = value(r, opts)
		}
		ds.Areas = append(ds.Areas, a)
	}
	if dropped := len(records) - len(joined); dropped > 0 {
		log.Warn("data rows without a matching boundary were dropped", zap.Int("rows", dropped))
	}

	ds.scale()
	if err := ds.bin(); err != nil {
		return nil, err
	}

	log.Debug("dataset built",
		zap.Int("areas", len(ds.Areas)),
		zap.Float64s("edges", ds.Edges),
		zap.Int("missing", ds.Counts()[0]),
	)
	return ds, nil
}

func readRecords(tbl *fetcher.Table, opts Options) (map[string]record, error) {
	if tbl == nil {
		return nil, eris.New("dataset: no data table")
	}
	raw, err := tbl.Column(opts.FIPSColumn)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: FIPS column")
	}

	state := fips.StateCode(opts.StateFIPS)
	if opts.StateColumn != "" {
		col, err := tbl.Column(opts.StateColumn)
		if err != nil {
			return nil, eris.Wrap(err, "dataset: state column")
		}
		state = fips.StateColumn(col)
	}
	codes, err := fips.Normalize(raw, state)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: column %s", opts.FIPSColumn)
	}

	category, err := numbers(tbl, opts.CategoryColumn)
	if err != nil {
		return nil, err
	}
	total, err := numbers(tbl, opts.TotalColumn)
	if err != nil {
		return nil, err
	}

	out := make(map[string]record, len(codes))
	for i, code := range codes {
		if _, dup := out[code]; dup {
			zap.L().Warn("dataset: duplicate FIPS, keeping first row", zap.String("fips", code), zap.Int("row", i+1))
			continue
		}
		out[code] = record{category: category[i], total: total[i]}
	}
	return out, nil
}

// numbers parses a numeric column; an empty name yields all NaN.
func numbers(tbl *fetcher.Table, column string) ([]float64, error) {
	out := make([]float64, tbl.Len())
	if column == "" {
		for i := range out {
			out[i] = math.NaN()
		}
		return out, nil
	}
	col, err := tbl.Column(column)
	if err != nil {
		return nil, eris.Wrap(err, "dataset")
	}
	for i, s := range col {
		v, _, err := fetcher.ParseNumber(s)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: column %s row %d", column, i+1)
		}
		out[i] = v
	}
	return out, nil
}

func value(r record, opts Options) float64 {
	switch {
	case opts.CategoryColumn != "" && opts.TotalColumn != "":
		if math.IsNaN(r.category) || math.IsNaN(r.total) || r.total == 0 {
			return math.NaN()
		}
		return r.category / r.total
	case opts.CategoryColumn != "":
		return r.category
	default:
		return r.total
	}
}

// scale converts fractions to percentages when percent formatting is on and
// every present value is below 1, then rounds to the precision.
func (d *Dataset) scale() {
	if d.Opts.PercentFormat {
		fractions, present := true, false
		for _, a := range d.Areas {
			if math.IsNaN(a.Value) {
				continue
			}
			present = true
			if a.Value >= 1 {
				fractions = false
				break
			}
		}
		if present && fractions {
			for i := range d.Areas {
				d.Areas[i].Value *= 100
			}
		}
	}
	for i := range d.Areas {
		d.Areas[i].Value = binning.Round(d.Areas[i].Value, d.Opts.Precision)
	}
}

func (d *Dataset) bin() error {
	var (
		edges []float64
		err   error
	)
	if len(d.Opts.Bins) > 0 {
		edges, err = binning.Normalize(d.Opts.Bins, d.Opts.Precision, false)
	} else {
		values := make([]float64, len(d.Areas))
		for i, a := range d.Areas {
			values[i] = a.Value
		}
		edges, err = binning.QuantileEdges(values, d.Opts.NumCats)
		if err == nil {
			edges, err = binning.Normalize(edges, d.Opts.Precision, true)
		}
	}
	if err != nil {
		return eris.Wrap(err, "dataset: bins")
	}

	d.Edges = edges
	d.Labels = binning.Labels(edges, binning.LabelOptions{
		Precision:      d.Opts.Precision,
		Percent:        d.Opts.PercentFormat,
		LabeledCutoffs: d.Opts.LabeledCutoffs,
	})

	var outside int
	for i := range d.Areas {
		a := &d.Areas[i]
		a.Group = binning.Assign(a.Value, edges)
		if a.Group == 0 {
			if !math.IsNaN(a.Value) {
				outside++
			}
			a.Label = binning.MissingLabel
			continue
		}
		a.Label = d.Labels[a.Group-1]
	}
	if outside > 0 {
		zap.L().Warn("dataset: values outside the bins are shown as missing", zap.Int("areas", outside))
	}
	return nil
}

// Groups returns the group labels in order.
func (d *Dataset) Groups() []string { return d.Labels }

// Counts returns the number of areas per group; index 0 counts missing areas.
func (d *Dataset) Counts() []int {
	counts := make([]int, len(d.Labels)+1)
	for _, a := range d.Areas {
		if a.Group >= 0 && a.Group < len(counts) {
			counts[a.Group]++
		}
	}
	return counts
}

// HasMissing reports whether any area has no group.
func (d *Dataset) HasMissing() bool { return d.Counts()[0] > 0 }

// Title returns the configured title or the category name.
func (d *Dataset) Title() string {
	if t := strings.TrimSpace(d.Opts.Title); t != "" {
		return t
	}
	return d.Opts.CategoryName
}
