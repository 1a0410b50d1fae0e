// Package pipeline runs a map request end to end: load the table,
// boundaries and cities in parallel, build the dataset, render, export and
// record the run.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/choroshape/internal/binning"
	"github.com/sells-group/choroshape/internal/boundary"
	"github.com/sells-group/choroshape/internal/cities"
	"github.com/sells-group/choroshape/internal/config"
	"github.com/sells-group/choroshape/internal/dataset"
	"github.com/sells-group/choroshape/internal/fetcher"
	"github.com/sells-group/choroshape/internal/render"
	"github.com/sells-group/choroshape/internal/store"
	"github.com/sells-group/choroshape/internal/style"
)

// Pipeline holds what every run shares.
type Pipeline struct {
	cfg     *config.Config
	fetch   fetcher.Fetcher
	postgis boundary.Source // nil unless boundary.database_url is set
	store   store.Store     // nil disables history
	presets *style.Presets
}

// New creates a Pipeline. postgis and st may be nil.
func New(cfg *config.Config, f fetcher.Fetcher, postgis boundary.Source, st store.Store, presets *style.Presets) *Pipeline {
	return &Pipeline{cfg: cfg, fetch: f, postgis: postgis, store: st, presets: presets}
}

// Phase is the timing of one step of a run.
type Phase struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
}

// Result summarizes a finished run.
type Result struct {
	RunID   string    `json:"run_id,omitempty"`
	Output  string    `json:"output"`
	Edges   []float64 `json:"edges"`
	Groups  []string  `json:"groups"`
	Counts  []int     `json:"counts"`
	Areas   int       `json:"areas"`
	GeoJSON string    `json:"geojson,omitempty"`
	CSV     string    `json:"csv,omitempty"`
	Phases  []Phase   `json:"phases"`
}

// inputs is everything loaded before the dataset is built.
type inputs struct {
	table    *fetcher.Table
	features []boundary.Feature
	cities   []cities.City
}

// Run executes req.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("data", req.Data))
	log.Info("pipeline: starting render")

	result := &Result{}
	var phasesMu sync.Mutex
	track := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		d := time.Since(start).Milliseconds()
		if err != nil {
			log.Error("pipeline: phase failed", zap.String("phase", name), zap.Int64("duration_ms", d), zap.Error(err))
		} else {
			log.Info("pipeline: phase complete", zap.String("phase", name), zap.Int64("duration_ms", d))
		}
		phasesMu.Lock()
		result.Phases = append(result.Phases, Phase{Name: name, DurationMS: d})
		phasesMu.Unlock()
		return err
	}

	st, err := p.style(req)
	if err != nil {
		return nil, err
	}
	format, err := render.ParseFormat(firstNonEmpty(req.Format, p.cfg.Render.Format))
	if err != nil {
		return nil, err
	}

	var in inputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return track("load_data", func() (err error) {
			in.table, err = p.loadTable(gctx, req)
			return err
		})
	})
	g.Go(func() error {
		return track("load_boundaries", func() (err error) {
			in.features, err = p.loadBoundaries(gctx, req)
			return err
		})
	})
	if req.Cities != "" {
		g.Go(func() error {
			return track("load_cities", func() (err error) {
				in.cities, err = p.loadCities(gctx, req)
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ds *dataset.Dataset
	if err := track("build_dataset", func() (err error) {
		opts, err := p.datasetOptions(req)
		if err != nil {
			return err
		}
		ds, err = dataset.Build(in.table, in.features, opts)
		return err
	}); err != nil {
		return nil, err
	}

	outDir := firstNonEmpty(req.OutDir, p.cfg.Render.OutDir)
	if err := track("render", func() error {
		m, err := render.New(ds, st, in.cities, render.Options{})
		if err != nil {
			return err
		}
		result.Output, err = m.Save(ctx, outDir, format)
		return err
	}); err != nil {
		return nil, err
	}

	if req.GeoJSON != "" || req.CSV != "" {
		if err := track("export", func() error {
			return export(ds, req, result)
		}); err != nil {
			return nil, err
		}
	}

	result.Edges = ds.Edges
	result.Groups = ds.Groups()
	result.Counts = ds.Counts()
	result.Areas = len(ds.Areas)

	if p.store != nil {
		run := &store.Run{
			Category: ds.Opts.CategoryName,
			Title:    ds.Title(),
			State:    req.stateFIPS(),
			Format:   string(format),
			Edges:    result.Edges,
			Labels:   result.Groups,
			Counts:   result.Counts,
			Output:   result.Output,
		}
		if err := p.store.Record(ctx, run); err != nil {
			log.Warn("pipeline: failed to record run", zap.Error(err))
		} else {
			result.RunID = run.ID
		}
	}

	log.Info("pipeline: render complete", zap.String("output", result.Output), zap.Int("areas", result.Areas))
	return result, nil
}

func (p *Pipeline) style(req Request) (*style.Style, error) {
	st := style.FromConfig(p.cfg.Style)
	if req.Preset != "" {
		if p.presets == nil {
			return nil, eris.Errorf("pipeline: no presets loaded for %q", req.Preset)
		}
		var err error
		if st, err = p.presets.Apply(req.Preset, st); err != nil {
			return nil, err
		}
	}
	if req.Colors != "" {
		st.Colors = req.Colors
	}
	if req.Size != "" {
		st.Size = req.Size
	}
	return st, st.Validate()
}

func (p *Pipeline) datasetOptions(req Request) (dataset.Options, error) {
	opts := dataset.DefaultOptions()
	opts.FIPSColumn = firstNonEmpty(req.FIPSColumn, opts.FIPSColumn)
	opts.StateColumn = req.StateColumn
	opts.StateFIPS = req.stateFIPS()
	opts.CategoryColumn = req.CategoryColumn
	opts.TotalColumn = req.TotalColumn
	opts.CategoryName = firstNonEmpty(req.CategoryName, opts.CategoryName)
	opts.Title = req.Title
	opts.Footnote = req.Footnote
	opts.LabeledCutoffs = req.LabeledCutoffs

	opts.NumCats = p.cfg.Render.NumCats
	if req.NumCats > 0 {
		opts.NumCats = req.NumCats
	}
	opts.Precision = p.cfg.Render.Precision
	if req.Precision != nil {
		opts.Precision = *req.Precision
	}
	opts.PercentFormat = p.cfg.Render.PercentFormat
	if req.PercentFormat != nil {
		opts.PercentFormat = *req.PercentFormat
	}

	switch {
	case len(req.Bins) > 0:
		opts.Bins = req.Bins
	case req.Level > 0:
		bins, err := binning.CustomBins(req.Level, binning.CustomOptions{
			NumCats:   opts.NumCats,
			Dif:       req.Dif,
			Direction: binning.ParseDirection(req.Direction),
			Precision: opts.Precision,
		})
		if err != nil {
			return opts, err
		}
		opts.Bins = bins
	}
	return opts, nil
}

func (p *Pipeline) loadTable(ctx context.Context, req Request) (*fetcher.Table, error) {
	return fetcher.Read(ctx, p.fetch, req.Data, fetcher.ReadOptions{
		XLSX:  fetcher.XLSXOptions{SheetName: req.Sheet, SkipRows: req.SkipRows},
		Cache: p.cfg.Boundary.TempDir,
	})
}

func (p *Pipeline) loadBoundaries(ctx context.Context, req Request) ([]boundary.Feature, error) {
	state := req.stateFIPS()
	if req.Boundaries == "" && p.postgis != nil {
		return p.postgis.Counties(ctx, state)
	}

	path, err := p.shapefilePath(ctx, req.Boundaries)
	if err != nil {
		return nil, err
	}
	src := &boundary.ShapefileSource{Path: path, Opts: boundary.ReadOptions{
		FIPSColumn:  p.cfg.Boundary.FIPSColumn,
		StateColumn: p.cfg.Boundary.StateColumn,
		StateFIPS:   state,
		NameColumn:  p.cfg.Boundary.NameColumn,
		Encoding:    p.cfg.Boundary.Encoding,
	}}
	return src.Counties(ctx, state)
}

// shapefilePath resolves a boundary location to a local .shp file.
func (p *Pipeline) shapefilePath(ctx context.Context, location string) (string, error) {
	dir := p.cfg.Boundary.TempDir
	if location == "" {
		url, err := boundary.CountyURL(p.cfg.Boundary.Year, p.cfg.Boundary.Resolution)
		if err != nil {
			return "", err
		}
		return boundary.Download(ctx, p.fetch, url, dir)
	}
	if fetcher.IsRemote(location) {
		return boundary.Download(ctx, p.fetch, location, dir)
	}
	if strings.EqualFold(filepath.Ext(location), ".zip") {
		base := strings.TrimSuffix(filepath.Base(location), filepath.Ext(location))
		paths, err := fetcher.ExtractZIP(location, filepath.Join(dir, base))
		if err != nil {
			return "", err
		}
		return fetcher.FindByExt(paths, ".shp")
	}
	return location, nil
}

func (p *Pipeline) loadCities(ctx context.Context, req Request) ([]cities.City, error) {
	cs, err := cities.Load(req.Cities, req.CityNameField)
	if err != nil {
		return nil, err
	}
	var specs map[string]cities.Label
	switch {
	case req.CityLabels == "":
		return cs, nil
	case strings.EqualFold(req.CityLabels, "texas"):
		specs, err = cities.TexasLabelSpecs()
	default:
		var t *fetcher.Table
		if t, err = fetcher.Read(ctx, p.fetch, req.CityLabels, fetcher.ReadOptions{}); err == nil {
			specs, err = cities.LoadLabelSpecs(t)
		}
	}
	if err != nil {
		return nil, err
	}
	cities.ApplyLabels(cs, specs)
	return cs, nil
}

func export(ds *dataset.Dataset, req Request, result *Result) error {
	write := func(path string, fn func(f *os.File) error) error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return eris.Wrapf(err, "pipeline: create dir for %s", path)
		}
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "pipeline: create %s", path)
		}
		if err := fn(f); err != nil {
			_ = f.Close()
			return err
		}
		return eris.Wrapf(f.Close(), "pipeline: close %s", path)
	}
	if req.GeoJSON != "" {
		if err := write(req.GeoJSON, func(f *os.File) error { return ds.WriteGeoJSON(f) }); err != nil {
			return err
		}
		result.GeoJSON = req.GeoJSON
	}
	if req.CSV != "" {
		if err := write(req.CSV, func(f *os.File) error { return ds.WriteCSV(f) }); err != nil {
			return err
		}
		result.CSV = req.CSV
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
