package boundary

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/choroshape/internal/fips"
)

// ReadOptions configures ReadShapefile.
type ReadOptions struct {
	FIPSColumn  string // county or full GEOID column; default COUNTYFP
	StateColumn string // state column used to complete 3-digit codes; default STATEFP
	StateFIPS   string // constant state when the file has no state column
	NameColumn  string // default NAME
	Encoding    string // DBF text encoding, e.g. "windows-1252"; empty reads bytes as UTF-8
}

func (o *ReadOptions) defaults() {
	if o.FIPSColumn == "" {
		o.FIPSColumn = "COUNTYFP"
	}
	if o.StateColumn == "" {
		o.StateColumn = "STATEFP"
	}
	if o.NameColumn == "" {
		o.NameColumn = "NAME"
	}
}

// ShapefileSource reads counties from a local shapefile.
type ShapefileSource struct {
	Path string
	Opts ReadOptions
}

// Counties implements Source.
func (s *ShapefileSource) Counties(_ context.Context, stateFIPS string) ([]Feature, error) {
	features, err := ReadShapefile(s.Path, s.Opts)
	if err != nil {
		return nil, err
	}
	return FilterState(features, stateFIPS), nil
}

// ReadShapefile reads polygon records and their DBF attributes. FIPS codes
// are normalized to 5 digits using the state column (or StateFIPS) when the
// FIPS column holds 3-digit county codes. Records with no usable polygon are
// skipped.
func ReadShapefile(path string, opts ReadOptions) ([]Feature, error) {
	opts.defaults()
	log := zap.L().With(zap.String("component", "boundary.shapefile"), zap.String("path", path))

	dec, err := decoder(opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}
	fipsIdx := fieldIndex(names, opts.FIPSColumn)
	if fipsIdx < 0 {
		return nil, eris.Errorf("boundary: shapefile %s has no %s field", path, opts.FIPSColumn)
	}
	stateIdx := fieldIndex(names, opts.StateColumn)

	var (
		features []Feature
		counties []string
		states   []string
		skipped  int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		mp := toMultiPolygon(shape)
		if mp == nil {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			v := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if dec != nil {
				if s, err := dec.String(v); err == nil {
					v = s
				}
			}
			attrs[name] = v
		}

		counties = append(counties, attrs[names[fipsIdx]])
		if stateIdx >= 0 {
			states = append(states, attrs[names[stateIdx]])
		}
		features = append(features, Feature{
			Name:  attrs[matchName(names, opts.NameColumn)],
			Attrs: attrs,
			Geom:  mp,
		})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "boundary: read shapefile %s", path)
	}

	state := fips.StateCode(opts.StateFIPS)
	if stateIdx >= 0 {
		state = fips.StateColumn(states)
	}
	codes, err := fips.Normalize(counties, state)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: normalize %s", opts.FIPSColumn)
	}
	for i := range features {
		features[i].FIPS = codes[i]
	}

	if skipped > 0 {
		log.Debug("skipped records without polygons", zap.Int("skipped", skipped))
	}
	log.Debug("read shapefile", zap.Int("features", len(features)))
	return features, nil
}

func decoder(name string) (*encoding.Decoder, error) {
	if name == "" {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: unknown encoding %q", name)
	}
	return enc.NewDecoder(), nil
}

func fieldIndex(names []string, want string) int {
	for i, n := range names {
		if strings.EqualFold(n, want) {
			return i
		}
	}
	return -1
}

func matchName(names []string, want string) string {
	if i := fieldIndex(names, want); i >= 0 {
		return names[i]
	}
	return want
}

// toMultiPolygon assembles shapefile rings into polygons. Clockwise rings
// start a new polygon, counter-clockwise rings are holes of the polygon
// before them.
func toMultiPolygon(shape shp.Shape) *geom.MultiPolygon {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	var cur *geom.Polygon
	flush := func() {
		if cur != nil {
			if err := mp.Push(cur); err != nil {
				zap.L().Debug("boundary: skipping malformed polygon", zap.Error(err))
			}
		}
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if xy.IsRingCounterClockwise(geom.XY, flat) && cur != nil {
			if err := cur.Push(ring); err != nil {
				zap.L().Debug("boundary: skipping malformed hole", zap.Int32("part", i), zap.Error(err))
			}
			continue
		}
		flush()
		cur = geom.NewPolygon(geom.XY)
		if err := cur.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			cur = nil
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
