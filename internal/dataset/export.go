package dataset

import (
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/choroshape/internal/boundary"
	"github.com/sells-group/choroshape/internal/fetcher"
)

// FeatureCollection exports the areas as GeoJSON features carrying value,
// group and label properties.
func (d *Dataset) FeatureCollection() *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(d.Areas))}
	features := make([]boundary.Feature, 0, len(d.Areas))
	for _, a := range d.Areas {
		props := map[string]any{
			"fips":  a.FIPS,
			"name":  a.Name,
			"group": a.Group,
			"label": a.Label,
			"value": nullable(a.Value),
		}
		f := &geojson.Feature{ID: a.FIPS, Properties: props}
		if a.Geom != nil {
			f.Geometry = a.Geom
			features = append(features, boundary.Feature{Geom: a.Geom})
		}
		fc.Features = append(fc.Features, f)
	}
	if len(features) > 0 {
		fc.BBox = boundary.Bounds(features)
	}
	return fc
}

// WriteGeoJSON writes FeatureCollection as JSON.
func (d *Dataset) WriteGeoJSON(w io.Writer) error {
	data, err := json.Marshal(d.FeatureCollection())
	if err != nil {
		return eris.Wrap(err, "dataset: encode geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "dataset: write geojson")
	}
	return nil
}

// Table returns FIPS, name, value, group and label per area.
func (d *Dataset) Table() *fetcher.Table {
	rows := make([][]string, len(d.Areas))
	for i, a := range d.Areas {
		v := ""
		if !math.IsNaN(a.Value) {
			v = strconv.FormatFloat(a.Value, 'f', d.Opts.Precision, 64)
		}
		rows[i] = []string{a.FIPS, a.Name, v, strconv.Itoa(a.Group), a.Label}
	}
	return fetcher.NewTable([]string{"FIPS", "name", "value", "group", "label"}, rows)
}

// WriteCSV writes Table as CSV.
func (d *Dataset) WriteCSV(w io.Writer) error {
	return d.Table().WriteCSV(w)
}

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
