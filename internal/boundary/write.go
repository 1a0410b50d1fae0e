package boundary

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
)

// WriteShapefile writes features as a polygon shapefile with GEOID,
// STATEFP, COUNTYFP and NAME fields. Ring order and orientation are kept.
func WriteShapefile(path string, features []Feature) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "boundary: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields([]shp.Field{
		shp.StringField("GEOID", 5),
		shp.StringField("STATEFP", 2),
		shp.StringField("COUNTYFP", 3),
		shp.StringField("NAME", 100),
	}); err != nil {
		return eris.Wrap(err, "boundary: set fields")
	}

	for _, f := range features {
		if f.Geom == nil || len(f.FIPS) != 5 {
			return eris.Errorf("boundary: feature %q needs a 5-digit FIPS and a geometry", f.FIPS)
		}
		var parts [][]shp.Point
		for i := 0; i < f.Geom.NumPolygons(); i++ {
			poly := f.Geom.Polygon(i)
			for j := 0; j < poly.NumLinearRings(); j++ {
				coords := poly.LinearRing(j).Coords()
				pts := make([]shp.Point, len(coords))
				for k, c := range coords {
					pts[k] = shp.Point{X: c.X(), Y: c.Y()}
				}
				parts = append(parts, pts)
			}
		}

		row := int(w.Write((*shp.Polygon)(shp.NewPolyLine(parts))))
		name := f.Name
		if len(name) > 100 {
			name = name[:100]
		}
		for field, v := range []string{f.FIPS, f.FIPS[:2], f.FIPS[2:], name} {
			if err := w.WriteAttribute(row, field, v); err != nil {
				return eris.Wrapf(err, "boundary: write attributes for %s", f.FIPS)
			}
		}
	}
	return nil
}
