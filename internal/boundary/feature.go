// Package boundary loads county polygons from shapefiles or PostGIS and
// keys them by 5-digit FIPS code.
package boundary

import (
	"context"
	"strings"

	"github.com/twpayne/go-geom"
)

// Feature is one county polygon.
type Feature struct {
	FIPS  string
	Name  string
	Attrs map[string]string
	Geom  *geom.MultiPolygon
}

// Source yields county features, optionally restricted to one state.
type Source interface {
	Counties(ctx context.Context, stateFIPS string) ([]Feature, error)
}

// FilterState keeps features whose FIPS starts with the 2-digit state code.
// An empty state keeps everything.
func FilterState(features []Feature, stateFIPS string) []Feature {
	if stateFIPS == "" {
		return features
	}
	out := make([]Feature, 0, len(features))
	for _, f := range features {
		if strings.HasPrefix(f.FIPS, stateFIPS) {
			out = append(out, f)
		}
	}
	return out
}

// Bounds returns the combined bounding box of the features' geometries.
func Bounds(features []Feature) *geom.Bounds {
	b := geom.NewBounds(geom.XY)
	for _, f := range features {
		if f.Geom != nil && !f.Geom.Empty() {
			b.Extend(f.Geom)
		}
	}
	return b
}
