package render

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/choroshape/internal/dataset"
)

// Map area height/width ratios are clamped to this range; the data extent
// is widened to match so the map keeps its shape.
const (
	minRatio = 0.4
	maxRatio = 1.5
)

type extent struct {
	minX, maxX, minY, maxY float64
}

func areaExtent(areas []dataset.Area) (extent, error) {
	b := geom.NewBounds(geom.XY)
	var n int
	for _, a := range areas {
		if a.Geom != nil && !a.Geom.Empty() {
			b.Extend(a.Geom)
			n++
		}
	}
	if n == 0 {
		return extent{}, eris.New("render: no area has a geometry")
	}
	e := extent{minX: b.Min(0), maxX: b.Max(0), minY: b.Min(1), maxY: b.Max(1)}
	if e.maxX-e.minX <= 0 {
		e.minX, e.maxX = e.minX-0.5, e.maxX+0.5
	}
	if e.maxY-e.minY <= 0 {
		e.minY, e.maxY = e.minY-0.5, e.maxY+0.5
	}
	return e, nil
}

// geographic reports whether the extent looks like longitude/latitude.
func (e extent) geographic() bool {
	return e.minX >= -180 && e.maxX <= 180 && e.minY >= -90 && e.maxY <= 90
}

// xScale is how much wider one x unit is drawn than one y unit. Degrees of
// longitude shrink with latitude.
func (e extent) xScale() float64 {
	if !e.geographic() {
		return 1
	}
	mid := (e.minY + e.maxY) / 2 * math.Pi / 180
	return math.Max(math.Cos(mid), 0.1)
}

// fit returns the extent widened to the clamped height/width ratio, and
// that ratio.
func (e extent) fit() (extent, float64) {
	k := e.xScale()
	dx := (e.maxX - e.minX) * k
	dy := e.maxY - e.minY
	ratio := dy / dx
	target := math.Min(math.Max(ratio, minRatio), maxRatio)

	out := e
	switch {
	case ratio < target:
		grow := (target*dx - dy) / 2
		out.minY -= grow
		out.maxY += grow
	case ratio > target:
		grow := (dy/target - dx) / k / 2
		out.minX -= grow
		out.maxX += grow
	}
	return out, target
}

// frac converts a data point to a fraction of the extent.
func (e extent) frac(x, y float64) (float64, float64) {
	return (x - e.minX) / (e.maxX - e.minX), (y - e.minY) / (e.maxY - e.minY)
}

// at converts a fraction of the extent back to data coordinates.
func (e extent) at(fx, fy float64) (float64, float64) {
	return e.minX + fx*(e.maxX-e.minX), e.minY + fy*(e.maxY-e.minY)
}

func (e extent) contains(x, y float64) bool {
	return x >= e.minX && x <= e.maxX && y >= e.minY && y <= e.maxY
}
