package render

import (
	"image/color"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
	xfont "golang.org/x/image/font"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sells-group/choroshape/internal/binning"
	"github.com/sells-group/choroshape/internal/cities"
	"github.com/sells-group/choroshape/internal/style"
)

// Font sizes in points, relative to a 10pt base.
const (
	sizeLarge    = 12
	sizeXSmall   = 6.94
	sizeXXSmall  = 5.79
	sizeFootnote = 6
	cityMarker   = 1.5
)

// Legend geometry in multiples of the legend font size.
const (
	handleLength  = 2.5
	handleHeight  = 1.5
	labelSpacing  = 0.5
	borderPad     = 0.4
	handleTextPad = 0.8
)

// headingOffset places the legend heading and footnote just outside the
// legend box, as a fraction of the map area.
const headingOffset = 0.005

func textStyle(size vg.Length, bold bool) text.Style {
	f := font.Font{Typeface: "Liberation", Variant: "Sans"}
	if bold {
		f.Weight = xfont.WeightBold
	}
	return text.Style{
		Color:   color.Black,
		Font:    font.From(f, size),
		Handler: plot.DefaultTextHandler,
	}
}

func (m *Map) draw(dc draw.Canvas) error {
	dc.SetColor(color.White)
	dc.Fill(dc.Rectangle.Path())

	ext, _ := m.ext.fit()
	p := plot.New()
	p.HideAxes()
	p.X.Padding, p.Y.Padding = 0, 0
	p.BackgroundColor = nil

	if err := m.addAreas(p); err != nil {
		return err
	}
	if err := m.addCities(p, ext); err != nil {
		return err
	}
	p.X.Min, p.X.Max = ext.minX, ext.maxX
	p.Y.Min, p.Y.Max = ext.minY, ext.maxY

	mc := draw.Crop(dc, m.opts.Margin, -m.opts.Margin, m.opts.Margin, -m.opts.Margin)
	p.Draw(mc)
	area := p.DataCanvas(mc)

	m.drawTitle(dc, area)
	box := m.drawLegend(dc, area)
	m.drawFootnote(dc, area, box)
	return nil
}

// at converts a fraction of the map area to a canvas point.
func at(area draw.Canvas, fx, fy float64) vg.Point {
	return vg.Point{
		X: area.Min.X + vg.Length(fx)*(area.Max.X-area.Min.X),
		Y: area.Min.Y + vg.Length(fy)*(area.Max.Y-area.Min.Y),
	}
}

func (m *Map) addAreas(p *plot.Plot) error {
	width := vg.Points(m.st.BorderWidth)
	for _, a := range m.ds.Areas {
		if a.Geom == nil {
			continue
		}
		fill := m.fills[0]
		if a.Group > 0 && a.Group < len(m.fills) {
			fill = m.fills[a.Group]
		}
		line := draw.LineStyle{Color: m.border, Width: width}
		if width <= 0 {
			line = draw.LineStyle{Color: fill, Width: vg.Points(0.1)}
		}
		for i := 0; i < a.Geom.NumPolygons(); i++ {
			rings := polygonRings(a.Geom.Polygon(i))
			if len(rings) == 0 {
				continue
			}
			poly, err := plotter.NewPolygon(rings...)
			if err != nil {
				return eris.Wrapf(err, "render: polygon for %s", a.FIPS)
			}
			poly.Color = fill
			poly.LineStyle = line
			p.Add(poly)
		}
	}
	return nil
}

// polygonRings converts a polygon to plotter rings with holes wound
// opposite to the outer ring, which is how the vg backends cut holes.
func polygonRings(poly *geom.Polygon) []plotter.XYer {
	var (
		rings    []plotter.XYer
		outerCCW bool
	)
	for j := 0; j < poly.NumLinearRings(); j++ {
		ring := poly.LinearRing(j)
		flat := ring.FlatCoords()
		if len(flat) < 8 {
			continue
		}
		ccw := xy.IsRingCounterClockwise(geom.XY, flat)
		if j == 0 {
			outerCCW = ccw
		}
		n := ring.NumCoords()
		xys := make(plotter.XYs, n)
		for k := range n {
			c := ring.Coord(k)
			xys[k] = plotter.XY{X: c.X(), Y: c.Y()}
		}
		if j > 0 && ccw == outerCCW {
			for l, r := 0, len(xys)-1; l < r; l, r = l+1, r-1 {
				xys[l], xys[r] = xys[r], xys[l]
			}
		}
		if j == 0 || len(rings) > 0 {
			rings = append(rings, xys)
		}
	}
	return rings
}

// addCities plots black markers for cities inside the map and their
// labels, offset in fractions of the map area.
func (m *Map) addCities(p *plot.Plot, ext extent) error {
	if len(m.cities) == 0 {
		return nil
	}
	var (
		pts    plotter.XYs
		labels plotter.XYLabels
		styles []text.Style
	)
	for _, c := range m.cities {
		if !ext.contains(c.X, c.Y) {
			continue
		}
		fx, fy := ext.frac(c.X, c.Y)
		pl := c.Label.Place(fx, fy)
		tx, ty := ext.at(pl.X, pl.Y)

		sty := textStyle(sizeXXSmall, false)
		sty.XAlign, sty.YAlign = cityAlign(pl)

		pts = append(pts, plotter.XY{X: c.X, Y: c.Y})
		labels.XYs = append(labels.XYs, plotter.XY{X: tx, Y: ty})
		labels.Labels = append(labels.Labels, c.Name)
		styles = append(styles, sty)
	}
	if dropped := len(m.cities) - len(pts); dropped > 0 {
		zap.L().Debug("cities outside the map skipped", zap.String("component", "render"), zap.Int("cities", dropped))
	}
	if len(pts) == 0 {
		return nil
	}

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return eris.Wrap(err, "render: city markers")
	}
	sc.GlyphStyle = draw.GlyphStyle{Color: color.Black, Radius: vg.Points(cityMarker), Shape: draw.CircleGlyph{}}

	lb, err := plotter.NewLabels(labels)
	if err != nil {
		return eris.Wrap(err, "render: city labels")
	}
	lb.TextStyle = styles
	p.Add(sc, lb)
	return nil
}

func cityAlign(pl cities.Placement) (text.XAlignment, text.YAlignment) {
	x, y := text.XRight, text.YBottom
	if pl.H == cities.AlignLeft {
		x = text.XLeft
	}
	if pl.V == cities.AlignTop {
		y = text.YTop
	}
	return x, y
}

func (m *Map) drawTitle(dc draw.Canvas, area draw.Canvas) {
	lines := m.st.TitleLines(m.ds.Title())
	if len(lines) == 0 {
		return
	}
	sty := textStyle(sizeLarge, true)
	sty.YAlign = text.YBottom
	switch m.st.TitleAlign {
	case "center":
		sty.XAlign = text.XCenter
	case "right":
		sty.XAlign = text.XRight
	default:
		sty.XAlign = text.XLeft
	}
	dc.FillText(sty, at(area, m.st.TitleX, m.st.TitleY), strings.Join(lines, "\n"))
}

type legendEntry struct {
	label string
	fill  color.Color
}

func (m *Map) legendEntries() []legendEntry {
	groups := m.ds.Groups()
	entries := make([]legendEntry, 0, len(groups)+1)
	for i, g := range groups {
		entries = append(entries, legendEntry{label: g, fill: m.fills[i+1]})
	}
	if m.ds.HasMissing() {
		entries = append(entries, legendEntry{label: binning.MissingLabel, fill: m.fills[0]})
	}
	return entries
}

// drawLegend draws one color patch and label per group, anchored at
// (LegX, LegY) by the legend location, plus a "Legend" heading. It
// returns the legend box.
func (m *Map) drawLegend(dc draw.Canvas, area draw.Canvas) vg.Rectangle {
	entries := m.legendEntries()
	sty := textStyle(sizeXSmall, false)
	fs := vg.Length(sizeXSmall)

	var labelW vg.Length
	for _, e := range entries {
		labelW = max(labelW, sty.Width(e.label))
	}
	hw, hh := handleLength*fs, handleHeight*fs
	pad, gap, spacing := borderPad*fs, handleTextPad*fs, labelSpacing*fs
	n := vg.Length(len(entries))
	w := 2*pad + hw + gap + labelW
	h := 2*pad + n*hh + (n-1)*spacing

	fx, fy, err := style.LegendAnchor(m.st.LegendLoc)
	if err != nil {
		fx, fy = 0, 1
	}
	anchor := at(area, m.st.LegX, m.st.LegY)
	lo := vg.Point{X: anchor.X - vg.Length(fx)*w, Y: anchor.Y - vg.Length(fy)*h}
	box := vg.Rectangle{Min: lo, Max: vg.Point{X: lo.X + w, Y: lo.Y + h}}

	edge := draw.LineStyle{Color: m.border, Width: vg.Points(m.st.BorderWidth)}
	sty.XAlign, sty.YAlign = text.XLeft, text.YCenter
	for i, e := range entries {
		top := box.Max.Y - pad - vg.Length(i)*(hh+spacing)
		x0 := box.Min.X + pad
		patch := []vg.Point{
			{X: x0, Y: top - hh},
			{X: x0 + hw, Y: top - hh},
			{X: x0 + hw, Y: top},
			{X: x0, Y: top},
		}
		dc.FillPolygon(e.fill, patch)
		if edge.Width > 0 {
			dc.StrokeLines(edge, append(patch, patch[0]))
		}
		dc.FillText(sty, vg.Point{X: x0 + hw + gap, Y: top - hh/2}, e.label)
	}

	heading := textStyle(sizeXSmall, true)
	heading.XAlign, heading.YAlign = text.XLeft, text.YBottom
	dc.FillText(heading, m.offset(area, box.Min.X, box.Max.Y, headingOffset, headingOffset), "Legend")
	return box
}

// drawFootnote writes the footnote just below the legend box.
func (m *Map) drawFootnote(dc draw.Canvas, area draw.Canvas, box vg.Rectangle) {
	note := strings.TrimSpace(m.ds.Opts.Footnote)
	if note == "" {
		return
	}
	sty := textStyle(sizeFootnote, false)
	sty.XAlign, sty.YAlign = text.XLeft, text.YTop
	dc.FillText(sty, m.offset(area, box.Min.X, box.Min.Y, headingOffset, -headingOffset), note)
}

// offset moves a canvas point by fractions of the map area.
func (m *Map) offset(area draw.Canvas, x, y vg.Length, fx, fy float64) vg.Point {
	return vg.Point{
		X: x + vg.Length(fx)*(area.Max.X-area.Min.X),
		Y: y + vg.Length(fy)*(area.Max.Y-area.Min.Y),
	}
}
