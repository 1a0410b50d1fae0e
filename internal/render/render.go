// Package render draws a binned dataset as a choropleth map with gonum/plot.
package render

import (
	"context"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/sells-group/choroshape/internal/cities"
	"github.com/sells-group/choroshape/internal/dataset"
	"github.com/sells-group/choroshape/internal/style"
)

// Format is an output file format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpg"
	TIFF Format = "tiff"
	SVG  Format = "svg"
	PDF  Format = "pdf"
)

// ParseFormat accepts a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "png", "":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "tif", "tiff":
		return TIFF, nil
	case "svg":
		return SVG, nil
	case "pdf":
		return PDF, nil
	default:
		return "", eris.Errorf("render: unsupported format %q", s)
	}
}

// Options sizes the figure.
type Options struct {
	Width  vg.Length // figure width; default 8 inches
	Margin vg.Length // blank space around the map area; default 0.4 inches
}

func (o *Options) defaults() {
	if o.Width <= 0 {
		o.Width = 8 * vg.Inch
	}
	if o.Margin <= 0 {
		o.Margin = 0.4 * vg.Inch
	}
}

// Map is a choropleth ready to be drawn.
type Map struct {
	ds     *dataset.Dataset
	st     *style.Style
	cities []cities.City
	opts   Options

	fills  []color.Color // indexed by group; 0 is missing
	border color.Color
	dpi    int
	ext    extent
}

// New validates the style and prepares colors for every group of ds.
func New(ds *dataset.Dataset, st *style.Style, cs []cities.City, opts Options) (*Map, error) {
	if ds == nil || len(ds.Areas) == 0 {
		return nil, eris.New("render: dataset has no areas")
	}
	if len(ds.Groups()) == 0 {
		return nil, eris.New("render: dataset has no groups")
	}
	if st == nil {
		st = style.Default()
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	opts.defaults()

	colors, err := st.Colors(len(ds.Groups()))
	if err != nil {
		return nil, err
	}
	border, err := st.Border()
	if err != nil {
		return nil, err
	}
	dpi, err := st.DPI()
	if err != nil {
		return nil, err
	}
	ext, err := areaExtent(ds.Areas)
	if err != nil {
		return nil, err
	}

	return &Map{
		ds:     ds,
		st:     st,
		cities: cs,
		opts:   opts,
		fills:  append([]color.Color{st.Missing()}, colors...),
		border: border,
		dpi:    dpi,
		ext:    ext,
	}, nil
}

// Size returns the figure width and height.
func (m *Map) Size() (w, h vg.Length) {
	_, ratio := m.ext.fit()
	inner := m.opts.Width - 2*m.opts.Margin
	return m.opts.Width, inner*vg.Length(ratio) + 2*m.opts.Margin
}

// Render draws the map and writes it to w in the given format.
func (m *Map) Render(w io.Writer, format Format) error {
	width, height := m.Size()

	var (
		c  vg.CanvasSizer
		wt io.WriterTo
	)
	switch format {
	case PNG, JPEG, TIFF:
		img := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(m.dpi))
		c = img
		switch format {
		case PNG:
			wt = vgimg.PngCanvas{Canvas: img}
		case JPEG:
			wt = vgimg.JpegCanvas{Canvas: img}
		default:
			wt = vgimg.TiffCanvas{Canvas: img}
		}
	case SVG:
		svg := vgsvg.New(width, height)
		c, wt = svg, svg
	case PDF:
		pdf := vgpdf.New(width, height)
		c, wt = pdf, pdf
	default:
		return eris.Errorf("render: unsupported format %q", format)
	}

	if err := m.draw(draw.New(c)); err != nil {
		return err
	}
	if _, err := wt.WriteTo(w); err != nil {
		return eris.Wrapf(err, "render: write %s", format)
	}
	return nil
}

// Save renders into dir, naming the file after the category, and returns
// the written path.
func (m *Map) Save(ctx context.Context, dir string, format Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "render: save")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "render: create %s", dir)
	}
	path := filepath.Join(dir, FileName(m.ds.Opts.CategoryName, format))

	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "render: create %s", path)
	}
	if err := m.Render(f, format); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "render: close %s", path)
	}

	zap.L().Info("map saved",
		zap.String("component", "render"),
		zap.String("path", path),
		zap.Int("dpi", m.dpi),
		zap.Int("areas", len(m.ds.Areas)),
	)
	return path, nil
}

// FileName builds "<category>.<ext>" with path separators replaced.
func FileName(category string, format Format) string {
	name := strings.TrimSpace(category)
	name = strings.NewReplacer("/", "_", "\\", "_", string(os.PathSeparator), "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		name = "map"
	}
	return name + "." + string(format)
}
