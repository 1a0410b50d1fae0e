// Package cities loads city points and decides where their labels go.
package cities

import (
	"bytes"
	"context"
	_ "embed"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/choroshape/internal/fetcher"
)

//go:embed texas_labels.csv
var texasLabels []byte

// Position is where a label sits relative to its point.
type Position string

const (
	TopLeft  Position = "top_left"
	BotLeft  Position = "bot_left"
	TopRight Position = "top_right"
	BotRight Position = "bot_right"
)

// DefaultOffset is the label offset, in axes fraction, for cities
// without a label spec.
const DefaultOffset = 0.005

// Label describes how one city is labeled. DX and DY are fractions of the
// plot area.
type Label struct {
	Position Position
	DX, DY   float64
}

// HAlign and VAlign say which edge of the text box is pinned to the text
// position.
type (
	HAlign string
	VAlign string
)

const (
	AlignLeft   HAlign = "left"
	AlignRight  HAlign = "right"
	AlignTop    VAlign = "top"
	AlignBottom VAlign = "bottom"
)

// Placement is the computed text anchor for a label.
type Placement struct {
	X, Y float64
	H    HAlign
	V    VAlign
}

// Place returns where the label text goes for a point at (x, y) in axes
// fraction. Labels on the left are right-aligned so they grow away from
// the point, and labels above are bottom-aligned.
func (l Label) Place(x, y float64) Placement {
	switch l.Position {
	case BotLeft:
		return Placement{X: x - l.DX, Y: y - l.DY, H: AlignRight, V: AlignTop}
	case TopRight:
		return Placement{X: x + l.DX, Y: y + l.DY, H: AlignLeft, V: AlignBottom}
	case BotRight:
		return Placement{X: x + l.DX, Y: y - l.DY, H: AlignLeft, V: AlignTop}
	default:
		return Placement{X: x - l.DX, Y: y + l.DY, H: AlignRight, V: AlignBottom}
	}
}

// DefaultLabel is used for cities with no spec.
func DefaultLabel() Label {
	return Label{Position: TopLeft, DX: DefaultOffset, DY: DefaultOffset}
}

// City is a named point with its label layout.
type City struct {
	Name  string
	X, Y  float64
	Label Label
}

// Load reads city points from a point shapefile. nameField is the DBF
// column holding city names.
func Load(path, nameField string) ([]City, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "cities: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := -1
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), nameField) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, eris.Errorf("cities: %s has no %s field", path, nameField)
	}

	var out []City
	for reader.Next() {
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok || pt == nil {
			continue
		}
		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		out = append(out, City{Name: name, X: pt.X, Y: pt.Y, Label: DefaultLabel()})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "cities: read %s", path)
	}
	zap.L().Debug("loaded cities", zap.String("path", path), zap.Int("count", len(out)))
	return out, nil
}

// LoadLabelSpecs reads label specs from a table whose first four columns
// are city name, position, dx and dy. Header names are ignored.
func LoadLabelSpecs(t *fetcher.Table) (map[string]Label, error) {
	if len(t.Header) < 4 {
		return nil, eris.Errorf("cities: label specs need 4 columns, got %d", len(t.Header))
	}
	specs := make(map[string]Label, t.Len())
	for i, row := range t.Rows {
		if len(row) < 4 {
			return nil, eris.Errorf("cities: label spec row %d is short", i+1)
		}
		pos := Position(strings.ToLower(strings.TrimSpace(row[1])))
		switch pos {
		case TopLeft, BotLeft, TopRight, BotRight:
		default:
			return nil, eris.Errorf("cities: row %d: unknown position %q", i+1, row[1])
		}
		dx, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "cities: row %d: dx", i+1)
		}
		dy, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "cities: row %d: dy", i+1)
		}
		specs[nameKey(row[0])] = Label{Position: pos, DX: dx, DY: dy}
	}
	return specs, nil
}

// TexasLabelSpecs returns the built-in label layout for major Texas
// cities.
func TexasLabelSpecs() (map[string]Label, error) {
	t, err := fetcher.ReadTable(context.Background(), bytes.NewReader(texasLabels), fetcher.CSVOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "cities: texas label specs")
	}
	return LoadLabelSpecs(t)
}

// ApplyLabels sets each city's label from specs, matched by name. Cities
// without a spec keep their label.
func ApplyLabels(cs []City, specs map[string]Label) {
	for i := range cs {
		if l, ok := specs[nameKey(cs[i].Name)]; ok {
			cs[i].Label = l
		}
	}
}

func nameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
