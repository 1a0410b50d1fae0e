// Package style describes how a choropleth looks: color ramp, borders,
// resolution, legend and title placement.
package style

import (
	"image/color"
	"sort"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mitchellh/go-wordwrap"
	"github.com/rotisserie/eris"
	"golang.org/x/image/colornames"

	"github.com/sells-group/choroshape/internal/config"
)

// Ramps maps a ramp name to its darkest color; every ramp starts at white.
var Ramps = map[string]string{
	"reds":        "darkred",
	"orangereds":  "orangered",
	"oranges":     "darkorange",
	"yellows":     "darkgoldenrod",
	"greens":      "darkgreen",
	"teals":       "teal",
	"blues":       "darkblue",
	"violets":     "indigo",
	"purples":     "darkviolet",
	"texas_reds":  "#B72639",
	"texas_blues": "#2E2D71",
}

// Sizes maps a size name to output resolution in DPI.
var Sizes = map[string]int{
	"small": 75,
	"med":   100,
	"large": 150,
}

// TitleWrapWidth is the column width long titles are wrapped at.
const TitleWrapWidth = 40

// Style is the look of one map. Zero values are filled by Default.
type Style struct {
	Colors         string  `yaml:"colors" json:"colors"`
	BorderColor    string  `yaml:"border_color" json:"border_color"`
	BorderWidth    float64 `yaml:"border_width" json:"border_width"`
	MissingColor   string  `yaml:"missing_color" json:"missing_color"`
	Size           string  `yaml:"size" json:"size"`
	LegendLoc      string  `yaml:"legend_loc" json:"legend_loc"`
	LegX           float64 `yaml:"leg_x" json:"leg_x"`
	LegY           float64 `yaml:"leg_y" json:"leg_y"`
	TitleAlign     string  `yaml:"title_align" json:"title_align"`
	TitleX         float64 `yaml:"title_x" json:"title_x"`
	TitleY         float64 `yaml:"title_y" json:"title_y"`
	TitleCharLimit int     `yaml:"title_char_limit" json:"title_char_limit"`
}

// Default returns the house style.
func Default() *Style {
	return &Style{
		Colors:         "blues",
		BorderColor:    "#979797",
		BorderWidth:    0.6,
		MissingColor:   "lightgray",
		Size:           "med",
		LegendLoc:      "upper left",
		LegX:           -0.01,
		LegY:           0.32,
		TitleAlign:     "left",
		TitleX:         0,
		TitleY:         0.92,
		TitleCharLimit: 55,
	}
}

// FromConfig builds a style from the configured defaults.
func FromConfig(c config.StyleConfig) *Style {
	s := Default()
	if c.Colors != "" {
		s.Colors = c.Colors
	}
	if c.BorderColor != "" {
		s.BorderColor = c.BorderColor
	}
	if c.BorderWidth > 0 {
		s.BorderWidth = c.BorderWidth
	}
	if c.Size != "" {
		s.Size = c.Size
	}
	if c.LegendLoc != "" {
		s.LegendLoc = c.LegendLoc
	}
	if c.TitleAlign != "" {
		s.TitleAlign = c.TitleAlign
	}
	if c.TitleCharLimit > 0 {
		s.TitleCharLimit = c.TitleCharLimit
	}
	s.LegX, s.LegY = c.LegX, c.LegY
	s.TitleX, s.TitleY = c.TitleX, c.TitleY
	return s
}

// Validate reports every invalid setting.
func (s *Style) Validate() error {
	var problems []string
	if _, err := s.Darkest(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := ParseColor(s.BorderColor); err != nil {
		problems = append(problems, "border color: "+err.Error())
	}
	if s.MissingColor != "" {
		if _, err := ParseColor(s.MissingColor); err != nil {
			problems = append(problems, "missing color: "+err.Error())
		}
	}
	if s.BorderWidth < 0 {
		problems = append(problems, "border width must be >= 0")
	}
	if _, err := s.DPI(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, _, err := LegendAnchor(s.LegendLoc); err != nil {
		problems = append(problems, err.Error())
	}
	switch s.TitleAlign {
	case "left", "center", "right":
	default:
		problems = append(problems, "title align must be left, center or right")
	}
	if s.TitleCharLimit <= 0 {
		problems = append(problems, "title char limit must be > 0")
	}
	if len(problems) > 0 {
		return eris.Errorf("style: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Darkest returns the last color of the ramp.
func (s *Style) Darkest() (colorful.Color, error) {
	name, ok := Ramps[strings.ToLower(s.Colors)]
	if !ok {
		return colorful.Color{}, eris.Errorf("style: unknown color ramp %q (have %s)", s.Colors, strings.Join(RampNames(), ", "))
	}
	return ParseColor(name)
}

// Colors returns n colors spaced evenly from white to the darkest color,
// both ends included. A single color is white, the start of the ramp.
func (s *Style) Colors(n int) ([]color.Color, error) {
	dark, err := s.Darkest()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, eris.Errorf("style: need a positive number of colors, got %d", n)
	}
	white := colorful.Color{R: 1, G: 1, B: 1}
	if n == 1 {
		return []color.Color{white}, nil
	}
	out := make([]color.Color, n)
	for i := range n {
		out[i] = white.BlendRgb(dark, float64(i)/float64(n-1)).Clamped()
	}
	return out, nil
}

// Border returns the border color.
func (s *Style) Border() (color.Color, error) {
	c, err := ParseColor(s.BorderColor)
	if err != nil {
		return nil, eris.Wrap(err, "style: border color")
	}
	return c, nil
}

// Missing returns the fill for areas without data.
func (s *Style) Missing() color.Color {
	if c, err := ParseColor(s.MissingColor); err == nil {
		return c
	}
	return colornames.Lightgray
}

// DPI resolves the size name (or an explicit number) to a resolution.
func (s *Style) DPI() (int, error) {
	if s.Size == "" {
		return Sizes["med"], nil
	}
	if dpi, ok := Sizes[strings.ToLower(s.Size)]; ok {
		return dpi, nil
	}
	dpi, err := strconv.Atoi(s.Size)
	if err != nil || dpi <= 0 {
		return 0, eris.Errorf("style: size must be small, med, large or a positive DPI, got %q", s.Size)
	}
	return dpi, nil
}

// TitleLines wraps titles longer than the char limit at TitleWrapWidth
// columns. Long words are never broken.
func (s *Style) TitleLines(title string) []string {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	limit := s.TitleCharLimit
	if limit <= 0 {
		limit = 55
	}
	if len([]rune(title)) <= limit {
		return []string{title}
	}
	return strings.Split(wordwrap.WrapString(title, TitleWrapWidth), "\n")
}

// LegendAnchor returns which point of the legend box sits on (LegX, LegY),
// as fractions of the box measured from its left and bottom edges.
func LegendAnchor(loc string) (fx, fy float64, err error) {
	switch strings.ToLower(strings.TrimSpace(loc)) {
	case "upper left":
		return 0, 1, nil
	case "upper center":
		return 0.5, 1, nil
	case "upper right":
		return 1, 1, nil
	case "center left":
		return 0, 0.5, nil
	case "center":
		return 0.5, 0.5, nil
	case "center right", "right":
		return 1, 0.5, nil
	case "lower left":
		return 0, 0, nil
	case "lower center":
		return 0.5, 0, nil
	case "lower right":
		return 1, 0, nil
	default:
		return 0, 0, eris.Errorf("style: unknown legend location %q", loc)
	}
}

// ParseColor accepts "#rrggbb" hex or an SVG color name.
func ParseColor(s string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return colorful.Color{}, eris.Wrapf(err, "style: parse color %q", s)
		}
		return c, nil
	}
	rgba, ok := colornames.Map[strings.ToLower(s)]
	if !ok {
		return colorful.Color{}, eris.Errorf("style: unknown color %q", s)
	}
	c, _ := colorful.MakeColor(rgba)
	return c, nil
}

// RampNames lists the ramp names in order.
func RampNames() []string {
	names := make([]string, 0, len(Ramps))
	for n := range Ramps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
