package style

import (
	_ "embed"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtinPresets []byte

// preset mirrors Style with optional fields so a preset only overrides
// what it sets.
type preset struct {
	Colors         *string  `yaml:"colors"`
	BorderColor    *string  `yaml:"border_color"`
	BorderWidth    *float64 `yaml:"border_width"`
	MissingColor   *string  `yaml:"missing_color"`
	Size           *string  `yaml:"size"`
	LegendLoc      *string  `yaml:"legend_loc"`
	LegX           *float64 `yaml:"leg_x"`
	LegY           *float64 `yaml:"leg_y"`
	TitleAlign     *string  `yaml:"title_align"`
	TitleX         *float64 `yaml:"title_x"`
	TitleY         *float64 `yaml:"title_y"`
	TitleCharLimit *int     `yaml:"title_char_limit"`
}

// Presets is a table of named style overrides, keyed case-insensitively.
type Presets struct {
	entries map[string]preset
}

// BuiltinPresets returns the presets shipped with the binary.
func BuiltinPresets() (*Presets, error) {
	return ParsePresets(builtinPresets)
}

// LoadPresets reads presets from a YAML file. Entries from the file
// replace built-in entries of the same name.
func LoadPresets(path string) (*Presets, error) {
	p, err := BuiltinPresets()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "style: read presets %s", path)
	}
	extra, err := ParsePresets(data)
	if err != nil {
		return nil, eris.Wrapf(err, "style: presets %s", path)
	}
	for k, v := range extra.entries {
		p.entries[k] = v
	}
	return p, nil
}

// ParsePresets decodes a YAML mapping of name to style fields.
func ParsePresets(data []byte) (*Presets, error) {
	raw := map[string]preset{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "style: parse presets")
	}
	p := &Presets{entries: make(map[string]preset, len(raw))}
	for k, v := range raw {
		p.entries[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return p, nil
}

// Names lists preset names in order.
func (p *Presets) Names() []string {
	names := make([]string, 0, len(p.entries))
	for k := range p.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Apply returns a copy of base with the named preset's fields applied.
func (p *Presets) Apply(name string, base *Style) (*Style, error) {
	e, ok := p.entries[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, eris.Errorf("style: unknown preset %q", name)
	}
	s := *base
	setString(&s.Colors, e.Colors)
	setString(&s.BorderColor, e.BorderColor)
	setString(&s.MissingColor, e.MissingColor)
	setString(&s.Size, e.Size)
	setString(&s.LegendLoc, e.LegendLoc)
	setString(&s.TitleAlign, e.TitleAlign)
	setFloat(&s.BorderWidth, e.BorderWidth)
	setFloat(&s.LegX, e.LegX)
	setFloat(&s.LegY, e.LegY)
	setFloat(&s.TitleX, e.TitleX)
	setFloat(&s.TitleY, e.TitleY)
	if e.TitleCharLimit != nil {
		s.TitleCharLimit = *e.TitleCharLimit
	}
	return &s, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
