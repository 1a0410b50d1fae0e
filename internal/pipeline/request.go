package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/choroshape/internal/fetcher"
	"github.com/sells-group/choroshape/internal/fips"
)

// Request describes one map: where the data and boundaries come from, how
// values are derived and binned, and how the map looks.
type Request struct {
	// Data is a CSV, XLSX or JSON table, local or remote.
	Data     string `json:"data"`
	Sheet    string `json:"sheet,omitempty"`
	SkipRows int    `json:"skip_rows,omitempty"`

	// Boundaries is a shapefile (.shp or .zip, local or remote). When empty
	// counties come from PostGIS if configured, else from the Census
	// cartographic boundary download.
	Boundaries string `json:"boundaries,omitempty"`
	// State restricts the map to one state (abbreviation or 2-digit code)
	// and completes 3-digit county codes.
	State string `json:"state,omitempty"`

	FIPSColumn     string `json:"fips_column,omitempty"`
	StateColumn    string `json:"state_column,omitempty"`
	CategoryColumn string `json:"category_column,omitempty"`
	TotalColumn    string `json:"total_column,omitempty"`

	CategoryName string `json:"category_name,omitempty"`
	Title        string `json:"title,omitempty"`
	Footnote     string `json:"footnote,omitempty"`

	// Bins are explicit edges. Level builds offset bins around a value
	// instead; Direction "pos" makes Level the top of the first bin.
	Bins           []float64      `json:"bins,omitempty"`
	Level          float64        `json:"level,omitempty"`
	Direction      string         `json:"direction,omitempty"`
	Dif            float64        `json:"dif,omitempty"`
	NumCats        int            `json:"num_cats,omitempty"`
	Precision      *int           `json:"precision,omitempty"`
	PercentFormat  *bool          `json:"percent_format,omitempty"`
	LabeledCutoffs map[int]string `json:"labeled_cutoffs,omitempty"`

	Preset string `json:"preset,omitempty"`
	Colors string `json:"colors,omitempty"`
	Size   string `json:"size,omitempty"`

	Cities        string `json:"cities,omitempty"`
	CityNameField string `json:"city_name_field,omitempty"`
	// CityLabels is a label spec table, or "texas" for the built-in one.
	CityLabels string `json:"city_labels,omitempty"`

	Format  string `json:"format,omitempty"`
	OutDir  string `json:"out_dir,omitempty"`
	GeoJSON string `json:"geojson,omitempty"`
	CSV     string `json:"csv,omitempty"`
}

// Validate checks the request on its own, before any I/O.
func (r *Request) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Data) == "" {
		problems = append(problems, "data is required")
	}
	if r.CategoryColumn == "" && r.TotalColumn == "" {
		problems = append(problems, "category_column or total_column is required")
	}
	if r.State != "" {
		if _, ok := fips.StateFIPS(r.State); !ok {
			problems = append(problems, "unknown state "+r.State)
		}
	}
	if len(r.Bins) > 0 && r.Level != 0 {
		problems = append(problems, "bins and level are mutually exclusive")
	}
	if r.Level < 0 {
		problems = append(problems, "level must be > 0")
	}
	if r.NumCats < 0 {
		problems = append(problems, "num_cats must be >= 1")
	}
	if r.Precision != nil && *r.Precision < 0 {
		problems = append(problems, "precision must be >= 0")
	}
	if r.Cities != "" && r.CityNameField == "" {
		problems = append(problems, "city_name_field is required with cities")
	}
	if len(problems) > 0 {
		return eris.Errorf("pipeline: invalid request: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Confine restricts a request from a caller that must not touch the local
// filesystem: inputs have to be http(s) or ftp locations, and output paths
// have to be relative paths that stay inside root. Output paths are
// rewritten to absolute paths below root; an empty out_dir becomes root.
func (r *Request) Confine(root string) error {
	var problems []string

	inputs := []struct{ name, value string }{
		{"data", r.Data},
		{"boundaries", r.Boundaries},
		{"cities", r.Cities},
		{"city_labels", r.CityLabels},
	}
	for _, in := range inputs {
		if in.value == "" || fetcher.IsRemote(in.value) {
			continue
		}
		if in.name == "city_labels" && strings.EqualFold(in.value, "texas") {
			continue
		}
		problems = append(problems, in.name+" must be an http(s) or ftp URL")
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return eris.Wrap(err, "pipeline: resolve output root")
	}
	outputs := []struct {
		name string
		path *string
	}{
		{"out_dir", &r.OutDir},
		{"geojson", &r.GeoJSON},
		{"csv", &r.CSV},
	}
	for _, out := range outputs {
		switch {
		case *out.path == "":
			if out.name == "out_dir" {
				*out.path = root
			}
		case !filepath.IsLocal(*out.path):
			problems = append(problems, out.name+" must be a relative path inside the output directory")
		default:
			*out.path = filepath.Join(root, *out.path)
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("pipeline: request not allowed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (r *Request) stateFIPS() string {
	code, _ := fips.StateFIPS(r.State)
	return code
}
