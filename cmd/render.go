package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/choroshape/internal/pipeline"
)

var renderCmd = &cobra.Command{
	Use:   "render <data>",
	Short: "Render a county choropleth from a CSV, XLSX or JSON table",
	Long: `Joins the table to county boundaries by FIPS code, derives a value per county
(category/total ratio, category only or total only), bins the values and writes
the map to <out-dir>/<category-name>.<format>.

Boundaries come from --boundaries (a .shp or .zip, local or remote), from PostGIS
when boundary.database_url is configured, or from the Census cartographic
boundary files otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		req, err := renderRequest(cmd, args[0])
		if err != nil {
			return err
		}

		if err := cfg.Validate("render"); err != nil {
			return err
		}

		noHistory, _ := cmd.Flags().GetBool("no-history")
		env, err := initPipeline(ctx, !noHistory)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "render")
		}
		formatResult(os.Stdout, res)
		return nil
	},
}

func renderRequest(cmd *cobra.Command, data string) (pipeline.Request, error) {
	f := cmd.Flags()
	str := func(name string) string { v, _ := f.GetString(name); return v }

	req := pipeline.Request{
		Data:           data,
		Sheet:          str("sheet"),
		Boundaries:     str("boundaries"),
		State:          str("state"),
		FIPSColumn:     str("fips-column"),
		StateColumn:    str("state-column"),
		CategoryColumn: str("category"),
		TotalColumn:    str("total"),
		CategoryName:   str("name"),
		Title:          str("title"),
		Footnote:       str("footnote"),
		Direction:      str("direction"),
		Preset:         str("preset"),
		Colors:         str("colors"),
		Size:           str("size"),
		Cities:         str("cities"),
		CityNameField:  str("city-name-field"),
		CityLabels:     str("city-labels"),
		Format:         str("format"),
		OutDir:         str("out-dir"),
		GeoJSON:        str("geojson"),
		CSV:            str("csv"),
	}
	req.SkipRows, _ = f.GetInt("skip-rows")
	req.NumCats, _ = f.GetInt("num-cats")
	req.Level, _ = f.GetFloat64("level")
	req.Dif, _ = f.GetFloat64("dif")
	req.Bins, _ = f.GetFloat64Slice("bins")

	if f.Changed("precision") {
		v, _ := f.GetInt("precision")
		req.Precision = &v
	}
	if f.Changed("percent") {
		v, _ := f.GetBool("percent")
		req.PercentFormat = &v
	}

	cutoffs, _ := f.GetStringSlice("cutoff-label")
	if len(cutoffs) > 0 {
		req.LabeledCutoffs = make(map[int]string, len(cutoffs))
		for _, c := range cutoffs {
			idx, label, ok := strings.Cut(c, "=")
			i, err := strconv.Atoi(strings.TrimSpace(idx))
			if !ok || err != nil || i < 0 {
				return req, eris.Errorf("render: --cutoff-label %q must look like <group-index>=<note>", c)
			}
			req.LabeledCutoffs[i] = label
		}
	}
	return req, nil
}

// formatResult prints the output path and the group table.
func formatResult(out io.Writer, res *pipeline.Result) {
	_, _ = fmt.Fprintf(out, "Map written to %s\n", res.Output)
	if res.RunID != "" {
		_, _ = fmt.Fprintf(out, "Run %s\n", res.RunID)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "GROUP\tLABEL\tCOUNTIES")
	for i, label := range res.Groups {
		n := 0
		if i+1 < len(res.Counts) {
			n = res.Counts[i+1]
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, label, n)
	}
	if len(res.Counts) > 0 && res.Counts[0] > 0 {
		_, _ = fmt.Fprintf(w, "-\tinsufficient data\t%d\n", res.Counts[0])
	}
	_ = w.Flush()
	for _, p := range []string{res.GeoJSON, res.CSV} {
		if p != "" {
			_, _ = fmt.Fprintf(out, "Exported %s\n", p)
		}
	}
}

func addRenderFlags(f *pflag.FlagSet) {
	f.String("sheet", "", "XLSX sheet name (default first sheet)")
	f.Int("skip-rows", 0, "rows above the header in XLSX input")
	f.String("boundaries", "", "county shapefile (.shp or .zip, path or URL)")
	f.String("state", "", "state abbreviation or 2-digit FIPS code to map")
	f.String("fips-column", "FIPS", "column with county FIPS codes")
	f.String("state-column", "", "column with state FIPS codes for 3-digit county codes")
	f.String("category", "", "column with the category count")
	f.String("total", "", "column with the total count")
	f.String("name", "Population", "category name, used for the output file name")
	f.String("title", "", "map title (default: category name)")
	f.String("footnote", "", "footnote under the legend")
	f.Float64Slice("bins", nil, "explicit bin edges, e.g. 0,10,20,100")
	f.Float64("level", 0, "build offset bins around this level")
	f.String("direction", "", "offset bin direction: pos or neutral")
	f.Float64("dif", 0, "offset bin multiplier step (default 0.1)")
	f.Int("num-cats", 0, "number of categories (default from config)")
	f.Int("precision", 1, "decimals in values and labels (default from config)")
	f.Bool("percent", true, "format labels as percentages (default from config)")
	f.StringSlice("cutoff-label", nil, "note appended to a group label, <index>=<note>")
	f.String("preset", "", "named style preset, e.g. TX")
	f.String("colors", "", "color ramp (blues, reds, texas_reds, ...)")
	f.String("size", "", "small, med, large or a DPI")
	f.String("cities", "", "city point shapefile")
	f.String("city-name-field", "NAME", "city name field in the city shapefile")
	f.String("city-labels", "", "city label spec table, or \"texas\"")
	f.String("format", "", "png, jpg, tiff, svg or pdf (default from config)")
	f.String("out-dir", "", "output directory (default from config)")
	f.String("geojson", "", "also write the joined data as GeoJSON")
	f.String("csv", "", "also write the joined data as CSV")
	f.Bool("no-history", false, "do not record the run")
}

func init() {
	addRenderFlags(renderCmd.Flags())
	rootCmd.AddCommand(renderCmd)
}
