package main

import (
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/choroshape/internal/census"
)

var censusCmd = &cobra.Command{
	Use:   "census <variable>...",
	Short: "Fetch county estimates from the Census Data API into a CSV",
	Long: `Requests NAME plus the given variables for every county of --state (or the
nation) and writes them with a normalized FIPS column, ready for render.

Example:
  choroshape census B03003_003E B03003_001E --state TX -o hispanic.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("census"); err != nil {
			return err
		}
		state, _ := cmd.Flags().GetString("state")
		year, _ := cmd.Flags().GetInt("year")
		dataset, _ := cmd.Flags().GetString("dataset")
		output, _ := cmd.Flags().GetString("output")

		q := census.Query{
			Year:      cfg.Census.Year,
			Dataset:   cfg.Census.Dataset,
			Variables: splitVars(args),
			State:     state,
		}
		if year > 0 {
			q.Year = year
		}
		if dataset != "" {
			q.Dataset = dataset
		}

		client := census.New(initFetcher(), cfg.Census.BaseURL, cfg.Census.APIKey)
		tbl, err := client.County(cmd.Context(), q)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return eris.Wrapf(err, "census: create %s", output)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return tbl.WriteCSV(out)
	},
}

// splitVars accepts variables as separate args or comma lists.
func splitVars(args []string) []string {
	var out []string
	for _, a := range args {
		for _, v := range strings.Split(a, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func init() {
	censusCmd.Flags().String("state", "", "state abbreviation or 2-digit FIPS code (default all states)")
	censusCmd.Flags().Int("year", 0, "vintage (default from config)")
	censusCmd.Flags().String("dataset", "", "dataset path, e.g. acs/acs5 (default from config)")
	censusCmd.Flags().StringP("output", "o", "", "output CSV (default stdout)")
	rootCmd.AddCommand(censusCmd)
}
