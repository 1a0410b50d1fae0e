package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/choroshape/internal/fetcher"
	"github.com/sells-group/choroshape/internal/fips"
)

var fipsCmd = &cobra.Command{
	Use:   "fips <data>",
	Short: "Normalize a table's FIPS column to 5-digit county codes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		column, _ := cmd.Flags().GetString("column")
		state, _ := cmd.Flags().GetString("state")
		stateColumn, _ := cmd.Flags().GetString("state-column")
		output, _ := cmd.Flags().GetString("output")

		tbl, err := fetcher.Read(cmd.Context(), initFetcher(), args[0], fetcher.ReadOptions{})
		if err != nil {
			return err
		}
		if err := normalizeFIPS(tbl, column, state, stateColumn); err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return eris.Wrapf(err, "fips: create %s", output)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return tbl.WriteCSV(out)
	},
}

// normalizeFIPS rewrites column in place. state is an abbreviation or
// 2-digit code; stateColumn takes precedence when set.
func normalizeFIPS(tbl *fetcher.Table, column, state, stateColumn string) error {
	counties, err := tbl.Column(column)
	if err != nil {
		return err
	}
	st := fips.State{}
	switch {
	case stateColumn != "":
		states, err := tbl.Column(stateColumn)
		if err != nil {
			return err
		}
		st = fips.StateColumn(states)
	case state != "":
		code, ok := fips.StateFIPS(state)
		if !ok {
			return eris.Errorf("fips: unknown state %q", state)
		}
		st = fips.StateCode(code)
	}
	codes, err := fips.Normalize(counties, st)
	if err != nil {
		return eris.Wrapf(err, "fips: column %s", column)
	}
	return tbl.SetColumn(column, codes)
}

func init() {
	fipsCmd.Flags().String("column", "FIPS", "column with county codes")
	fipsCmd.Flags().String("state", "", "state for 3-digit county codes")
	fipsCmd.Flags().String("state-column", "", "column with state codes")
	fipsCmd.Flags().StringP("output", "o", "", "output CSV (default stdout)")
	rootCmd.AddCommand(fipsCmd)
}
