package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/choroshape/internal/binning"
)

var binsCmd = &cobra.Command{
	Use:   "bins <level>",
	Short: "Print offset bin edges and labels around a level",
	Long: `Builds bin edges anchored at a level (a percentage, or a fraction below 1).
With --direction pos the level is the top of the first bin; otherwise it sits at
the middle edge and categories spread by --dif on both sides.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return eris.Wrapf(err, "bins: parse level %q", args[0])
		}
		numCats, _ := cmd.Flags().GetInt("num-cats")
		dif, _ := cmd.Flags().GetFloat64("dif")
		dir, _ := cmd.Flags().GetString("direction")
		precision, _ := cmd.Flags().GetInt("precision")
		percent, _ := cmd.Flags().GetBool("percent")

		edges, err := binning.CustomBins(level, binning.CustomOptions{
			NumCats:   numCats,
			Dif:       dif,
			Direction: binning.ParseDirection(dir),
			Precision: precision,
		})
		if err != nil {
			return err
		}
		edges, err = binning.Normalize(edges, precision, false)
		if err != nil {
			return err
		}
		labels := binning.Labels(edges, binning.LabelOptions{Precision: precision, Percent: percent})
		formatBins(os.Stdout, edges, labels)
		return nil
	},
}

func formatBins(out io.Writer, edges []float64, labels []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "GROUP\tLOWER\tUPPER\tLABEL")
	for i, label := range labels {
		_, _ = fmt.Fprintf(w, "%d\t%g\t%g\t%s\n", i+1, edges[i], edges[i+1], label)
	}
	_ = w.Flush()
}

func init() {
	binsCmd.Flags().Int("num-cats", 4, "number of categories")
	binsCmd.Flags().Float64("dif", 0.1, "multiplier step between categories")
	binsCmd.Flags().String("direction", "", "pos or neutral")
	binsCmd.Flags().Int("precision", 1, "decimals kept on edges and labels")
	binsCmd.Flags().Bool("percent", true, "format labels as percentages")
	rootCmd.AddCommand(binsCmd)
}
