// Package binning turns continuous values into labeled categorical groups:
// equal-frequency quantile edges, offset-based custom edges anchored at a
// reference level, edge normalization and label generation.
package binning

import (
	"math"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// MissingLabel is the label of group 0, used for areas without a value.
const MissingLabel = "insufficient data"

// Direction selects how CustomBins spreads categories around the level.
type Direction string

// Directions accepted by CustomBins.
const (
	// Neutral places the level at the midpoint category.
	Neutral Direction = ""
	// Positive makes the level the upper edge of the first category.
	Positive Direction = "pos"
)

// ParseDirection maps a user-facing name to a Direction. Anything other than
// "pos"/"positive" is treated as the midpoint scheme.
func ParseDirection(s string) Direction {
	switch s {
	case "pos", "positive":
		return Positive
	default:
		return Neutral
	}
}

// CustomOptions configures CustomBins. NumCats and Dif take their defaults
// when zero.
type CustomOptions struct {
	NumCats   int     // default 4
	Dif       float64 // multiplier step between categories, default 0.1
	Direction Direction
	Precision int // decimals kept on the positive-direction edges; midpoint edges keep 1
}

// DefaultCustomOptions returns the options used when nothing is specified.
func DefaultCustomOptions() CustomOptions {
	return CustomOptions{NumCats: 4, Dif: 0.1, Precision: 1}
}

func (o *CustomOptions) defaults() {
	if o.NumCats <= 0 {
		o.NumCats = 4
	}
	if o.Dif == 0 {
		o.Dif = 0.1
	}
	if o.Precision < 0 {
		o.Precision = 0
	}
}

// CustomBins creates percent cutoffs stepping away from level by a
// multiplier. Levels below 1 are read as fractions and scaled to percent.
// The returned edges are sorted and number NumCats+1.
func CustomBins(level float64, opts CustomOptions) ([]float64, error) {
	if level <= 0 || math.IsNaN(level) {
		return nil, eris.Errorf("binning: level %v is less than or equal to zero; custom bins only make positive categories", level)
	}
	opts.defaults()

	if level < 1 {
		level *= 100
	}
	level = RoundExact(level, 1)

	n := opts.NumCats
	plus, minus := 1.0, 1.0
	edges := make(map[int]float64, n+1)

	if opts.Direction == Positive {
		edges[0] = 0
		edges[1] = level
		for i := 2; i < n; i++ {
			plus += opts.Dif
			edges[i] = RoundExact(level*plus, opts.Precision)
		}
		edges[n] = 100
	} else {
		mid := int(RoundHalfAway(float64(n)/2, 0))
		edges[0] = 0
		edges[mid] = level
		for i := 1; i < mid; i++ {
			plus += opts.Dif
			minus -= opts.Dif
			edges[mid+i] = RoundExact(level*plus, 1)
			edges[mid-i] = RoundExact(level*minus, 1)
		}
		edges[n] = 100
	}

	out := make([]float64, 0, len(edges))
	for _, v := range edges {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out, nil
}

// QuantileEdges returns n+1 equal-frequency edges over the non-missing
// values, using linear interpolation between order statistics.
func QuantileEdges(values []float64, n int) ([]float64, error) {
	if n <= 0 {
		return nil, eris.Errorf("binning: number of categories must be positive, got %d", n)
	}
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return nil, eris.New("binning: no values to compute quantiles from")
	}
	sort.Float64s(sorted)

	edges := make([]float64, n+1)
	last := float64(len(sorted) - 1)
	for k := 0; k <= n; k++ {
		h := last * float64(k) / float64(n)
		lo := math.Floor(h)
		i := int(lo)
		if i >= len(sorted)-1 {
			edges[k] = sorted[len(sorted)-1]
			continue
		}
		edges[k] = sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
	}
	return edges, nil
}

// Normalize prepares edges for Assign: quantile edges are rounded to the
// precision, edges are sorted and deduplicated, the first edge becomes 0
// and the last edge is widened by one precision unit so values rounded up
// still land in the last group.
func Normalize(edges []float64, precision int, round bool) ([]float64, error) {
	out := make([]float64, 0, len(edges))
	for _, e := range edges {
		if math.IsNaN(e) {
			continue
		}
		if round {
			e = Round(e, precision)
		}
		out = append(out, e)
	}
	sort.Float64s(out)
	out = dedup(out)
	if len(out) == 0 {
		return nil, eris.New("binning: no bin edges")
	}

	out[0] = 0
	kept := out[:1]
	for _, e := range out[1:] {
		if e > kept[len(kept)-1] {
			kept = append(kept, e)
		}
	}
	if len(kept) < 2 {
		return nil, eris.Errorf("binning: need at least 2 distinct edges above 0, got %v", edges)
	}
	kept[len(kept)-1] += Unit(precision)
	return kept, nil
}

// Unit is the smallest step at the given precision: 10^-precision.
func Unit(precision int) float64 {
	return math.Pow(10, -float64(precision))
}

// Assign returns the 1-based group of v in right-closed intervals
// (e[i-1], e[i]], with the lowest interval also including e[0]. Missing or
// out-of-range values get group 0.
func Assign(v float64, edges []float64) int {
	if math.IsNaN(v) || len(edges) < 2 {
		return 0
	}
	if v < edges[0] || v > edges[len(edges)-1] {
		return 0
	}
	for i := 1; i < len(edges); i++ {
		if v <= edges[i] {
			return i
		}
	}
	return 0
}

func dedup(sorted []float64) []float64 {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// LabelOptions configures Labels.
type LabelOptions struct {
	Precision      int
	Percent        bool
	LabeledCutoffs map[int]string // 0-indexed group → extra note
}

// Labels builds one human-readable label per group from normalized edges:
// "<c> or less" for the first group, "<lo> or more" for the last and
// "<lo>-<hi>" in between, where lo is the previous cutoff plus one unit.
func Labels(edges []float64, opts LabelOptions) []string {
	if len(edges) < 2 {
		return nil
	}
	sign := ""
	if opts.Percent {
		sign = "%"
	}
	unit := Unit(opts.Precision)
	format := func(v float64) string {
		return strconv.FormatFloat(v, 'f', opts.Precision, 64)
	}

	labels := make([]string, 0, len(edges)-1)
	bottom := "0"
	for i, c := range edges[1:] {
		cutoff := format(c)
		var label string
		switch {
		case i == 0:
			label = cutoff + sign + " or less"
		case i == len(edges)-2:
			label = bottom + sign + " or more"
		default:
			label = bottom + sign + "-" + cutoff + sign
		}
		if note, ok := opts.LabeledCutoffs[i]; ok && note != "" {
			label += " " + note
		}
		labels = append(labels, label)
		bottom = format(c + unit)
	}
	return labels
}
