package binning

import (
	"math"
	"strconv"
)

// RoundHalfAway rounds x to the given number of decimals with halves moving
// away from zero: 1.5 → 2, 2.5 → 3, -2.5 → -3.
func RoundHalfAway(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Floor(x*p+math.Copysign(0.5, x)) / p
}

// Round rounds x to the given number of decimals with halves going to the
// even neighbour after scaling by 10^digits, the way dataframe columns are
// rounded.
func Round(x float64, digits int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow(10, float64(digits))
	return math.RoundToEven(x*p) / p
}

// RoundExact rounds the exact binary value of x to the given number of
// decimals, ties to even. 7.45 is stored just above 7.45 and rounds to 7.5;
// 12.35 is stored just below and rounds to 12.3. Round scales first and
// gives 7.4 and 12.4.
func RoundExact(x float64, digits int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	if digits < 0 {
		return Round(x, digits)
	}
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', digits, 64), 64)
	if err != nil {
		return Round(x, digits)
	}
	return v
}
