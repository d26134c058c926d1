// Package ta holds the few price-series helpers the advisor needs.
package ta

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"equity-advisor/internal/types"
)

func Closes(cs []types.Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

func Volumes(cs []types.Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Vol
	}
	return out
}

// SMA is the mean of the last n values, or NaN when fewer are available.
func SMA(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	return stat.Mean(vals[len(vals)-n:], nil)
}

// AverageVolume is the mean volume of the last n sessions. With fewer than n
// sessions it averages what there is; it is 0 for an empty series.
func AverageVolume(cs []types.Candle, n int) float64 {
	if len(cs) == 0 || n <= 0 {
		return 0
	}
	if len(cs) < n {
		n = len(cs)
	}
	return SMA(Volumes(cs), n)
}

// LastClose is the most recent close, assuming ascending candles.
func LastClose(cs []types.Candle) (float64, bool) {
	if len(cs) == 0 {
		return 0, false
	}
	return cs[len(cs)-1].Close, true
}
