package ta

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"equity-advisor/internal/types"
)

func candles(vols ...float64) []types.Candle {
	out := make([]types.Candle, len(vols))
	for i, v := range vols {
		out[i] = types.Candle{Ts: int64(i), Close: float64(i + 1), Vol: v}
	}
	return out
}

func TestSMA(t *testing.T) {
	assert.Equal(t, 2.5, SMA([]float64{1, 2, 3}, 2))
	assert.True(t, math.IsNaN(SMA([]float64{1}, 2)))
	assert.True(t, math.IsNaN(SMA(nil, 0)))
}

func TestAverageVolume(t *testing.T) {
	cs := candles(100, 200, 300, 400)
	assert.Equal(t, 350.0, AverageVolume(cs, 2))
	// short history averages what is there
	assert.Equal(t, 250.0, AverageVolume(cs, 20))
	assert.Equal(t, 0.0, AverageVolume(nil, 20))
}

func TestLastClose(t *testing.T) {
	c, ok := LastClose(candles(1, 2, 3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, c)

	_, ok = LastClose(nil)
	assert.False(t, ok)
}
