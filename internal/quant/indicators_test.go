package quant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	out := SMA(x, 3)
	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 3.0, out[3], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestEMASeededWithSMA(t *testing.T) {
	x := []float64{10, 11, 12, 13, 14, 15, 16}
	period := 4
	ema := EMA(x, period)
	sma := SMA(x, period)

	for i := 0; i < period-1; i++ {
		assert.True(t, math.IsNaN(ema[i]), "warmup index %d", i)
	}
	// seed value equals the SMA at the first valid index
	assert.InDelta(t, sma[period-1], ema[period-1], 1e-12)

	k := 2.0 / float64(period+1)
	want := (x[period]-ema[period-1])*k + ema[period-1]
	assert.InDelta(t, want, ema[period], 1e-12)
}

func TestEMAConstantSeries(t *testing.T) {
	x := make([]float64, 50)
	for i := range x {
		x[i] = 42.5
	}
	ema := EMA(x, 10)
	for i := 9; i < len(ema); i++ {
		assert.InDelta(t, 42.5, ema[i], 1e-12)
	}
}

func TestRSIShortSeriesIsNeutral(t *testing.T) {
	// fewer than period+1 samples must yield exactly 50, not an error
	x := []float64{1, 2, 3, 4, 5}
	out := RSI(x, 14)
	require.Len(t, out, 5)
	for i, v := range out {
		assert.Equal(t, 50.0, v, "index %d", i)
	}
}

func TestRSIDirections(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = float64(i)
		down[i] = float64(60 - i)
	}
	rsiUp := RSI(up, 14)
	rsiDown := RSI(down, 14)
	assert.Equal(t, 100.0, rsiUp[len(rsiUp)-1])
	assert.Equal(t, 0.0, rsiDown[len(rsiDown)-1])
}

func TestMACDAlignment(t *testing.T) {
	x := make([]float64, 60)
	for i := range x {
		x[i] = 100 + float64(i)*0.5
	}
	line, signal, hist := MACD(x, 12, 26, 9)
	require.Len(t, line, 60)

	assert.True(t, math.IsNaN(line[24]))
	assert.False(t, math.IsNaN(line[25]))
	assert.True(t, math.IsNaN(signal[32]))
	assert.False(t, math.IsNaN(signal[33]))
	for i := 33; i < 60; i++ {
		assert.InDelta(t, line[i]-signal[i], hist[i], 1e-12)
	}
}

func TestBollinger(t *testing.T) {
	x := []float64{2, 4, 6, 8, 10, 12}
	mid, up, lo := Bollinger(x, 3, 2)
	// window {8,10,12}: mean 10, population std sqrt(8/3)
	std := math.Sqrt(8.0 / 3.0)
	assert.InDelta(t, 10.0, mid[5], 1e-12)
	assert.InDelta(t, 10.0+2*std, up[5], 1e-12)
	assert.InDelta(t, 10.0-2*std, lo[5], 1e-12)
}

func TestATRUsesPrevClose(t *testing.T) {
	high := []float64{12, 15, 14}
	low := []float64{10, 11, 12}
	closes := []float64{11, 14, 13}
	out := ATR(high, low, closes, 2)
	require.Len(t, out, 3)
	// tr[1] = max(4, |15-11|, |11-11|) = 4; tr[2] = max(2, |14-14|, |12-14|) = 2
	assert.InDelta(t, (4.0+2.0)/2, out[2], 1e-12)
}

func TestZScore(t *testing.T) {
	x := []float64{1, 1, 1, 1, 5}
	z := ZScore(x, 5)
	assert.Greater(t, z, 1.0)

	flat := []float64{3, 3, 3, 3}
	assert.Equal(t, 0.0, ZScore(flat, 4))
	assert.Equal(t, 0.0, ZScore([]float64{1, 2}, 5)) // short series degrades
}

func TestHedgeRatio(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2.5, 5, 7.5, 10, 12.5}
	assert.InDelta(t, 2.5, HedgeRatio(y, x), 1e-9)
}

func TestCorrelation(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	c := []float64{10, 8, 6, 4, 2}
	assert.InDelta(t, 1.0, Correlation(a, b), 1e-9)
	assert.InDelta(t, -1.0, Correlation(a, c), 1e-9)
	assert.Equal(t, 0.0, Correlation(a, []float64{1}))
}

func TestNormalQuantile(t *testing.T) {
	assert.InDelta(t, 1.6449, NormalQuantile(0.95), 1e-3)
	assert.InDelta(t, 2.3263, NormalQuantile(0.99), 1e-3)
	// invalid confidence falls back to 95%
	assert.InDelta(t, 1.6449, NormalQuantile(0), 1e-3)
}
