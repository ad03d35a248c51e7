package marketdata

import (
	"testing"
	"time"

	"algo_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(ts int, close float64) models.OHLCBar {
	return models.OHLCBar{
		Symbol:    "BTC-USDT-SWAP",
		Timeframe: "1m",
		Timestamp: time.Unix(int64(ts)*60, 0),
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
	}
}

func TestBarCacheAscendingOrder(t *testing.T) {
	c := NewBarCache(10)
	for i := 0; i < 5; i++ {
		c.Append(bar(i, float64(i)))
	}
	out := c.Last("BTC-USDT-SWAP", "1m", 5)
	require.Len(t, out, 5)
	for i := 1; i < len(out); i++ {
		assert.True(t, out[i].Timestamp.After(out[i-1].Timestamp))
	}
}

func TestBarCacheSameTimestampReplaces(t *testing.T) {
	c := NewBarCache(10)
	c.Append(bar(1, 100))
	c.Append(bar(1, 101)) // closing print resent
	out := c.Last("BTC-USDT-SWAP", "1m", 10)
	require.Len(t, out, 1)
	assert.Equal(t, 101.0, out[0].Close)
}

func TestBarCacheDropsOutOfOrder(t *testing.T) {
	c := NewBarCache(10)
	c.Append(bar(5, 100))
	c.Append(bar(3, 99))
	assert.Equal(t, 1, c.Size("BTC-USDT-SWAP", "1m"))
}

func TestBarCacheRingEviction(t *testing.T) {
	c := NewBarCache(3)
	for i := 0; i < 10; i++ {
		c.Append(bar(i, float64(i)))
	}
	out := c.Last("BTC-USDT-SWAP", "1m", 3)
	require.Len(t, out, 3)
	assert.Equal(t, 7.0, out[0].Close)
	assert.Equal(t, 9.0, out[2].Close)

	// asking for more than is cached returns what exists
	assert.Len(t, c.Last("BTC-USDT-SWAP", "1m", 100), 3)
}

func TestAnalyzeBarsTrend(t *testing.T) {
	bars := make([]models.OHLCBar, 60)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = models.OHLCBar{
			Symbol:    "X",
			Timeframe: "1m",
			Timestamp: time.Unix(int64(i)*60, 0),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    10,
		}
	}
	a := AnalyzeBars("X", bars)
	assert.Equal(t, "up", a.Trend)
	assert.Greater(t, a.Volatility, 0.0)
	assert.InDelta(t, 10.0, a.Liquidity, 1e-9)
	assert.Contains(t, a.Indicators, "sma_20")
	assert.Contains(t, a.Indicators, "rsi_14")
}

func TestAnalyzeBarsEmpty(t *testing.T) {
	a := AnalyzeBars("X", nil)
	assert.Equal(t, "flat", a.Trend)
	assert.Zero(t, a.Volatility)
}
