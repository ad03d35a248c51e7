package marketdata

import (
	"context"
	"time"

	"algo_engine/internal/models"
	"algo_engine/internal/quant"
)

const analysisLookback = 60

// MarketAnalysis is computed locally from cached bars rather than fetched:
// trend from fast/slow SMA posture, volatility from ATR relative to price,
// liquidity from average volume.
func (c *Client) MarketAnalysis(ctx context.Context, symbol string) (models.MarketAnalysis, error) {
	bars := c.cache.Last(symbol, c.cfg.DefaultTimeframe, analysisLookback)
	if len(bars) < analysisLookback {
		fetched, err := c.HistoricalBars(ctx, symbol, c.cfg.DefaultTimeframe, analysisLookback)
		if err != nil {
			return models.MarketAnalysis{}, err
		}
		bars = fetched
	}
	return AnalyzeBars(symbol, bars), nil
}

// AnalyzeBars is the pure part, separated so tests and the backtest CLI can
// reuse it without a client.
func AnalyzeBars(symbol string, bars []models.OHLCBar) models.MarketAnalysis {
	out := models.MarketAnalysis{
		Symbol:     symbol,
		Indicators: map[string]float64{},
		Trend:      "flat",
		At:         time.Now(),
	}
	if len(bars) == 0 {
		return out
	}

	closes := models.Closes(bars)
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}
	last := closes[len(closes)-1]

	if len(closes) >= 20 {
		sma20 := quant.SMA(closes, 20)
		out.Indicators["sma_20"] = sma20[len(sma20)-1]
	}
	if len(closes) >= 50 {
		sma50 := quant.SMA(closes, 50)
		out.Indicators["sma_50"] = sma50[len(sma50)-1]
	}
	rsi := quant.RSI(closes, 14)
	out.Indicators["rsi_14"] = rsi[len(rsi)-1]

	if atr := quant.ATR(highs, lows, closes, 14); atr != nil {
		v := atr[len(atr)-1]
		if v == v && last > 0 { // not NaN
			out.Indicators["atr_14"] = v
			out.Volatility = v / last
		}
	}

	fast, fok := out.Indicators["sma_20"]
	slow, sok := out.Indicators["sma_50"]
	switch {
	case fok && sok && fast > slow && last > fast:
		out.Trend = "up"
	case fok && sok && fast < slow && last < fast:
		out.Trend = "down"
	}

	out.Liquidity = quant.Mean(models.Volumes(bars))
	if len(bars) > 0 {
		out.At = bars[len(bars)-1].Timestamp
	}
	return out
}

// PairCorrelation is the correlation-table collaborator the risk engine
// reads: Pearson correlation of close series over the shared cached window.
func (c *Client) PairCorrelation(ctx context.Context, a, b string) (float64, error) {
	const window = 100
	barsA, err := c.HistoricalBars(ctx, a, c.cfg.DefaultTimeframe, window)
	if err != nil {
		return 0, err
	}
	barsB, err := c.HistoricalBars(ctx, b, c.cfg.DefaultTimeframe, window)
	if err != nil {
		return 0, err
	}
	n := len(barsA)
	if len(barsB) < n {
		n = len(barsB)
	}
	if n < 2 {
		return 0, nil
	}
	return quant.Correlation(
		models.Closes(barsA[len(barsA)-n:]),
		models.Closes(barsB[len(barsB)-n:]),
	), nil
}
