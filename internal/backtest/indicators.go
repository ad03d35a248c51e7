package backtest

import (
	"strings"

	"algo_engine/internal/models"
	"algo_engine/internal/quant"
)

// seriesSet holds every configured indicator as a bar-aligned series.
// Compound indicators publish extra keys next to the base name
// (macd -> name_signal/name_hist, bollinger -> name_upper/name_lower).
type seriesSet map[string][]float64

// buildSeries computes all configured indicators. Unknown kinds are skipped
// silently, matching the engine's tolerance for stale configs.
func buildSeries(cfg models.StrategyConfig, bars []models.OHLCBar) seriesSet {
	closes := models.Closes(bars)
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}

	out := make(seriesSet, len(cfg.Indicators))
	for _, spec := range cfg.Indicators {
		switch strings.ToLower(spec.Kind) {
		case "sma":
			out[spec.Name] = quant.SMA(closes, spec.Period)
		case "ema":
			out[spec.Name] = quant.EMA(closes, spec.Period)
		case "rsi":
			out[spec.Name] = quant.RSI(closes, spec.Period)
		case "macd":
			fast, slow, sig := spec.Fast, spec.Slow, spec.Signal
			if fast == 0 {
				fast = 12
			}
			if slow == 0 {
				slow = 26
			}
			if sig == 0 {
				sig = 9
			}
			line, signal, hist := quant.MACD(closes, fast, slow, sig)
			out[spec.Name] = line
			out[spec.Name+"_signal"] = signal
			out[spec.Name+"_hist"] = hist
		case "bollinger":
			k := spec.K
			if k == 0 {
				k = 2
			}
			mid, upper, lower := quant.Bollinger(closes, spec.Period, k)
			out[spec.Name] = mid
			out[spec.Name+"_upper"] = upper
			out[spec.Name+"_lower"] = lower
		case "atr":
			out[spec.Name] = quant.ATR(highs, lows, closes, spec.Period)
		default:
			// unrecognized indicator: skip, not fatal
		}
	}
	out["close"] = closes
	return out
}

// minBarsRequired is the longest lookback any recognized indicator needs.
func minBarsRequired(cfg models.StrategyConfig) int {
	need := 1
	for _, spec := range cfg.Indicators {
		var n int
		switch strings.ToLower(spec.Kind) {
		case "sma", "ema", "bollinger", "atr":
			n = spec.Period
		case "rsi":
			n = spec.Period + 1
		case "macd":
			slow, sig := spec.Slow, spec.Signal
			if slow == 0 {
				slow = 26
			}
			if sig == 0 {
				sig = 9
			}
			n = slow + sig
		default:
			continue
		}
		if n > need {
			need = n
		}
	}
	return need
}
