package strategy

import (
	"algo_engine/internal/marketdata"
	"algo_engine/internal/models"
	"algo_engine/internal/quant"
)

// momentum trades rate-of-change confirmed by the up-bar fraction of the
// trend window, with optional volume and RSI-band filters.
type momentum struct {
	base
	period      int
	trendPeriod int
	threshold   float64
}

func newMomentum(cfg models.AlgorithmConfig) (*momentum, error) {
	period := int(cfg.Param("momentum_period", 10))
	if period < 2 {
		return nil, &models.ConfigurationError{Field: "parameters.momentum_period", Reason: "must be at least 2"}
	}
	trendPeriod := int(cfg.Param("trend_filter_period", 20))
	if trendPeriod < 2 {
		return nil, &models.ConfigurationError{Field: "parameters.trend_filter_period", Reason: "must be at least 2"}
	}
	threshold := cfg.Param("momentum_threshold", 0.02)
	if threshold <= 0 {
		return nil, &models.ConfigurationError{Field: "parameters.momentum_threshold", Reason: "must be positive"}
	}
	return &momentum{base: base{cfg: cfg}, period: period, trendPeriod: trendPeriod, threshold: threshold}, nil
}

func (m *momentum) Analyze(snap marketdata.Snapshot) (models.AnalysisResult, error) {
	res := models.AnalysisResult{Symbol: snap.Symbol, Values: map[string]float64{}, At: snap.At}
	closes := models.Closes(snap.Bars)
	need := m.period + 1
	if m.trendPeriod+1 > need {
		need = m.trendPeriod + 1
	}
	if len(closes) < need {
		return res, nil
	}

	last := closes[len(closes)-1]
	ref := closes[len(closes)-1-m.period]
	var roc float64
	if ref > 0 {
		roc = (last - ref) / ref
	}

	// fraction of up bars across the trend window
	var ups int
	start := len(closes) - m.trendPeriod
	for i := start; i < len(closes); i++ {
		if closes[i] > closes[i-1] {
			ups++
		}
	}
	upFraction := float64(ups) / float64(m.trendPeriod)

	res.Ready = true
	res.Values["price"] = last
	res.Values["momentum"] = roc
	res.Values["up_fraction"] = upFraction
	res.Values["volatility"] = snap.Analysis.Volatility

	if m.cfg.Param("volume_filter", 0) > 0 {
		volumes := models.Volumes(snap.Bars)
		volSMA := quant.Mean(volumes[len(volumes)-m.trendPeriod:])
		res.Values["volume"] = volumes[len(volumes)-1]
		res.Values["volume_sma"] = volSMA
	}
	if m.cfg.Param("rsi_filter", 0) > 0 {
		rsi := quant.RSI(closes, 14)
		res.Values["rsi"] = rsi[len(rsi)-1]
	}
	return res, nil
}

func (m *momentum) GenerateSignal(res models.AnalysisResult) (models.Signal, bool) {
	if !res.Ready {
		return models.Signal{}, false
	}
	roc := res.Value("momentum")
	if roc <= m.threshold && roc >= -m.threshold {
		return models.Signal{}, false
	}

	upFraction := res.Value("up_fraction")
	confirm := m.cfg.Param("trend_confirmation", 0.6)
	side := models.SideBuy
	if roc > 0 {
		if upFraction <= confirm {
			return models.Signal{}, false
		}
	} else {
		side = models.SideSell
		if upFraction >= 1-confirm {
			return models.Signal{}, false
		}
	}

	if m.cfg.Param("volume_filter", 0) > 0 {
		if res.Value("volume") <= res.Value("volume_sma") {
			return models.Signal{}, false
		}
	}
	if m.cfg.Param("rsi_filter", 0) > 0 {
		rsi := res.Value("rsi")
		if side == models.SideBuy && rsi >= m.cfg.Param("rsi_upper", 70) {
			return models.Signal{}, false // already overbought
		}
		if side == models.SideSell && rsi <= m.cfg.Param("rsi_lower", 30) {
			return models.Signal{}, false
		}
	}

	sig := newSignal(m.cfg, res.Symbol, side, res.Value("price"), "momentum breakout")
	sig.Metadata["momentum"] = roc
	sig.Metadata["up_fraction"] = upFraction
	sig.Metadata["volatility"] = res.Value("volatility")
	return sig, true
}
