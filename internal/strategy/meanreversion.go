package strategy

import (
	"math"

	"algo_engine/internal/marketdata"
	"algo_engine/internal/models"
	"algo_engine/internal/quant"
)

// meanReversion fades deviations from the rolling mean, optionally requiring
// a Bollinger band break as confirmation. Deviations beyond 3 sigma are
// treated as non-reverting moves and rejected at validation.
type meanReversion struct {
	base
	lookback  int
	entryDev  float64
	bollinger bool
}

const nonRevertingDeviation = 3.0

func newMeanReversion(cfg models.AlgorithmConfig) (*meanReversion, error) {
	lookback := int(cfg.Param("lookback_window", 20))
	if lookback < 2 {
		return nil, &models.ConfigurationError{Field: "parameters.lookback_window", Reason: "must be at least 2"}
	}
	entryDev := cfg.Param("entry_deviation", 2.0)
	if entryDev <= 0 {
		return nil, &models.ConfigurationError{Field: "parameters.entry_deviation", Reason: "must be positive"}
	}
	return &meanReversion{
		base:      base{cfg: cfg},
		lookback:  lookback,
		entryDev:  entryDev,
		bollinger: cfg.Param("use_bollinger", 0) > 0,
	}, nil
}

func (m *meanReversion) Analyze(snap marketdata.Snapshot) (models.AnalysisResult, error) {
	res := models.AnalysisResult{Symbol: snap.Symbol, Values: map[string]float64{}, At: snap.At}
	closes := models.Closes(snap.Bars)
	if len(closes) < m.lookback {
		return res, nil
	}

	price := closes[len(closes)-1]
	z := quant.ZScore(closes, m.lookback)

	res.Ready = true
	res.Values["price"] = price
	res.Values["deviation"] = z
	res.Values["volatility"] = snap.Analysis.Volatility

	if m.bollinger {
		k := m.cfg.Param("bollinger_k", 2.0)
		_, upper, lower := quant.Bollinger(closes, m.lookback, k)
		res.Values["bb_upper"] = upper[len(upper)-1]
		res.Values["bb_lower"] = lower[len(lower)-1]
	}
	return res, nil
}

func (m *meanReversion) GenerateSignal(res models.AnalysisResult) (models.Signal, bool) {
	if !res.Ready {
		return models.Signal{}, false
	}
	z := res.Value("deviation")
	if z <= m.entryDev && z >= -m.entryDev {
		return models.Signal{}, false
	}

	price := res.Value("price")
	side := models.SideSell
	if z < 0 {
		side = models.SideBuy
	}

	if m.bollinger {
		// the band break must agree with the z-score
		if side == models.SideSell && price <= res.Value("bb_upper") {
			return models.Signal{}, false
		}
		if side == models.SideBuy && price >= res.Value("bb_lower") {
			return models.Signal{}, false
		}
	}

	sig := newSignal(m.cfg, res.Symbol, side, price, "mean reversion")
	sig.Metadata["deviation"] = z
	sig.Metadata["volatility"] = res.Value("volatility")
	return sig, true
}

// ValidateSignal adds the non-reverting guard on top of the shared gate.
func (m *meanReversion) ValidateSignal(sig models.Signal, state models.AlgorithmState) bool {
	if !m.base.ValidateSignal(sig, state) {
		return false
	}
	return math.Abs(sig.Metadata["deviation"]) <= nonRevertingDeviation
}
