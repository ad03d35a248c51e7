package strategy

import (
	"algo_engine/internal/marketdata"
	"algo_engine/internal/models"
	"algo_engine/internal/quant"
)

// statArb fades the z-score of price against its own rolling mean: the
// single-instrument reduction of the spread trade.
type statArb struct {
	base
	lookback  int
	threshold float64
}

func newStatArb(cfg models.AlgorithmConfig) (*statArb, error) {
	lookback := int(cfg.Param("lookback_window", 20))
	if lookback < 2 {
		return nil, &models.ConfigurationError{Field: "parameters.lookback_window", Reason: "must be at least 2"}
	}
	threshold := cfg.Param("entry_threshold", 2.0)
	if threshold <= 0 {
		return nil, &models.ConfigurationError{Field: "parameters.entry_threshold", Reason: "must be positive"}
	}
	return &statArb{base: base{cfg: cfg}, lookback: lookback, threshold: threshold}, nil
}

func (s *statArb) Analyze(snap marketdata.Snapshot) (models.AnalysisResult, error) {
	res := models.AnalysisResult{Symbol: snap.Symbol, Values: map[string]float64{}, At: snap.At}
	closes := models.Closes(snap.Bars)
	if len(closes) < s.lookback {
		return res, nil // not enough data yet, keep cycling
	}

	window := closes[len(closes)-s.lookback:]
	mean := quant.Mean(window)
	std := quant.StdDev(window)
	price := closes[len(closes)-1]

	res.Ready = std > 0
	res.Values["price"] = price
	res.Values["mean"] = mean
	res.Values["stddev"] = std
	res.Values["zscore"] = quant.ZScore(closes, s.lookback)
	res.Values["volatility"] = snap.Analysis.Volatility
	return res, nil
}

func (s *statArb) GenerateSignal(res models.AnalysisResult) (models.Signal, bool) {
	if !res.Ready {
		return models.Signal{}, false
	}
	z := res.Value("zscore")
	if z <= s.threshold && z >= -s.threshold {
		return models.Signal{}, false // strict: a tie is no signal
	}

	side := models.SideSell // rich vs mean, fade down
	if z < 0 {
		side = models.SideBuy
	}
	sig := newSignal(s.cfg, res.Symbol, side, res.Value("price"), "spread z-score reversion")
	sig.Metadata["zscore"] = z
	sig.Metadata["mean"] = res.Value("mean")
	sig.Metadata["volatility"] = res.Value("volatility")
	return sig, true
}
