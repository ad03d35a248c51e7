package strategy

import (
	"algo_engine/internal/marketdata"
	"algo_engine/internal/models"
	"algo_engine/internal/quant"
)

// pairsTrading trades the OLS spread between two symbols: long the cheap
// leg, short the rich one, hedge-ratio scaled. The offsetting leg rides in
// the signal's PairLeg; the coordinator executes both.
type pairsTrading struct {
	base
	symbolA   string
	symbolB   string
	window    int
	threshold float64
	minCorr   float64
}

func newPairsTrading(cfg models.AlgorithmConfig) (*pairsTrading, error) {
	if len(cfg.Symbols) < 2 {
		return nil, &models.ConfigurationError{Field: "symbols", Reason: "pairs trading needs two symbols"}
	}
	window := int(cfg.Param("cointegration_window", 60))
	if window < 10 {
		return nil, &models.ConfigurationError{Field: "parameters.cointegration_window", Reason: "must be at least 10"}
	}
	threshold := cfg.Param("entry_threshold", 2.0)
	if threshold <= 0 {
		return nil, &models.ConfigurationError{Field: "parameters.entry_threshold", Reason: "must be positive"}
	}
	return &pairsTrading{
		base:      base{cfg: cfg},
		symbolA:   cfg.Symbols[0],
		symbolB:   cfg.Symbols[1],
		window:    window,
		threshold: threshold,
		minCorr:   cfg.Param("correlation_minimum", 0.7),
	}, nil
}

func (p *pairsTrading) Analyze(snap marketdata.Snapshot) (models.AnalysisResult, error) {
	res := models.AnalysisResult{Symbol: p.symbolA, Values: map[string]float64{}, At: snap.At}

	closesA := models.Closes(snap.Bars)
	closesB := models.Closes(snap.PairBars[p.symbolB])
	n := len(closesA)
	if len(closesB) < n {
		n = len(closesB)
	}
	if n < p.window {
		return res, nil
	}
	a := closesA[len(closesA)-p.window:]
	b := closesB[len(closesB)-p.window:]

	hedge := quant.HedgeRatio(a, b)
	if hedge == 0 {
		return res, nil
	}

	spread := make([]float64, p.window)
	for i := range spread {
		spread[i] = a[i] - hedge*b[i]
	}

	res.Ready = true
	res.Values["price_a"] = a[len(a)-1]
	res.Values["price_b"] = b[len(b)-1]
	res.Values["hedge_ratio"] = hedge
	res.Values["spread_zscore"] = quant.ZScore(spread, p.window)
	res.Values["correlation"] = quant.Correlation(a, b)
	return res, nil
}

func (p *pairsTrading) GenerateSignal(res models.AnalysisResult) (models.Signal, bool) {
	if !res.Ready {
		return models.Signal{}, false
	}
	z := res.Value("spread_zscore")
	if z <= p.threshold && z >= -p.threshold {
		return models.Signal{}, false
	}
	if res.Value("correlation") <= p.minCorr {
		return models.Signal{}, false // strict: correlation must exceed the floor
	}

	// spread rich: sell A, buy B. Spread cheap: the other way round.
	sideA := models.SideSell
	if z < 0 {
		sideA = models.SideBuy
	}

	sig := newSignal(p.cfg, p.symbolA, sideA, res.Value("price_a"), "pairs spread reversion")
	sig.Metadata["spread_zscore"] = z
	sig.Metadata["hedge_ratio"] = res.Value("hedge_ratio")
	sig.Metadata["correlation"] = res.Value("correlation")
	sig.PairLeg = &models.PairLeg{
		Symbol:     p.symbolB,
		Side:       sideA.Opposite(),
		HedgeRatio: res.Value("hedge_ratio"),
	}
	return sig, true
}

// PositionSize sizes leg A, then scales the offsetting leg by the hedge
// ratio so the pair stays spread-neutral.
func (p *pairsTrading) PositionSize(sig models.Signal, equity float64) float64 {
	volume := p.base.PositionSize(sig, equity)
	if sig.PairLeg != nil && sig.PairLeg.HedgeRatio > 0 {
		sig.PairLeg.Volume = volume * sig.PairLeg.HedgeRatio
	}
	return volume
}
