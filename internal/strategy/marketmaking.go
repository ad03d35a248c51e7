package strategy

import (
	"time"

	"algo_engine/internal/marketdata"
	"algo_engine/internal/models"
)

// marketMaking quotes around the book mid, skewed against inventory, and
// stands down when the book is so one-sided that a fill would likely be
// adverse selection.
type marketMaking struct {
	base
	halfSpread   float64
	skewFactor   float64
	refresh      time.Duration
	adverseLevel float64

	lastQuote time.Time // cycle serialization makes this safe without a lock
}

func newMarketMaking(cfg models.AlgorithmConfig) (*marketMaking, error) {
	halfSpread := cfg.Param("half_spread", 0.0005)
	if halfSpread <= 0 {
		return nil, &models.ConfigurationError{Field: "parameters.half_spread", Reason: "must be positive"}
	}
	refreshSec := cfg.Param("quote_refresh_interval", 5)
	if refreshSec <= 0 {
		return nil, &models.ConfigurationError{Field: "parameters.quote_refresh_interval", Reason: "must be positive"}
	}
	return &marketMaking{
		base:         base{cfg: cfg},
		halfSpread:   halfSpread,
		skewFactor:   cfg.Param("inventory_skew", 0.0001),
		refresh:      time.Duration(refreshSec * float64(time.Second)),
		adverseLevel: cfg.Param("adverse_imbalance", 0.7),
	}, nil
}

func (m *marketMaking) Analyze(snap marketdata.Snapshot) (models.AnalysisResult, error) {
	res := models.AnalysisResult{Symbol: snap.Symbol, Values: map[string]float64{}, At: snap.At}

	bid, bok := snap.Depth.BestBid()
	ask, aok := snap.Depth.BestAsk()
	if !bok || !aok {
		return res, nil // no book, no quotes
	}
	mid := (bid.Price + ask.Price) / 2

	var bidVol, askVol float64
	for _, l := range snap.Depth.Bids {
		bidVol += l.Volume
	}
	for _, l := range snap.Depth.Asks {
		askVol += l.Volume
	}
	imbalance := 0.5
	if bidVol+askVol > 0 {
		imbalance = bidVol / (bidVol + askVol)
	}

	// inventory pushes both quotes toward the side that unwinds it
	skew := snap.Inventory * m.skewFactor * mid

	res.Ready = true
	res.Values["mid"] = mid
	res.Values["imbalance"] = imbalance
	res.Values["inventory"] = snap.Inventory
	res.Values["target_bid"] = mid*(1-m.halfSpread) - skew
	res.Values["target_ask"] = mid*(1+m.halfSpread) - skew

	adverse := imbalance > m.adverseLevel || imbalance < 1-m.adverseLevel
	if adverse {
		res.Values["adverse"] = 1
	}
	return res, nil
}

func (m *marketMaking) GenerateSignal(res models.AnalysisResult) (models.Signal, bool) {
	if !res.Ready {
		return models.Signal{}, false
	}
	if res.Value("adverse") > 0 {
		return models.Signal{}, false
	}
	if !m.lastQuote.IsZero() && time.Since(m.lastQuote) < m.refresh {
		return models.Signal{}, false
	}

	// quote the side that reduces inventory; flat inventory leans against
	// the heavier side of the book
	inventory := res.Value("inventory")
	var side models.Side
	var price float64
	switch {
	case inventory > 0:
		side, price = models.SideSell, res.Value("target_ask")
	case inventory < 0:
		side, price = models.SideBuy, res.Value("target_bid")
	case res.Value("imbalance") >= 0.5:
		side, price = models.SideSell, res.Value("target_ask")
	default:
		side, price = models.SideBuy, res.Value("target_bid")
	}

	m.lastQuote = time.Now()
	sig := newSignal(m.cfg, res.Symbol, side, price, "inventory-skewed quote")
	sig.Metadata["mid"] = res.Value("mid")
	sig.Metadata["imbalance"] = res.Value("imbalance")
	sig.Metadata["inventory"] = inventory
	return sig, true
}
