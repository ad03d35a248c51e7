package models

import "time"

// OHLCBar is one historical candle. Series are ordered ascending by
// timestamp and treated as immutable once produced.
type OHLCBar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Timeframe string    `json:"timeframe"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type Tick struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Last      float64   `json:"last"`
	Timestamp time.Time `json:"timestamp"`
}

func (t Tick) Mid() float64 {
	if t.Bid > 0 && t.Ask > 0 {
		return (t.Bid + t.Ask) / 2
	}
	return t.Last
}

type BookLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

type MarketDepth struct {
	Symbol string      `json:"symbol"`
	Bids   []BookLevel `json:"bids"` // best bid first
	Asks   []BookLevel `json:"asks"` // best ask first
}

func (d MarketDepth) BestBid() (BookLevel, bool) {
	if len(d.Bids) == 0 {
		return BookLevel{}, false
	}
	return d.Bids[0], true
}

func (d MarketDepth) BestAsk() (BookLevel, bool) {
	if len(d.Asks) == 0 {
		return BookLevel{}, false
	}
	return d.Asks[0], true
}

// MarketAnalysis is the live per-symbol snapshot handed to strategies next
// to raw bars: a few ready indicators plus trend/volatility/liquidity scores.
type MarketAnalysis struct {
	Symbol     string             `json:"symbol"`
	Indicators map[string]float64 `json:"indicators"`
	Trend      string             `json:"trend"` // up | down | flat
	Volatility float64            `json:"volatility"`
	Liquidity  float64            `json:"liquidity"`
	At         time.Time          `json:"at"`
}

func Closes(bars []OHLCBar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

func Volumes(bars []OHLCBar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Volume
	}
	return out
}
