package marketdata

import (
	"context"
	"time"

	"algo_engine/internal/models"
)

// Provider is the market-data collaborator. Bars come back ascending by
// timestamp; implementations never fabricate prices, only shapes (synthetic
// depth around the last trade when the venue publishes no book).
type Provider interface {
	HistoricalBars(ctx context.Context, symbol, timeframe string, limit int) ([]models.OHLCBar, error)
	PriceTick(ctx context.Context, symbol string) (models.Tick, error)
	MarketDepth(ctx context.Context, symbol string) (models.MarketDepth, error)
	MarketAnalysis(ctx context.Context, symbol string) (models.MarketAnalysis, error)
}

// Snapshot is everything one strategy cycle sees. PairBars carries the
// secondary legs for pairs trading, keyed by symbol.
type Snapshot struct {
	Symbol    string
	Timeframe string
	Bars      []models.OHLCBar
	PairBars  map[string][]models.OHLCBar
	Tick      models.Tick
	Depth     models.MarketDepth
	Analysis  models.MarketAnalysis
	// Inventory is the signed open volume this algorithm already holds in
	// Symbol; market making skews its quotes around it.
	Inventory float64
	At        time.Time
}
