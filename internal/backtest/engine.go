package backtest

import (
	"context"

	"algo_engine/internal/models"

	"github.com/opentracing/opentracing-go"
)

const (
	pipSize      = 0.0001 // 4-decimal pip convention
	lotSize      = 100000 // commission is quoted per standard lot
	defaultFixed = 100000
)

type Request struct {
	Strategy       models.StrategyConfig
	Bars           []models.OHLCBar
	SpreadPips     float64
	Commission     float64 // per lot
	InitialBalance float64
}

// Engine replays one OHLC series against a strategy config. Pure and
// synchronous: many runs can execute in parallel, one goroutine each.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

func (e *Engine) Run(ctx context.Context, req Request) (*models.BacktestResult, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "backtest.run")
	defer span.Finish()

	need := minBarsRequired(req.Strategy)
	if len(req.Bars) == 0 || len(req.Bars) < need {
		return nil, &models.InsufficientDataError{
			What: "backtest " + req.Strategy.Name,
			Need: need,
			Got:  len(req.Bars),
		}
	}
	if req.InitialBalance <= 0 {
		req.InitialBalance = 10000
	}

	series := buildSeries(req.Strategy, req.Bars)
	spreadCost := req.SpreadPips * pipSize

	var (
		balance     = req.InitialBalance
		peak        = req.InitialBalance
		maxDrawdown float64
		open        *models.BacktestTrade
		trades      []models.BacktestTrade
		curve       = make([]models.EquityPoint, 0, len(req.Bars))
	)

	closeTrade := func(t *models.BacktestTrade, bar models.OHLCBar, exitPrice float64, reason string) {
		gross := (exitPrice - t.EntryPrice) * t.Size * t.Side.Direction()
		commission := req.Commission * (t.Size / lotSize)
		net := gross - commission

		t.ExitTime = bar.Timestamp
		t.ExitPrice = exitPrice
		t.Commission = commission
		t.ExitReason = reason
		t.ProfitLoss = &net

		balance += net
		trades = append(trades, *t)
	}

	for i, bar := range req.Bars {
		if open != nil {
			if exitPrice, reason, ok := e.exitCheck(req.Strategy, series, open, bar, i); ok {
				closeTrade(open, bar, exitPrice, reason)
				open = nil
			}
		}

		// entries only while flat: one position, no pyramiding
		if open == nil {
			if evalGroup(series, req.Strategy.LongEntry, i) {
				open = e.enter(req.Strategy, models.SideBuy, bar, bar.Close+spreadCost, balance)
			} else if evalGroup(series, req.Strategy.ShortEntry, i) {
				open = e.enter(req.Strategy, models.SideSell, bar, bar.Close-spreadCost, balance)
			}
		}

		// dense equity curve: realized balance plus the open trade's float
		equity := balance
		if open != nil {
			equity += (bar.Close - open.EntryPrice) * open.Size * open.Side.Direction()
		}
		curve = append(curve, models.EquityPoint{Timestamp: bar.Timestamp, Equity: equity})

		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	if open != nil {
		last := req.Bars[len(req.Bars)-1]
		closeTrade(open, last, last.Close, models.ExitReasonEndOfData)
		curve[len(curve)-1].Equity = balance
		// the forced close settles commission after the per-bar accumulator
		// already ran, so fold the adjusted final point back in
		if balance > peak {
			peak = balance
		}
		if peak > 0 {
			if dd := (peak - balance) / peak; dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	result := &models.BacktestResult{
		Strategy:       req.Strategy.Name,
		Symbol:         req.Strategy.Symbol,
		Timeframe:      req.Strategy.Timeframe,
		Bars:           len(req.Bars),
		InitialBalance: req.InitialBalance,
		Trades:         trades,
		EquityCurve:    curve,
	}
	fillMetrics(result, balance, maxDrawdown)
	return result, nil
}

func (e *Engine) enter(cfg models.StrategyConfig, side models.Side, bar models.OHLCBar, entryPrice, balance float64) *models.BacktestTrade {
	return &models.BacktestTrade{
		Symbol:     cfg.Symbol,
		Side:       side,
		Size:       positionSize(cfg, entryPrice, balance),
		EntryTime:  bar.Timestamp,
		EntryPrice: entryPrice,
	}
}

// exitCheck orders stop-loss before take-profit before the indicator rule,
// all against the bar close. Indicator exits read previous-bar values like
// entries do.
func (e *Engine) exitCheck(cfg models.StrategyConfig, series seriesSet, t *models.BacktestTrade, bar models.OHLCBar, i int) (float64, string, bool) {
	dir := t.Side.Direction()
	ret := (bar.Close - t.EntryPrice) / t.EntryPrice * dir

	if cfg.Stops.StopLossPct > 0 && ret <= -cfg.Stops.StopLossPct {
		return bar.Close, models.ExitReasonStopLoss, true
	}
	if cfg.Stops.TakeProfitPct > 0 && ret >= cfg.Stops.TakeProfitPct {
		return bar.Close, models.ExitReasonTakeProfit, true
	}
	if evalGroup(series, cfg.Exit, i) {
		return bar.Close, models.ExitReasonSignal, true
	}
	return 0, "", false
}

func positionSize(cfg models.StrategyConfig, entryPrice, balance float64) float64 {
	switch cfg.Sizing.Method {
	case "risk_based":
		if cfg.Stops.StopLossPct > 0 && cfg.Sizing.RiskPerTrade > 0 && entryPrice > 0 {
			riskAmount := balance * cfg.Sizing.RiskPerTrade
			return riskAmount / (entryPrice * cfg.Stops.StopLossPct)
		}
	}
	if cfg.Sizing.FixedSize > 0 {
		return cfg.Sizing.FixedSize
	}
	return defaultFixed
}
