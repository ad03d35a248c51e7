package models

import (
	"math"
	"time"
)

// IndicatorSpec declares one precomputed indicator series. Name is the key
// entry/exit rules refer to; Kind selects the math. Unknown kinds are
// skipped silently by the engine.
type IndicatorSpec struct {
	Name   string  `json:"name" yaml:"name"`
	Kind   string  `json:"kind" yaml:"kind"` // sma | ema | rsi | macd | bollinger | atr
	Period int     `json:"period" yaml:"period"`
	Fast   int     `json:"fast,omitempty" yaml:"fast"`     // macd
	Slow   int     `json:"slow,omitempty" yaml:"slow"`     // macd
	Signal int     `json:"signal,omitempty" yaml:"signal"` // macd
	K      float64 `json:"k,omitempty" yaml:"k"`           // bollinger
}

// Rule compares one indicator against another indicator or a literal value.
// Crossover comparisons look strictly backward: they are evaluated on the
// two bars preceding the bar being processed.
type Rule struct {
	Indicator string   `json:"indicator" yaml:"indicator"`
	Compare   string   `json:"compare" yaml:"compare"` // crosses_above | crosses_below | above | below
	Target    string   `json:"target,omitempty" yaml:"target"`
	Value     *float64 `json:"value,omitempty" yaml:"value"`
}

// RuleGroup is a condition tree node: all/any over rules and nested groups.
type RuleGroup struct {
	Mode   string      `json:"mode,omitempty" yaml:"mode"` // all (default) | any
	Rules  []Rule      `json:"rules,omitempty" yaml:"rules"`
	Groups []RuleGroup `json:"groups,omitempty" yaml:"groups"`
}

func (g RuleGroup) Empty() bool {
	return len(g.Rules) == 0 && len(g.Groups) == 0
}

type SizingConfig struct {
	Method       string  `json:"method" yaml:"method"` // fixed | risk_based
	FixedSize    float64 `json:"fixed_size,omitempty" yaml:"fixed_size"`
	RiskPerTrade float64 `json:"risk_per_trade,omitempty" yaml:"risk_per_trade"` // fraction of equity
}

type StopConfig struct {
	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"` // fraction of entry price
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
}

// StrategyConfig drives one backtest run. Read-only to the engine.
type StrategyConfig struct {
	Name       string          `json:"name" yaml:"name"`
	Symbol     string          `json:"symbol" yaml:"symbol"`
	Timeframe  string          `json:"timeframe" yaml:"timeframe"`
	Indicators []IndicatorSpec `json:"indicators" yaml:"indicators"`
	LongEntry  RuleGroup       `json:"long_entry,omitempty" yaml:"long_entry"`
	ShortEntry RuleGroup       `json:"short_entry,omitempty" yaml:"short_entry"`
	Exit       RuleGroup       `json:"exit,omitempty" yaml:"exit"`
	Sizing     SizingConfig    `json:"sizing" yaml:"sizing"`
	Stops      StopConfig      `json:"stops" yaml:"stops"`
}

const (
	ExitReasonStopLoss   = "stop_loss"
	ExitReasonTakeProfit = "take_profit"
	ExitReasonSignal     = "signal"
	ExitReasonEndOfData  = "end_of_data"
)

// BacktestTrade lives only within one backtest run. ProfitLoss stays nil
// until the trade is closed.
type BacktestTrade struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Size       float64   `json:"size"`
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitTime   time.Time `json:"exit_time,omitempty"`
	ExitPrice  float64   `json:"exit_price,omitempty"`
	ProfitLoss *float64  `json:"profit_loss,omitempty"`
	Commission float64   `json:"commission"`
	ExitReason string    `json:"exit_reason,omitempty"`
}

func (t *BacktestTrade) Closed() bool { return t.ProfitLoss != nil }

type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

type PerformanceMetrics struct {
	TotalReturn   float64 `json:"total_return"`
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"` // +Inf when winners exist and losers do not
	Sharpe        float64 `json:"sharpe"`
	Sortino       float64 `json:"sortino"`
	Calmar        float64 `json:"calmar"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	GrossProfit   float64 `json:"gross_profit"`
	GrossLoss     float64 `json:"gross_loss"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
	Expectancy    float64 `json:"expectancy"`
	FinalBalance  float64 `json:"final_balance"`
}

// MarshalJSON renders a non-finite profit factor as null, since JSON has no
// Inf literal. The in-memory value stays +Inf for callers.
func (m PerformanceMetrics) MarshalJSON() ([]byte, error) {
	type alias PerformanceMetrics
	out := struct {
		alias
		ProfitFactor *float64 `json:"profit_factor"`
	}{alias: alias(m)}
	if !math.IsInf(m.ProfitFactor, 0) && !math.IsNaN(m.ProfitFactor) {
		pf := m.ProfitFactor
		out.ProfitFactor = &pf
	}
	return jsonMarshal(out)
}

type DrawdownAnalysis struct {
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDurationBar int     `json:"max_duration_bars"` // longest stretch below the running peak
	Episodes       int     `json:"episodes"`
	PeakEquity     float64 `json:"peak_equity"`
	TroughEquity   float64 `json:"trough_equity"`
}

type RiskAnalysis struct {
	Volatility        float64 `json:"volatility"` // stddev of per-bar returns
	DownsideDeviation float64 `json:"downside_deviation"`
	VaR95             float64 `json:"var_95"` // parametric, per-bar return terms
	BestBarReturn     float64 `json:"best_bar_return"`
	WorstBarReturn    float64 `json:"worst_bar_return"`
}

type BacktestResult struct {
	Strategy       string             `json:"strategy"`
	Symbol         string             `json:"symbol"`
	Timeframe      string             `json:"timeframe"`
	Bars           int                `json:"bars"`
	InitialBalance float64            `json:"initial_balance"`
	Performance    PerformanceMetrics `json:"performance_metrics"`
	Trades         []BacktestTrade    `json:"trade_log"`
	EquityCurve    []EquityPoint      `json:"equity_curve"`
	Drawdown       DrawdownAnalysis   `json:"drawdown_analysis"`
	Risk           RiskAnalysis       `json:"risk_analysis"`
}
