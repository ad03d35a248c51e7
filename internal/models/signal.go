package models

import "time"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Direction maps the side onto a PnL sign: +1 long, -1 short.
func (s Side) Direction() float64 {
	if s == SideBuy {
		return 1
	}
	return -1
}

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type RiskAssessment struct {
	Score      float64 `json:"score"` // 0..100, higher is riskier
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	MaxLoss    float64 `json:"max_loss"`
	RewardRisk float64 `json:"reward_risk"`
}

// PairLeg is the offsetting leg a pairs-trading signal carries. The
// coordinator executes both legs; the backtest engine never sees pairs.
type PairLeg struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Volume     float64 `json:"volume"`
	HedgeRatio float64 `json:"hedge_ratio"`
}

// Signal is one algorithm execution intent, produced by a strategy cycle.
// Short-lived: persisted to the config store with a ~24h TTL.
type Signal struct {
	ExecutionID string             `json:"execution_id"`
	AlgorithmID string             `json:"algorithm_id"`
	Symbol      string             `json:"symbol"`
	Side        Side               `json:"side"`
	Volume      float64            `json:"volume"`
	EntryPrice  float64            `json:"entry_price"`
	Reason      string             `json:"reason"`
	Metadata    map[string]float64 `json:"metadata,omitempty"`
	PairLeg     *PairLeg           `json:"pair_leg,omitempty"`
	Risk        RiskAssessment     `json:"risk"`
	CreatedAt   time.Time          `json:"created_at"`
}

// AnalysisResult is what Analyze hands to GenerateSignal: strategy-specific
// diagnostics keyed by name. Ready=false means not enough data yet, which is
// a degraded state rather than an error.
type AnalysisResult struct {
	Symbol string             `json:"symbol"`
	Ready  bool               `json:"ready"`
	Values map[string]float64 `json:"values"`
	At     time.Time          `json:"at"`
}

func (r AnalysisResult) Value(key string) float64 {
	return r.Values[key]
}

type ExecutionStatus string

const (
	ExecutionQueued    ExecutionStatus = "queued"
	ExecutionNoSignal  ExecutionStatus = "no_signal"
	ExecutionRejected  ExecutionStatus = "rejected"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionSkipped   ExecutionStatus = "skipped"
)

// ExecutionRecord tracks one queued cycle from ExecuteAlgorithm to its
// asynchronous completion.
type ExecutionRecord struct {
	ExecutionID string          `json:"execution_id"`
	AlgorithmID string          `json:"algorithm_id"`
	Status      ExecutionStatus `json:"status"`
	Signal      *Signal         `json:"signal,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt time.Time       `json:"completed_at,omitempty"`
}
