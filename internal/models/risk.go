package models

import "time"

type PositionRisk struct {
	Ticket         int64   `json:"ticket"`
	Symbol         string  `json:"symbol"`
	Exposure       float64 `json:"exposure"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	RiskPercentage float64 `json:"risk_percentage"` // exposure / equity * 100
	// DrawdownProxy is |current-open|/open, an approximation rather than a
	// true peak-to-trough per-trade drawdown.
	DrawdownProxy   float64 `json:"drawdown_proxy"`
	StopDistance    float64 `json:"stop_distance"` // fraction of current price
	TakeDistance    float64 `json:"take_distance"`
	CorrelationRisk float64 `json:"correlation_risk"`
}

type PortfolioRisk struct {
	Positions               []PositionRisk `json:"positions"`
	TotalExposure           float64        `json:"total_exposure"`
	ExposurePercentage      float64        `json:"exposure_percentage"`
	UnrealizedPnL           float64        `json:"unrealized_pnl"`
	Equity                  float64        `json:"equity"`
	CircuitBreakerTriggered bool           `json:"circuit_breaker_triggered"`
	At                      time.Time      `json:"at"`
}

type DrawdownStatus struct {
	Balance  float64 `json:"balance"`
	Equity   float64 `json:"equity"`
	Drawdown float64 `json:"drawdown"` // fraction, (balance-equity)/balance
	Limit    float64 `json:"limit"`
	Breached bool    `json:"breached"`
}

type CorrelationRisk struct {
	Pairs              int     `json:"pairs"`
	AverageCorrelation float64 `json:"average_correlation"` // percent 0..100
	Limit              float64 `json:"limit"`               // percent
	Breached           bool    `json:"breached"`
}

type VaRResult struct {
	Confidence float64 `json:"confidence"`
	ZScore     float64 `json:"z_score"`
	Value      float64 `json:"value"`
	Limit      float64 `json:"limit"`
	Breached   bool    `json:"breached"`
}

type EmergencyStopResult struct {
	ClosedPositions int      `json:"closed_positions"`
	FailedPositions int      `json:"failed_positions"`
	RealizedLoss    float64  `json:"realized_loss"`
	Errors          []string `json:"errors,omitempty"`
}

type AutoStopResult struct {
	Adjusted []int64  `json:"adjusted"` // tickets that received new stops
	Errors   []string `json:"errors,omitempty"`
}

type RiskReport struct {
	AlgorithmID     string          `json:"algorithm_id"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Portfolio       PortfolioRisk   `json:"portfolio"`
	Drawdown        DrawdownStatus  `json:"drawdown"`
	Correlation     CorrelationRisk `json:"correlation"`
	VaR             VaRResult       `json:"var"`
	Limits          RiskLimits      `json:"limits"`
	Recommendations []string        `json:"recommendations"`
}
