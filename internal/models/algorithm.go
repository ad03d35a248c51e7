package models

import "time"

type AlgorithmType string

const (
	AlgoStatisticalArbitrage AlgorithmType = "statistical_arbitrage"
	AlgoMomentum             AlgorithmType = "momentum"
	AlgoMeanReversion        AlgorithmType = "mean_reversion"
	AlgoPairsTrading         AlgorithmType = "pairs_trading"
	AlgoMarketMaking         AlgorithmType = "market_making"
)

func (t AlgorithmType) Valid() bool {
	switch t {
	case AlgoStatisticalArbitrage, AlgoMomentum, AlgoMeanReversion, AlgoPairsTrading, AlgoMarketMaking:
		return true
	}
	return false
}

type AlgorithmStatus string

const (
	StatusIdle      AlgorithmStatus = "idle"
	StatusAnalyzing AlgorithmStatus = "analyzing"
	StatusSignaling AlgorithmStatus = "signaling"
	StatusExecuting AlgorithmStatus = "executing"
	StatusPaused    AlgorithmStatus = "paused"
	StatusError     AlgorithmStatus = "error"
)

// RiskLimits bound a single algorithm instance. Fractions are of equity
// unless stated otherwise.
type RiskLimits struct {
	MaxDrawdown             float64 `json:"max_drawdown" yaml:"max_drawdown"`                           // fraction, 0.05 => 5%
	MaxDailyLoss            float64 `json:"max_daily_loss" yaml:"max_daily_loss"`                       // account currency
	MaxSingleTradeLoss      float64 `json:"max_single_trade_loss" yaml:"max_single_trade_loss"`         // account currency
	MaxCorrelationExposure  float64 `json:"max_correlation_exposure" yaml:"max_correlation_exposure"`   // percent, 70 => 70%
	CircuitBreakerThreshold float64 `json:"circuit_breaker_threshold" yaml:"circuit_breaker_threshold"` // exposure percent of equity
	VaRLimit                float64 `json:"var_limit" yaml:"var_limit"`                                 // account currency
}

func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxDrawdown:             0.05,
		MaxDailyLoss:            1000,
		MaxSingleTradeLoss:      200,
		MaxCorrelationExposure:  70,
		CircuitBreakerThreshold: 150,
		VaRLimit:                2000,
	}
}

type ExecutionSettings struct {
	MaxConcurrentPositions int           `json:"max_concurrent_positions" yaml:"max_concurrent_positions"`
	PositionSizeMethod     string        `json:"position_size_method" yaml:"position_size_method"` // fixed | risk_based | kelly
	MinPositionSize        float64       `json:"min_position_size" yaml:"min_position_size"`
	MaxPositionSize        float64       `json:"max_position_size" yaml:"max_position_size"`
	CycleInterval          time.Duration `json:"cycle_interval" yaml:"cycle_interval"` // 0 => on demand only
	ConfirmTrades          bool          `json:"confirm_trades" yaml:"confirm_trades"`
}

func DefaultExecutionSettings() ExecutionSettings {
	return ExecutionSettings{
		MaxConcurrentPositions: 3,
		PositionSizeMethod:     "risk_based",
		MinPositionSize:        1000,
		MaxPositionSize:        100000,
	}
}

// AlgorithmConfig is the full definition of one algorithm instance. Owned by
// the caller; the coordinator works on its own copy and replaces it wholesale
// on update, never mutating a shared one in place.
type AlgorithmConfig struct {
	ID         string             `json:"id" yaml:"id"`
	UserID     int64              `json:"user_id" yaml:"user_id"`
	Name       string             `json:"name" yaml:"name"`
	Type       AlgorithmType      `json:"type" yaml:"type"`
	Symbols    []string           `json:"symbols" yaml:"symbols"`
	Timeframe  string             `json:"timeframe" yaml:"timeframe"`
	Parameters map[string]float64 `json:"parameters" yaml:"parameters"`
	RiskLimits RiskLimits         `json:"risk_limits" yaml:"risk_limits"`
	Execution  ExecutionSettings  `json:"execution_settings" yaml:"execution_settings"`
	CreatedAt  time.Time          `json:"created_at" yaml:"-"`
}

func (c AlgorithmConfig) Param(key string, def float64) float64 {
	if v, ok := c.Parameters[key]; ok {
		return v
	}
	return def
}

// Clone returns a deep copy, so cached configs can be handed out without
// sharing the parameter map.
func (c AlgorithmConfig) Clone() AlgorithmConfig {
	out := c
	out.Symbols = append([]string(nil), c.Symbols...)
	out.Parameters = make(map[string]float64, len(c.Parameters))
	for k, v := range c.Parameters {
		out.Parameters[k] = v
	}
	return out
}

const HealthScoreMax = 100

// AlgorithmState is mutated only by the coordinator, under its lock.
// Everyone else receives copies.
type AlgorithmState struct {
	AlgorithmID      string          `json:"algorithm_id"`
	Status           AlgorithmStatus `json:"status"`
	CurrentPositions int             `json:"current_positions"`
	HealthScore      int             `json:"health_score"` // 0..100
	LastAnalysis     time.Time       `json:"last_analysis"`
	LastSignal       time.Time       `json:"last_signal"`
	LastExecution    time.Time       `json:"last_execution"`
	LastError        time.Time       `json:"last_error"`
	LastErrorMsg     string          `json:"last_error_msg,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func NewAlgorithmState(id string) AlgorithmState {
	return AlgorithmState{
		AlgorithmID: id,
		Status:      StatusIdle,
		HealthScore: HealthScoreMax,
		UpdatedAt:   time.Now(),
	}
}
