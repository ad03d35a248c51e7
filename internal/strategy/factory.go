package strategy

import (
	"algo_engine/internal/models"
)

// New builds the variant selected by cfg.Type. Unknown types and malformed
// parameters fail fast with ConfigurationError.
func New(cfg models.AlgorithmConfig) (Strategy, error) {
	if len(cfg.Symbols) == 0 {
		return nil, &models.ConfigurationError{Field: "symbols", Reason: "at least one symbol required"}
	}
	if cfg.Execution.MaxConcurrentPositions <= 0 {
		return nil, &models.ConfigurationError{Field: "execution_settings.max_concurrent_positions", Reason: "must be positive"}
	}
	if cfg.Execution.MinPositionSize < 0 || (cfg.Execution.MaxPositionSize > 0 && cfg.Execution.MaxPositionSize < cfg.Execution.MinPositionSize) {
		return nil, &models.ConfigurationError{Field: "execution_settings.position_size", Reason: "min/max range inverted"}
	}

	switch cfg.Type {
	case models.AlgoStatisticalArbitrage:
		return newStatArb(cfg)
	case models.AlgoMomentum:
		return newMomentum(cfg)
	case models.AlgoMeanReversion:
		return newMeanReversion(cfg)
	case models.AlgoPairsTrading:
		return newPairsTrading(cfg)
	case models.AlgoMarketMaking:
		return newMarketMaking(cfg)
	}
	return nil, &models.ConfigurationError{Field: "type", Reason: "unknown algorithm type " + string(cfg.Type)}
}
