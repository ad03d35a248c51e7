package strategy

import (
	"math"
	"time"

	"algo_engine/internal/models"
)

const signalMaxAge = 5 * time.Minute

// base carries the shared pieces every variant embeds: clamping, the default
// validation gate, the three sizing methods and the baseline risk assessment.
type base struct {
	cfg models.AlgorithmConfig
}

func (b *base) Name() string               { return b.cfg.Name }
func (b *base) Type() models.AlgorithmType { return b.cfg.Type }

func (b *base) clamp(volume float64) float64 {
	min := b.cfg.Execution.MinPositionSize
	max := b.cfg.Execution.MaxPositionSize
	if max > 0 && volume > max {
		volume = max
	}
	if volume < min {
		volume = min
	}
	return volume
}

// ValidateSignal is the shared gate. Variants that add guards call it first.
func (b *base) ValidateSignal(sig models.Signal, state models.AlgorithmState) bool {
	if state.Status == models.StatusPaused || state.Status == models.StatusError {
		return false
	}
	// a pairs signal opens both legs, so the cap must hold for all of them
	legs := 1
	if sig.PairLeg != nil {
		legs = 2
	}
	if state.CurrentPositions+legs > b.cfg.Execution.MaxConcurrentPositions {
		return false
	}
	if sig.Symbol == "" || sig.EntryPrice <= 0 {
		return false
	}
	if sig.Side != models.SideBuy && sig.Side != models.SideSell {
		return false
	}
	if !sig.CreatedAt.IsZero() && time.Since(sig.CreatedAt) > signalMaxAge {
		return false
	}
	return true
}

func (b *base) PositionSize(sig models.Signal, equity float64) float64 {
	if sig.EntryPrice <= 0 || equity <= 0 {
		return b.clamp(0)
	}

	var volume float64
	switch b.cfg.Execution.PositionSizeMethod {
	case "risk_based":
		riskAmount := equity * b.cfg.Param("risk_per_trade", 0.01)
		stopPct := b.cfg.Param("stop_loss_pct", 0.02)
		if stopPct > 0 {
			volume = riskAmount / (sig.EntryPrice * stopPct)
		}
	case "kelly":
		volume = b.kellySize(sig, equity)
	default: // fixed
		volume = b.cfg.Param("position_size", b.cfg.Execution.MinPositionSize)
	}
	return b.clamp(volume)
}

// kellySize: fractional Kelly with a volatility haircut. The win statistics
// come from parameters, refreshed by whoever tunes the algorithm.
func (b *base) kellySize(sig models.Signal, equity float64) float64 {
	p := b.cfg.Param("win_rate", 0.55)
	ratio := b.cfg.Param("win_loss_ratio", 1.5)
	if ratio <= 0 {
		return 0
	}
	kelly := (p*(ratio+1) - 1) / ratio
	if kelly <= 0 {
		return 0
	}
	kelly *= b.cfg.Param("kelly_fraction", 0.5)

	if vol := sig.Metadata["volatility"]; vol > 0 {
		kelly /= 1 + vol*10 // quieter markets size larger
	}
	return equity * kelly / sig.EntryPrice
}

// AssessRisk derives the stop from the single-trade loss budget and places
// the take at a 1:2 reward-to-risk ratio.
func (b *base) AssessRisk(sig models.Signal, equity float64) models.RiskAssessment {
	out := models.RiskAssessment{RewardRisk: 2}
	if sig.EntryPrice <= 0 || sig.Volume <= 0 {
		return out
	}

	maxLoss := b.cfg.RiskLimits.MaxSingleTradeLoss
	out.MaxLoss = maxLoss

	stopDist := maxLoss / sig.Volume
	dir := sig.Side.Direction()
	out.StopLoss = sig.EntryPrice - dir*stopDist
	out.TakeProfit = sig.EntryPrice + dir*2*stopDist
	if out.StopLoss < 0 {
		out.StopLoss = 0
	}

	if equity > 0 {
		exposure := sig.Volume * sig.EntryPrice
		out.Score = math.Min(100, exposure/equity*100)
	}
	return out
}

func newSignal(cfg models.AlgorithmConfig, symbol string, side models.Side, price float64, reason string) models.Signal {
	return models.Signal{
		AlgorithmID: cfg.ID,
		Symbol:      symbol,
		Side:        side,
		EntryPrice:  price,
		Reason:      reason,
		Metadata:    map[string]float64{},
		CreatedAt:   time.Now(),
	}
}
