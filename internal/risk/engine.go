package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"algo_engine/internal/gateway"
	"algo_engine/internal/models"
	"algo_engine/internal/quant"
	"algo_engine/pkg/logger"
)

// CorrelationSource is the correlation-table collaborator; the marketdata
// client satisfies it.
type CorrelationSource interface {
	PairCorrelation(ctx context.Context, a, b string) (float64, error)
}

// Notifier receives risk alerts. Kept tiny so tests can stub it.
type Notifier interface {
	Sendf(format string, args ...any)
}

const (
	// assumedDailyVol is the flat 1% daily volatility in the parametric VaR.
	// A documented simplification: no per-asset vols, no covariance.
	assumedDailyVol = 0.01

	// positionRiskPctLimit triggers auto-stops when one position's exposure
	// share of equity exceeds it.
	positionRiskPctLimit = 10.0

	autoStopRewardRisk = 2.0
)

type Engine struct {
	gw            gateway.Gateway
	corr          CorrelationSource
	notifier      Notifier
	drawdownLimit float64 // fraction
	corrLimit     float64 // percent
	varConfidence float64
}

func NewEngine(gw gateway.Gateway, corr CorrelationSource, notifier Notifier, drawdownLimit, corrLimit, varConfidence float64) *Engine {
	if drawdownLimit <= 0 {
		drawdownLimit = 0.05
	}
	if corrLimit <= 0 {
		corrLimit = 70
	}
	if varConfidence <= 0 || varConfidence >= 1 {
		varConfidence = 0.95
	}
	return &Engine{
		gw:            gw,
		corr:          corr,
		notifier:      notifier,
		drawdownLimit: drawdownLimit,
		corrLimit:     corrLimit,
		varConfidence: varConfidence,
	}
}

// PortfolioRisk scores every open position and the aggregate exposure. The
// circuit breaker trips exactly when exposure percentage exceeds the
// configured threshold, strictly.
func (e *Engine) PortfolioRisk(ctx context.Context, limits models.RiskLimits) (models.PortfolioRisk, error) {
	positions, err := e.gw.Positions(ctx)
	if err != nil {
		return models.PortfolioRisk{}, err
	}
	account, err := e.gw.AccountInfo(ctx)
	if err != nil {
		return models.PortfolioRisk{}, err
	}

	out := models.PortfolioRisk{Equity: account.Equity, At: time.Now()}
	for _, p := range positions {
		pr := models.PositionRisk{
			Ticket:        p.Ticket,
			Symbol:        p.Symbol,
			Exposure:      p.Exposure(),
			UnrealizedPnL: p.Profit,
		}
		if account.Equity > 0 {
			pr.RiskPercentage = pr.Exposure / account.Equity * 100
		}
		if p.OpenPrice > 0 {
			pr.DrawdownProxy = math.Abs(p.CurrentPrice-p.OpenPrice) / p.OpenPrice
		}
		if p.CurrentPrice > 0 {
			if p.StopLoss > 0 {
				pr.StopDistance = math.Abs(p.CurrentPrice-p.StopLoss) / p.CurrentPrice
			}
			if p.TakeProfit > 0 {
				pr.TakeDistance = math.Abs(p.TakeProfit-p.CurrentPrice) / p.CurrentPrice
			}
		}
		out.Positions = append(out.Positions, pr)
		out.TotalExposure += pr.Exposure
		out.UnrealizedPnL += pr.UnrealizedPnL
	}

	if account.Equity > 0 {
		out.ExposurePercentage = out.TotalExposure / account.Equity * 100
	}
	out.CircuitBreakerTriggered = out.ExposurePercentage > limits.CircuitBreakerThreshold
	return out, nil
}

// MonitorDrawdown checks account drawdown (balance-equity)/balance against
// the limit, strictly above.
func (e *Engine) MonitorDrawdown(ctx context.Context) (models.DrawdownStatus, error) {
	account, err := e.gw.AccountInfo(ctx)
	if err != nil {
		return models.DrawdownStatus{}, err
	}

	out := models.DrawdownStatus{
		Balance: account.Balance,
		Equity:  account.Equity,
		Limit:   e.drawdownLimit,
	}
	if account.Balance > 0 {
		out.Drawdown = (account.Balance - account.Equity) / account.Balance
	}
	out.Breached = out.Drawdown > e.drawdownLimit
	if out.Breached && e.notifier != nil {
		e.notifier.Sendf("drawdown alert: %.2f%% exceeds %.2f%% limit", out.Drawdown*100, e.drawdownLimit*100)
	}
	return out, nil
}

// CheckCorrelationRisk averages pairwise |correlation| across the held
// symbols. Breach is strictly above the percent limit.
func (e *Engine) CheckCorrelationRisk(ctx context.Context) (models.CorrelationRisk, error) {
	positions, err := e.gw.Positions(ctx)
	if err != nil {
		return models.CorrelationRisk{}, err
	}

	symbols := make([]string, 0, len(positions))
	seen := map[string]bool{}
	for _, p := range positions {
		if !seen[p.Symbol] {
			seen[p.Symbol] = true
			symbols = append(symbols, p.Symbol)
		}
	}

	out := models.CorrelationRisk{Limit: e.corrLimit}
	if len(symbols) < 2 {
		return out, nil
	}

	var sum float64
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			c, err := e.corr.PairCorrelation(ctx, symbols[i], symbols[j])
			if err != nil {
				logger.Error("correlation %s/%s: %v", symbols[i], symbols[j], err)
				continue
			}
			sum += math.Abs(c)
			out.Pairs++
		}
	}
	if out.Pairs > 0 {
		out.AverageCorrelation = sum / float64(out.Pairs) * 100
	}
	out.Breached = out.AverageCorrelation > e.corrLimit
	return out, nil
}

// ApplyAutoStops finds positions whose exposure share exceeds the per-position
// limit, derives the stop from the single-trade loss budget and the take at
// 1:2, then pushes both to the gateway. Best-effort across positions.
func (e *Engine) ApplyAutoStops(ctx context.Context, limits models.RiskLimits) (models.AutoStopResult, error) {
	positions, err := e.gw.Positions(ctx)
	if err != nil {
		return models.AutoStopResult{}, err
	}
	account, err := e.gw.AccountInfo(ctx)
	if err != nil {
		return models.AutoStopResult{}, err
	}

	var out models.AutoStopResult
	for _, p := range positions {
		if account.Equity <= 0 || p.Volume <= 0 || p.CurrentPrice <= 0 {
			continue
		}
		riskPct := p.Exposure() / account.Equity * 100
		if riskPct <= positionRiskPctLimit {
			continue
		}

		stopDist := limits.MaxSingleTradeLoss / p.Volume
		dir := p.Side.Direction()
		stop := p.CurrentPrice - dir*stopDist
		take := p.CurrentPrice + dir*autoStopRewardRisk*stopDist
		if stop < 0 {
			stop = 0
		}

		if err := e.gw.ModifyPosition(ctx, p.Ticket, stop, take); err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("ticket %d: %v", p.Ticket, err))
			continue
		}
		out.Adjusted = append(out.Adjusted, p.Ticket)
	}
	return out, nil
}

// CalculateVaR: parametric, notional * assumed daily vol * z, summed across
// positions with no cross-asset covariance.
func (e *Engine) CalculateVaR(ctx context.Context, limit float64) (models.VaRResult, error) {
	positions, err := e.gw.Positions(ctx)
	if err != nil {
		return models.VaRResult{}, err
	}

	z := quant.NormalQuantile(e.varConfidence)
	out := models.VaRResult{Confidence: e.varConfidence, ZScore: z, Limit: limit}
	for _, p := range positions {
		out.Value += p.Exposure() * assumedDailyVol * z
	}
	out.Breached = limit > 0 && out.Value > limit
	return out, nil
}

// EmergencyStop closes every open position. One failed close never stops the
// sweep; the aggregate reports how far it got.
func (e *Engine) EmergencyStop(ctx context.Context) (models.EmergencyStopResult, error) {
	positions, err := e.gw.Positions(ctx)
	if err != nil {
		return models.EmergencyStopResult{}, err
	}

	var out models.EmergencyStopResult
	for _, p := range positions {
		res, err := e.gw.ClosePosition(ctx, p.Ticket)
		if err != nil {
			out.FailedPositions++
			out.Errors = append(out.Errors, fmt.Sprintf("ticket %d: %v", p.Ticket, err))
			continue
		}
		out.ClosedPositions++
		if res.Profit < 0 {
			out.RealizedLoss += -res.Profit
		}
	}

	if e.notifier != nil {
		e.notifier.Sendf("emergency stop: closed %d, failed %d, realized loss %.2f",
			out.ClosedPositions, out.FailedPositions, out.RealizedLoss)
	}
	return out, nil
}

// PreTrade gates a sized signal before execution. Violations come back as
// RiskLimitExceededError, never as a panic or a silent drop.
func (e *Engine) PreTrade(ctx context.Context, sig models.Signal, limits models.RiskLimits) error {
	portfolio, err := e.PortfolioRisk(ctx, limits)
	if err != nil {
		return err
	}

	projected := portfolio.ExposurePercentage
	if portfolio.Equity > 0 {
		projected += sig.Volume * sig.EntryPrice / portfolio.Equity * 100
	}
	if projected > limits.CircuitBreakerThreshold {
		return &models.RiskLimitExceededError{
			Reason: "circuit breaker exposure",
			Limit:  limits.CircuitBreakerThreshold,
			Value:  projected,
		}
	}

	if limits.VaRLimit > 0 {
		v, err := e.CalculateVaR(ctx, limits.VaRLimit)
		if err != nil {
			return err
		}
		projectedVaR := v.Value + sig.Volume*sig.EntryPrice*assumedDailyVol*v.ZScore
		if projectedVaR > limits.VaRLimit {
			return &models.RiskLimitExceededError{
				Reason: "value at risk",
				Limit:  limits.VaRLimit,
				Value:  projectedVaR,
			}
		}
	}

	dd, err := e.MonitorDrawdown(ctx)
	if err != nil {
		return err
	}
	if dd.Breached {
		return &models.RiskLimitExceededError{
			Reason: "account drawdown",
			Limit:  e.drawdownLimit,
			Value:  dd.Drawdown,
		}
	}
	return nil
}
