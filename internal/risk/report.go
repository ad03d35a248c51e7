package risk

import (
	"context"
	"fmt"
	"time"

	"algo_engine/internal/models"

	"github.com/opentracing/opentracing-go"
)

// Report assembles the full risk picture for one algorithm's limits.
func (e *Engine) Report(ctx context.Context, algorithmID string, limits models.RiskLimits) (*models.RiskReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "risk.report")
	defer span.Finish()

	portfolio, err := e.PortfolioRisk(ctx, limits)
	if err != nil {
		return nil, err
	}
	drawdown, err := e.MonitorDrawdown(ctx)
	if err != nil {
		return nil, err
	}
	correlation, err := e.CheckCorrelationRisk(ctx)
	if err != nil {
		return nil, err
	}
	varRes, err := e.CalculateVaR(ctx, limits.VaRLimit)
	if err != nil {
		return nil, err
	}

	report := &models.RiskReport{
		AlgorithmID: algorithmID,
		GeneratedAt: time.Now(),
		Portfolio:   portfolio,
		Drawdown:    drawdown,
		Correlation: correlation,
		VaR:         varRes,
		Limits:      limits,
	}
	report.Recommendations = recommendations(report)
	return report, nil
}

func recommendations(r *models.RiskReport) []string {
	var out []string
	if r.Portfolio.CircuitBreakerTriggered {
		out = append(out, fmt.Sprintf(
			"exposure %.1f%% is past the circuit breaker (%.1f%%): no new positions until exposure falls",
			r.Portfolio.ExposurePercentage, r.Limits.CircuitBreakerThreshold))
	}
	if r.Drawdown.Breached {
		out = append(out, fmt.Sprintf(
			"account drawdown %.2f%% breaches the %.2f%% limit: reduce position sizes",
			r.Drawdown.Drawdown*100, r.Drawdown.Limit*100))
	}
	if r.Correlation.Breached {
		out = append(out, fmt.Sprintf(
			"average correlation %.0f%% across held symbols: diversify before adding exposure",
			r.Correlation.AverageCorrelation))
	}
	if r.VaR.Breached {
		out = append(out, fmt.Sprintf(
			"portfolio VaR %.2f exceeds the %.2f budget", r.VaR.Value, r.VaR.Limit))
	}
	for _, p := range r.Portfolio.Positions {
		if p.StopDistance == 0 {
			out = append(out, fmt.Sprintf("position %d (%s) has no stop loss", p.Ticket, p.Symbol))
		}
	}
	if len(out) == 0 {
		out = append(out, "all monitored limits are inside bounds")
	}
	return out
}
