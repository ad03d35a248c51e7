package backtest

import (
	"math"

	"algo_engine/internal/models"
	"algo_engine/internal/quant"
)

// annualization is the fixed √252 convention. A known approximation: it is
// applied regardless of the actual bar timeframe.
var annualization = math.Sqrt(252)

func fillMetrics(r *models.BacktestResult, finalBalance, maxDrawdown float64) {
	m := &r.Performance
	m.FinalBalance = finalBalance
	m.MaxDrawdown = maxDrawdown
	m.TotalReturn = (finalBalance - r.InitialBalance) / r.InitialBalance

	for _, t := range r.Trades {
		if !t.Closed() {
			continue
		}
		pnl := *t.ProfitLoss
		m.TotalTrades++
		if pnl > 0 {
			m.WinningTrades++
			m.GrossProfit += pnl
			if pnl > m.LargestWin {
				m.LargestWin = pnl
			}
		} else {
			m.LosingTrades++
			m.GrossLoss += pnl
			if pnl < m.LargestLoss {
				m.LargestLoss = pnl
			}
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
		m.Expectancy = (m.GrossProfit + m.GrossLoss) / float64(m.TotalTrades)
	}
	if m.WinningTrades > 0 {
		m.AverageWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = m.GrossLoss / float64(m.LosingTrades)
	}

	// profit factor: +Inf with winners and no losers, 0 with no trades
	switch {
	case m.TotalTrades == 0:
		m.ProfitFactor = 0
	case m.GrossLoss == 0:
		m.ProfitFactor = math.Inf(1)
	default:
		m.ProfitFactor = m.GrossProfit / math.Abs(m.GrossLoss)
	}

	returns := barReturns(r.EquityCurve)
	mean := quant.Mean(returns)
	std := quant.SampleStdDev(returns)
	downside := downsideDeviation(returns)

	if std > 0 {
		m.Sharpe = mean / std * annualization
	}
	if downside > 0 {
		m.Sortino = mean / downside * annualization
	}
	if maxDrawdown > 0 {
		m.Calmar = m.TotalReturn / maxDrawdown
	}

	r.Drawdown = analyzeDrawdown(r.EquityCurve, maxDrawdown)
	r.Risk = analyzeRisk(returns, mean, std, downside)
}

func barReturns(curve []models.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (curve[i].Equity-prev)/prev)
	}
	return out
}

// downsideDeviation over negative returns only, against a zero target.
func downsideDeviation(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		if r < 0 {
			sum += r * r
		}
	}
	return math.Sqrt(sum / float64(len(returns)))
}

func analyzeDrawdown(curve []models.EquityPoint, maxDD float64) models.DrawdownAnalysis {
	out := models.DrawdownAnalysis{MaxDrawdown: maxDD}
	if len(curve) == 0 {
		return out
	}

	peak := curve[0].Equity
	trough := curve[0].Equity
	out.PeakEquity = peak
	var underwater, longest, episodes int
	inEpisode := false

	for _, p := range curve {
		if p.Equity >= peak {
			peak = p.Equity
			if inEpisode {
				inEpisode = false
			}
			underwater = 0
		} else {
			if !inEpisode {
				inEpisode = true
				episodes++
			}
			underwater++
			if underwater > longest {
				longest = underwater
			}
		}
		if p.Equity > out.PeakEquity {
			out.PeakEquity = p.Equity
		}
		if p.Equity < trough {
			trough = p.Equity
		}
	}

	out.MaxDurationBar = longest
	out.Episodes = episodes
	out.TroughEquity = trough
	return out
}

func analyzeRisk(returns []float64, mean, std, downside float64) models.RiskAnalysis {
	out := models.RiskAnalysis{
		Volatility:        std,
		DownsideDeviation: downside,
	}
	if len(returns) == 0 {
		return out
	}
	// parametric 95% one-day VaR in return terms, reported as a positive loss
	z := quant.NormalQuantile(0.95)
	if v := z*std - mean; v > 0 {
		out.VaR95 = v
	}

	best, worst := returns[0], returns[0]
	for _, r := range returns {
		if r > best {
			best = r
		}
		if r < worst {
			worst = r
		}
	}
	out.BestBarReturn = best
	out.WorstBarReturn = worst
	return out
}
