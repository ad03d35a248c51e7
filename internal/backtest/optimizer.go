package backtest

import (
	"context"
	"math"
	"strings"
	"sync"

	"algo_engine/internal/models"

	"github.com/opentracing/opentracing-go"
)

type ParamRange struct {
	Name string  `json:"name" yaml:"name"` // "<indicator>.period", "stop_loss_pct", "take_profit_pct"
	From float64 `json:"from" yaml:"from"`
	To   float64 `json:"to" yaml:"to"`
	Step float64 `json:"step" yaml:"step"`
}

type OptimizeRequest struct {
	Base        Request
	Parameters  []ParamRange
	Objective   string // sharpe (default) | total_return | profit_factor | calmar
	Parallelism int
}

type OptimizationRun struct {
	Parameters map[string]float64     `json:"parameters"`
	Score      float64                `json:"score"`
	Metrics    *models.BacktestResult `json:"result,omitempty"`
	Err        string                 `json:"error,omitempty"`
}

type OptimizationResult struct {
	Objective string            `json:"objective"`
	Best      *OptimizationRun  `json:"best"`
	Runs      []OptimizationRun `json:"runs"`
}

// Optimize grid-searches the parameter ranges. Runs execute concurrently
// behind a bounded semaphore; result order follows the grid, so repeated
// calls are deterministic and ties resolve to the earliest combination.
func (e *Engine) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizationResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "backtest.optimize")
	defer span.Finish()

	if req.Objective == "" {
		req.Objective = "sharpe"
	}
	if req.Parallelism <= 0 {
		req.Parallelism = 4
	}

	grid := expandGrid(req.Parameters)
	if len(grid) == 0 {
		grid = []map[string]float64{{}}
	}

	runs := make([]OptimizationRun, len(grid))
	sem := make(chan struct{}, req.Parallelism)
	var wg sync.WaitGroup

	for idx, params := range grid {
		idx, params := idx, params
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			run := OptimizationRun{Parameters: params, Score: math.Inf(-1)}
			cfg := applyParams(req.Base.Strategy, params)
			sub := req.Base
			sub.Strategy = cfg

			result, err := e.Run(ctx, sub)
			if err != nil {
				run.Err = err.Error()
			} else {
				run.Metrics = result
				run.Score = objective(result, req.Objective)
			}
			runs[idx] = run
		}()
	}
	wg.Wait()

	out := &OptimizationResult{Objective: req.Objective, Runs: runs}
	for i := range runs {
		if runs[i].Err != "" {
			continue
		}
		if out.Best == nil || runs[i].Score > out.Best.Score {
			out.Best = &runs[i]
		}
	}
	return out, nil
}

func expandGrid(params []ParamRange) []map[string]float64 {
	combos := []map[string]float64{{}}
	for _, p := range params {
		if p.Step <= 0 || p.To < p.From {
			continue
		}
		var values []float64
		for v := p.From; v <= p.To+1e-9; v += p.Step {
			values = append(values, v)
		}
		next := make([]map[string]float64, 0, len(combos)*len(values))
		for _, c := range combos {
			for _, v := range values {
				m := make(map[string]float64, len(c)+1)
				for k, cv := range c {
					m[k] = cv
				}
				m[p.Name] = v
				next = append(next, m)
			}
		}
		combos = next
	}
	if len(combos) == 1 && len(combos[0]) == 0 {
		return nil
	}
	return combos
}

// applyParams clones the config and writes each named parameter into it.
// "<name>.period" targets the indicator with that name.
func applyParams(cfg models.StrategyConfig, params map[string]float64) models.StrategyConfig {
	out := cfg
	out.Indicators = append([]models.IndicatorSpec(nil), cfg.Indicators...)

	for name, v := range params {
		switch name {
		case "stop_loss_pct":
			out.Stops.StopLossPct = v
		case "take_profit_pct":
			out.Stops.TakeProfitPct = v
		case "risk_per_trade":
			out.Sizing.RiskPerTrade = v
		default:
			ind, field, ok := strings.Cut(name, ".")
			if !ok || field != "period" {
				continue
			}
			for i := range out.Indicators {
				if out.Indicators[i].Name == ind {
					out.Indicators[i].Period = int(v)
				}
			}
		}
	}
	return out
}

func objective(r *models.BacktestResult, name string) float64 {
	switch name {
	case "total_return":
		return r.Performance.TotalReturn
	case "profit_factor":
		if math.IsInf(r.Performance.ProfitFactor, 1) {
			return math.MaxFloat64
		}
		return r.Performance.ProfitFactor
	case "calmar":
		return r.Performance.Calmar
	default:
		return r.Performance.Sharpe
	}
}
