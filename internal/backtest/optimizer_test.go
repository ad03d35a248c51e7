package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandGrid(t *testing.T) {
	grid := expandGrid([]ParamRange{
		{Name: "fast.period", From: 5, To: 15, Step: 5},
		{Name: "stop_loss_pct", From: 0.01, To: 0.02, Step: 0.01},
	})
	require.Len(t, grid, 6) // 3 x 2
	assert.Equal(t, 5.0, grid[0]["fast.period"])
	assert.InDelta(t, 0.01, grid[0]["stop_loss_pct"], 1e-12)

	assert.Nil(t, expandGrid(nil))
	assert.Nil(t, expandGrid([]ParamRange{{Name: "x", From: 1, To: 0, Step: 1}}))
}

func TestApplyParams(t *testing.T) {
	cfg := smaCrossConfig()
	out := applyParams(cfg, map[string]float64{
		"fast.period":   7,
		"stop_loss_pct": 0.03,
	})
	assert.Equal(t, 7, out.Indicators[0].Period)
	assert.Equal(t, 0.03, out.Stops.StopLossPct)
	// the original config is untouched
	assert.Equal(t, 10, cfg.Indicators[0].Period)
}

func TestOptimizeSelectsBest(t *testing.T) {
	e := NewEngine()
	res, err := e.Optimize(context.Background(), OptimizeRequest{
		Base: Request{
			Strategy:       smaCrossConfig(),
			Bars:           risingBars(120),
			InitialBalance: 10000,
		},
		Parameters: []ParamRange{
			{Name: "fast.period", From: 5, To: 10, Step: 5},
		},
		Objective:   "total_return",
		Parallelism: 2,
	})
	require.NoError(t, err)
	require.Len(t, res.Runs, 2)
	require.NotNil(t, res.Best)

	for _, run := range res.Runs {
		assert.Empty(t, run.Err)
		assert.LessOrEqual(t, run.Score, res.Best.Score)
	}
}

func TestOptimizeDeterministicOrder(t *testing.T) {
	e := NewEngine()
	req := OptimizeRequest{
		Base: Request{
			Strategy:       smaCrossConfig(),
			Bars:           risingBars(120),
			InitialBalance: 10000,
		},
		Parameters: []ParamRange{
			{Name: "fast.period", From: 4, To: 12, Step: 4},
		},
	}

	first, err := e.Optimize(context.Background(), req)
	require.NoError(t, err)
	second, err := e.Optimize(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, len(first.Runs), len(second.Runs))
	for i := range first.Runs {
		assert.Equal(t, first.Runs[i].Parameters, second.Runs[i].Parameters)
		assert.Equal(t, first.Runs[i].Score, second.Runs[i].Score)
	}
}
