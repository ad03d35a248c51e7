package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"algo_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesBars(prices []float64) []models.OHLCBar {
	out := make([]models.OHLCBar, len(prices))
	for i, p := range prices {
		out[i] = models.OHLCBar{
			Symbol:    "EURUSD",
			Timeframe: "1h",
			Timestamp: time.Unix(int64(i)*3600, 0),
			Open:      p,
			High:      p * 1.001,
			Low:       p * 0.999,
			Close:     p,
			Volume:    100,
		}
	}
	return out
}

func risingBars(n int) []models.OHLCBar {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 1.0 + float64(i)*0.001
	}
	return seriesBars(prices)
}

func smaCrossConfig() models.StrategyConfig {
	return models.StrategyConfig{
		Name:      "sma-cross",
		Symbol:    "EURUSD",
		Timeframe: "1h",
		Indicators: []models.IndicatorSpec{
			{Name: "fast", Kind: "sma", Period: 10},
			{Name: "slow", Kind: "sma", Period: 20},
		},
		LongEntry: models.RuleGroup{Rules: []models.Rule{
			{Indicator: "fast", Compare: "above", Target: "slow"},
		}},
		Sizing: models.SizingConfig{Method: "fixed", FixedSize: 100000},
	}
}

func TestRunRejectsShortSeries(t *testing.T) {
	e := NewEngine()
	_, err := e.Run(context.Background(), Request{
		Strategy:       smaCrossConfig(),
		Bars:           risingBars(10), // slow SMA needs 20
		InitialBalance: 10000,
	})

	var insufficient *models.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 20, insufficient.Need)
	assert.Equal(t, 10, insufficient.Got)

	_, err = e.Run(context.Background(), Request{Strategy: smaCrossConfig(), InitialBalance: 10000})
	require.ErrorAs(t, err, &insufficient)
}

func TestMonotonicSeriesOpensExactlyOneLongTrade(t *testing.T) {
	e := NewEngine()
	res, err := e.Run(context.Background(), Request{
		Strategy:       smaCrossConfig(),
		Bars:           risingBars(100),
		InitialBalance: 10000,
	})
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, models.SideBuy, trade.Side)
	assert.Equal(t, models.ExitReasonEndOfData, trade.ExitReason)

	// on a strictly rising series the fast SMA first exceeds the slow one at
	// indicator index 19, read at the following bar
	assert.Equal(t, time.Unix(20*3600, 0), trade.EntryTime)
	assert.True(t, trade.ExitTime.After(trade.EntryTime))
	require.NotNil(t, trade.ProfitLoss)
}

func TestNoLookahead(t *testing.T) {
	// entry decision at bar i must not change when bar i's own close is
	// replaced by an arbitrary value
	e := NewEngine()
	base := risingBars(60)

	spiked := make([]models.OHLCBar, len(base))
	copy(spiked, base)
	entryBar := 20
	spiked[entryBar].Close = 0.5 // crash the entry bar itself
	spiked[entryBar].Open = 0.5
	spiked[entryBar].High = 0.5
	spiked[entryBar].Low = 0.5

	resBase, err := e.Run(context.Background(), Request{Strategy: smaCrossConfig(), Bars: base, InitialBalance: 10000})
	require.NoError(t, err)
	resSpiked, err := e.Run(context.Background(), Request{Strategy: smaCrossConfig(), Bars: spiked, InitialBalance: 10000})
	require.NoError(t, err)

	require.NotEmpty(t, resBase.Trades)
	require.NotEmpty(t, resSpiked.Trades)
	// same entry decision at the same bar, regardless of that bar's data
	assert.Equal(t, resBase.Trades[0].EntryTime, resSpiked.Trades[0].EntryTime)
	assert.Equal(t, resBase.Trades[0].Side, resSpiked.Trades[0].Side)
}

func TestSpreadAppliedOnEntry(t *testing.T) {
	e := NewEngine()
	res, err := e.Run(context.Background(), Request{
		Strategy:       smaCrossConfig(),
		Bars:           risingBars(100),
		SpreadPips:     2,
		InitialBalance: 10000,
	})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	entryBarClose := 1.0 + 20*0.001
	assert.InDelta(t, entryBarClose+2*pipSize, res.Trades[0].EntryPrice, 1e-9)
}

func TestStopLossAndTakeProfit(t *testing.T) {
	cfg := smaCrossConfig()
	cfg.Stops = models.StopConfig{StopLossPct: 0.02, TakeProfitPct: 0.05}

	// rise long enough to enter, then collapse through the stop
	prices := make([]float64, 0, 60)
	for i := 0; i < 40; i++ {
		prices = append(prices, 1.0+float64(i)*0.001)
	}
	for i := 0; i < 20; i++ {
		prices = append(prices, 1.039*(1-float64(i+1)*0.01))
	}

	e := NewEngine()
	res, err := e.Run(context.Background(), Request{
		Strategy:       cfg,
		Bars:           seriesBars(prices),
		InitialBalance: 10000,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)
	assert.Equal(t, models.ExitReasonStopLoss, res.Trades[0].ExitReason)
	require.NotNil(t, res.Trades[0].ProfitLoss)
	assert.Negative(t, *res.Trades[0].ProfitLoss)
}

func TestCommissionSubtracted(t *testing.T) {
	e := NewEngine()
	withCommission, err := e.Run(context.Background(), Request{
		Strategy:       smaCrossConfig(),
		Bars:           risingBars(100),
		Commission:     7,
		InitialBalance: 10000,
	})
	require.NoError(t, err)
	free, err := e.Run(context.Background(), Request{
		Strategy:       smaCrossConfig(),
		Bars:           risingBars(100),
		InitialBalance: 10000,
	})
	require.NoError(t, err)

	require.Len(t, withCommission.Trades, 1)
	assert.InDelta(t, 7.0, withCommission.Trades[0].Commission, 1e-9) // 100k units = 1 lot
	assert.InDelta(t,
		*free.Trades[0].ProfitLoss-7.0,
		*withCommission.Trades[0].ProfitLoss, 1e-9)
}

func TestEquityCurveDenseAndDrawdownMonotone(t *testing.T) {
	e := NewEngine()
	bars := risingBars(100)
	res, err := e.Run(context.Background(), Request{
		Strategy:       smaCrossConfig(),
		Bars:           bars,
		InitialBalance: 10000,
	})
	require.NoError(t, err)

	// one point per bar, positioned or flat
	require.Len(t, res.EquityCurve, len(bars))
	assert.GreaterOrEqual(t, res.Performance.MaxDrawdown, 0.0)

	// recompute the running drawdown from the curve: it never exceeds the
	// reported maximum, and the running value is non-decreasing
	peak := res.EquityCurve[0].Equity
	running := 0.0
	for _, p := range res.EquityCurve {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := (peak - p.Equity) / peak
		if dd > running {
			running = dd
		}
	}
	assert.InDelta(t, res.Performance.MaxDrawdown, running, 1e-9)
}

func TestEndOfDataCommissionDeepensDrawdown(t *testing.T) {
	e := NewEngine()
	res, err := e.Run(context.Background(), Request{
		Strategy:       smaCrossConfig(),
		Bars:           risingBars(100), // long never exits, forced close on the last bar
		Commission:     500,
		InitialBalance: 10000,
	})
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, models.ExitReasonEndOfData, trade.ExitReason)
	assert.InDelta(t, 500.0, trade.Commission, 1e-9)

	// a rising series has zero drawdown until the forced close settles
	// commission; the reported maximum must reflect the adjusted final point
	gross := res.Performance.FinalBalance + trade.Commission
	want := trade.Commission / gross
	assert.InDelta(t, want, res.Performance.MaxDrawdown, 1e-9)

	// the final curve point carries the same adjustment
	last := res.EquityCurve[len(res.EquityCurve)-1]
	assert.InDelta(t, res.Performance.FinalBalance, last.Equity, 1e-9)
}

func TestClosedTradeInvariants(t *testing.T) {
	e := NewEngine()
	res, err := e.Run(context.Background(), Request{
		Strategy:       smaCrossConfig(),
		Bars:           risingBars(100),
		InitialBalance: 10000,
	})
	require.NoError(t, err)

	for _, tr := range res.Trades {
		require.True(t, tr.Closed())
		assert.True(t, tr.ExitTime.After(tr.EntryTime))
		assert.NotZero(t, tr.ExitPrice)
	}
}

func TestUnknownIndicatorSkipped(t *testing.T) {
	cfg := smaCrossConfig()
	cfg.Indicators = append(cfg.Indicators, models.IndicatorSpec{Name: "mystery", Kind: "supertrend", Period: 300})

	e := NewEngine()
	res, err := e.Run(context.Background(), Request{
		Strategy:       cfg,
		Bars:           risingBars(100), // 100 bars is plenty once supertrend is ignored
		InitialBalance: 10000,
	})
	require.NoError(t, err)
	assert.Len(t, res.Trades, 1)
}

func TestProfitFactorEdges(t *testing.T) {
	e := NewEngine()

	// winning run, no losers
	res, err := e.Run(context.Background(), Request{
		Strategy:       smaCrossConfig(),
		Bars:           risingBars(100),
		InitialBalance: 10000,
	})
	require.NoError(t, err)
	assert.True(t, math.IsInf(res.Performance.ProfitFactor, 1))

	// no trades at all
	cfg := smaCrossConfig()
	cfg.LongEntry = models.RuleGroup{}
	res, err = e.Run(context.Background(), Request{
		Strategy:       cfg,
		Bars:           risingBars(100),
		InitialBalance: 10000,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Performance.ProfitFactor)
	assert.Empty(t, res.Trades)
	assert.Len(t, res.EquityCurve, 100) // curve stays dense while flat
}
