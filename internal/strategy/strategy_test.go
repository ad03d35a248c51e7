package strategy

import (
	"math"
	"testing"
	"time"

	"algo_engine/internal/marketdata"
	"algo_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(typ models.AlgorithmType, params map[string]float64) models.AlgorithmConfig {
	return models.AlgorithmConfig{
		ID:         "algo-1",
		Name:       "test",
		Type:       typ,
		Symbols:    []string{"BTC-USDT-SWAP", "ETH-USDT-SWAP"},
		Timeframe:  "1m",
		Parameters: params,
		RiskLimits: models.DefaultRiskLimits(),
		Execution: models.ExecutionSettings{
			MaxConcurrentPositions: 3,
			PositionSizeMethod:     "fixed",
			MinPositionSize:        100,
			MaxPositionSize:        1000,
		},
	}
}

func snapshotFromCloses(symbol string, closes []float64) marketdata.Snapshot {
	bars := make([]models.OHLCBar, len(closes))
	for i, c := range closes {
		bars[i] = models.OHLCBar{
			Symbol:    symbol,
			Timeframe: "1m",
			Timestamp: time.Unix(int64(i)*60, 0),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    100,
		}
	}
	return marketdata.Snapshot{Symbol: symbol, Timeframe: "1m", Bars: bars, At: time.Now()}
}

func TestFactory(t *testing.T) {
	var cfgErr *models.ConfigurationError

	_, err := New(testConfig("quantum_leap", nil))
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "type", cfgErr.Field)

	cfg := testConfig(models.AlgoMomentum, nil)
	cfg.Symbols = nil
	_, err = New(cfg)
	require.ErrorAs(t, err, &cfgErr)

	cfg = testConfig(models.AlgoPairsTrading, nil)
	cfg.Symbols = cfg.Symbols[:1]
	_, err = New(cfg)
	require.ErrorAs(t, err, &cfgErr)

	cfg = testConfig(models.AlgoStatisticalArbitrage, map[string]float64{"lookback_window": 1})
	_, err = New(cfg)
	require.ErrorAs(t, err, &cfgErr)

	for _, typ := range []models.AlgorithmType{
		models.AlgoStatisticalArbitrage,
		models.AlgoMomentum,
		models.AlgoMeanReversion,
		models.AlgoPairsTrading,
		models.AlgoMarketMaking,
	} {
		s, err := New(testConfig(typ, nil))
		require.NoError(t, err, typ)
		assert.Equal(t, typ, s.Type())
	}
}

func TestStatArbFadesDeviation(t *testing.T) {
	s, err := New(testConfig(models.AlgoStatisticalArbitrage, map[string]float64{
		"lookback_window": 10,
		"entry_threshold": 2.0,
	}))
	require.NoError(t, err)

	// flat series with a spike up at the end: z-score well above 2
	closes := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 115}
	res, err := s.Analyze(snapshotFromCloses("BTC-USDT-SWAP", closes))
	require.NoError(t, err)
	require.True(t, res.Ready)
	assert.Greater(t, res.Value("zscore"), 2.0)

	sig, ok := s.GenerateSignal(res)
	require.True(t, ok)
	assert.Equal(t, models.SideSell, sig.Side) // fade the rich print

	// mirrored spike down generates a buy
	closes[9] = 85
	res, err = s.Analyze(snapshotFromCloses("BTC-USDT-SWAP", closes))
	require.NoError(t, err)
	sig, ok = s.GenerateSignal(res)
	require.True(t, ok)
	assert.Equal(t, models.SideBuy, sig.Side)
}

func TestStatArbNotReadyOnShortSeries(t *testing.T) {
	s, err := New(testConfig(models.AlgoStatisticalArbitrage, map[string]float64{"lookback_window": 20}))
	require.NoError(t, err)

	res, err := s.Analyze(snapshotFromCloses("BTC-USDT-SWAP", []float64{1, 2, 3}))
	require.NoError(t, err) // degraded, not an error
	assert.False(t, res.Ready)

	_, ok := s.GenerateSignal(res)
	assert.False(t, ok)
}

func TestMomentumLong(t *testing.T) {
	s, err := New(testConfig(models.AlgoMomentum, map[string]float64{
		"momentum_period":     5,
		"trend_filter_period": 10,
		"momentum_threshold":  0.01,
	}))
	require.NoError(t, err)

	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 * math.Pow(1.01, float64(i)) // steady climb
	}
	res, err := s.Analyze(snapshotFromCloses("BTC-USDT-SWAP", closes))
	require.NoError(t, err)
	require.True(t, res.Ready)

	sig, ok := s.GenerateSignal(res)
	require.True(t, ok)
	assert.Equal(t, models.SideBuy, sig.Side)
	assert.Greater(t, sig.Metadata["momentum"], 0.01)
}

func TestMomentumRejectsChoppyTrend(t *testing.T) {
	s, err := New(testConfig(models.AlgoMomentum, map[string]float64{
		"momentum_period":     5,
		"trend_filter_period": 10,
		"momentum_threshold":  0.01,
	}))
	require.NoError(t, err)

	// net drift up over the momentum window but alternating bars
	closes := []float64{100, 104, 99, 105, 100, 106, 101, 107, 102, 108, 103, 109}
	res, err := s.Analyze(snapshotFromCloses("BTC-USDT-SWAP", closes))
	require.NoError(t, err)
	require.True(t, res.Ready)
	assert.InDelta(t, 0.5, res.Value("up_fraction"), 0.11)

	_, ok := s.GenerateSignal(res)
	assert.False(t, ok) // trend not confirmed
}

func TestMeanReversionNonRevertingGuard(t *testing.T) {
	s, err := New(testConfig(models.AlgoMeanReversion, map[string]float64{
		"lookback_window": 10,
		"entry_deviation": 2.0,
	}))
	require.NoError(t, err)

	state := models.NewAlgorithmState("algo-1")

	sig := models.Signal{
		Symbol:     "BTC-USDT-SWAP",
		Side:       models.SideSell,
		EntryPrice: 100,
		Metadata:   map[string]float64{"deviation": 2.5},
		CreatedAt:  time.Now(),
	}
	assert.True(t, s.ValidateSignal(sig, state))

	sig.Metadata["deviation"] = 3.5 // runaway move, do not fade
	assert.False(t, s.ValidateSignal(sig, state))

	sig.Metadata["deviation"] = -3.5
	assert.False(t, s.ValidateSignal(sig, state))
}

func TestValidateSignalLimits(t *testing.T) {
	s, err := New(testConfig(models.AlgoMomentum, nil))
	require.NoError(t, err)

	sig := models.Signal{
		Symbol:     "BTC-USDT-SWAP",
		Side:       models.SideBuy,
		EntryPrice: 100,
		CreatedAt:  time.Now(),
	}

	state := models.NewAlgorithmState("algo-1")
	assert.True(t, s.ValidateSignal(sig, state))

	// at the concurrent-position cap every new signal is refused
	state.CurrentPositions = 3
	assert.False(t, s.ValidateSignal(sig, state))

	state = models.NewAlgorithmState("algo-1")
	state.Status = models.StatusPaused
	assert.False(t, s.ValidateSignal(sig, state))

	state = models.NewAlgorithmState("algo-1")
	stale := sig
	stale.CreatedAt = time.Now().Add(-10 * time.Minute)
	assert.False(t, s.ValidateSignal(stale, state))
}

func TestValidateSignalPairCountsBothLegs(t *testing.T) {
	cfg := testConfig(models.AlgoPairsTrading, nil)
	cfg.Execution.MaxConcurrentPositions = 1
	s, err := New(cfg)
	require.NoError(t, err)

	sig := models.Signal{
		Symbol:     "BTC-USDT-SWAP",
		Side:       models.SideSell,
		EntryPrice: 100,
		CreatedAt:  time.Now(),
		PairLeg: &models.PairLeg{
			Symbol:     "ETH-USDT-SWAP",
			Side:       models.SideBuy,
			HedgeRatio: 1,
		},
	}

	// a pair opens two positions, so a cap of one can never admit it
	state := models.NewAlgorithmState("algo-1")
	assert.False(t, s.ValidateSignal(sig, state))

	cfg.Execution.MaxConcurrentPositions = 2
	s, err = New(cfg)
	require.NoError(t, err)
	assert.True(t, s.ValidateSignal(sig, state))

	state.CurrentPositions = 1
	assert.False(t, s.ValidateSignal(sig, state))

	// a single-leg signal still fits in the remaining slot
	single := sig
	single.PairLeg = nil
	assert.True(t, s.ValidateSignal(single, state))
}

func TestPositionSizeAlwaysClamped(t *testing.T) {
	cfg := testConfig(models.AlgoMomentum, map[string]float64{"position_size": 50000})
	s, err := New(cfg)
	require.NoError(t, err)

	sig := models.Signal{Symbol: "X", Side: models.SideBuy, EntryPrice: 100, CreatedAt: time.Now()}
	size := s.PositionSize(sig, 1e9)
	assert.LessOrEqual(t, size, cfg.Execution.MaxPositionSize)
	assert.GreaterOrEqual(t, size, cfg.Execution.MinPositionSize)

	// risk_based with a huge stop still lands inside the range
	cfg = testConfig(models.AlgoMomentum, map[string]float64{"risk_per_trade": 0.5})
	cfg.Execution.PositionSizeMethod = "risk_based"
	s, err = New(cfg)
	require.NoError(t, err)
	size = s.PositionSize(sig, 1e9)
	assert.LessOrEqual(t, size, cfg.Execution.MaxPositionSize)

	// kelly
	cfg = testConfig(models.AlgoMomentum, nil)
	cfg.Execution.PositionSizeMethod = "kelly"
	s, err = New(cfg)
	require.NoError(t, err)
	size = s.PositionSize(sig, 100000)
	assert.GreaterOrEqual(t, size, cfg.Execution.MinPositionSize)
	assert.LessOrEqual(t, size, cfg.Execution.MaxPositionSize)
}

func TestAssessRiskRewardRatio(t *testing.T) {
	s, err := New(testConfig(models.AlgoMomentum, nil))
	require.NoError(t, err)

	sig := models.Signal{
		Symbol:     "X",
		Side:       models.SideBuy,
		EntryPrice: 100,
		Volume:     50,
		CreatedAt:  time.Now(),
	}
	risk := s.AssessRisk(sig, 10000)

	// stop distance from the 200 loss budget over 50 units = 4
	assert.InDelta(t, 96.0, risk.StopLoss, 1e-9)
	assert.InDelta(t, 108.0, risk.TakeProfit, 1e-9) // 1:2 reward to risk
	assert.Equal(t, 2.0, risk.RewardRisk)
	assert.InDelta(t, 50.0, risk.Score, 1e-9) // 5000 exposure on 10000 equity

	short := sig
	short.Side = models.SideSell
	risk = s.AssessRisk(short, 10000)
	assert.InDelta(t, 104.0, risk.StopLoss, 1e-9)
	assert.InDelta(t, 92.0, risk.TakeProfit, 1e-9)
}

func TestPairsTradingSignalCarriesLeg(t *testing.T) {
	s, err := New(testConfig(models.AlgoPairsTrading, map[string]float64{
		"cointegration_window": 30,
		"entry_threshold":      2.0,
		"correlation_minimum":  0.5,
	}))
	require.NoError(t, err)

	// two cointegrated walks; A dislocates at the end
	n := 30
	closesA := make([]float64, n)
	closesB := make([]float64, n)
	for i := 0; i < n; i++ {
		basePx := 100 + float64(i)
		closesB[i] = basePx
		closesA[i] = 2 * basePx
	}
	closesA[n-1] += 30 // spread blows out

	snap := snapshotFromCloses("BTC-USDT-SWAP", closesA)
	snap.PairBars = map[string][]models.OHLCBar{
		"ETH-USDT-SWAP": snapshotFromCloses("ETH-USDT-SWAP", closesB).Bars,
	}

	res, err := s.Analyze(snap)
	require.NoError(t, err)
	require.True(t, res.Ready)
	assert.Greater(t, res.Value("correlation"), 0.5)
	assert.Greater(t, res.Value("spread_zscore"), 2.0)

	sig, ok := s.GenerateSignal(res)
	require.True(t, ok)
	assert.Equal(t, models.SideSell, sig.Side) // rich leg gets sold
	require.NotNil(t, sig.PairLeg)
	assert.Equal(t, "ETH-USDT-SWAP", sig.PairLeg.Symbol)
	assert.Equal(t, models.SideBuy, sig.PairLeg.Side)
	assert.Greater(t, sig.PairLeg.HedgeRatio, 0.0)

	volume := s.PositionSize(sig, 100000)
	assert.InDelta(t, volume*sig.PairLeg.HedgeRatio, sig.PairLeg.Volume, 1e-9)
}

func TestPairsTradingRequiresCorrelation(t *testing.T) {
	s, err := New(testConfig(models.AlgoPairsTrading, map[string]float64{
		"cointegration_window": 30,
		"correlation_minimum":  0.99,
	}))
	require.NoError(t, err)

	res := models.AnalysisResult{
		Symbol: "BTC-USDT-SWAP",
		Ready:  true,
		Values: map[string]float64{
			"spread_zscore": 3.0,
			"correlation":   0.8, // below the floor
			"price_a":       100,
			"hedge_ratio":   1,
		},
	}
	_, ok := s.GenerateSignal(res)
	assert.False(t, ok)
}

func TestMarketMakingQuotes(t *testing.T) {
	s, err := New(testConfig(models.AlgoMarketMaking, map[string]float64{
		"half_spread":            0.001,
		"quote_refresh_interval": 1,
		"adverse_imbalance":      0.7,
	}))
	require.NoError(t, err)

	depth := models.MarketDepth{
		Symbol: "BTC-USDT-SWAP",
		Bids:   []models.BookLevel{{Price: 99, Volume: 10}},
		Asks:   []models.BookLevel{{Price: 101, Volume: 10}},
	}
	snap := marketdata.Snapshot{Symbol: "BTC-USDT-SWAP", Depth: depth, Inventory: 5, At: time.Now()}

	res, err := s.Analyze(snap)
	require.NoError(t, err)
	require.True(t, res.Ready)
	assert.InDelta(t, 100.0, res.Value("mid"), 1e-9)
	assert.InDelta(t, 0.5, res.Value("imbalance"), 1e-9)

	sig, ok := s.GenerateSignal(res)
	require.True(t, ok)
	assert.Equal(t, models.SideSell, sig.Side) // long inventory unwinds via the ask

	// second quote inside the refresh interval is suppressed
	_, ok = s.GenerateSignal(res)
	assert.False(t, ok)
}

func TestMarketMakingAdverseSelection(t *testing.T) {
	s, err := New(testConfig(models.AlgoMarketMaking, map[string]float64{
		"adverse_imbalance": 0.7,
	}))
	require.NoError(t, err)

	depth := models.MarketDepth{
		Symbol: "BTC-USDT-SWAP",
		Bids:   []models.BookLevel{{Price: 99, Volume: 100}}, // book heavily bid
		Asks:   []models.BookLevel{{Price: 101, Volume: 5}},
	}
	snap := marketdata.Snapshot{Symbol: "BTC-USDT-SWAP", Depth: depth, At: time.Now()}

	res, err := s.Analyze(snap)
	require.NoError(t, err)
	require.True(t, res.Ready)
	assert.Equal(t, 1.0, res.Value("adverse"))

	_, ok := s.GenerateSignal(res)
	assert.False(t, ok)
}
