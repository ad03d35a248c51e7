package risk

import (
	"context"
	"fmt"
	"os"
	"testing"

	"algo_engine/internal/models"
	"algo_engine/internal/quant"
	"algo_engine/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type stubGateway struct {
	positions []models.Position
	account   models.AccountInfo

	failClose map[int64]bool
	closed    []int64
	modified  map[int64][2]float64
}

func (s *stubGateway) PlaceOrder(_ context.Context, _ models.OrderRequest) (models.OrderResult, error) {
	return models.OrderResult{}, nil
}

func (s *stubGateway) ClosePosition(_ context.Context, ticket int64) (models.CloseResult, error) {
	if s.failClose[ticket] {
		return models.CloseResult{}, &models.ExecutionGatewayError{Op: "close", Err: fmt.Errorf("ticket %d stuck", ticket)}
	}
	for i, p := range s.positions {
		if p.Ticket == ticket {
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
			s.closed = append(s.closed, ticket)
			return models.CloseResult{Ticket: ticket, ClosedPrice: p.CurrentPrice, Profit: p.Profit}, nil
		}
	}
	return models.CloseResult{}, &models.ExecutionGatewayError{Op: "close", Err: fmt.Errorf("ticket %d not found", ticket)}
}

func (s *stubGateway) ModifyPosition(_ context.Context, ticket int64, sl, tp float64) error {
	if s.modified == nil {
		s.modified = map[int64][2]float64{}
	}
	s.modified[ticket] = [2]float64{sl, tp}
	return nil
}

func (s *stubGateway) Positions(_ context.Context) ([]models.Position, error) {
	out := make([]models.Position, len(s.positions))
	copy(out, s.positions)
	return out, nil
}

func (s *stubGateway) AccountInfo(_ context.Context) (models.AccountInfo, error) {
	return s.account, nil
}

type stubCorr struct {
	table map[string]float64
}

func (s *stubCorr) PairCorrelation(_ context.Context, a, b string) (float64, error) {
	if v, ok := s.table[a+"/"+b]; ok {
		return v, nil
	}
	return s.table[b+"/"+a], nil
}

func newTestEngine(gw *stubGateway, corr *stubCorr) *Engine {
	if corr == nil {
		corr = &stubCorr{}
	}
	return NewEngine(gw, corr, nil, 0.05, 70, 0.95)
}

func TestPortfolioRiskAndCircuitBreaker(t *testing.T) {
	gw := &stubGateway{
		positions: []models.Position{
			{Ticket: 1, Symbol: "BTC", Side: models.SideBuy, Volume: 10, OpenPrice: 100, CurrentPrice: 110, Profit: 100, StopLoss: 95, TakeProfit: 120},
			{Ticket: 2, Symbol: "ETH", Side: models.SideSell, Volume: 5, OpenPrice: 200, CurrentPrice: 190, Profit: 50},
		},
		account: models.AccountInfo{Balance: 2000, Equity: 2000},
	}
	e := newTestEngine(gw, nil)

	limits := models.DefaultRiskLimits()
	limits.CircuitBreakerThreshold = 100

	pr, err := e.PortfolioRisk(context.Background(), limits)
	require.NoError(t, err)
	require.Len(t, pr.Positions, 2)

	assert.InDelta(t, 1000.0, pr.Positions[0].Exposure, 1e-9) // 10 * 100
	assert.InDelta(t, 50.0, pr.Positions[0].RiskPercentage, 1e-9)
	assert.InDelta(t, 0.1, pr.Positions[0].DrawdownProxy, 1e-9) // |110-100|/100
	assert.InDelta(t, (110.0-95.0)/110.0, pr.Positions[0].StopDistance, 1e-9)
	assert.InDelta(t, 2000.0, pr.TotalExposure, 1e-9)
	assert.InDelta(t, 100.0, pr.ExposurePercentage, 1e-9)

	// exposure exactly at the threshold: strict inequality, no trip
	assert.False(t, pr.CircuitBreakerTriggered)

	limits.CircuitBreakerThreshold = 99.9
	pr, err = e.PortfolioRisk(context.Background(), limits)
	require.NoError(t, err)
	assert.True(t, pr.CircuitBreakerTriggered)
}

func TestMonitorDrawdown(t *testing.T) {
	gw := &stubGateway{account: models.AccountInfo{Balance: 1000, Equity: 960}}
	e := newTestEngine(gw, nil)

	dd, err := e.MonitorDrawdown(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.04, dd.Drawdown, 1e-9)
	assert.False(t, dd.Breached) // 4% is inside the 5% limit

	gw.account.Equity = 940
	dd, err = e.MonitorDrawdown(context.Background())
	require.NoError(t, err)
	assert.True(t, dd.Breached) // 6% is out
}

func TestCheckCorrelationRisk(t *testing.T) {
	// two positions, table correlation 0.8: average 80%, above the 70 limit
	gw := &stubGateway{
		positions: []models.Position{
			{Ticket: 1, Symbol: "BTC", Volume: 1, OpenPrice: 100},
			{Ticket: 2, Symbol: "ETH", Volume: 1, OpenPrice: 100},
		},
		account: models.AccountInfo{Balance: 1000, Equity: 1000},
	}
	corr := &stubCorr{table: map[string]float64{"BTC/ETH": 0.8}}
	e := newTestEngine(gw, corr)

	cr, err := e.CheckCorrelationRisk(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cr.Pairs)
	assert.InDelta(t, 80.0, cr.AverageCorrelation, 1e-9)
	assert.True(t, cr.Breached)

	// a single position has no pairs and never breaches
	gw.positions = gw.positions[:1]
	cr, err = e.CheckCorrelationRisk(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cr.Pairs)
	assert.False(t, cr.Breached)
}

func TestApplyAutoStops(t *testing.T) {
	gw := &stubGateway{
		positions: []models.Position{
			// 50% of equity: gets stops
			{Ticket: 1, Symbol: "BTC", Side: models.SideBuy, Volume: 10, OpenPrice: 100, CurrentPrice: 100},
			// 1% of equity: left alone
			{Ticket: 2, Symbol: "ETH", Side: models.SideBuy, Volume: 0.1, OpenPrice: 200, CurrentPrice: 200},
		},
		account: models.AccountInfo{Balance: 2000, Equity: 2000},
	}
	e := newTestEngine(gw, nil)

	limits := models.DefaultRiskLimits()
	limits.MaxSingleTradeLoss = 200

	res, err := e.ApplyAutoStops(context.Background(), limits)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, res.Adjusted)

	// stop 20 below price (200 budget / 10 volume), take 40 above: 1:2
	sl, tp := gw.modified[1][0], gw.modified[1][1]
	assert.InDelta(t, 80.0, sl, 1e-9)
	assert.InDelta(t, 140.0, tp, 1e-9)
	assert.InDelta(t, 2.0, (tp-100)/(100-sl), 1e-9)
}

func TestCalculateVaR(t *testing.T) {
	gw := &stubGateway{
		positions: []models.Position{
			{Ticket: 1, Symbol: "BTC", Volume: 10, OpenPrice: 100}, // notional 1000
			{Ticket: 2, Symbol: "ETH", Volume: 5, OpenPrice: 200},  // notional 1000
		},
		account: models.AccountInfo{Balance: 10000, Equity: 10000},
	}
	e := newTestEngine(gw, nil)

	v, err := e.CalculateVaR(context.Background(), 100)
	require.NoError(t, err)

	z := quant.NormalQuantile(0.95)
	assert.InDelta(t, 2000*0.01*z, v.Value, 1e-9)
	assert.False(t, v.Breached) // ~32.9 under the 100 budget

	v, err = e.CalculateVaR(context.Background(), 30)
	require.NoError(t, err)
	assert.True(t, v.Breached)
}

func TestEmergencyStopContinuesPastFailures(t *testing.T) {
	// three positions, the second refuses to close: the third must still be
	// attempted and counted
	gw := &stubGateway{
		positions: []models.Position{
			{Ticket: 1, Symbol: "A", Side: models.SideBuy, Volume: 1, OpenPrice: 100, CurrentPrice: 90, Profit: -10},
			{Ticket: 2, Symbol: "B", Side: models.SideBuy, Volume: 1, OpenPrice: 100, CurrentPrice: 100},
			{Ticket: 3, Symbol: "C", Side: models.SideBuy, Volume: 1, OpenPrice: 100, CurrentPrice: 95, Profit: -5},
		},
		account:   models.AccountInfo{Balance: 1000, Equity: 985},
		failClose: map[int64]bool{2: true},
	}
	e := newTestEngine(gw, nil)

	res, err := e.EmergencyStop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.ClosedPositions)
	assert.Equal(t, 1, res.FailedPositions)
	assert.Equal(t, []int64{1, 3}, gw.closed)
	assert.InDelta(t, 15.0, res.RealizedLoss, 1e-9)
	require.Len(t, res.Errors, 1)
}

func TestPreTrade(t *testing.T) {
	gw := &stubGateway{
		positions: []models.Position{
			{Ticket: 1, Symbol: "BTC", Side: models.SideBuy, Volume: 10, OpenPrice: 100, CurrentPrice: 100},
		},
		account: models.AccountInfo{Balance: 1000, Equity: 1000},
	}
	e := newTestEngine(gw, nil)

	limits := models.DefaultRiskLimits()
	limits.CircuitBreakerThreshold = 150
	limits.VaRLimit = 0

	sig := models.Signal{Symbol: "ETH", Side: models.SideBuy, Volume: 4, EntryPrice: 100}
	require.NoError(t, e.PreTrade(context.Background(), sig, limits)) // 140% projected

	var limitErr *models.RiskLimitExceededError
	sig.Volume = 6 // 160% projected exposure
	err := e.PreTrade(context.Background(), sig, limits)
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "circuit breaker exposure", limitErr.Reason)

	sig.Volume = 4
	limits.VaRLimit = 10 // existing VaR alone blows the budget
	err = e.PreTrade(context.Background(), sig, limits)
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "value at risk", limitErr.Reason)
}

func TestReportRecommendations(t *testing.T) {
	gw := &stubGateway{
		positions: []models.Position{
			{Ticket: 1, Symbol: "BTC", Side: models.SideBuy, Volume: 30, OpenPrice: 100, CurrentPrice: 100},
		},
		account: models.AccountInfo{Balance: 1000, Equity: 900},
	}
	e := newTestEngine(gw, nil)

	limits := models.DefaultRiskLimits()
	limits.CircuitBreakerThreshold = 150
	limits.VaRLimit = 10

	report, err := e.Report(context.Background(), "algo-1", limits)
	require.NoError(t, err)
	assert.Equal(t, "algo-1", report.AlgorithmID)
	assert.True(t, report.Portfolio.CircuitBreakerTriggered) // 333% exposure
	assert.True(t, report.Drawdown.Breached)                 // 10% drawdown
	assert.True(t, report.VaR.Breached)
	assert.NotEmpty(t, report.Recommendations)
}
