package coordinator

import (
	"context"
	"fmt"
	"time"

	"algo_engine/internal/marketdata"
	"algo_engine/internal/models"
	"algo_engine/internal/store"
	"algo_engine/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

// ExecuteAlgorithm queues one cycle and returns immediately. The record moves
// through the store as the cycle progresses; GetAlgorithmState and
// ExecutionRecord observe the outcome.
func (c *Coordinator) ExecuteAlgorithm(ctx context.Context, id string) (models.ExecutionRecord, error) {
	in, err := c.lookup(id)
	if err != nil {
		return models.ExecutionRecord{}, err
	}

	if st := in.snapshotState(); st.Status == models.StatusPaused {
		return models.ExecutionRecord{}, fmt.Errorf("algorithm %s is paused", id)
	}

	rec := models.ExecutionRecord{
		ExecutionID: newID(),
		AlgorithmID: id,
		Status:      models.ExecutionQueued,
		CreatedAt:   time.Now(),
	}
	c.saveRecord(ctx, rec)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runCycle(context.WithoutCancel(ctx), in, rec)
	}()
	return rec, nil
}

// runCycle drives one analyze -> signal -> validate -> size -> risk ->
// execute pass. cycleMu guarantees a single cycle in flight per instance;
// a cycle that cannot take the lock is recorded as skipped, not queued.
func (c *Coordinator) runCycle(ctx context.Context, in *instance, rec models.ExecutionRecord) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "algo.cycle")
	defer span.Finish()
	span.SetTag("algorithm_id", rec.AlgorithmID)
	span.SetTag("execution_id", rec.ExecutionID)

	if !in.cycleMu.TryLock() {
		rec.Status = models.ExecutionSkipped
		rec.Error = "cycle already in flight"
		rec.CompletedAt = time.Now()
		c.saveRecord(ctx, rec)
		return
	}
	defer in.cycleMu.Unlock()

	cfg := in.config()
	if st := in.snapshotState(); st.Status == models.StatusPaused {
		rec.Status = models.ExecutionSkipped
		rec.Error = "algorithm paused"
		rec.CompletedAt = time.Now()
		c.saveRecord(ctx, rec)
		return
	}

	c.reconcilePositions(ctx, in, cfg.ID)
	c.setStatus(in, models.StatusAnalyzing)

	snap, err := c.buildSnapshot(ctx, cfg)
	if err != nil {
		c.failCycle(ctx, in, rec, errors.Wrap(err, "snapshot"))
		return
	}

	res, err := in.strat.Analyze(snap)
	if err != nil {
		c.failCycle(ctx, in, rec, errors.Wrap(err, "analyze"))
		return
	}
	in.mu.Lock()
	in.state.LastAnalysis = time.Now()
	in.mu.Unlock()

	c.setStatus(in, models.StatusSignaling)

	sig, ok := in.strat.GenerateSignal(res)
	if !ok {
		c.finishCycle(ctx, in, rec, models.ExecutionNoSignal, nil, "")
		c.decayHealth(in, healthPenaltyNoSignal)
		return
	}
	sig.ExecutionID = rec.ExecutionID
	sig.AlgorithmID = cfg.ID

	in.mu.Lock()
	in.state.LastSignal = time.Now()
	state := in.state
	in.mu.Unlock()

	if !in.strat.ValidateSignal(sig, state) {
		c.finishCycle(ctx, in, rec, models.ExecutionRejected, &sig, "signal failed validation")
		return
	}

	account, err := c.gw.AccountInfo(ctx)
	if err != nil {
		c.failCycle(ctx, in, rec, errors.Wrap(err, "account info"))
		return
	}
	sig.Volume = in.strat.PositionSize(sig, account.Equity)
	if leg := sig.PairLeg; leg != nil && leg.Volume == 0 {
		leg.Volume = sig.Volume * leg.HedgeRatio
	}
	sig.Risk = in.strat.AssessRisk(sig, account.Equity)

	if err := c.risk.PreTrade(ctx, sig, cfg.RiskLimits); err != nil {
		var limitErr *models.RiskLimitExceededError
		if errors.As(err, &limitErr) {
			logger.Info("algorithm %s: signal rejected by risk: %v", cfg.ID, limitErr)
			c.finishCycle(ctx, in, rec, models.ExecutionRejected, &sig, limitErr.Error())
			return
		}
		c.failCycle(ctx, in, rec, errors.Wrap(err, "pre-trade check"))
		return
	}

	if cfg.Execution.ConfirmTrades && c.n != nil {
		prompt := fmt.Sprintf("[%s] %s %s %.2f @ %.4f (stop %.4f, take %.4f). Execute?",
			cfg.Name, sig.Side, sig.Symbol, sig.Volume, sig.EntryPrice, sig.Risk.StopLoss, sig.Risk.TakeProfit)
		if !c.n.Confirm(ctx, prompt, c.cfg.DefaultConfirmTimeout) {
			c.finishCycle(ctx, in, rec, models.ExecutionRejected, &sig, "operator declined")
			return
		}
	}

	c.setStatus(in, models.StatusExecuting)

	if err := c.placeSignal(ctx, cfg, sig); err != nil {
		c.failCycle(ctx, in, rec, err)
		return
	}

	in.mu.Lock()
	in.state.CurrentPositions++
	if sig.PairLeg != nil {
		in.state.CurrentPositions++
	}
	in.state.LastExecution = time.Now()
	in.mu.Unlock()

	c.finishCycle(ctx, in, rec, models.ExecutionCompleted, &sig, "")
	if c.n != nil {
		c.n.Sendf("[%s] executed %s %s %.2f @ %.4f", cfg.Name, sig.Side, sig.Symbol, sig.Volume, sig.EntryPrice)
	}
}

// placeSignal submits the order, and for pairs trading the offsetting leg.
// A failed second leg unwinds the first so the book never carries half a
// pair.
func (c *Coordinator) placeSignal(ctx context.Context, cfg models.AlgorithmConfig, sig models.Signal) error {
	primary := models.OrderRequest{
		AlgorithmID: cfg.ID,
		Symbol:      sig.Symbol,
		Side:        sig.Side,
		Volume:      sig.Volume,
		Price:       sig.EntryPrice,
		StopLoss:    sig.Risk.StopLoss,
		TakeProfit:  sig.Risk.TakeProfit,
		Comment:     sig.Reason,
	}
	first, err := c.gw.PlaceOrder(ctx, primary)
	if err != nil {
		return errors.Wrap(err, "place order")
	}

	leg := sig.PairLeg
	if leg == nil {
		return nil
	}
	_, err = c.gw.PlaceOrder(ctx, models.OrderRequest{
		AlgorithmID: cfg.ID,
		Symbol:      leg.Symbol,
		Side:        leg.Side,
		Volume:      leg.Volume,
		Comment:     sig.Reason,
	})
	if err != nil {
		if _, closeErr := c.gw.ClosePosition(ctx, first.Ticket); closeErr != nil {
			logger.Error("unwind leg %d after pair failure: %v", first.Ticket, closeErr)
		}
		return errors.Wrap(err, "place pair leg")
	}
	return nil
}

// buildSnapshot gathers everything one cycle reads: primary bars, secondary
// bars for pairs, tick, book and inventory for market making.
func (c *Coordinator) buildSnapshot(ctx context.Context, cfg models.AlgorithmConfig) (marketdata.Snapshot, error) {
	symbol := cfg.Symbols[0]

	bars, err := c.md.HistoricalBars(ctx, symbol, cfg.Timeframe, snapshotBars)
	if err != nil {
		return marketdata.Snapshot{}, err
	}
	tick, err := c.md.PriceTick(ctx, symbol)
	if err != nil {
		return marketdata.Snapshot{}, err
	}
	analysis, err := c.md.MarketAnalysis(ctx, symbol)
	if err != nil {
		return marketdata.Snapshot{}, err
	}

	snap := marketdata.Snapshot{
		Symbol:    symbol,
		Timeframe: cfg.Timeframe,
		Bars:      bars,
		Tick:      tick,
		Analysis:  analysis,
		At:        time.Now(),
	}

	if cfg.Type == models.AlgoPairsTrading {
		snap.PairBars = make(map[string][]models.OHLCBar, len(cfg.Symbols)-1)
		for _, s := range cfg.Symbols[1:] {
			pb, err := c.md.HistoricalBars(ctx, s, cfg.Timeframe, snapshotBars)
			if err != nil {
				return marketdata.Snapshot{}, errors.Wrapf(err, "pair bars %s", s)
			}
			snap.PairBars[s] = pb
		}
	}

	if cfg.Type == models.AlgoMarketMaking {
		depth, err := c.md.MarketDepth(ctx, symbol)
		if err != nil {
			return marketdata.Snapshot{}, err
		}
		snap.Depth = depth
		snap.Inventory, err = c.inventory(ctx, cfg.ID, symbol)
		if err != nil {
			return marketdata.Snapshot{}, err
		}
	}
	return snap, nil
}

// reconcilePositions resets the instance position counter from the gateway's
// open book. Positions closed outside a cycle (auto-stops, emergency stop,
// manual close) would otherwise leave the counter saturated and block every
// future signal. A gateway error keeps the last known count.
func (c *Coordinator) reconcilePositions(ctx context.Context, in *instance, algorithmID string) {
	positions, err := c.gw.Positions(ctx)
	if err != nil {
		logger.Error("algorithm %s: position reconcile: %v", algorithmID, err)
		return
	}
	open := 0
	for _, p := range positions {
		if p.AlgorithmID == algorithmID {
			open++
		}
	}
	in.mu.Lock()
	in.state.CurrentPositions = open
	in.mu.Unlock()
}

// inventory is the signed open volume this algorithm holds in symbol.
func (c *Coordinator) inventory(ctx context.Context, algorithmID, symbol string) (float64, error) {
	positions, err := c.gw.Positions(ctx)
	if err != nil {
		return 0, err
	}
	var inv float64
	for _, p := range positions {
		if p.Symbol == symbol && (p.AlgorithmID == "" || p.AlgorithmID == algorithmID) {
			inv += p.Side.Direction() * p.Volume
		}
	}
	return inv, nil
}

func (c *Coordinator) setStatus(in *instance, s models.AlgorithmStatus) {
	in.mu.Lock()
	if in.state.Status != models.StatusPaused {
		in.state.Status = s
		in.state.UpdatedAt = time.Now()
	}
	in.mu.Unlock()
}

// finishCycle records the outcome and returns the instance to idle, unless
// an operator paused it mid-cycle.
func (c *Coordinator) finishCycle(ctx context.Context, in *instance, rec models.ExecutionRecord, status models.ExecutionStatus, sig *models.Signal, msg string) {
	rec.Status = status
	rec.Signal = sig
	rec.Error = msg
	rec.CompletedAt = time.Now()
	c.saveRecord(ctx, rec)
	c.setStatus(in, models.StatusIdle)
}

// failCycle isolates the fault into this instance: error state, health
// penalty, failed record. Siblings keep running.
func (c *Coordinator) failCycle(ctx context.Context, in *instance, rec models.ExecutionRecord, err error) {
	logger.Error("algorithm %s cycle %s: %v", rec.AlgorithmID, rec.ExecutionID, err)

	in.mu.Lock()
	if in.state.Status != models.StatusPaused {
		in.state.Status = models.StatusError
	}
	in.state.LastError = time.Now()
	in.state.LastErrorMsg = err.Error()
	in.state.UpdatedAt = time.Now()
	in.mu.Unlock()
	c.decayHealth(in, healthPenaltyFault)

	rec.Status = models.ExecutionFailed
	rec.Error = err.Error()
	rec.CompletedAt = time.Now()
	c.saveRecord(ctx, rec)

	if c.n != nil {
		c.n.Sendf("algorithm %s entered error state: %v", rec.AlgorithmID, err)
	}
}

func (c *Coordinator) decayHealth(in *instance, penalty int) {
	in.mu.Lock()
	in.state.HealthScore -= penalty
	if in.state.HealthScore < 0 {
		in.state.HealthScore = 0
	}
	in.mu.Unlock()
}

func (c *Coordinator) saveRecord(ctx context.Context, rec models.ExecutionRecord) {
	if err := store.SetJSON(ctx, c.st, execKeyPrefix+rec.ExecutionID, rec, execRecordTTL); err != nil {
		logger.Error("persist execution %s: %v", rec.ExecutionID, err)
	}
}
