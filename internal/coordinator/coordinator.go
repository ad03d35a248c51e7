package coordinator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"algo_engine/internal/backtest"
	"algo_engine/internal/config"
	"algo_engine/internal/gateway"
	"algo_engine/internal/marketdata"
	"algo_engine/internal/models"
	"algo_engine/internal/risk"
	"algo_engine/internal/store"
	"algo_engine/internal/strategy"
	"algo_engine/pkg/logger"

	"github.com/pkg/errors"
)

const (
	healthPenaltyFault    = 10
	healthPenaltyNoSignal = 1

	snapshotBars = 200

	configKeyPrefix = "algo:"
	execKeyPrefix   = "exec:"
	execRecordTTL   = 24 * time.Hour
)

// Notifier is the trade-confirmation collaborator. Confirm blocks until the
// operator answers or the timeout passes; false means do not trade.
type Notifier interface {
	Sendf(format string, args ...any)
	Confirm(ctx context.Context, prompt string, timeout time.Duration) bool
}

// instance is one running algorithm. cycleMu serializes its cycles; mu guards
// cfg/state. The Strategy value itself is only touched under cycleMu.
type instance struct {
	mu    sync.Mutex
	cfg   models.AlgorithmConfig
	strat strategy.Strategy
	state models.AlgorithmState

	cycleMu sync.Mutex
}

func (in *instance) snapshotState() models.AlgorithmState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

func (in *instance) config() models.AlgorithmConfig {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.cfg
}

// Coordinator owns the algorithm instances and drives their cycles. One
// cycle in flight per instance; instances run concurrently.
type Coordinator struct {
	cfg  *config.Config
	md   marketdata.Provider
	gw   gateway.Gateway
	risk *risk.Engine
	st   store.Store
	bt   *backtest.Engine
	n    Notifier // nil => no confirmations, trades go straight through

	mu        sync.RWMutex
	instances map[string]*instance

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfg *config.Config, md marketdata.Provider, gw gateway.Gateway, re *risk.Engine, st store.Store, n Notifier) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		md:        md,
		gw:        gw,
		risk:      re,
		st:        st,
		bt:        backtest.NewEngine(),
		n:         n,
		instances: make(map[string]*instance),
	}
}

// CreateAlgorithm validates the config, builds the strategy and registers the
// instance. Malformed configs fail fast with ConfigurationError before
// anything is stored.
func (c *Coordinator) CreateAlgorithm(ctx context.Context, cfg models.AlgorithmConfig) (models.AlgorithmConfig, error) {
	if cfg.ID == "" {
		cfg.ID = newID()
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = c.cfg.DefaultTimeframe
	}
	if cfg.Execution.MaxConcurrentPositions == 0 {
		cfg.Execution = models.DefaultExecutionSettings()
	}
	if cfg.Execution.CycleInterval == 0 {
		cfg.Execution.CycleInterval = c.cfg.DefaultCycleInterval
	}
	if cfg.RiskLimits == (models.RiskLimits{}) {
		cfg.RiskLimits = models.DefaultRiskLimits()
	}
	cfg.CreatedAt = time.Now()

	strat, err := strategy.New(cfg)
	if err != nil {
		return models.AlgorithmConfig{}, err
	}

	c.mu.Lock()
	if _, exists := c.instances[cfg.ID]; exists {
		c.mu.Unlock()
		return models.AlgorithmConfig{}, &models.ConfigurationError{Field: "id", Reason: "algorithm " + cfg.ID + " already exists"}
	}
	c.instances[cfg.ID] = &instance{
		cfg:   cfg.Clone(),
		strat: strat,
		state: models.NewAlgorithmState(cfg.ID),
	}
	c.mu.Unlock()

	if err := store.SetJSON(ctx, c.st, configKeyPrefix+cfg.ID, cfg, 0); err != nil {
		logger.Error("persist algorithm %s: %v", cfg.ID, err)
	}
	logger.Info("algorithm %s created: %s %s on %v", cfg.ID, cfg.Type, cfg.Timeframe, cfg.Symbols)
	return cfg, nil
}

// UpdateAlgorithm replaces the config wholesale. The running instance picks
// up the new copy on its next cycle; an in-flight cycle finishes on the old
// one.
func (c *Coordinator) UpdateAlgorithm(ctx context.Context, cfg models.AlgorithmConfig) error {
	in, err := c.lookup(cfg.ID)
	if err != nil {
		return err
	}
	strat, err := strategy.New(cfg)
	if err != nil {
		return err
	}

	in.mu.Lock()
	cfg.CreatedAt = in.cfg.CreatedAt
	in.cfg = cfg.Clone()
	in.strat = strat
	in.mu.Unlock()

	return store.SetJSON(ctx, c.st, configKeyPrefix+cfg.ID, cfg, 0)
}

func (c *Coordinator) GetAlgorithmState(id string) (models.AlgorithmState, error) {
	in, err := c.lookup(id)
	if err != nil {
		return models.AlgorithmState{}, err
	}
	return in.snapshotState(), nil
}

func (c *Coordinator) ListAlgorithms() []models.AlgorithmConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.AlgorithmConfig, 0, len(c.instances))
	for _, in := range c.instances {
		out = append(out, in.config())
	}
	return out
}

// StopAlgorithm pauses the instance. The in-flight cycle, if any, runs to
// completion; no new cycle starts until ResumeAlgorithm.
func (c *Coordinator) StopAlgorithm(id string) error {
	in, err := c.lookup(id)
	if err != nil {
		return err
	}
	in.mu.Lock()
	in.state.Status = models.StatusPaused
	in.state.UpdatedAt = time.Now()
	in.mu.Unlock()
	logger.Info("algorithm %s paused", id)
	return nil
}

// ResumeAlgorithm returns a paused or errored instance to idle with a fresh
// error slate. Health is kept as is; it recovers only through clean cycles.
func (c *Coordinator) ResumeAlgorithm(id string) error {
	in, err := c.lookup(id)
	if err != nil {
		return err
	}
	in.mu.Lock()
	in.state.Status = models.StatusIdle
	in.state.LastErrorMsg = ""
	in.state.UpdatedAt = time.Now()
	in.mu.Unlock()
	logger.Info("algorithm %s resumed", id)
	return nil
}

func (c *Coordinator) GenerateRiskReport(ctx context.Context, id string) (*models.RiskReport, error) {
	in, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return c.risk.Report(ctx, id, in.config().RiskLimits)
}

func (c *Coordinator) RunBacktest(ctx context.Context, req backtest.Request) (*models.BacktestResult, error) {
	return c.bt.Run(ctx, req)
}

func (c *Coordinator) OptimizeAlgorithm(ctx context.Context, req backtest.OptimizeRequest) (*backtest.OptimizationResult, error) {
	return c.bt.Optimize(ctx, req)
}

// ExecutionRecord returns the stored record for one queued cycle.
func (c *Coordinator) ExecutionRecord(ctx context.Context, executionID string) (models.ExecutionRecord, error) {
	var rec models.ExecutionRecord
	if err := store.GetJSON(ctx, c.st, execKeyPrefix+executionID, &rec); err != nil {
		return models.ExecutionRecord{}, errors.Wrapf(err, "execution %s", executionID)
	}
	return rec, nil
}

func (c *Coordinator) lookup(id string) (*instance, error) {
	c.mu.RLock()
	in, ok := c.instances[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("algorithm %s not found", id)
	}
	return in, nil
}

// restore reloads persisted configs into fresh idle instances. Broken stored
// configs are logged and skipped, never fatal.
func (c *Coordinator) restore(ctx context.Context) {
	keys, err := c.st.Keys(ctx, configKeyPrefix)
	if err != nil {
		logger.Error("restore algorithms: %v", err)
		return
	}
	for _, key := range keys {
		var cfg models.AlgorithmConfig
		if err := store.GetJSON(ctx, c.st, key, &cfg); err != nil {
			logger.Error("restore %s: %v", key, err)
			continue
		}
		strat, err := strategy.New(cfg)
		if err != nil {
			logger.Error("restore %s: %v", key, err)
			continue
		}
		c.mu.Lock()
		if _, exists := c.instances[cfg.ID]; !exists {
			c.instances[cfg.ID] = &instance{
				cfg:   cfg.Clone(),
				strat: strat,
				state: models.NewAlgorithmState(cfg.ID),
			}
		}
		c.mu.Unlock()
	}
	if len(keys) > 0 {
		logger.Info("restored %d algorithm(s) from store", len(keys))
	}
}

func newID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("algo-%d", time.Now().UnixNano())
	}
	return "algo-" + hex.EncodeToString(b[:])
}
