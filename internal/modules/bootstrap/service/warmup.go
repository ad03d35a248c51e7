package service

import (
	"context"
	"fmt"
	"sync"

	"algo_engine/internal/config"
	"algo_engine/internal/marketdata"
	"algo_engine/pkg/logger"
)

// Warmuper fills the bar cache over REST before live streaming starts, so
// the first cycles already see full indicator windows.
type Warmuper struct {
	md  *marketdata.Client
	cfg *config.Config

	// parallelism cap, the venue rate-limits history requests
	sem chan struct{}
}

func NewWarmuper(md *marketdata.Client, cfg *config.Config) *Warmuper {
	return &Warmuper{
		md:  md,
		cfg: cfg,
		sem: make(chan struct{}, 8),
	}
}

func (w *Warmuper) Warmup(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	need := w.cfg.MarketData.CacheBars
	logger.Info("warmup start: %d symbols, %s, %d bars each", len(symbols), w.cfg.DefaultTimeframe, need)

	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex

	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			w.sem <- struct{}{}
			defer func() { <-w.sem }()

			bars, err := w.md.HistoricalBars(ctx, sym, w.cfg.DefaultTimeframe, need)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("warmup %s: %w", sym, err)
				}
				mu.Unlock()
				return
			}
			logger.Info("warmup %s: %d bars", sym, len(bars))
		}(sym)
	}
	wg.Wait()
	return firstErr
}
