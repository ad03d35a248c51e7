package bootstrap

import (
	"context"

	"go.uber.org/fx"

	"algo_engine/internal/config"
	"algo_engine/internal/marketdata"
	service "algo_engine/internal/modules/bootstrap/service"
	health "algo_engine/internal/modules/health/service"
	"algo_engine/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			service.NewWatchlist,
			service.NewWarmuper,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, md *marketdata.Client, wl *service.Watchlist, wu *service.Warmuper, state *health.State) {
			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						symbols := wl.Symbols(runCtx, cfg.MarketData.WatchTopN)
						if len(symbols) == 0 {
							logger.Info("bootstrap: nothing to warm, marking ready")
							state.SetReady(true)
							return
						}
						if err := wu.Warmup(runCtx, symbols); err != nil {
							logger.Error("bootstrap warmup: %v", err)
						}
						state.SetReady(true)
						md.StreamBars(runCtx, symbols, cfg.DefaultTimeframe)
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
