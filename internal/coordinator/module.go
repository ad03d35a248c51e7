package coordinator

import (
	"context"

	"algo_engine/internal/config"
	"algo_engine/internal/gateway"
	"algo_engine/internal/marketdata"
	"algo_engine/internal/risk"
	"algo_engine/internal/store"

	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Cfg      *config.Config
	MD       marketdata.Provider
	Gateway  gateway.Gateway
	Risk     *risk.Engine
	Store    store.Store
	Notifier Notifier `optional:"true"`
}

func Module() fx.Option {
	return fx.Module("coordinator",
		fx.Provide(
			func(p Params) *Coordinator {
				return New(p.Cfg, p.MD, p.Gateway, p.Risk, p.Store, p.Notifier)
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, c *Coordinator) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						c.Start(context.Background())
						return nil
					},
					OnStop: func(ctx context.Context) error {
						c.Stop()
						return nil
					},
				})
			},
		),
	)
}
