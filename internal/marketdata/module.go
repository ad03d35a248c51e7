package marketdata

import (
	"algo_engine/internal/config"

	"go.uber.org/fx"
)

type ClientParams struct {
	fx.In

	Cfg    *config.Config
	Cache  *BarCache
	Health HealthSink `optional:"true"`
}

func Module() fx.Option {
	return fx.Module("marketdata",
		fx.Provide(
			func(cfg *config.Config) *BarCache {
				return NewBarCache(cfg.MarketData.CacheBars)
			},
			func(p ClientParams) *Client {
				return NewClient(p.Cfg, p.Cache, p.Health)
			},
			func(c *Client) Provider { return c },
		),
	)
}
