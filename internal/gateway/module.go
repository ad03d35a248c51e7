package gateway

import (
	"algo_engine/internal/config"
	"algo_engine/internal/marketdata"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("gateway",
		fx.Provide(
			func(cfg *config.Config, md *marketdata.Client) Gateway {
				if cfg.Gateway.Mode == "bridge" {
					return NewBridge(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.APISecret)
				}
				return NewPaper(cfg.Gateway.PaperBalance, md)
			},
		),
	)
}
