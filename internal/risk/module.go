package risk

import (
	"algo_engine/internal/config"
	"algo_engine/internal/gateway"
	"algo_engine/internal/marketdata"

	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Cfg      *config.Config
	Gateway  gateway.Gateway
	MD       *marketdata.Client
	Notifier Notifier `optional:"true"`
}

func Module() fx.Option {
	return fx.Module("risk",
		fx.Provide(
			func(p Params) *Engine {
				return NewEngine(p.Gateway, p.MD, p.Notifier,
					p.Cfg.DrawdownLimit, p.Cfg.CorrelationLimit, p.Cfg.VaRConfidence)
			},
		),
	)
}
