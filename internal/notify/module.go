package notify

import (
	"context"

	"algo_engine/internal/config"
	"algo_engine/internal/coordinator"
	"algo_engine/internal/gateway"
	"algo_engine/internal/risk"
	"algo_engine/pkg/logger"

	"go.uber.org/fx"
)

func New(cfg *config.Config, gw gateway.Gateway) Notifier {
	if cfg.Telegram.Token == "" {
		logger.Info("no telegram token, notifications go to stdout")
		return NewStdout()
	}
	t, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, gw)
	if err != nil {
		logger.Error("telegram init failed, falling back to stdout: %v", err)
		return NewStdout()
	}
	return t
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			New,
			func(n Notifier) coordinator.Notifier { return n },
			func(n Notifier) risk.Notifier { return n },
		),
		fx.Invoke(
			func(lc fx.Lifecycle, n Notifier) {
				t, ok := n.(*Telegram)
				if !ok {
					return
				}
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return t.Start(context.Background())
					},
					OnStop: func(ctx context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
