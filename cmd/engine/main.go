package main

import (
	"context"
	"log"

	"algo_engine/internal/config"
	"algo_engine/internal/coordinator"
	"algo_engine/internal/gateway"
	"algo_engine/internal/marketdata"
	"algo_engine/internal/modules/bootstrap"
	"algo_engine/internal/modules/health"
	"algo_engine/internal/modules/postgres"
	"algo_engine/internal/notify"
	"algo_engine/internal/risk"
	"algo_engine/internal/store"
	"algo_engine/pkg/logger"
	"algo_engine/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	opts := []fx.Option{
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			func() *config.Config { return cfg },
		),
		logger.Module(),
		fx.Invoke(initTracing),
		store.Module(),
		marketdata.Module(),
		gateway.Module(),
		risk.Module(),
		coordinator.Module(),
		notify.Module(),
		health.Module(),
		bootstrap.Module(),
	}
	// the pool pings at startup, so only wire postgres when it is the
	// selected backend
	if cfg.Store.Backend == "postgres" {
		opts = append(opts, postgres.Module())
	}

	fx.New(opts...).Run()
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) {
	if cfg.Jaeger.Host == "" {
		return
	}
	_, closeFn, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Jaeger.Host,
		Port: cfg.Jaeger.Port,
	})
	if err != nil {
		logger.Error("jaeger init: %v", err)
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeFn()
			return nil
		},
	})
}
