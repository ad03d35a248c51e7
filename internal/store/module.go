package store

import (
	"algo_engine/internal/config"
	"algo_engine/pkg/db"

	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Cfg *config.Config
	TM  *db.PgTxManager `optional:"true"` // absent when running without postgres
}

func New(p Params) Store {
	if p.Cfg.Store.Backend == "postgres" && p.TM != nil {
		return NewPostgres(p.TM)
	}
	return NewMemory()
}

func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(
			New,
		),
	)
}
