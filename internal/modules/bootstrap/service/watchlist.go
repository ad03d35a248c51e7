package service

import (
	"context"

	"algo_engine/internal/coordinator"
	"algo_engine/internal/marketdata"
)

// Watchlist decides which symbols to warm and stream: everything the
// registered algorithms reference, topped up with the venue's most volatile
// instruments.
type Watchlist struct {
	md   *marketdata.Client
	coor *coordinator.Coordinator
}

func NewWatchlist(md *marketdata.Client, coor *coordinator.Coordinator) *Watchlist {
	return &Watchlist{md: md, coor: coor}
}

func (w *Watchlist) Symbols(ctx context.Context, topN int) []string {
	seen := map[string]bool{}
	var out []string

	for _, cfg := range w.coor.ListAlgorithms() {
		for _, s := range cfg.Symbols {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	if topN > 0 {
		for _, s := range w.md.TopVolatile(ctx, topN) {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
