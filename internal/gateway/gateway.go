package gateway

import (
	"context"

	"algo_engine/internal/models"
)

// Gateway is the execution collaborator. Implementations return
// *models.ExecutionGatewayError for order I/O failures so the coordinator
// can isolate the owning instance.
type Gateway interface {
	PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error)
	ClosePosition(ctx context.Context, ticket int64) (models.CloseResult, error)
	ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error
	Positions(ctx context.Context) ([]models.Position, error)
	AccountInfo(ctx context.Context) (models.AccountInfo, error)
}

// PriceSource supplies fill prices for market orders. The marketdata client
// satisfies it.
type PriceSource interface {
	PriceTick(ctx context.Context, symbol string) (models.Tick, error)
}
