package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"algo_engine/internal/models"

	"github.com/shopspring/decimal"
)

// Paper simulates execution against live ticks. Money arithmetic runs on
// decimals so long loops of small fills do not drift; float64 crosses the
// boundary only in the models structs.
type Paper struct {
	prices PriceSource

	mu         sync.Mutex
	balance    decimal.Decimal
	realized   decimal.Decimal
	positions  map[int64]*models.Position
	nextTicket int64
}

func NewPaper(initialBalance float64, prices PriceSource) *Paper {
	return &Paper{
		prices:     prices,
		balance:    decimal.NewFromFloat(initialBalance),
		positions:  make(map[int64]*models.Position),
		nextTicket: 1,
	}
}

func (p *Paper) fillPrice(ctx context.Context, req models.OrderRequest) (float64, error) {
	if req.Price > 0 {
		return req.Price, nil
	}
	if p.prices == nil {
		return 0, fmt.Errorf("no price source and no explicit price")
	}
	tick, err := p.prices.PriceTick(ctx, req.Symbol)
	if err != nil {
		return 0, err
	}
	// cross the spread like a taker
	if req.Side == models.SideBuy && tick.Ask > 0 {
		return tick.Ask, nil
	}
	if req.Side == models.SideSell && tick.Bid > 0 {
		return tick.Bid, nil
	}
	return tick.Last, nil
}

func (p *Paper) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	if req.Volume <= 0 {
		return models.OrderResult{}, &models.ExecutionGatewayError{Op: "place", Err: fmt.Errorf("volume %.4f <= 0", req.Volume)}
	}
	price, err := p.fillPrice(ctx, req)
	if err != nil {
		return models.OrderResult{}, &models.ExecutionGatewayError{Op: "place", Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ticket := p.nextTicket
	p.nextTicket++
	p.positions[ticket] = &models.Position{
		Ticket:       ticket,
		AlgorithmID:  req.AlgorithmID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Volume:       req.Volume,
		OpenPrice:    price,
		CurrentPrice: price,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		OpenedAt:     time.Now(),
	}

	return models.OrderResult{
		Ticket: ticket,
		Order:  fmt.Sprintf("paper-%d", ticket),
		Deal:   fmt.Sprintf("deal-%d", ticket),
		Price:  price,
	}, nil
}

func (p *Paper) ClosePosition(ctx context.Context, ticket int64) (models.CloseResult, error) {
	p.mu.Lock()
	pos, ok := p.positions[ticket]
	p.mu.Unlock()
	if !ok {
		return models.CloseResult{}, &models.ExecutionGatewayError{Op: "close", Err: fmt.Errorf("ticket %d not found", ticket)}
	}

	closeReq := models.OrderRequest{Symbol: pos.Symbol, Side: pos.Side.Opposite(), Volume: pos.Volume}
	price, err := p.fillPrice(ctx, closeReq)
	if err != nil {
		price = pos.CurrentPrice // close at last mark when the feed is down
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, still := p.positions[ticket]; !still {
		return models.CloseResult{}, &models.ExecutionGatewayError{Op: "close", Err: fmt.Errorf("ticket %d already closed", ticket)}
	}
	delete(p.positions, ticket)

	pnl := decimal.NewFromFloat(price).
		Sub(decimal.NewFromFloat(pos.OpenPrice)).
		Mul(decimal.NewFromFloat(pos.Volume)).
		Mul(decimal.NewFromFloat(pos.Side.Direction()))
	p.balance = p.balance.Add(pnl)
	p.realized = p.realized.Add(pnl)

	profit, _ := pnl.Float64()
	return models.CloseResult{Ticket: ticket, ClosedPrice: price, Profit: profit}, nil
}

func (p *Paper) ModifyPosition(_ context.Context, ticket int64, stopLoss, takeProfit float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[ticket]
	if !ok {
		return &models.ExecutionGatewayError{Op: "modify", Err: fmt.Errorf("ticket %d not found", ticket)}
	}
	if stopLoss > 0 {
		pos.StopLoss = stopLoss
	}
	if takeProfit > 0 {
		pos.TakeProfit = takeProfit
	}
	return nil
}

// MarkPrice refreshes one position's mark and unrealized profit. The live
// loop calls it from ticks; tests call it directly.
func (p *Paper) MarkPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pos := range p.positions {
		if pos.Symbol != symbol {
			continue
		}
		pos.CurrentPrice = price
		pos.Profit = (price - pos.OpenPrice) * pos.Volume * pos.Side.Direction()
	}
}

func (p *Paper) Positions(_ context.Context) ([]models.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out, nil
}

func (p *Paper) AccountInfo(_ context.Context) (models.AccountInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var unrealized float64
	for _, pos := range p.positions {
		unrealized += pos.Profit
	}
	balance, _ := p.balance.Float64()
	return models.AccountInfo{
		Balance:    balance,
		Equity:     balance + unrealized,
		FreeMargin: balance + unrealized,
		Profit:     unrealized,
	}, nil
}
