package models

import "time"

type Position struct {
	Ticket       int64     `json:"ticket"`
	AlgorithmID  string    `json:"algorithm_id,omitempty"`
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	Volume       float64   `json:"volume"`
	OpenPrice    float64   `json:"open_price"`
	CurrentPrice float64   `json:"current_price"`
	StopLoss     float64   `json:"stop_loss,omitempty"`
	TakeProfit   float64   `json:"take_profit,omitempty"`
	Profit       float64   `json:"profit"` // unrealized
	OpenedAt     time.Time `json:"opened_at"`
}

func (p Position) Exposure() float64 {
	return p.Volume * p.OpenPrice
}

type AccountInfo struct {
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	FreeMargin float64 `json:"free_margin"`
	Profit     float64 `json:"profit"`
}

type OrderRequest struct {
	AlgorithmID string  `json:"algorithm_id,omitempty"`
	Symbol      string  `json:"symbol"`
	Side        Side    `json:"side"`
	Volume      float64 `json:"volume"`
	Price       float64 `json:"price,omitempty"` // 0 => market
	StopLoss    float64 `json:"stop_loss,omitempty"`
	TakeProfit  float64 `json:"take_profit,omitempty"`
	Comment     string  `json:"comment,omitempty"`
}

type OrderResult struct {
	Ticket int64   `json:"ticket"`
	Order  string  `json:"order"`
	Deal   string  `json:"deal"`
	Price  float64 `json:"price"` // executed price
}

type CloseResult struct {
	Ticket      int64   `json:"ticket"`
	ClosedPrice float64 `json:"closed_price"`
	Profit      float64 `json:"profit"` // realized
}
