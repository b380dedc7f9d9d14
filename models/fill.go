package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill is an executed trade reported by the exchange. It is never mutated locally.
type Fill struct {
	ID          string          `json:"id"`
	Market      string          `json:"market"`
	Side        string          `json:"side"`
	Size        decimal.Decimal `json:"size"`
	Price       decimal.Decimal `json:"price"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PnL returns the realized PnL as a float for prompting.
func (f Fill) PnL() float64 {
	return f.RealizedPnL.InexactFloat64()
}
