package models

import "time"

// Position is one open holding. The owning book keys positions by
// instrument code; BuyID links back to the ledger record that opened it.
type Position struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	EntryPrice  float64   `json:"entry_price"`
	Quantity    int64     `json:"quantity"`
	EntryTime   time.Time `json:"entry_time"`
	Tag         string    `json:"tag,omitempty"`
	EntryVolume int64     `json:"entry_volume,omitempty"`
	Cost        float64   `json:"cost"`
	BuyID       string    `json:"buy_id"`
}

// NewPosition creates a position from an accepted buy.
func NewPosition(buy Transaction, entryVolume int64) Position {
	return Position{
		Code:        buy.Code,
		Name:        buy.Name,
		EntryPrice:  buy.Price,
		Quantity:    buy.Quantity,
		EntryTime:   buy.Timestamp,
		Tag:         buy.Tag,
		EntryVolume: entryVolume,
		Cost:        buy.Amount,
		BuyID:       buy.ID,
	}
}

// ProfitRate returns the unrealized profit rate in percent at price.
func (p Position) ProfitRate(price float64) float64 {
	if p.Cost <= 0 {
		return 0
	}
	return (price*float64(p.Quantity) - p.Cost) / p.Cost * 100
}
