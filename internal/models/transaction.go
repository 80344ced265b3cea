package models

import (
	"fmt"
	"time"
)

// Transaction is an immutable ledger record. Buy and sell share the common
// fields; the sell-only fields stay zero on buys. Transactions reference
// positions only by instrument code and each other only by id, never by
// pointer.
type Transaction struct {
	ID        string    `json:"id"`
	Kind      TxKind    `json:"kind"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	Tag       string    `json:"tag,omitempty"`

	// Sell-only fields.
	BuyID      string     `json:"buy_id,omitempty"`
	Profit     float64    `json:"profit,omitempty"`
	ProfitRate float64    `json:"profit_rate,omitempty"`
	ExitReason ExitReason `json:"exit_reason,omitempty"`
}

// TransactionID builds the id for a transaction at time t,
// e.g. "BUY_20260102_090512_A005930".
func TransactionID(kind TxKind, t time.Time, code string) string {
	return fmt.Sprintf("%s_%s_%s", kind, t.Format("20060102_150405"), code)
}

// NewBuyTransaction creates a buy record.
func NewBuyTransaction(code, name string, quantity int64, price float64, tag string, t time.Time) Transaction {
	return Transaction{
		ID:        TransactionID(TxBuy, t, code),
		Kind:      TxBuy,
		Code:      code,
		Name:      name,
		Quantity:  quantity,
		Price:     price,
		Amount:    float64(quantity) * price,
		Timestamp: t,
		Tag:       tag,
	}
}

// NewSellTransaction creates a sell record closing the given buy.
func NewSellTransaction(buy Transaction, price float64, reason ExitReason, t time.Time) Transaction {
	amount := float64(buy.Quantity) * price
	profit := amount - buy.Amount
	rate := 0.0
	if buy.Amount > 0 {
		rate = profit / buy.Amount
	}
	return Transaction{
		ID:         TransactionID(TxSell, t, buy.Code),
		Kind:       TxSell,
		Code:       buy.Code,
		Name:       buy.Name,
		Quantity:   buy.Quantity,
		Price:      price,
		Amount:     amount,
		Timestamp:  t,
		Tag:        buy.Tag,
		BuyID:      buy.ID,
		Profit:     profit,
		ProfitRate: rate,
		ExitReason: reason,
	}
}
