// Package ledger provides the virtual cash and transaction bookkeeping
// authority. It owns the append-only buy/sell history and the affordability
// rules; it never holds live position references, only records.
package ledger

import (
	"sync"
	"time"

	"krx-scalper/internal/config"
	errs "krx-scalper/internal/errors"
	"krx-scalper/internal/models"
)

// Ledger tracks virtual cash, the day's transactions, and capital
// watermarks. Safe for concurrent readers; mutations are expected to be
// serialized by the owning engine.
type Ledger struct {
	mu sync.RWMutex

	cash            float64
	originalCapital float64
	startCapital    float64
	dailyPnL        float64
	maxCapital      float64
	minCapital      float64
	tradingDays     int

	txs  []models.Transaction
	sold map[string]bool // buy id -> consumed this day

	minOrder   float64
	scaleRatio float64

	now func() time.Time
}

// New creates a ledger with the given starting capital. nowFn supplies
// timestamps for transaction records; nil means time.Now.
func New(cfg config.CapitalConfig, startCapital float64, nowFn func() time.Time) *Ledger {
	if nowFn == nil {
		nowFn = time.Now
	}
	if startCapital <= 0 {
		startCapital = cfg.Initial
	}
	scale := cfg.ScaleDownRatio
	if scale <= 0 || scale > 1 {
		scale = 0.9
	}
	return &Ledger{
		cash:            startCapital,
		originalCapital: startCapital,
		startCapital:    startCapital,
		maxCapital:      startCapital,
		minCapital:      startCapital,
		sold:            make(map[string]bool),
		minOrder:        cfg.MinOrderAmount,
		scaleRatio:      scale,
		now:             nowFn,
	}
}

// CanAfford reports whether amount can be fully funded from cash.
func (l *Ledger) CanAfford(amount float64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash >= amount
}

// Buy debits cash and records a buy transaction. When cash cannot cover
// targetAmount the order scales down to scaleRatio of available cash; the
// caller can observe the fill size on the returned transaction. Orders
// below the minimum amount, or resolving to zero shares, are rejected
// without mutation.
func (l *Ledger) Buy(code, name string, price, targetAmount float64, tag string) (models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if price <= 0 {
		return models.Transaction{}, errs.NewTradeError(code, "buy", "no valid price", errs.ErrQuoteUnavailable)
	}

	affordable := targetAmount
	if l.cash < targetAmount {
		affordable = l.cash * l.scaleRatio
		if affordable < l.minOrder {
			return models.Transaction{}, errs.NewTradeError(code, "buy", "scaled amount below minimum", errs.ErrInsufficientFunds)
		}
	}

	quantity := int64(affordable / price)
	if quantity == 0 {
		return models.Transaction{}, errs.NewTradeError(code, "buy", "amount buys zero shares", errs.ErrInsufficientFunds)
	}

	tx := models.NewBuyTransaction(code, name, quantity, price, tag, l.now())
	l.cash -= tx.Amount
	l.txs = append(l.txs, tx)
	return tx, nil
}

// Sell credits the sale proceeds, records a sell transaction referencing
// buy by id, and accumulates the realized profit into the daily P&L. The
// position book owns single-use semantics; a repeated buy id here is a
// caller contract violation and is rejected defensively.
func (l *Ledger) Sell(buy models.Transaction, price float64, reason models.ExitReason) (models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sold[buy.ID] {
		return models.Transaction{}, errs.NewTradeError(buy.Code, "sell", "buy transaction already consumed", errs.ErrUnknownPosition)
	}

	tx := models.NewSellTransaction(buy, price, reason, l.now())
	l.cash += tx.Amount
	l.dailyPnL += tx.Profit
	l.sold[buy.ID] = true
	l.txs = append(l.txs, tx)
	return tx, nil
}

// ObserveTotal updates the capital high and low watermarks against the
// current total portfolio value. Called after every mutating operation.
func (l *Ledger) ObserveTotal(total float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if total > l.maxCapital {
		l.maxCapital = total
	}
	if total < l.minCapital {
		l.minCapital = total
	}
}

// Cash returns available cash.
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// DailyPnL returns realized profit accumulated today.
func (l *Ledger) DailyPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dailyPnL
}

// OriginalCapital returns the first day's starting capital.
func (l *Ledger) OriginalCapital() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.originalCapital
}

// StartCapital returns today's starting capital.
func (l *Ledger) StartCapital() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.startCapital
}

// Watermarks returns the capital high and low watermarks.
func (l *Ledger) Watermarks() (max, min float64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.maxCapital, l.minCapital
}

// TradingDays returns the cumulative finalized day count.
func (l *Ledger) TradingDays() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tradingDays
}

// Transactions returns a copy of today's transaction history in order.
func (l *Ledger) Transactions() []models.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Transaction, len(l.txs))
	copy(out, l.txs)
	return out
}

// DailyCounts returns today's buy and sell counts.
func (l *Ledger) DailyCounts() (buys, sells int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, tx := range l.txs {
		switch tx.Kind {
		case models.TxBuy:
			buys++
		case models.TxSell:
			sells++
		}
	}
	return buys, sells
}

// Value returns the display snapshot given the current invested total.
// Daily return is measured against today's starting capital.
func (l *Ledger) Value(invested float64) models.PortfolioSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := l.cash + invested
	dailyReturn := 0.0
	if l.startCapital > 0 {
		dailyReturn = l.dailyPnL / l.startCapital * 100
	}
	cumulative := 0.0
	if l.originalCapital > 0 {
		cumulative = (total - l.originalCapital) / l.originalCapital * 100
	}

	buys, sells := 0, 0
	for _, tx := range l.txs {
		if tx.Kind == models.TxBuy {
			buys++
		} else {
			sells++
		}
	}

	return models.PortfolioSummary{
		Cash:             l.cash,
		Invested:         invested,
		Total:            total,
		DailyPnL:         l.dailyPnL,
		DailyReturn:      dailyReturn,
		CumulativeReturn: cumulative,
		BuyCount:         buys,
		SellCount:        sells,
	}
}

// ResetDaily rolls the ledger into a new trading day: clears the day-scoped
// transaction history and daily P&L and sets the new starting capital.
// Lifetime fields (original capital, watermarks, day counter) carry over.
func (l *Ledger) ResetDaily(startCapital float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startCapital = startCapital
	l.dailyPnL = 0
	l.txs = nil
	l.sold = make(map[string]bool)
}

// IncrementTradingDays bumps the finalized day counter.
func (l *Ledger) IncrementTradingDays() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tradingDays++
}

// Restore rebuilds ledger state from a loaded snapshot.
func (l *Ledger) Restore(state models.PortfolioState, txs []models.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cash = state.Cash
	l.dailyPnL = state.DailyPnL
	l.startCapital = state.StartCapital
	if state.OriginalCapital > 0 {
		l.originalCapital = state.OriginalCapital
	}
	if state.MaxCapital > 0 {
		l.maxCapital = state.MaxCapital
	}
	if state.MinCapital > 0 {
		l.minCapital = state.MinCapital
	}
	l.tradingDays = state.TradingDays

	l.txs = append([]models.Transaction(nil), txs...)
	l.sold = make(map[string]bool)
	for _, tx := range l.txs {
		if tx.Kind == models.TxSell && tx.BuyID != "" {
			l.sold[tx.BuyID] = true
		}
	}
}
