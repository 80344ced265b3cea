package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"krx-scalper/internal/config"
	errs "krx-scalper/internal/errors"
	"krx-scalper/internal/models"
)

func testCapitalConfig() config.CapitalConfig {
	return config.CapitalConfig{
		Initial:        500000,
		MinOrderAmount: 10000,
		ScaleDownRatio: 0.9,
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 1, 8, 10, 0, 0, 0, time.UTC)
}

func TestBuySellCycle(t *testing.T) {
	l := New(testCapitalConfig(), 500000, fixedNow)

	buy, err := l.Buy("A005930", "Samsung", 1000, 100000, "scalp")
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if buy.Quantity != 100 {
		t.Errorf("quantity = %d, want 100", buy.Quantity)
	}
	if buy.Amount != 100000 {
		t.Errorf("amount = %f, want 100000", buy.Amount)
	}
	if l.Cash() != 400000 {
		t.Errorf("cash after buy = %f, want 400000", l.Cash())
	}

	sell, err := l.Sell(buy, 1100, models.ExitReasonTarget)
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if sell.Amount != 110000 {
		t.Errorf("sale proceeds = %f, want 110000", sell.Amount)
	}
	if sell.Profit != 10000 {
		t.Errorf("profit = %f, want 10000", sell.Profit)
	}
	if math.Abs(sell.ProfitRate-0.1) > 1e-9 {
		t.Errorf("profit rate = %f, want 0.1", sell.ProfitRate)
	}
	if l.Cash() != 510000 {
		t.Errorf("cash after sell = %f, want 510000", l.Cash())
	}
	if l.DailyPnL() != 10000 {
		t.Errorf("daily pnl = %f, want 10000", l.DailyPnL())
	}

	summary := l.Value(0)
	if math.Abs(summary.CumulativeReturn-2.0) > 1e-9 {
		t.Errorf("cumulative return = %f, want 2.0", summary.CumulativeReturn)
	}
	if math.Abs(summary.DailyReturn-2.0) > 1e-9 {
		t.Errorf("daily return = %f, want 2.0", summary.DailyReturn)
	}
}

func TestBuyScalesDownWhenUnderfunded(t *testing.T) {
	l := New(testCapitalConfig(), 500000, fixedNow)

	// Target exceeds cash, so the order scales to 90% of available cash.
	buy, err := l.Buy("A000660", "Hynix", 1000, 600000, "scalp")
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if buy.Quantity != 450 {
		t.Errorf("quantity = %d, want 450", buy.Quantity)
	}
	if l.Cash() != 50000 {
		t.Errorf("cash = %f, want 50000", l.Cash())
	}
}

func TestBuyRejectsBelowMinimumWithoutMutation(t *testing.T) {
	l := New(testCapitalConfig(), 5000, fixedNow)

	_, err := l.Buy("A005930", "Samsung", 1000, 100000, "scalp")
	if !errors.Is(err, errs.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if l.Cash() != 5000 {
		t.Errorf("cash mutated on rejection: %f", l.Cash())
	}
	if len(l.Transactions()) != 0 {
		t.Errorf("transaction recorded on rejection")
	}
}

func TestBuyRejectsZeroQuantity(t *testing.T) {
	l := New(testCapitalConfig(), 500000, fixedNow)

	// Price above the affordable amount resolves to zero shares.
	_, err := l.Buy("A005930", "Samsung", 200000, 100000, "scalp")
	if !errors.Is(err, errs.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if l.Cash() != 500000 {
		t.Errorf("cash mutated on rejection: %f", l.Cash())
	}
}

func TestBuyRejectsInvalidPrice(t *testing.T) {
	l := New(testCapitalConfig(), 500000, fixedNow)

	if _, err := l.Buy("A005930", "Samsung", 0, 100000, "scalp"); !errors.Is(err, errs.ErrQuoteUnavailable) {
		t.Fatalf("err = %v, want ErrQuoteUnavailable", err)
	}
}

func TestSellRejectsConsumedBuy(t *testing.T) {
	l := New(testCapitalConfig(), 500000, fixedNow)

	buy, err := l.Buy("A005930", "Samsung", 1000, 100000, "scalp")
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if _, err := l.Sell(buy, 1100, models.ExitReasonTarget); err != nil {
		t.Fatalf("first Sell failed: %v", err)
	}

	_, err = l.Sell(buy, 1200, models.ExitReasonManual)
	if !errors.Is(err, errs.ErrUnknownPosition) {
		t.Fatalf("err = %v, want ErrUnknownPosition", err)
	}
}

func TestWatermarks(t *testing.T) {
	l := New(testCapitalConfig(), 500000, fixedNow)

	l.ObserveTotal(520000)
	l.ObserveTotal(480000)
	l.ObserveTotal(510000)

	max, min := l.Watermarks()
	if max != 520000 {
		t.Errorf("max = %f, want 520000", max)
	}
	if min != 480000 {
		t.Errorf("min = %f, want 480000", min)
	}
}

func TestResetDailyKeepsLifetimeFields(t *testing.T) {
	l := New(testCapitalConfig(), 500000, fixedNow)

	buy, _ := l.Buy("A005930", "Samsung", 1000, 100000, "scalp")
	l.Sell(buy, 1100, models.ExitReasonTarget)
	l.IncrementTradingDays()

	l.ResetDaily(510000)

	if l.DailyPnL() != 0 {
		t.Errorf("daily pnl not cleared: %f", l.DailyPnL())
	}
	if len(l.Transactions()) != 0 {
		t.Errorf("transactions not cleared")
	}
	if l.StartCapital() != 510000 {
		t.Errorf("start capital = %f, want 510000", l.StartCapital())
	}
	if l.OriginalCapital() != 500000 {
		t.Errorf("original capital = %f, want 500000", l.OriginalCapital())
	}
	if l.TradingDays() != 1 {
		t.Errorf("trading days = %d, want 1", l.TradingDays())
	}
}

func TestRestoreRebuildsConsumedBuys(t *testing.T) {
	l := New(testCapitalConfig(), 500000, fixedNow)

	buy, _ := l.Buy("A005930", "Samsung", 1000, 100000, "scalp")
	sell, _ := l.Sell(buy, 1100, models.ExitReasonTarget)

	restored := New(testCapitalConfig(), 500000, fixedNow)
	restored.Restore(models.PortfolioState{
		Cash:            l.Cash(),
		DailyPnL:        l.DailyPnL(),
		StartCapital:    500000,
		OriginalCapital: 500000,
	}, []models.Transaction{buy, sell})

	if _, err := restored.Sell(buy, 1200, models.ExitReasonManual); !errors.Is(err, errs.ErrUnknownPosition) {
		t.Errorf("restored ledger accepted a consumed buy: %v", err)
	}
	if restored.Cash() != l.Cash() {
		t.Errorf("restored cash = %f, want %f", restored.Cash(), l.Cash())
	}
}

func TestValueGuardsZeroStartCapital(t *testing.T) {
	l := New(testCapitalConfig(), 500000, fixedNow)
	l.Restore(models.PortfolioState{Cash: 100000, DailyPnL: 5000, StartCapital: 0}, nil)

	summary := l.Value(0)
	if summary.DailyReturn != 0 {
		t.Errorf("daily return not guarded against zero start capital: %f", summary.DailyReturn)
	}
}
