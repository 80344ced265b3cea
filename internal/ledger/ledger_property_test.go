package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"krx-scalper/internal/models"
)

// Property: a buy followed by a sell at any price conserves value. The cash
// delta over the round trip equals the realized profit, and the recorded
// profit equals proceeds minus the buy amount.
func TestProperty_RoundTripConservesValue(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("cash delta equals realized profit", prop.ForAll(
		func(buyPrice, sellPrice, target float64) bool {
			l := New(testCapitalConfig(), 500000, fixedNow)
			startCash := l.Cash()

			buy, err := l.Buy("A005930", "Samsung", buyPrice, target, "scalp")
			if err != nil {
				// Rejected orders must leave cash untouched.
				return l.Cash() == startCash && len(l.Transactions()) == 0
			}

			afterBuy := l.Cash()
			if math.Abs(startCash-afterBuy-buy.Amount) > 1e-6 {
				return false
			}

			sell, err := l.Sell(buy, sellPrice, models.ExitReasonManual)
			if err != nil {
				return false
			}

			if math.Abs(sell.Profit-(sell.Amount-buy.Amount)) > 1e-6 {
				return false
			}
			return math.Abs(l.Cash()-startCash-sell.Profit) < 1e-6
		},
		gen.Float64Range(100, 100000),
		gen.Float64Range(100, 100000),
		gen.Float64Range(1000, 1000000),
	))

	properties.Property("profit rate is profit over buy amount", prop.ForAll(
		func(buyPrice, sellPrice float64) bool {
			l := New(testCapitalConfig(), 500000, fixedNow)

			buy, err := l.Buy("A000660", "Hynix", buyPrice, 100000, "scalp")
			if err != nil {
				return true
			}
			sell, err := l.Sell(buy, sellPrice, models.ExitReasonManual)
			if err != nil {
				return false
			}
			want := sell.Profit / buy.Amount
			return math.Abs(sell.ProfitRate-want) < 1e-9
		},
		gen.Float64Range(100, 50000),
		gen.Float64Range(100, 50000),
	))

	properties.TestingRun(t)
}

// Property: daily P&L is always the sum of sell profits, regardless of the
// order sizes and prices applied during the day.
func TestProperty_DailyPnLAccumulates(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("daily pnl equals sum of sell profits", prop.ForAll(
		func(prices []float64) bool {
			l := New(testCapitalConfig(), 10000000, fixedNow)

			sum := 0.0
			for i, p := range prices {
				buy, err := l.Buy("A"+padCode(i), "test", 1000, 50000, "scalp")
				if err != nil {
					continue
				}
				sell, err := l.Sell(buy, p, models.ExitReasonManual)
				if err != nil {
					return false
				}
				sum += sell.Profit
			}
			return math.Abs(l.DailyPnL()-sum) < 1e-6
		},
		gen.SliceOfN(10, gen.Float64Range(500, 2000)),
	))

	properties.TestingRun(t)
}

func padCode(i int) string {
	digits := "0123456789"
	return "00000" + string(digits[i%10])
}
