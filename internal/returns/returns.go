// Package returns derives daily and cumulative performance statistics from
// the ledger and the finalized day history.
package returns

import (
	"math"

	"krx-scalper/internal/models"
)

// DefaultAnnualSessions is the trading-year length used for annualized
// projections.
const DefaultAnnualSessions = 250

// Calculator computes compounding statistics. All percentage outputs are
// finite; divide-by-zero cases return 0 rather than propagating NaN or Inf
// into persisted snapshots.
type Calculator struct {
	annualSessions int
}

// New creates a calculator. annualSessions <= 0 selects the default.
func New(annualSessions int) *Calculator {
	if annualSessions <= 0 {
		annualSessions = DefaultAnnualSessions
	}
	return &Calculator{annualSessions: annualSessions}
}

// CumulativeReturn returns lifetime return in percent against the first
// day's starting capital, recomputed from the inputs on every call.
func (c *Calculator) CumulativeReturn(total, originalCapital float64) float64 {
	if originalCapital <= 0 {
		return 0
	}
	return finite((total - originalCapital) / originalCapital * 100)
}

// DailyReturn returns today's realized return in percent against today's
// starting capital.
func (c *Calculator) DailyReturn(dailyPnL, startCapital float64) float64 {
	if startCapital <= 0 {
		return 0
	}
	return finite(dailyPnL / startCapital * 100)
}

// ArithmeticDailyAverage returns the mean of the per-day returns.
func (c *Calculator) ArithmeticDailyAverage(history []models.DailySnapshot) float64 {
	if len(history) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range history {
		sum += d.DailyReturn
	}
	return finite(sum / float64(len(history)))
}

// GeometricDailyAverage returns the compounding daily average in percent:
// (total/original)^(1/days) - 1. With zero completed days it falls back to
// the raw daily return.
func (c *Calculator) GeometricDailyAverage(total, originalCapital float64, days int, rawDailyReturn float64) float64 {
	if days <= 0 {
		return finite(rawDailyReturn)
	}
	if originalCapital <= 0 || total <= 0 {
		return 0
	}
	g := math.Pow(total/originalCapital, 1/float64(days)) - 1
	return finite(g * 100)
}

// AnnualizedProjection compounds the geometric daily average over the
// configured trading-year length.
func (c *Calculator) AnnualizedProjection(geometricDailyPct float64) float64 {
	g := geometricDailyPct / 100
	return finite((math.Pow(1+g, float64(c.annualSessions)) - 1) * 100)
}

// MaxDrawdown returns the decline from the capital high watermark to the
// current total, in percent of the watermark.
func (c *Calculator) MaxDrawdown(maxCapital, total float64) float64 {
	if maxCapital <= 0 || total >= maxCapital {
		return 0
	}
	return finite((maxCapital - total) / maxCapital * 100)
}

// WinRate returns the share of sell transactions with positive realized
// profit, in percent.
func (c *Calculator) WinRate(txs []models.Transaction) float64 {
	sells, wins := 0, 0
	for _, tx := range txs {
		if tx.Kind != models.TxSell {
			continue
		}
		sells++
		if tx.Profit > 0 {
			wins++
		}
	}
	if sells == 0 {
		return 0
	}
	return finite(float64(wins) / float64(sells) * 100)
}

// PeriodAnalysis summarizes the finalized day history.
type PeriodAnalysis struct {
	Days             int
	ArithmeticAvg    float64
	Volatility       float64
	Sharpe           float64
	BestDay          models.DailySnapshot
	WorstDay         models.DailySnapshot
	PositiveDayRatio float64
}

// AnalyzeHistory computes volatility, a Sharpe-style ratio over the daily
// returns, the best and worst days, and the positive-day ratio.
func (c *Calculator) AnalyzeHistory(history []models.DailySnapshot) PeriodAnalysis {
	a := PeriodAnalysis{Days: len(history)}
	if len(history) == 0 {
		return a
	}

	a.ArithmeticAvg = c.ArithmeticDailyAverage(history)
	a.BestDay = history[0]
	a.WorstDay = history[0]

	positive := 0
	variance := 0.0
	for _, d := range history {
		if d.DailyReturn > 0 {
			positive++
		}
		if d.DailyReturn > a.BestDay.DailyReturn {
			a.BestDay = d
		}
		if d.DailyReturn < a.WorstDay.DailyReturn {
			a.WorstDay = d
		}
		diff := d.DailyReturn - a.ArithmeticAvg
		variance += diff * diff
	}
	a.Volatility = finite(math.Sqrt(variance / float64(len(history))))
	if a.Volatility > 0 {
		a.Sharpe = finite(a.ArithmeticAvg / a.Volatility)
	}
	a.PositiveDayRatio = finite(float64(positive) / float64(len(history)) * 100)
	return a
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
