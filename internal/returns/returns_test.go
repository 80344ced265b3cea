package returns

import (
	"math"
	"testing"

	"krx-scalper/internal/models"
)

func TestCumulativeReturn(t *testing.T) {
	c := New(0)

	if got := c.CumulativeReturn(510000, 500000); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("CumulativeReturn = %f, want 2.0", got)
	}
	if got := c.CumulativeReturn(450000, 500000); math.Abs(got+10.0) > 1e-9 {
		t.Errorf("CumulativeReturn = %f, want -10.0", got)
	}
	if got := c.CumulativeReturn(510000, 0); got != 0 {
		t.Errorf("CumulativeReturn with zero capital = %f, want 0", got)
	}
}

func TestDailyReturn(t *testing.T) {
	c := New(0)

	if got := c.DailyReturn(10000, 500000); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("DailyReturn = %f, want 2.0", got)
	}
	if got := c.DailyReturn(10000, 0); got != 0 {
		t.Errorf("DailyReturn with zero capital = %f, want 0", got)
	}
}

func TestGeometricDailyAverage(t *testing.T) {
	c := New(0)

	// Two days compounding 500000 -> 520200 is 2% per day.
	got := c.GeometricDailyAverage(520200, 500000, 2, 0)
	if math.Abs(got-2.0) > 1e-6 {
		t.Errorf("GeometricDailyAverage = %f, want 2.0", got)
	}

	// Zero completed days falls back to the raw daily return.
	if got := c.GeometricDailyAverage(510000, 500000, 0, 1.5); got != 1.5 {
		t.Errorf("fallback = %f, want 1.5", got)
	}

	if got := c.GeometricDailyAverage(510000, 0, 5, 1.5); got != 0 {
		t.Errorf("zero capital = %f, want 0", got)
	}
}

func TestAnnualizedProjection(t *testing.T) {
	c := New(250)

	// (1.001)^250 - 1
	want := (math.Pow(1.001, 250) - 1) * 100
	if got := c.AnnualizedProjection(0.1); math.Abs(got-want) > 1e-6 {
		t.Errorf("AnnualizedProjection = %f, want %f", got, want)
	}

	if got := c.AnnualizedProjection(0); got != 0 {
		t.Errorf("flat projection = %f, want 0", got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	c := New(0)

	if got := c.MaxDrawdown(550000, 495000); math.Abs(got-10.0) > 1e-9 {
		t.Errorf("MaxDrawdown = %f, want 10.0", got)
	}
	if got := c.MaxDrawdown(500000, 500000); got != 0 {
		t.Errorf("at high watermark = %f, want 0", got)
	}
	if got := c.MaxDrawdown(500000, 510000); got != 0 {
		t.Errorf("above high watermark = %f, want 0", got)
	}
	if got := c.MaxDrawdown(0, 100000); got != 0 {
		t.Errorf("zero watermark = %f, want 0", got)
	}
}

func TestWinRate(t *testing.T) {
	c := New(0)

	txs := []models.Transaction{
		{Kind: models.TxBuy, Amount: 100000},
		{Kind: models.TxSell, Profit: 5000},
		{Kind: models.TxSell, Profit: -2000},
		{Kind: models.TxSell, Profit: 1000},
		{Kind: models.TxSell, Profit: 0}, // flat exit is not a win
	}

	if got := c.WinRate(txs); math.Abs(got-50.0) > 1e-9 {
		t.Errorf("WinRate = %f, want 50.0", got)
	}
	if got := c.WinRate(nil); got != 0 {
		t.Errorf("WinRate with no sells = %f, want 0", got)
	}
	if got := c.WinRate([]models.Transaction{{Kind: models.TxBuy}}); got != 0 {
		t.Errorf("WinRate with only buys = %f, want 0", got)
	}
}

func TestAnalyzeHistory(t *testing.T) {
	c := New(0)

	history := []models.DailySnapshot{
		{Date: "20260105", DailyReturn: 2.0},
		{Date: "20260106", DailyReturn: -1.0},
		{Date: "20260107", DailyReturn: 2.0},
	}

	a := c.AnalyzeHistory(history)
	if a.Days != 3 {
		t.Errorf("Days = %d, want 3", a.Days)
	}
	if math.Abs(a.ArithmeticAvg-1.0) > 1e-9 {
		t.Errorf("ArithmeticAvg = %f, want 1.0", a.ArithmeticAvg)
	}
	if a.BestDay.Date != "20260105" {
		t.Errorf("BestDay = %s, want 20260105", a.BestDay.Date)
	}
	if a.WorstDay.Date != "20260106" {
		t.Errorf("WorstDay = %s, want 20260106", a.WorstDay.Date)
	}
	wantRatio := 2.0 / 3.0 * 100
	if math.Abs(a.PositiveDayRatio-wantRatio) > 1e-9 {
		t.Errorf("PositiveDayRatio = %f, want %f", a.PositiveDayRatio, wantRatio)
	}
	wantVol := math.Sqrt(2.0)
	if math.Abs(a.Volatility-wantVol) > 1e-9 {
		t.Errorf("Volatility = %f, want %f", a.Volatility, wantVol)
	}
	if math.Abs(a.Sharpe-1.0/wantVol) > 1e-9 {
		t.Errorf("Sharpe = %f, want %f", a.Sharpe, 1.0/wantVol)
	}
}

func TestAnalyzeHistoryEmpty(t *testing.T) {
	a := New(0).AnalyzeHistory(nil)
	if a.Days != 0 || a.ArithmeticAvg != 0 || a.Volatility != 0 || a.Sharpe != 0 {
		t.Errorf("empty history analysis not zeroed: %+v", a)
	}
}

func TestOutputsAreFinite(t *testing.T) {
	c := New(0)

	// Inputs that would naively produce NaN or Inf all resolve to 0.
	checks := []float64{
		c.CumulativeReturn(math.Inf(1), 500000),
		c.GeometricDailyAverage(math.Inf(1), 500000, 1, 0),
		c.AnnualizedProjection(math.NaN()),
		c.DailyReturn(math.NaN(), 500000),
	}
	for i, v := range checks {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("check %d not finite: %f", i, v)
		}
	}
}
