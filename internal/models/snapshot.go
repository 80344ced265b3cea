package models

import "time"

// PortfolioState is the full day-scoped accounting state, as persisted and
// restored by the snapshot store. Invested is derived from the open
// positions; loaders recompute it rather than trusting the stored value.
type PortfolioState struct {
	Date            string     `json:"date"`
	Cash            float64    `json:"cash"`
	Invested        float64    `json:"invested"`
	Positions       []Position `json:"positions"`
	TradedToday     []string   `json:"traded_today"`
	BlockedCodes    []string   `json:"blocked_codes"`
	DailyPnL        float64    `json:"daily_pnl"`
	StartCapital    float64    `json:"start_capital"`
	OriginalCapital float64    `json:"original_capital"`
	MaxCapital      float64    `json:"max_capital"`
	MinCapital      float64    `json:"min_capital"`
	TradingDays     int        `json:"trading_days"`
	LastUpdated     time.Time  `json:"last_updated"`
}

// RecomputeInvested sets Invested to the live sum of open position costs.
func (s *PortfolioState) RecomputeInvested() {
	total := 0.0
	for _, p := range s.Positions {
		total += p.Cost
	}
	s.Invested = total
}

// Total returns cash plus invested capital.
func (s *PortfolioState) Total() float64 {
	return s.Cash + s.Invested
}

// DailySnapshot is one finalized trading day.
type DailySnapshot struct {
	Date             string  `csv:"date" json:"date"`
	StartCapital     float64 `csv:"start_capital" json:"start_capital"`
	EndCapital       float64 `csv:"end_capital" json:"end_capital"`
	DailyPnL         float64 `csv:"daily_pnl" json:"daily_pnl"`
	DailyReturn      float64 `csv:"daily_return" json:"daily_return"`
	CumulativeReturn float64 `csv:"cumulative_return" json:"cumulative_return"`
	TradeCount       int     `csv:"trade_count" json:"trade_count"`
}

// PortfolioSummary is the read-only view handed to display surfaces.
type PortfolioSummary struct {
	Cash             float64 `json:"cash"`
	Invested         float64 `json:"invested"`
	Total            float64 `json:"total"`
	DailyPnL         float64 `json:"daily_pnl"`
	DailyReturn      float64 `json:"daily_return"`
	CumulativeReturn float64 `json:"cumulative_return"`
	OpenPositions    int     `json:"open_positions"`
	AvailableSlots   int     `json:"available_slots"`
	BuyCount         int     `json:"buy_count"`
	SellCount        int     `json:"sell_count"`
}
