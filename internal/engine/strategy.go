package engine

// Strategy sets the per-order amount and position capacity for a trading
// day. With tiering enabled it is derived from total capital at day start,
// so sizing compounds along with the account.
type Strategy struct {
	PerOrder     float64
	MaxPositions int
}

// tier table, largest capital first.
var tiers = []struct {
	minCapital float64
	strategy   Strategy
}{
	{2000000, Strategy{PerOrder: 400000, MaxPositions: 6}},
	{1000000, Strategy{PerOrder: 200000, MaxPositions: 5}},
	{500000, Strategy{PerOrder: 100000, MaxPositions: 5}},
	{200000, Strategy{PerOrder: 50000, MaxPositions: 4}},
}

// fallback for accounts below the smallest tier.
var baseStrategy = Strategy{PerOrder: 30000, MaxPositions: 3}

// StrategyFor returns the capital tier for the given total capital.
func StrategyFor(capital float64) Strategy {
	for _, t := range tiers {
		if capital >= t.minCapital {
			return t.strategy
		}
	}
	return baseStrategy
}
