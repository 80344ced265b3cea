// Package exit decides which open positions must close and why.
package exit

import (
	"krx-scalper/internal/models"
)

// Signal is one position due for closing at the given price.
type Signal struct {
	Position models.Position
	Price    float64
	Reason   models.ExitReason
}

// Evaluator applies the profit-target and stop-loss thresholds.
// The target check runs first, so a state satisfying both thresholds
// deterministically exits as a target hit.
type Evaluator struct {
	targetPct float64 // positive, e.g. 5.0
	stopPct   float64 // negative, e.g. -5.0
}

// New creates an evaluator with the given thresholds in percent.
func New(targetPct, stopPct float64) *Evaluator {
	return &Evaluator{targetPct: targetPct, stopPct: stopPct}
}

// Evaluate returns whether the position should exit at price and why.
func (e *Evaluator) Evaluate(p models.Position, price float64) (bool, models.ExitReason) {
	rate := p.ProfitRate(price)
	switch {
	case rate >= e.targetPct:
		return true, models.ExitReasonTarget
	case rate <= e.stopPct:
		return true, models.ExitReasonStop
	default:
		return false, ""
	}
}

// EvaluateAll checks every position against the price map and returns the
// signals in position order. Positions with a missing or zero price are
// skipped for this tick, not treated as failures.
func (e *Evaluator) EvaluateAll(positions []models.Position, prices map[string]float64) []Signal {
	var signals []Signal
	for _, p := range positions {
		price, ok := prices[p.Code]
		if !ok || price <= 0 {
			continue
		}
		if should, reason := e.Evaluate(p, price); should {
			signals = append(signals, Signal{Position: p, Price: price, Reason: reason})
		}
	}
	return signals
}
